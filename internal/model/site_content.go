package model

// SiteContent is an editable key/value text block of the public site.  Values
// may hold plain text or a JSON object of translations.
type SiteContent struct {
	ID    uint64 `json:"id"`
	Key   string `json:"key"`
	Value string `json:"value"`
}
