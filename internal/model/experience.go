package model

import "github.com/shopspring/decimal"

// Experience is a bookable tour from the catalog.  Price is per
// participant in the catalog currency.
type Experience struct {
	ID          uint64          `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	ImageURL    string          `json:"imageUrl"`
	Location    string          `json:"location"`
	Duration    string          `json:"duration"`
}

// ExperienceSnapshot is the copy of an experience captured at checkout.  It
// travels with the pending booking so the voucher shows what the customer
// saw when paying, even if the catalog entry changes afterwards.
type ExperienceSnapshot struct {
	ID       uint64          `json:"id"`
	Title    string          `json:"title"`
	Price    decimal.Decimal `json:"price"`
	ImageURL string          `json:"imageUrl"`
	Location string          `json:"location"`
	Duration string          `json:"duration"`
}

// Snapshot copies the fields a voucher needs.
func (e Experience) Snapshot() ExperienceSnapshot {
	return ExperienceSnapshot{
		ID:       e.ID,
		Title:    e.Title,
		Price:    e.Price,
		ImageURL: e.ImageURL,
		Location: e.Location,
		Duration: e.Duration,
	}
}
