package webpay

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrInvalidAmount is returned before any network call when the rounded
	// amount is not positive.
	ErrInvalidAmount = errors.New("webpay: amount must be greater than zero")
	// ErrEmptyToken is returned by Commit for an empty token.
	ErrEmptyToken = errors.New("webpay: token is required")
)

// Kind classifies a failed provider call.
type Kind int

const (
	// KindRejected: the provider answered and refused (non-2xx).  Recoverable
	// only by the customer starting a fresh checkout.
	KindRejected Kind = iota + 1
	// KindUnreachable: transport failure or timeout.  Nothing is known about
	// the transaction.
	KindUnreachable
	// KindAmbiguous: the provider refused a commit because the transaction
	// was already processed, expired or voided.  Money may have moved; never
	// retried automatically.
	KindAmbiguous
)

func (k Kind) String() string {
	switch k {
	case KindRejected:
		return "rejected"
	case KindUnreachable:
		return "unreachable"
	case KindAmbiguous:
		return "ambiguous"
	}
	return "unknown"
}

// ProviderError is the single error type returned for provider failures.
// Status and Body carry the provider's raw answer for diagnostics when there
// was one.
type ProviderError struct {
	Op     string
	Kind   Kind
	Status int
	Body   string
	Err    error
}

func (e *ProviderError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("webpay %s: %s: %v", e.Op, e.Kind, e.Err)
	case e.Status != 0:
		return fmt.Sprintf("webpay %s: %s (status %d)", e.Op, e.Kind, e.Status)
	}
	return fmt.Sprintf("webpay %s: %s", e.Op, e.Kind)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// KindOf returns the Kind of a provider error, or 0 for any other error.
func KindOf(err error) Kind {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return 0
}

// providerErrorBody is the error document the REST API returns.
type providerErrorBody struct {
	ErrorMessage string `json:"error_message"`
	ResponseCode *int   `json:"response_code"`
}

// classifyCommitFailure decides whether a non-2xx commit answer means the
// transaction was already settled/expired (ambiguous) or a plain refusal.
// The provider answers 422 for commits against a token in the wrong state;
// older gateways report response_code -1 in the error body instead.
func classifyCommitFailure(status int, body []byte) Kind {
	if status == http.StatusUnprocessableEntity {
		return KindAmbiguous
	}
	var doc providerErrorBody
	if err := json.Unmarshal(body, &doc); err == nil {
		if doc.ResponseCode != nil && *doc.ResponseCode == -1 {
			return KindAmbiguous
		}
		msg := strings.ToLower(doc.ErrorMessage)
		if strings.Contains(msg, "invalid status") || strings.Contains(msg, "already") || strings.Contains(msg, "expired") {
			return KindAmbiguous
		}
	}
	return KindRejected
}
