package webpay

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// CreateRequest is the merchant side of a new transaction.  BuyOrder and
// SessionID must be unique per attempt.
type CreateRequest struct {
	BuyOrder  string
	SessionID string
	Amount    decimal.Decimal
	ReturnURL string
}

type createPayload struct {
	BuyOrder  string `json:"buy_order"`
	SessionID string `json:"session_id"`
	Amount    int64  `json:"amount"`
	ReturnURL string `json:"return_url"`
}

// TransactionHandle is what the browser needs to reach the hosted payment
// page: the token to post and the URL to post it to.
type TransactionHandle struct {
	Token string `json:"token"`
	URL   string `json:"url"`
}

// CardDetail holds the masked card data returned on commit.
type CardDetail struct {
	CardNumber string `json:"card_number"`
}

// CommitResult is the provider's authoritative answer for a transaction.
// ResponseCode 0 is the only approval; every other value, negative ones
// included, is a rejection.
type CommitResult struct {
	VCI                string           `json:"vci"`
	Amount             decimal.Decimal  `json:"amount"`
	Status             string           `json:"status"`
	BuyOrder           string           `json:"buy_order"`
	SessionID          string           `json:"session_id"`
	CardDetail         CardDetail       `json:"card_detail"`
	AccountingDate     string           `json:"accounting_date"`
	TransactionDate    string           `json:"transaction_date"`
	AuthorizationCode  string           `json:"authorization_code"`
	PaymentTypeCode    string           `json:"payment_type_code"`
	ResponseCode       int              `json:"response_code"`
	InstallmentsAmount *decimal.Decimal `json:"installments_amount,omitempty"`
	InstallmentsNumber int              `json:"installments_number"`
	Balance            *decimal.Decimal `json:"balance,omitempty"`

	// Raw is the body exactly as received, kept for audit and for the
	// passthrough commit endpoint.
	Raw json.RawMessage `json:"-"`
}

// Approved reports whether the provider authorized the payment.
func (r CommitResult) Approved() bool {
	return r.ResponseCode == 0
}

// TransactionTime parses TransactionDate; nil when absent or malformed.
func (r CommitResult) TransactionTime() *time.Time {
	if r.TransactionDate == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, r.TransactionDate)
	if err != nil {
		return nil
	}
	return &t
}
