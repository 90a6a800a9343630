package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus is the lifecycle state of a provider transaction as seen by
// this service.
type PaymentStatus string

const (
	PaymentPending    PaymentStatus = "PENDING"    // created locally, provider not yet answered
	PaymentRedirected PaymentStatus = "REDIRECTED" // provider issued a token
	PaymentAuthorized PaymentStatus = "AUTHORIZED" // commit returned response_code 0
	PaymentRejected   PaymentStatus = "REJECTED"   // commit returned a non-zero code
	PaymentAmbiguous  PaymentStatus = "AMBIGUOUS"  // provider refused commit as already processed/expired
	PaymentCancelled  PaymentStatus = "CANCELLED"  // customer aborted on the provider page
	PaymentFailed     PaymentStatus = "FAILED"     // create call failed
)

// Committed reports whether a commit outcome has been stored.
func (s PaymentStatus) Committed() bool {
	return s == PaymentAuthorized || s == PaymentRejected
}

// Payment is the durable audit record of one provider transaction.  It is
// keyed by BuyOrder, created before the customer leaves for the provider and
// updated with the commit outcome.
type Payment struct {
	ID                uint64
	BuyOrder          string
	SessionID         string
	Token             string
	ExperienceID      uint64
	BookingID         *uint64
	Amount            decimal.Decimal
	Status            PaymentStatus
	ResponseCode      *int
	AuthorizationCode string
	CardLast4         string
	AccountingDate    string
	TransactionDate   *time.Time
	Installments      int
	PaymentTypeCode   string
	RawCommit         []byte
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// PaymentSummary is the public subset of a committed payment shown on the
// voucher.  Field names follow the provider's wire format the frontend
// already consumes.
type PaymentSummary struct {
	BuyOrder          string          `json:"buy_order"`
	Amount            decimal.Decimal `json:"amount"`
	ResponseCode      int             `json:"response_code"`
	AuthorizationCode string          `json:"authorization_code"`
	CardNumber        string          `json:"card_number"`
	AccountingDate    string          `json:"accounting_date"`
	TransactionDate   *time.Time      `json:"transaction_date,omitempty"`
	Installments      int             `json:"installments_number"`
	PaymentTypeCode   string          `json:"payment_type_code"`
}

// Summary projects a payment onto its voucher fields.
func (p Payment) Summary() PaymentSummary {
	code := 0
	if p.ResponseCode != nil {
		code = *p.ResponseCode
	}
	return PaymentSummary{
		BuyOrder:          p.BuyOrder,
		Amount:            p.Amount,
		ResponseCode:      code,
		AuthorizationCode: p.AuthorizationCode,
		CardNumber:        p.CardLast4,
		AccountingDate:    p.AccountingDate,
		TransactionDate:   p.TransactionDate,
		Installments:      p.Installments,
		PaymentTypeCode:   p.PaymentTypeCode,
	}
}
