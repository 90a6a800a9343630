package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Booking statuses.
const (
	BookingPending   = "Pending"
	BookingConfirmed = "Confirmed"
	BookingCancelled = "Cancelled"
)

// Booking records a customer's reservation of an experience.  BuyOrder links
// the booking to the payment attempt that pays for it and is empty for
// bookings created without online payment.
//
// Fields:
//
//	TotalPrice – estimate at creation, replaced by the committed amount on
//	             confirmation.
//	Status     – Pending, Confirmed or Cancelled.
type Booking struct {
	ID            uint64          `json:"id"`
	ExperienceID  uint64          `json:"experienceId"`
	CustomerName  string          `json:"customerName"`
	CustomerEmail string          `json:"customerEmail"`
	BookingDate   time.Time       `json:"bookingDate"`
	Participants  int             `json:"participants"`
	TotalPrice    decimal.Decimal `json:"totalPrice"`
	Status        string          `json:"status"`
	BuyOrder      string          `json:"buyOrder,omitempty"`
}

// PendingBooking is what the customer was buying when they were sent to the
// payment provider.  It is written right before the redirect and consumed
// when the payment is confirmed.
type PendingBooking struct {
	BuyOrder      string             `json:"buyOrder"`
	Experience    ExperienceSnapshot `json:"experience"`
	CustomerName  string             `json:"customerName"`
	CustomerEmail string             `json:"customerEmail"`
	Participants  int                `json:"participants"`
	CreatedAt     time.Time          `json:"createdAt"`
}

// ConfirmedBooking joins a booking with the payment that settled it.  It is
// the payload of the confirmation voucher.
type ConfirmedBooking struct {
	Experience ExperienceSnapshot `json:"experience"`
	Booking    Booking            `json:"booking"`
	Payment    PaymentSummary     `json:"paymentData"`
	TotalPrice decimal.Decimal    `json:"totalPrice"`
}
