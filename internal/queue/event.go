// Package queue defines the booking events exchanged over RabbitMQ, the
// publisher used by the payment flow and the background voucher consumer.
package queue

// BookingConfirmedEvent is published when a paid booking is confirmed.
// It contains enough information for downstream consumers to log, email a
// voucher or feed analytics without querying the primary database.
type BookingConfirmedEvent struct {
	BookingID         uint64 `json:"booking_id"`
	BuyOrder          string `json:"buy_order"`
	ExperienceID      uint64 `json:"experience_id"`
	ExperienceTitle   string `json:"experience_title"`
	CustomerName      string `json:"customer_name"`
	CustomerEmail     string `json:"customer_email"`
	Participants      int    `json:"participants"`
	TotalAmount       string `json:"total_amount"`
	AuthorizationCode string `json:"authorization_code"`
	CardLast4         string `json:"card_last4"`
	ConfirmedAt       string `json:"confirmed_at"`
}
