// Package reconcile turns the provider's return into one terminal payment
// state for the status page and settles the booking when the payment was
// approved.
package reconcile

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/altamontana/booking-api/internal/metrics"
	"github.com/altamontana/booking-api/internal/model"
	"github.com/altamontana/booking-api/internal/pending"
	"github.com/altamontana/booking-api/internal/queue"
	"github.com/altamontana/booking-api/internal/repository"
	"github.com/altamontana/booking-api/internal/webpay"
)

// State is a terminal outcome of the status page.
type State string

const (
	StateConfirmed       State = "Confirmed"
	StateRejected        State = "Rejected"
	StateInvalidToken    State = "InvalidToken"
	StateCancelledByUser State = "CancelledByUser"
	StateSessionLost     State = "SessionLost"
	StateConnectionError State = "ConnectionError"
)

// RecoveryPath is the single way back offered for every non-confirmed state.
const RecoveryPath = "/experiences"

const (
	msgConfirmed       = "Payment approved. Your booking is confirmed."
	msgRejected        = "The payment was declined by the card issuer. No charge was made; you can try again with another card."
	msgAmbiguous       = "This payment was already settled or voided by the provider. Please do not pay again; contact us with your order number so we can check it."
	msgInvalidToken    = "We could not identify a payment for this page. No charge was made."
	msgCancelled       = "You cancelled the payment. No charge was made."
	msgSessionLost     = "Your payment was approved but we could not find the booking details. Contact us with your order number and we will complete the booking manually."
	msgConnectionError = "We could not reach the payment provider to confirm your payment. Please check your booking before trying again."
	msgNotRecorded     = "Your payment was approved but we could not record your booking right now. Reload this page in a moment; you will not be charged again."
)

// Params are the values the provider (or the status page) hands back.
type Params struct {
	TokenWS  string
	TBKToken string
	BuyOrder string
}

// Outcome is the status page's view of a payment.
type Outcome struct {
	State        State                   `json:"state"`
	Message      string                  `json:"message"`
	ResponseCode *int                    `json:"response_code,omitempty"`
	BuyOrder     string                  `json:"buy_order,omitempty"`
	Ambiguous    bool                    `json:"ambiguous,omitempty"`
	RecoveryPath string                  `json:"recovery_path,omitempty"`
	Confirmation *model.ConfirmedBooking `json:"confirmation,omitempty"`
}

// Committer commits a provider token at most once.
type Committer interface {
	Commit(ctx context.Context, token string) (webpay.CommitResult, error)
}

// PendingStore is the pending-booking store keyed by buy order.
type PendingStore interface {
	Load(ctx context.Context, buyOrder string) (model.PendingBooking, error)
	Delete(ctx context.Context, buyOrder string) error
}

// BookingStore is the durable booking table.
type BookingStore interface {
	Create(ctx context.Context, b *model.Booking) error
	GetByBuyOrder(ctx context.Context, buyOrder string) (*model.Booking, error)
	Confirm(ctx context.Context, buyOrder string, total decimal.Decimal) (changed bool, err error)
}

// ExperienceFinder loads catalog entries.
type ExperienceFinder interface {
	GetByID(ctx context.Context, id uint64) (*model.Experience, error)
}

// PaymentFinder loads stored payment outcomes.
type PaymentFinder interface {
	GetByBuyOrder(ctx context.Context, buyOrder string) (*model.Payment, error)
}

// Deps groups the collaborators of a Reconciler.
type Deps struct {
	Committer   Committer
	Pending     PendingStore
	Bookings    BookingStore
	Experiences ExperienceFinder
	Payments    PaymentFinder
	Publisher   queue.Publisher
	Logger      *zap.Logger
}

// Reconciler drives Idle → Committing → terminal state.
type Reconciler struct {
	committer   Committer
	pending     PendingStore
	bookings    BookingStore
	experiences ExperienceFinder
	payments    PaymentFinder
	publisher   queue.Publisher
	logger      *zap.Logger
	now         func() time.Time

	confirms singleflight.Group
}

func New(d Deps) *Reconciler {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	publisher := d.Publisher
	if publisher == nil {
		publisher = queue.NopPublisher{}
	}
	return &Reconciler{
		committer:   d.Committer,
		pending:     d.Pending,
		bookings:    d.Bookings,
		experiences: d.Experiences,
		payments:    d.Payments,
		publisher:   publisher,
		logger:      logger.Named("reconcile"),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Reconcile classifies the return and, for a success token, commits it.
// Only a success token ever reaches the provider.
func (r *Reconciler) Reconcile(ctx context.Context, p Params) Outcome {
	out := r.reconcile(ctx, p)
	if out.State != StateConfirmed {
		out.RecoveryPath = RecoveryPath
	}
	metrics.RecordReconcile(string(out.State))
	return out
}

func (r *Reconciler) reconcile(ctx context.Context, p Params) Outcome {
	token := strings.TrimSpace(p.TokenWS)
	buyOrder := strings.TrimSpace(p.BuyOrder)

	if token == "" {
		if strings.TrimSpace(p.TBKToken) != "" {
			return Outcome{State: StateCancelledByUser, Message: msgCancelled, BuyOrder: buyOrder}
		}
		return Outcome{State: StateInvalidToken, Message: msgInvalidToken}
	}

	result, err := r.committer.Commit(ctx, token)
	if err != nil {
		return r.commitFailure(err, buyOrder)
	}

	code := result.ResponseCode
	if result.BuyOrder != "" {
		if buyOrder != "" && buyOrder != result.BuyOrder {
			r.logger.Warn("return buy order differs from committed buy order",
				zap.String("return_buy_order", buyOrder),
				zap.String("buy_order", result.BuyOrder))
		}
		buyOrder = result.BuyOrder
	}

	if !result.Approved() {
		r.logger.Info("payment rejected", zap.String("buy_order", buyOrder), zap.Int("response_code", code))
		return Outcome{State: StateRejected, Message: msgRejected, ResponseCode: &code, BuyOrder: buyOrder}
	}

	confirmation, err := r.confirmOnce(ctx, buyOrder, result)
	if errors.Is(err, errNoContext) {
		r.logger.Error("approved payment without booking context",
			zap.String("buy_order", buyOrder),
			zap.String("amount", result.Amount.String()),
			zap.Error(err))
		return Outcome{State: StateSessionLost, Message: msgSessionLost, ResponseCode: &code, BuyOrder: buyOrder}
	}
	if err != nil {
		r.logger.Error("approved payment not recorded",
			zap.String("buy_order", buyOrder),
			zap.String("amount", result.Amount.String()),
			zap.Error(err))
		return Outcome{State: StateConnectionError, Message: msgNotRecorded, ResponseCode: &code, BuyOrder: buyOrder}
	}
	return Outcome{State: StateConfirmed, Message: msgConfirmed, ResponseCode: &code, BuyOrder: buyOrder, Confirmation: confirmation}
}

func (r *Reconciler) commitFailure(err error, buyOrder string) Outcome {
	switch webpay.KindOf(err) {
	case webpay.KindAmbiguous:
		r.logger.Warn("commit against settled or expired transaction", zap.String("buy_order", buyOrder), zap.Error(err))
		return Outcome{State: StateRejected, Message: msgAmbiguous, BuyOrder: buyOrder, Ambiguous: true}
	case webpay.KindRejected:
		r.logger.Warn("commit refused", zap.String("buy_order", buyOrder), zap.Error(err))
		return Outcome{State: StateRejected, Message: msgRejected, BuyOrder: buyOrder}
	}
	r.logger.Error("commit failed", zap.String("buy_order", buyOrder), zap.Error(err))
	return Outcome{State: StateConnectionError, Message: msgConnectionError, BuyOrder: buyOrder}
}

// errNoContext means neither the pending store nor the bookings table knows
// the buy order, or the booking was cancelled.
var errNoContext = errors.New("no booking for buy order")

// confirmOnce runs confirm once per buy order at a time; concurrent returns
// for the same order share the result.
func (r *Reconciler) confirmOnce(ctx context.Context, buyOrder string, result webpay.CommitResult) (*model.ConfirmedBooking, error) {
	if buyOrder == "" {
		return nil, errNoContext
	}
	v, err, _ := r.confirms.Do(buyOrder, func() (any, error) {
		return r.confirm(ctx, buyOrder, result)
	})
	if err != nil {
		return nil, err
	}
	return v.(*model.ConfirmedBooking), nil
}

// confirm settles the booking for an approved commit.  The total is always
// the committed amount.
func (r *Reconciler) confirm(ctx context.Context, buyOrder string, result webpay.CommitResult) (*model.ConfirmedBooking, error) {
	if buyOrder == "" {
		return nil, errNoContext
	}

	pb, perr := r.pending.Load(ctx, buyOrder)
	if perr != nil && !errors.Is(perr, pending.ErrNotFound) {
		r.logger.Warn("pending store unavailable, using bookings table", zap.Error(perr))
	}
	havePending := perr == nil

	booking, err := r.bookings.GetByBuyOrder(ctx, buyOrder)
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrNotFound) && havePending:
		booking = &model.Booking{
			ExperienceID:  pb.Experience.ID,
			CustomerName:  pb.CustomerName,
			CustomerEmail: pb.CustomerEmail,
			BookingDate:   pb.CreatedAt,
			Participants:  pb.Participants,
			TotalPrice:    result.Amount,
			Status:        model.BookingPending,
			BuyOrder:      buyOrder,
		}
		if err := r.bookings.Create(ctx, booking); err != nil {
			return nil, err
		}
	case errors.Is(err, repository.ErrNotFound):
		return nil, errNoContext
	default:
		return nil, err
	}

	changed, err := r.bookings.Confirm(ctx, buyOrder, result.Amount)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, errNoContext
	}
	if err != nil {
		return nil, err
	}
	booking.Status = model.BookingConfirmed
	booking.TotalPrice = result.Amount

	var snapshot model.ExperienceSnapshot
	if havePending {
		snapshot = pb.Experience
		if err := r.pending.Delete(ctx, buyOrder); err != nil {
			r.logger.Warn("pending booking not removed", zap.String("buy_order", buyOrder), zap.Error(err))
		}
	} else if exp, err := r.experiences.GetByID(ctx, booking.ExperienceID); err == nil {
		snapshot = exp.Snapshot()
	} else {
		snapshot = model.ExperienceSnapshot{ID: booking.ExperienceID}
	}

	confirmation := &model.ConfirmedBooking{
		Experience: snapshot,
		Booking:    *booking,
		Payment:    summaryFromResult(result),
		TotalPrice: result.Amount,
	}

	if changed {
		metrics.RecordConfirmedAmount(result.Amount.InexactFloat64())
		r.publish(ctx, confirmation)
	}
	r.logger.Info("booking confirmed", zap.String("buy_order", buyOrder), zap.Uint64("booking_id", booking.ID))
	return confirmation, nil
}

func (r *Reconciler) publish(ctx context.Context, c *model.ConfirmedBooking) {
	ev := queue.BookingConfirmedEvent{
		BookingID:         c.Booking.ID,
		BuyOrder:          c.Booking.BuyOrder,
		ExperienceID:      c.Experience.ID,
		ExperienceTitle:   c.Experience.Title,
		CustomerName:      c.Booking.CustomerName,
		CustomerEmail:     c.Booking.CustomerEmail,
		Participants:      c.Booking.Participants,
		TotalAmount:       c.TotalPrice.String(),
		AuthorizationCode: c.Payment.AuthorizationCode,
		CardLast4:         c.Payment.CardNumber,
		ConfirmedAt:       r.now().Format(time.RFC3339),
	}
	if err := r.publisher.PublishBookingConfirmed(ctx, ev); err != nil {
		r.logger.Warn("booking event not published", zap.String("buy_order", ev.BuyOrder), zap.Error(err))
	}
}

// Confirmation rebuilds the voucher of a confirmed booking from the stored
// rows.  Anything but a confirmed booking with an authorized payment is
// repository.ErrNotFound.
func (r *Reconciler) Confirmation(ctx context.Context, buyOrder string) (*model.ConfirmedBooking, error) {
	booking, err := r.bookings.GetByBuyOrder(ctx, buyOrder)
	if err != nil {
		return nil, err
	}
	if booking.Status != model.BookingConfirmed {
		return nil, repository.ErrNotFound
	}
	payment, err := r.payments.GetByBuyOrder(ctx, buyOrder)
	if err != nil {
		return nil, err
	}
	if payment.Status != model.PaymentAuthorized {
		return nil, repository.ErrNotFound
	}
	snapshot := model.ExperienceSnapshot{ID: booking.ExperienceID}
	if exp, err := r.experiences.GetByID(ctx, booking.ExperienceID); err == nil {
		snapshot = exp.Snapshot()
	}
	return &model.ConfirmedBooking{
		Experience: snapshot,
		Booking:    *booking,
		Payment:    payment.Summary(),
		TotalPrice: booking.TotalPrice,
	}, nil
}

func summaryFromResult(r webpay.CommitResult) model.PaymentSummary {
	return model.PaymentSummary{
		BuyOrder:          r.BuyOrder,
		Amount:            r.Amount,
		ResponseCode:      r.ResponseCode,
		AuthorizationCode: r.AuthorizationCode,
		CardNumber:        r.CardDetail.CardNumber,
		AccountingDate:    r.AccountingDate,
		TransactionDate:   r.TransactionTime(),
		Installments:      r.InstallmentsNumber,
		PaymentTypeCode:   r.PaymentTypeCode,
	}
}
