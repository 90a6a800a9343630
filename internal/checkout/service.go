// Package checkout runs the merchant side of a Webpay Plus payment: it opens
// provider transactions for a booking and commits them exactly once.
package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/altamontana/booking-api/internal/metrics"
	"github.com/altamontana/booking-api/internal/model"
	"github.com/altamontana/booking-api/internal/repository"
	"github.com/altamontana/booking-api/internal/webpay"
)

var (
	// ErrInvalidAmount is returned for a missing or non-positive amount.
	ErrInvalidAmount = errors.New("amount must be greater than zero")
	// ErrExperienceNotFound is returned when the experience id is unknown.
	ErrExperienceNotFound = errors.New("experience not found")
	// ErrTokenRequired is returned by Commit for an empty token.
	ErrTokenRequired = errors.New("token required")
)

// Gateway is the provider client.  *webpay.Client implements it.
type Gateway interface {
	Create(ctx context.Context, req webpay.CreateRequest) (webpay.TransactionHandle, error)
	Commit(ctx context.Context, token string) (webpay.CommitResult, error)
}

// ExperienceFinder loads catalog entries.
type ExperienceFinder interface {
	GetByID(ctx context.Context, id uint64) (*model.Experience, error)
}

// PaymentStore persists the payment audit trail.
type PaymentStore interface {
	Create(ctx context.Context, p *model.Payment) error
	SetToken(ctx context.Context, buyOrder, token string) error
	GetByToken(ctx context.Context, token string) (*model.Payment, error)
	StoreCommit(ctx context.Context, p *model.Payment) error
	SetStatus(ctx context.Context, buyOrder string, status model.PaymentStatus) error
	SetStatusByToken(ctx context.Context, token string, status model.PaymentStatus) error
}

// BookingWriter persists bookings created at checkout.
type BookingWriter interface {
	Create(ctx context.Context, b *model.Booking) error
	Cancel(ctx context.Context, buyOrder string) error
}

// PendingSaver keeps the in-flight booking for the return trip.
type PendingSaver interface {
	Save(ctx context.Context, pb model.PendingBooking) error
}

// Customer is the optional booking data captured on the checkout form.
type Customer struct {
	Name         string `json:"customerName" form:"customerName"`
	Email        string `json:"customerEmail" form:"customerEmail"`
	Participants int    `json:"participants" form:"participants"`
}

func (c *Customer) present() bool {
	return c != nil && (strings.TrimSpace(c.Name) != "" || strings.TrimSpace(c.Email) != "")
}

// InitiateRequest starts a payment for an experience.
type InitiateRequest struct {
	ExperienceID uint64
	Amount       decimal.Decimal
	Customer     *Customer
}

// InitiateResult is what the browser needs to continue on the provider page.
type InitiateResult struct {
	Token    string `json:"token"`
	URL      string `json:"url"`
	BuyOrder string `json:"buyOrder"`
}

// Service wires the provider client to persistence.
type Service struct {
	gateway       Gateway
	experiences   ExperienceFinder
	payments      PaymentStore
	bookings      BookingWriter
	pending       PendingSaver
	publicBaseURL string
	logger        *zap.Logger
	now           func() time.Time
	retryDelay    time.Duration

	commits singleflight.Group
}

// Deps groups the collaborators of a Service.
type Deps struct {
	Gateway       Gateway
	Experiences   ExperienceFinder
	Payments      PaymentStore
	Bookings      BookingWriter
	Pending       PendingSaver
	PublicBaseURL string
	Logger        *zap.Logger
}

func NewService(d Deps) *Service {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		gateway:       d.Gateway,
		experiences:   d.Experiences,
		payments:      d.Payments,
		bookings:      d.Bookings,
		pending:       d.Pending,
		publicBaseURL: strings.TrimRight(d.PublicBaseURL, "/"),
		logger:        logger.Named("checkout"),
		now:           func() time.Time { return time.Now().UTC() },
		retryDelay:    100 * time.Millisecond,
	}
}

// NewBuyOrder returns "ORD" plus 20 hex characters, inside the provider's
// 26 character limit.
func NewBuyOrder() string {
	return "ORD" + strings.ToUpper(hexUUID()[:20])
}

// NewSessionID returns "SES" plus a full UUID in hex.
func NewSessionID() string {
	return "SES" + hexUUID()
}

func hexUUID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// ReturnURL is where the provider sends the browser back.  The buy order
// rides along so the return can be correlated without browser state.
func (s *Service) ReturnURL(buyOrder string) string {
	return s.publicBaseURL + "/api/webpay/return?buy_order=" + url.QueryEscape(buyOrder)
}

// Initiate validates the request, records the payment (and booking, when
// customer data is present) and opens a provider transaction.
func (s *Service) Initiate(ctx context.Context, req InitiateRequest) (InitiateResult, error) {
	if req.Amount.Round(0).LessThanOrEqual(decimal.Zero) {
		metrics.RecordProviderCall("create", "invalid", 0)
		return InitiateResult{}, ErrInvalidAmount
	}
	exp, err := s.experiences.GetByID(ctx, req.ExperienceID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return InitiateResult{}, ErrExperienceNotFound
		}
		return InitiateResult{}, fmt.Errorf("load experience: %w", err)
	}

	buyOrder := NewBuyOrder()
	sessionID := NewSessionID()
	log := s.logger.With(zap.String("buy_order", buyOrder), zap.Uint64("experience_id", exp.ID))

	payment := &model.Payment{
		BuyOrder:     buyOrder,
		SessionID:    sessionID,
		ExperienceID: exp.ID,
		Amount:       req.Amount,
		Status:       model.PaymentPending,
	}

	if req.Customer.present() {
		participants := req.Customer.Participants
		if participants <= 0 {
			participants = 1
		}
		if expected := exp.Price.Mul(decimal.NewFromInt(int64(participants))); !req.Amount.Equal(expected) {
			log.Warn("amount differs from catalog price",
				zap.String("amount", req.Amount.String()),
				zap.String("expected", expected.String()),
				zap.Int("participants", participants))
		}
		booking := &model.Booking{
			ExperienceID:  exp.ID,
			CustomerName:  strings.TrimSpace(req.Customer.Name),
			CustomerEmail: strings.TrimSpace(req.Customer.Email),
			BookingDate:   s.now(),
			Participants:  participants,
			TotalPrice:    req.Amount,
			Status:        model.BookingPending,
			BuyOrder:      buyOrder,
		}
		if err := s.bookings.Create(ctx, booking); err != nil {
			return InitiateResult{}, fmt.Errorf("create booking: %w", err)
		}
		payment.BookingID = &booking.ID

		if err := s.pending.Save(ctx, model.PendingBooking{
			BuyOrder:      buyOrder,
			Experience:    exp.Snapshot(),
			CustomerName:  booking.CustomerName,
			CustomerEmail: booking.CustomerEmail,
			Participants:  participants,
			CreatedAt:     booking.BookingDate,
		}); err != nil {
			// The booking row carries the same data; the reconciler falls back to it.
			log.Warn("pending booking not cached", zap.Error(err))
		}
	}

	if err := s.payments.Create(ctx, payment); err != nil {
		return InitiateResult{}, fmt.Errorf("create payment: %w", err)
	}

	start := time.Now()
	handle, err := s.gateway.Create(ctx, webpay.CreateRequest{
		BuyOrder:  buyOrder,
		SessionID: sessionID,
		Amount:    req.Amount,
		ReturnURL: s.ReturnURL(buyOrder),
	})
	if err != nil {
		metrics.RecordProviderCall("create", outcomeOf(err), time.Since(start))
		if errors.Is(err, webpay.ErrInvalidAmount) {
			err = ErrInvalidAmount
		}
		if serr := s.payments.SetStatus(ctx, buyOrder, model.PaymentFailed); serr != nil {
			log.Error("mark payment failed", zap.Error(serr))
		}
		log.Warn("create transaction failed", zap.Error(err))
		return InitiateResult{}, err
	}
	metrics.RecordProviderCall("create", "ok", time.Since(start))

	if err := s.payments.SetToken(ctx, buyOrder, handle.Token); err != nil {
		log.Error("store token", zap.Error(err))
		return InitiateResult{}, fmt.Errorf("store token: %w", err)
	}

	log.Info("checkout initiated")
	return InitiateResult{Token: handle.Token, URL: handle.URL, BuyOrder: buyOrder}, nil
}

// Commit confirms the transaction for token at most once.  A stored outcome
// is returned without contacting the provider and concurrent calls for the
// same token share one provider call.
func (s *Service) Commit(ctx context.Context, token string) (webpay.CommitResult, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return webpay.CommitResult{}, ErrTokenRequired
	}

	v, err, shared := s.commits.Do(token, func() (any, error) {
		return s.commitOnce(ctx, token)
	})
	if shared {
		metrics.RecordCommitDeduplicated()
	}
	if err != nil {
		return webpay.CommitResult{}, err
	}
	return v.(webpay.CommitResult), nil
}

func (s *Service) commitOnce(ctx context.Context, token string) (webpay.CommitResult, error) {
	log := s.logger.With(zap.String("token_suffix", tokenSuffix(token)))

	payment, err := s.payments.GetByToken(ctx, token)
	switch {
	case err == nil:
		if stored, ok, serr := storedResult(payment); ok {
			metrics.RecordCommitDeduplicated()
			log.Info("commit answered from stored result", zap.String("buy_order", payment.BuyOrder))
			return stored, serr
		}
	case errors.Is(err, repository.ErrNotFound):
		log.Warn("commit for a token without payment record")
		payment = nil
	default:
		return webpay.CommitResult{}, fmt.Errorf("load payment: %w", err)
	}

	start := time.Now()
	result, err := s.gateway.Commit(ctx, token)
	if err != nil {
		metrics.RecordProviderCall("commit", outcomeOf(err), time.Since(start))
		if webpay.KindOf(err) == webpay.KindAmbiguous && payment != nil {
			if serr := s.payments.SetStatusByToken(ctx, token, model.PaymentAmbiguous); serr != nil {
				log.Error("mark payment ambiguous", zap.Error(serr))
			}
		}
		return webpay.CommitResult{}, err
	}
	metrics.RecordProviderCall("commit", "ok", time.Since(start))

	if payment != nil {
		record := recordFromResult(token, result)
		if err := s.storeCommit(ctx, &record); err != nil {
			if !errors.Is(err, repository.ErrConflict) {
				log.Error("store commit outcome", zap.String("buy_order", payment.BuyOrder), zap.Error(err))
				return webpay.CommitResult{}, fmt.Errorf("store commit outcome: %w", err)
			}
			log.Warn("commit outcome already stored", zap.String("buy_order", payment.BuyOrder))
		}
	}
	return result, nil
}

// storeCommitAttempts bounds the retries of a failed StoreCommit.  The
// provider answers a second commit of the same token with an error, so the
// first outcome must be written while it is still in hand.
const storeCommitAttempts = 3

func (s *Service) storeCommit(ctx context.Context, record *model.Payment) error {
	var err error
	for attempt := 1; attempt <= storeCommitAttempts; attempt++ {
		err = s.payments.StoreCommit(ctx, record)
		if err == nil || errors.Is(err, repository.ErrConflict) {
			return err
		}
		if attempt == storeCommitAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return err
		case <-time.After(s.retryDelay * time.Duration(attempt)):
		}
	}
	return err
}

// Cancel records that the customer aborted on the provider page.  Only the
// token the provider issued for the payment can cancel it: the buy order
// travels in the query string and alone is never enough.  A buy order that
// does not belong to the token leaves everything untouched.
func (s *Service) Cancel(ctx context.Context, buyOrder, token string) {
	token = strings.TrimSpace(token)
	if token == "" {
		return
	}
	log := s.logger.With(zap.String("token_suffix", tokenSuffix(token)))

	payment, err := s.payments.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			log.Warn("cancel for a token without payment record", zap.String("buy_order", buyOrder))
		} else {
			log.Error("load payment for cancel", zap.Error(err))
		}
		return
	}
	if buyOrder != "" && buyOrder != payment.BuyOrder {
		log.Warn("cancel buy order does not match token",
			zap.String("buy_order", buyOrder),
			zap.String("token_buy_order", payment.BuyOrder))
		return
	}

	log = log.With(zap.String("buy_order", payment.BuyOrder))
	if err := s.payments.SetStatusByToken(ctx, token, model.PaymentCancelled); err != nil {
		log.Error("mark payment cancelled", zap.Error(err))
	}
	if err := s.bookings.Cancel(ctx, payment.BuyOrder); err != nil {
		log.Error("cancel booking", zap.Error(err))
	}
}

// storedResult rebuilds the outcome of an earlier commit.  ok is false when
// the payment has not been committed yet.
func storedResult(p *model.Payment) (webpay.CommitResult, bool, error) {
	switch {
	case p.Status.Committed():
		var r webpay.CommitResult
		if len(p.RawCommit) > 0 && json.Unmarshal(p.RawCommit, &r) == nil {
			r.Raw = append(json.RawMessage(nil), p.RawCommit...)
			return r, true, nil
		}
		code := 0
		if p.ResponseCode != nil {
			code = *p.ResponseCode
		}
		return webpay.CommitResult{
			Amount:             p.Amount,
			BuyOrder:           p.BuyOrder,
			SessionID:          p.SessionID,
			CardDetail:         webpay.CardDetail{CardNumber: p.CardLast4},
			AccountingDate:     p.AccountingDate,
			AuthorizationCode:  p.AuthorizationCode,
			PaymentTypeCode:    p.PaymentTypeCode,
			ResponseCode:       code,
			InstallmentsNumber: p.Installments,
		}, true, nil
	case p.Status == model.PaymentAmbiguous:
		return webpay.CommitResult{}, true, &webpay.ProviderError{Op: "commit", Kind: webpay.KindAmbiguous}
	}
	return webpay.CommitResult{}, false, nil
}

func recordFromResult(token string, r webpay.CommitResult) model.Payment {
	status := model.PaymentRejected
	if r.Approved() {
		status = model.PaymentAuthorized
	}
	code := r.ResponseCode
	return model.Payment{
		Token:             token,
		Status:            status,
		Amount:            r.Amount,
		ResponseCode:      &code,
		AuthorizationCode: r.AuthorizationCode,
		CardLast4:         r.CardDetail.CardNumber,
		AccountingDate:    r.AccountingDate,
		TransactionDate:   r.TransactionTime(),
		Installments:      r.InstallmentsNumber,
		PaymentTypeCode:   r.PaymentTypeCode,
		RawCommit:         r.Raw,
	}
}

func outcomeOf(err error) string {
	if errors.Is(err, webpay.ErrInvalidAmount) {
		return "invalid"
	}
	if k := webpay.KindOf(err); k != 0 {
		return k.String()
	}
	return "error"
}

// tokenSuffix keeps tokens out of logs while still allowing correlation.
func tokenSuffix(token string) string {
	if len(token) <= 6 {
		return token
	}
	return token[len(token)-6:]
}
