package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/altamontana/booking-api/internal/model"
	"github.com/altamontana/booking-api/internal/repository"
)

// BookingStore is the booking persistence the handler needs.
type BookingStore interface {
	Create(ctx context.Context, b *model.Booking) error
	List(ctx context.Context) ([]model.Booking, error)
}

// ExperienceFinder loads one catalog entry.
type ExperienceFinder interface {
	GetByID(ctx context.Context, id uint64) (*model.Experience, error)
}

// ConfirmationSource rebuilds the voucher of a confirmed booking.
type ConfirmationSource interface {
	Confirmation(ctx context.Context, buyOrder string) (*model.ConfirmedBooking, error)
}

// BookingHandler serves booking creation, the admin list and the voucher
// data of confirmed bookings.
type BookingHandler struct {
	Bookings      BookingStore
	Experiences   ExperienceFinder
	Confirmations ConfirmationSource
	ClientOrigin  string
	Logger        *zap.Logger
	now           func() time.Time
}

func NewBookingHandler(b BookingStore, e ExperienceFinder, conf ConfirmationSource, clientOrigin string, logger *zap.Logger) *BookingHandler {
	return &BookingHandler{
		Bookings:      b,
		Experiences:   e,
		Confirmations: conf,
		ClientOrigin:  strings.TrimRight(clientOrigin, "/"),
		Logger:        logger,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

type createBookingReq struct {
	ExperienceID  uint64          `json:"experienceId"`
	CustomerName  string          `json:"customerName"`
	CustomerEmail string          `json:"customerEmail"`
	Participants  int             `json:"participants"`
	TotalPrice    decimal.Decimal `json:"totalPrice"`
}

// Create POST /api/bookings.  New bookings always start Pending and are
// dated now (UTC).
func (h *BookingHandler) Create(c echo.Context) error {
	var req createBookingReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.CustomerName = strings.TrimSpace(req.CustomerName)
	req.CustomerEmail = strings.TrimSpace(req.CustomerEmail)
	switch {
	case req.ExperienceID == 0:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "experienceId is required"})
	case req.CustomerName == "" || req.CustomerEmail == "":
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "customer name and email are required"})
	case req.Participants < 1:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "participants must be at least 1"})
	case req.TotalPrice.IsNegative():
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "totalPrice must not be negative"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if _, err := h.Experiences.GetByID(ctx, req.ExperienceID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "experience not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load experience failed"})
	}

	b := model.Booking{
		ExperienceID:  req.ExperienceID,
		CustomerName:  req.CustomerName,
		CustomerEmail: req.CustomerEmail,
		BookingDate:   h.now(),
		Participants:  req.Participants,
		TotalPrice:    req.TotalPrice,
		Status:        model.BookingPending,
	}
	if err := h.Bookings.Create(ctx, &b); err != nil {
		h.Logger.Error("create booking", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create booking failed"})
	}
	return c.JSON(http.StatusCreated, b)
}

// List GET /api/bookings (admin)
func (h *BookingHandler) List(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	items, err := h.Bookings.List(ctx)
	if err != nil {
		h.Logger.Error("list bookings", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list bookings failed"})
	}
	return c.JSON(http.StatusOK, items)
}

// Confirmation GET /api/bookings/confirmation/:buyOrder.  Without a
// confirmed booking the visitor is sent back to the home page.
func (h *BookingHandler) Confirmation(c echo.Context) error {
	buyOrder := strings.TrimSpace(c.Param("buyOrder"))
	home := h.ClientOrigin + "/"
	if buyOrder == "" {
		return c.Redirect(http.StatusSeeOther, home)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	conf, err := h.Confirmations.Confirmation(ctx, buyOrder)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			h.Logger.Error("load confirmation", zap.String("buy_order", buyOrder), zap.Error(err))
		}
		return c.Redirect(http.StatusSeeOther, home)
	}
	return c.JSON(http.StatusOK, conf)
}
