package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/altamontana/booking-api/internal/model"
)

// BookingRepo stores customer bookings.  A booking created during checkout
// carries the buy order of its payment, which is the correlation key the
// reconciler uses after the provider round trip.
type BookingRepo struct {
	db *sql.DB
}

func NewBookingRepo(db *sql.DB) *BookingRepo {
	return &BookingRepo{db: db}
}

const bookingColumns = "id, experience_id, customer_name, customer_email, booking_date, participants, total_price, status, buy_order"

func scanBooking(row interface{ Scan(...any) error }, b *model.Booking) error {
	var buyOrder sql.NullString
	if err := row.Scan(&b.ID, &b.ExperienceID, &b.CustomerName, &b.CustomerEmail, &b.BookingDate,
		&b.Participants, &b.TotalPrice, &b.Status, &buyOrder); err != nil {
		return err
	}
	b.BuyOrder = buyOrder.String
	return nil
}

// Create inserts b and sets its ID.  An empty BuyOrder is stored as NULL so
// the unique index only covers paid bookings.
func (r *BookingRepo) Create(ctx context.Context, b *model.Booking) error {
	const q = `INSERT INTO bookings
	           (experience_id, customer_name, customer_email, booking_date, participants, total_price, status, buy_order)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	var buyOrder sql.NullString
	if b.BuyOrder != "" {
		buyOrder = sql.NullString{String: b.BuyOrder, Valid: true}
	}
	res, err := r.db.ExecContext(ctx, q, b.ExperienceID, b.CustomerName, b.CustomerEmail, b.BookingDate,
		b.Participants, b.TotalPrice, b.Status, buyOrder)
	if err != nil {
		if isDuplicate(err) {
			return ErrConflict
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)
	return nil
}

// List returns all bookings, newest first.
func (r *BookingRepo) List(ctx context.Context) ([]model.Booking, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+bookingColumns+" FROM bookings ORDER BY booking_date DESC, id DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.Booking, 0)
	for rows.Next() {
		var b model.Booking
		if err := scanBooking(rows, &b); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// GetByBuyOrder returns ErrNotFound when no booking carries the buy order.
func (r *BookingRepo) GetByBuyOrder(ctx context.Context, buyOrder string) (*model.Booking, error) {
	if buyOrder == "" {
		return nil, ErrNotFound
	}
	var b model.Booking
	err := scanBooking(r.db.QueryRowContext(ctx, "SELECT "+bookingColumns+" FROM bookings WHERE buy_order = ?", buyOrder), &b)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &b, nil
}

// Confirm moves a pending booking to confirmed with the amount the provider
// committed.  changed reports whether this call made the transition; a
// booking that is already confirmed returns false and a nil error.  A
// cancelled or unknown booking is ErrNotFound.
func (r *BookingRepo) Confirm(ctx context.Context, buyOrder string, total decimal.Decimal) (changed bool, err error) {
	const q = "UPDATE bookings SET status = ?, total_price = ? WHERE buy_order = ? AND status = ?"
	res, err := r.db.ExecContext(ctx, q, model.BookingConfirmed, total, buyOrder, model.BookingPending)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n > 0 {
		return true, nil
	}

	var status string
	err = r.db.QueryRowContext(ctx, "SELECT status FROM bookings WHERE buy_order = ?", buyOrder).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return false, ErrNotFound
	}
	if err != nil {
		return false, err
	}
	if status != model.BookingConfirmed {
		return false, ErrNotFound
	}
	return false, nil
}

// Cancel marks a still-pending booking cancelled.  It is a no-op for
// bookings that were already confirmed or cancelled.
func (r *BookingRepo) Cancel(ctx context.Context, buyOrder string) error {
	const q = "UPDATE bookings SET status = ? WHERE buy_order = ? AND status = ?"
	_, err := r.db.ExecContext(ctx, q, model.BookingCancelled, buyOrder, model.BookingPending)
	return err
}
