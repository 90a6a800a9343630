package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/altamontana/booking-api/internal/model"
)

var bookingRowColumns = []string{"id", "experience_id", "customer_name", "customer_email", "booking_date",
	"participants", "total_price", "status", "buy_order"}

func TestBookingRepo_CreateWithoutBuyOrderStoresNull(t *testing.T) {
	db, mock := setupMock(t)
	repo := NewBookingRepo(db)
	when := time.Date(2026, 3, 20, 10, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO bookings")).
		WithArgs(uint64(3), "Ana", "ana@example.com", when, 2, decimal.NewFromInt(100), model.BookingPending, sql.NullString{}).
		WillReturnResult(sqlmock.NewResult(11, 1))

	b := &model.Booking{ExperienceID: 3, CustomerName: "Ana", CustomerEmail: "ana@example.com", BookingDate: when,
		Participants: 2, TotalPrice: decimal.NewFromInt(100), Status: model.BookingPending}
	require.NoError(t, repo.Create(context.Background(), b))
	assert.Equal(t, uint64(11), b.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepo_GetByBuyOrder(t *testing.T) {
	db, mock := setupMock(t)
	repo := NewBookingRepo(db)
	when := time.Date(2026, 3, 20, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("FROM bookings WHERE buy_order = ?")).WithArgs("ORD123").
		WillReturnRows(sqlmock.NewRows(bookingRowColumns).
			AddRow(5, 3, "Ana", "ana@example.com", when, 2, "250000", "Pending", "ORD123"))

	b, err := repo.GetByBuyOrder(context.Background(), "ORD123")
	require.NoError(t, err)
	assert.Equal(t, "ORD123", b.BuyOrder)
	assert.Equal(t, model.BookingPending, b.Status)

	mock.ExpectQuery(regexp.QuoteMeta("FROM bookings WHERE buy_order = ?")).WithArgs("ORD999").
		WillReturnRows(sqlmock.NewRows(bookingRowColumns))
	_, err = repo.GetByBuyOrder(context.Background(), "ORD999")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepo_Confirm(t *testing.T) {
	db, mock := setupMock(t)
	repo := NewBookingRepo(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE bookings SET status = ?, total_price = ? WHERE buy_order = ? AND status = ?")).
		WithArgs(model.BookingConfirmed, decimal.NewFromInt(250000), "ORD123", model.BookingPending).
		WillReturnResult(sqlmock.NewResult(0, 1))

	changed, err := repo.Confirm(context.Background(), "ORD123", decimal.NewFromInt(250000))
	require.NoError(t, err)
	assert.True(t, changed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepo_ConfirmOnlyTransitionsOnce(t *testing.T) {
	db, mock := setupMock(t)
	repo := NewBookingRepo(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE bookings")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT status FROM bookings WHERE buy_order = ?")).
		WithArgs("ORD123").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow(model.BookingConfirmed))

	changed, err := repo.Confirm(context.Background(), "ORD123", decimal.NewFromInt(250000))
	require.NoError(t, err)
	assert.False(t, changed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepo_ConfirmCancelledOrUnknown(t *testing.T) {
	db, mock := setupMock(t)
	repo := NewBookingRepo(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE bookings")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT status FROM bookings")).
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow(model.BookingCancelled))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE bookings")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT status FROM bookings")).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Confirm(context.Background(), "ORD-CANCELLED", decimal.NewFromInt(1))
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = repo.Confirm(context.Background(), "ORD-GONE", decimal.NewFromInt(1))
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
