package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/altamontana/booking-api/internal/model"
)

func setupMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

var paymentRowColumns = []string{"id", "buy_order", "session_id", "token", "experience_id", "booking_id", "amount", "status",
	"response_code", "authorization_code", "card_last4", "accounting_date", "transaction_date", "installments",
	"payment_type_code", "raw_commit", "created_at", "updated_at"}

func TestPaymentRepo_Create(t *testing.T) {
	db, mock := setupMock(t)
	repo := NewPaymentRepo(db)
	bookingID := uint64(9)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO payments")).
		WithArgs("ORD123", "SES1", uint64(7), sql.NullInt64{Int64: 9, Valid: true}, decimal.NewFromInt(250000), "PENDING").
		WillReturnResult(sqlmock.NewResult(42, 1))

	p := &model.Payment{BuyOrder: "ORD123", SessionID: "SES1", ExperienceID: 7, BookingID: &bookingID, Amount: decimal.NewFromInt(250000)}
	require.NoError(t, repo.Create(context.Background(), p))
	assert.Equal(t, uint64(42), p.ID)
	assert.Equal(t, model.PaymentPending, p.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepo_CreateDuplicate(t *testing.T) {
	db, mock := setupMock(t)
	repo := NewPaymentRepo(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO payments")).
		WillReturnError(errors.New("Error 1062 (23000): Duplicate entry 'ORD1' for key 'buy_order'"))

	err := repo.Create(context.Background(), &model.Payment{BuyOrder: "ORD1", Amount: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestPaymentRepo_GetByToken(t *testing.T) {
	db, mock := setupMock(t)
	repo := NewPaymentRepo(db)
	now := time.Date(2026, 3, 20, 20, 18, 20, 0, time.UTC)

	rows := sqlmock.NewRows(paymentRowColumns).AddRow(
		1, "ORD123", "SES1", "T1", 7, nil, "250000.00", "AUTHORIZED",
		0, "1213", "6623", "0320", now, 0,
		"VN", []byte(`{"response_code":0}`), now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM payments WHERE token = ?")).WithArgs("T1").WillReturnRows(rows)

	p, err := repo.GetByToken(context.Background(), "T1")
	require.NoError(t, err)
	assert.Equal(t, "ORD123", p.BuyOrder)
	assert.Equal(t, model.PaymentAuthorized, p.Status)
	assert.True(t, p.Amount.Equal(decimal.NewFromInt(250000)))
	require.NotNil(t, p.ResponseCode)
	assert.Equal(t, 0, *p.ResponseCode)
	assert.Nil(t, p.BookingID)
	require.NotNil(t, p.TransactionDate)
	assert.True(t, now.Equal(*p.TransactionDate))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepo_GetByTokenNotFound(t *testing.T) {
	db, mock := setupMock(t)
	repo := NewPaymentRepo(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM payments WHERE token = ?")).WithArgs("nope").WillReturnRows(sqlmock.NewRows(paymentRowColumns))

	_, err := repo.GetByToken(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = repo.GetByToken(context.Background(), "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPaymentRepo_StoreCommit(t *testing.T) {
	db, mock := setupMock(t)
	repo := NewPaymentRepo(db)
	code := 0

	mock.ExpectExec(regexp.QuoteMeta("UPDATE payments")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE payments")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	p := &model.Payment{Token: "T1", Status: model.PaymentAuthorized, Amount: decimal.NewFromInt(250000), ResponseCode: &code}
	require.NoError(t, repo.StoreCommit(context.Background(), p))
	assert.ErrorIs(t, repo.StoreCommit(context.Background(), p), ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepo_StoreCommitRejectsNonCommitStatus(t *testing.T) {
	db, mock := setupMock(t)
	repo := NewPaymentRepo(db)

	for _, status := range []model.PaymentStatus{model.PaymentAmbiguous, model.PaymentCancelled, model.PaymentRedirected} {
		err := repo.StoreCommit(context.Background(), &model.Payment{Token: "T1", Status: status})
		assert.Error(t, err, string(status))
		assert.NotErrorIs(t, err, ErrConflict)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepo_SetStatusOnlyBeforeCommit(t *testing.T) {
	db, mock := setupMock(t)
	repo := NewPaymentRepo(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE payments SET status = ? WHERE buy_order = ? AND status IN (?, ?)")).
		WithArgs("CANCELLED", "ORD1", "PENDING", "REDIRECTED").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.SetStatus(context.Background(), "ORD1", model.PaymentCancelled))
	assert.NoError(t, mock.ExpectationsWereMet())
}
