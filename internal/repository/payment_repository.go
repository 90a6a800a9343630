package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/altamontana/booking-api/internal/model"
)

// PaymentRepo is the durable audit trail of provider transactions.  Rows are
// created before the customer is redirected and carry the commit outcome
// once it is known.
type PaymentRepo struct {
	db *sql.DB
}

func NewPaymentRepo(db *sql.DB) *PaymentRepo {
	return &PaymentRepo{db: db}
}

const paymentColumns = `id, buy_order, session_id, token, experience_id, booking_id, amount, status,
	response_code, authorization_code, card_last4, accounting_date, transaction_date, installments,
	payment_type_code, raw_commit, created_at, updated_at`

func scanPayment(row interface{ Scan(...any) error }, p *model.Payment) error {
	var (
		token        sql.NullString
		bookingID    sql.NullInt64
		responseCode sql.NullInt64
		txDate       sql.NullTime
		status       string
	)
	if err := row.Scan(&p.ID, &p.BuyOrder, &p.SessionID, &token, &p.ExperienceID, &bookingID, &p.Amount, &status,
		&responseCode, &p.AuthorizationCode, &p.CardLast4, &p.AccountingDate, &txDate, &p.Installments,
		&p.PaymentTypeCode, &p.RawCommit, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return err
	}
	p.Token = token.String
	p.Status = model.PaymentStatus(status)
	if bookingID.Valid {
		id := uint64(bookingID.Int64)
		p.BookingID = &id
	}
	if responseCode.Valid {
		code := int(responseCode.Int64)
		p.ResponseCode = &code
	}
	if txDate.Valid {
		t := txDate.Time
		p.TransactionDate = &t
	}
	return nil
}

// Create inserts a PENDING payment for a new buy order.  A reused buy order
// returns ErrConflict.
func (r *PaymentRepo) Create(ctx context.Context, p *model.Payment) error {
	const q = `INSERT INTO payments (buy_order, session_id, experience_id, booking_id, amount, status)
	           VALUES (?, ?, ?, ?, ?, ?)`
	var bookingID sql.NullInt64
	if p.BookingID != nil {
		bookingID = sql.NullInt64{Int64: int64(*p.BookingID), Valid: true}
	}
	if p.Status == "" {
		p.Status = model.PaymentPending
	}
	res, err := r.db.ExecContext(ctx, q, p.BuyOrder, p.SessionID, p.ExperienceID, bookingID, p.Amount, string(p.Status))
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
	p.ID = uint64(id)
	return nil
}

// SetToken records the provider token and moves the payment to REDIRECTED.
func (r *PaymentRepo) SetToken(ctx context.Context, buyOrder, token string) error {
	const q = "UPDATE payments SET token = ?, status = ? WHERE buy_order = ?"
	res, err := r.db.ExecContext(ctx, q, token, string(model.PaymentRedirected), buyOrder)
	if err != nil {
		return err
	}
	return expectOne(res)
}

// GetByToken returns ErrNotFound when no payment holds the token.
func (r *PaymentRepo) GetByToken(ctx context.Context, token string) (*model.Payment, error) {
	return r.getOne(ctx, "SELECT "+paymentColumns+" FROM payments WHERE token = ?", token)
}

// GetByBuyOrder returns ErrNotFound when the buy order is unknown.
func (r *PaymentRepo) GetByBuyOrder(ctx context.Context, buyOrder string) (*model.Payment, error) {
	return r.getOne(ctx, "SELECT "+paymentColumns+" FROM payments WHERE buy_order = ?", buyOrder)
}

func (r *PaymentRepo) getOne(ctx context.Context, q string, arg string) (*model.Payment, error) {
	if arg == "" {
		return nil, ErrNotFound
	}
	var p model.Payment
	if err := scanPayment(r.db.QueryRowContext(ctx, q, arg), &p); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// StoreCommit writes the commit outcome for p.Token.  The amount is replaced
// with the committed amount.  Rows already holding a committed outcome are
// left untouched so the first answer from the provider stays authoritative;
// in that case ErrConflict is returned.
func (r *PaymentRepo) StoreCommit(ctx context.Context, p *model.Payment) error {
	const q = `UPDATE payments
	           SET status = ?, amount = ?, response_code = ?, authorization_code = ?, card_last4 = ?,
	               accounting_date = ?, transaction_date = ?, installments = ?, payment_type_code = ?,
	               raw_commit = ?
	           WHERE token = ? AND status NOT IN (?, ?)`
	if !p.Status.Committed() {
		return fmt.Errorf("store commit: %s is not a commit outcome", p.Status)
	}
	var (
		responseCode sql.NullInt64
		txDate       sql.NullTime
	)
	if p.ResponseCode != nil {
		responseCode = sql.NullInt64{Int64: int64(*p.ResponseCode), Valid: true}
	}
	if p.TransactionDate != nil {
		txDate = sql.NullTime{Time: *p.TransactionDate, Valid: true}
	}
	res, err := r.db.ExecContext(ctx, q,
		string(p.Status), p.Amount, responseCode, p.AuthorizationCode, p.CardLast4,
		p.AccountingDate, txDate, p.Installments, p.PaymentTypeCode, p.RawCommit,
		p.Token, string(model.PaymentAuthorized), string(model.PaymentRejected))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}

// SetStatus moves a payment that has no commit outcome yet to status.  It is
// used for FAILED (create error) and CANCELLED (customer abort).
func (r *PaymentRepo) SetStatus(ctx context.Context, buyOrder string, status model.PaymentStatus) error {
	const q = "UPDATE payments SET status = ? WHERE buy_order = ? AND status IN (?, ?)"
	_, err := r.db.ExecContext(ctx, q, string(status), buyOrder,
		string(model.PaymentPending), string(model.PaymentRedirected))
	return err
}

// SetStatusByToken is SetStatus for callers that only know the token, such
// as a cancelled return without buy order.
func (r *PaymentRepo) SetStatusByToken(ctx context.Context, token string, status model.PaymentStatus) error {
	const q = "UPDATE payments SET status = ? WHERE token = ? AND status IN (?, ?)"
	_, err := r.db.ExecContext(ctx, q, string(status), token,
		string(model.PaymentPending), string(model.PaymentRedirected))
	return err
}
