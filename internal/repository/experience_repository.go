package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/altamontana/booking-api/internal/model"
)

// ExperienceRepo encapsulates queries against the experiences table.
type ExperienceRepo struct {
	db *sql.DB
}

func NewExperienceRepo(db *sql.DB) *ExperienceRepo {
	return &ExperienceRepo{db: db}
}

const experienceColumns = "id, title, description, price, image_url, location, duration"

func scanExperience(row interface{ Scan(...any) error }, e *model.Experience) error {
	return row.Scan(&e.ID, &e.Title, &e.Description, &e.Price, &e.ImageURL, &e.Location, &e.Duration)
}

// List returns every experience ordered by id.
func (r *ExperienceRepo) List(ctx context.Context) ([]model.Experience, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+experienceColumns+" FROM experiences ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.Experience, 0)
	for rows.Next() {
		var e model.Experience
		if err := scanExperience(rows, &e); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// GetByID returns ErrNotFound when no experience has the id.
func (r *ExperienceRepo) GetByID(ctx context.Context, id uint64) (*model.Experience, error) {
	var e model.Experience
	err := scanExperience(r.db.QueryRowContext(ctx, "SELECT "+experienceColumns+" FROM experiences WHERE id = ?", id), &e)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &e, nil
}

// Create inserts e and sets its ID.
func (r *ExperienceRepo) Create(ctx context.Context, e *model.Experience) error {
	const q = `INSERT INTO experiences (title, description, price, image_url, location, duration)
	           VALUES (?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, e.Title, e.Description, e.Price, e.ImageURL, e.Location, e.Duration)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	e.ID = uint64(id)
	return nil
}

// Update overwrites every column of the row with e.ID.  The DSN sets
// clientFoundRows so an unchanged row still counts as matched.
func (r *ExperienceRepo) Update(ctx context.Context, e *model.Experience) error {
	const q = `UPDATE experiences
	           SET title = ?, description = ?, price = ?, image_url = ?, location = ?, duration = ?
	           WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q, e.Title, e.Description, e.Price, e.ImageURL, e.Location, e.Duration, e.ID)
	if err != nil {
		return err
	}
	return expectOne(res)
}

// Delete removes the experience.  Bookings referencing it make the delete
// fail with ErrConflict.
func (r *ExperienceRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM experiences WHERE id = ?", id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrConflict
		}
		return err
	}
	return expectOne(res)
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
