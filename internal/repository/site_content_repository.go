package repository

import (
	"context"
	"database/sql"

	"github.com/altamontana/booking-api/internal/model"
)

// SiteContentRepo stores editable text blocks of the public site.
type SiteContentRepo struct {
	db *sql.DB
}

func NewSiteContentRepo(db *sql.DB) *SiteContentRepo {
	return &SiteContentRepo{db: db}
}

func (r *SiteContentRepo) List(ctx context.Context) ([]model.SiteContent, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT id, content_key, content_value FROM site_contents ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.SiteContent, 0)
	for rows.Next() {
		var sc model.SiteContent
		if err := rows.Scan(&sc.ID, &sc.Key, &sc.Value); err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Create inserts sc; a duplicate key returns ErrConflict.
func (r *SiteContentRepo) Create(ctx context.Context, sc *model.SiteContent) error {
	res, err := r.db.ExecContext(ctx, "INSERT INTO site_contents (content_key, content_value) VALUES (?, ?)", sc.Key, sc.Value)
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
	sc.ID = uint64(id)
	return nil
}

// Update overwrites key and value of the row with sc.ID.
func (r *SiteContentRepo) Update(ctx context.Context, sc *model.SiteContent) error {
	res, err := r.db.ExecContext(ctx, "UPDATE site_contents SET content_key = ?, content_value = ? WHERE id = ?", sc.Key, sc.Value, sc.ID)
	if err != nil {
		if isDuplicate(err) {
			return ErrConflict
		}
		return err
	}
	return expectOne(res)
}
