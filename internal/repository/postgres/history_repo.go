package postgres

import (
	"context"
	"errors"

	"github.com/and161185/analysis-keeper/internal/errs"
	"github.com/and161185/analysis-keeper/internal/model"
	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
)

// HistoryRepo implements HistoryRepository using PostgreSQL.
type HistoryRepo struct{ db *DB }

// NewHistoryRepo constructs an analysis history repository.
func NewHistoryRepo(db *DB) *HistoryRepo { return &HistoryRepo{db: db} }

// Create inserts a record; id and created_at come from the database.
// result_data is BYTEA so engine bodies that are not valid UTF-8 are kept verbatim.
func (r *HistoryRepo) Create(ctx context.Context, rec *model.AnalysisRecord) (*model.AnalysisRecord, error) {
	const q = `
INSERT INTO analysis_history (user_id, file_name, file_id, summary, thumbnail_path, result_data)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, created_at`
	out := *rec
	err := r.db.Pool.QueryRow(ctx, q,
		out.UserID, out.FileName, out.FileID, out.Summary, out.ThumbnailPath, []byte(out.ResultData),
	).Scan(&out.ID, &out.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ListByUser returns the user's records ordered newest first. Id breaks timestamp ties.
func (r *HistoryRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]model.AnalysisRecord, error) {
	const q = `
SELECT id, user_id, file_name, file_id, summary, thumbnail_path, result_data, created_at
FROM analysis_history
WHERE user_id=$1
ORDER BY created_at DESC, id DESC`
	rows, err := r.db.Pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.AnalysisRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// GetByID returns a single record by id regardless of owner; ownership is checked by the service.
func (r *HistoryRepo) GetByID(ctx context.Context, id int64) (*model.AnalysisRecord, error) {
	const q = `
SELECT id, user_id, file_name, file_id, summary, thumbnail_path, result_data, created_at
FROM analysis_history WHERE id=$1`
	rec, err := scanRecord(r.db.Pool.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return rec, nil
}

func scanRecord(row pgx.Row) (*model.AnalysisRecord, error) {
	var (
		rec model.AnalysisRecord
		raw []byte
	)
	if err := row.Scan(&rec.ID, &rec.UserID, &rec.FileName, &rec.FileID,
		&rec.Summary, &rec.ThumbnailPath, &raw, &rec.CreatedAt); err != nil {
		return nil, err
	}
	rec.ResultData = string(raw)
	return &rec, nil
}
