package repository

import (
	"context"

	"github.com/and161185/analysis-keeper/internal/model"
	"github.com/gofrs/uuid/v5"
)

// HistoryRepository stores analysis records. Records are append-only.
type HistoryRepository interface {
	// Create persists a record, assigning ID and CreatedAt.
	Create(ctx context.Context, r *model.AnalysisRecord) (*model.AnalysisRecord, error)
	// ListByUser returns the user's records, most recent first.
	ListByUser(ctx context.Context, userID uuid.UUID) ([]model.AnalysisRecord, error)
	// GetByID loads a single record; errs.ErrNotFound when absent.
	GetByID(ctx context.Context, id int64) (*model.AnalysisRecord, error)
}
