package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/and161185/analysis-keeper/internal/errs"
	"github.com/and161185/analysis-keeper/internal/metrics"
	"github.com/and161185/analysis-keeper/internal/model"
	"github.com/and161185/analysis-keeper/internal/normalize"
	"github.com/and161185/analysis-keeper/internal/repository"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
)

// Engine is the remote analysis engine. *engine.Client satisfies it.
type Engine interface {
	Submit(ctx context.Context, data []byte, fileName string) ([]byte, error)
	Chart(ctx context.Context, fileID, chartType string) ([]byte, string, error)
}

// AnalysisService defines upload ingestion and owner-scoped history reads.
type AnalysisService interface {
	// Analyze forwards the file to the engine, stores the outcome and returns
	// the engine body with analysis_id injected.
	Analyze(ctx context.Context, userID uuid.UUID, fileName string, data []byte) ([]byte, error)
	// History returns the user's records, newest first.
	History(ctx context.Context, userID uuid.UUID) ([]model.AnalysisRecord, error)
	// Get returns one record owned by userID.
	Get(ctx context.Context, id int64, userID uuid.UUID) (*model.AnalysisRecord, error)
	// Chart proxies a chart image rendered by the engine.
	Chart(ctx context.Context, fileID, chartType string) ([]byte, string, error)
}

type AnalysisServiceImpl struct {
	engine  Engine
	history repository.HistoryRepository
	log     *zap.Logger
}

// NewAnalysisService constructs AnalysisService.
func NewAnalysisService(engine Engine, history repository.HistoryRepository, log *zap.Logger) *AnalysisServiceImpl {
	if log == nil {
		log = zap.NewNop()
	}
	return &AnalysisServiceImpl{engine: engine, history: history, log: log}
}

// Analyze runs the ingestion pipeline. Nothing is persisted unless the engine
// answered successfully. Normalization and id injection never fail the call.
func (s *AnalysisServiceImpl) Analyze(ctx context.Context, userID uuid.UUID, fileName string, data []byte) ([]byte, error) {
	if len(data) == 0 {
		metrics.CountUpload(metrics.OutcomeRejected)
		return nil, fmt.Errorf("%w: empty file", errs.ErrValidation)
	}
	if userID == uuid.Nil {
		metrics.CountUpload(metrics.OutcomeRejected)
		return nil, fmt.Errorf("%w: empty user id", errs.ErrValidation)
	}

	// The engine call outlives a disconnecting caller; the client timeout bounds it.
	detached := context.WithoutCancel(ctx)
	raw, err := s.engine.Submit(detached, data, fileName)
	if err != nil {
		metrics.CountUpload(metrics.OutcomeTransport)
		return nil, err
	}

	norm, isObject := normalize.Normalize(raw)
	if !isObject {
		s.log.Warn("engine response is not a JSON object",
			zap.String("file_name", fileName),
			zap.Int("body_len", len(raw)),
		)
	}

	rec, err := s.history.Create(detached, &model.AnalysisRecord{
		UserID:        userID,
		FileName:      fileName,
		FileID:        norm.FileID,
		Summary:       norm.Summary,
		ThumbnailPath: norm.Thumbnail,
		ResultData:    string(raw),
	})
	if err != nil {
		metrics.CountUpload(metrics.OutcomeStoreError)
		return nil, fmt.Errorf("store analysis: %w", err)
	}

	out, err := normalize.InjectID(raw, rec.ID)
	if err != nil {
		if !errors.Is(err, normalize.ErrNotObject) {
			s.log.Warn("inject analysis id", zap.Int64("analysis_id", rec.ID), zap.Error(err))
		}
		metrics.CountUpload(metrics.OutcomeDegraded)
		return raw, nil
	}
	metrics.CountUpload(metrics.OutcomeStored)
	return out, nil
}

func (s *AnalysisServiceImpl) History(ctx context.Context, userID uuid.UUID) ([]model.AnalysisRecord, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("%w: empty user id", errs.ErrValidation)
	}
	return s.history.ListByUser(ctx, userID)
}

// Get distinguishes absent records (ErrNotFound) from foreign ones (ErrForbidden).
func (s *AnalysisServiceImpl) Get(ctx context.Context, id int64, userID uuid.UUID) (*model.AnalysisRecord, error) {
	rec, err := s.history.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.UserID != userID {
		return nil, errs.ErrForbidden
	}
	return rec, nil
}

func (s *AnalysisServiceImpl) Chart(ctx context.Context, fileID, chartType string) ([]byte, string, error) {
	if fileID == "" || chartType == "" {
		return nil, "", fmt.Errorf("%w: file id and chart type are required", errs.ErrValidation)
	}
	return s.engine.Chart(ctx, fileID, chartType)
}
