package storage

import (
	"context"

	"ambulon/internal/model"
)

// Store defines transaction-like persistence operations for run records.
type Store interface {
	Init(ctx context.Context) error
	SaveRun(ctx context.Context, run model.Run) error
	GetRun(ctx context.Context, id string) (model.Run, bool, error)
	ListRuns(ctx context.Context, limit int) ([]model.Run, error)
	SaveEpisodes(ctx context.Context, runID string, episodes []model.Episode) error
	GetEpisodes(ctx context.Context, runID string) ([]model.Episode, bool, error)
	SaveRewardHistory(ctx context.Context, runID string, history []float64) error
	GetRewardHistory(ctx context.Context, runID string) ([]float64, bool, error)
	SaveScapeSummary(ctx context.Context, summary model.ScapeSummary) error
	GetScapeSummary(ctx context.Context, name string) (model.ScapeSummary, bool, error)
}
