package domain

import (
	"context"
	"time"
)

// ListOpts bounds a list query. Zero values mean no bound.
type ListOpts struct {
	Limit int
	Since *time.Time
}

// DeploymentStore persists deployment runs and the markets they created.
type DeploymentStore interface {
	StartRun(ctx context.Context, report RunReport) error
	RecordMarket(ctx context.Context, runID string, market DeployedMarket) error
	FinishRun(ctx context.Context, report RunReport) error
	// GetRun returns a run with its markets, or ErrNotFound.
	GetRun(ctx context.Context, runID string) (RunReport, error)
	// ListRuns returns runs newest first, without their markets.
	ListRuns(ctx context.Context, opts ListOpts) ([]RunReport, error)
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
}
