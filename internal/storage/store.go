package storage

import (
	"context"
	"time"

	"docagent/internal/endpoint"
)

// RunRecord summarizes one documentation run.
type RunRecord struct {
	ID             int64
	StartedAt      time.Time
	Project        string
	Output         string
	New            int
	Stale          int
	Unchanged      int
	Orphaned       int
	Failed         int
	GeneratorCalls int
	// Endpoints is the size of the stored snapshot. It is filled on reads.
	Endpoints int
}

// RunStore persists run history and endpoint snapshots.
type RunStore interface {
	// SaveRun records a run together with the signatures it documented.
	SaveRun(ctx context.Context, run RunRecord, sigs []endpoint.Signature) (int64, error)

	// LatestSnapshot returns the signatures of the most recent run for
	// project, or nil when there is none.
	LatestSnapshot(ctx context.Context, project string) ([]endpoint.Signature, error)

	// ListRuns returns the newest runs first.
	ListRuns(ctx context.Context, limit int) ([]RunRecord, error)

	Close() error
}
