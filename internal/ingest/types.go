package ingest

import (
	"context"
	"errors"

	"github.com/africaops/sam-monitor/internal/models"
	"github.com/africaops/sam-monitor/internal/samapi"
)

// ErrRunInProgress is returned when a second pipeline run is triggered
// while one is already in flight. The caller reports it, it never waits.
var ErrRunInProgress = errors.New("ingest: a pipeline run is already in progress")

// Fetcher retrieves raw notices for one posted-date window.
type Fetcher interface {
	Fetch(ctx context.Context, q samapi.Query) ([]samapi.RawOpportunity, error)
}

// Store is the slice of persistence the pipeline drives. *db.Store is
// the production implementation.
type Store interface {
	UpsertAll(ctx context.Context, opps []models.Opportunity) (int, error)
	// CountReal counts stored rows excluding placeholder seeds.
	CountReal(ctx context.Context) (int, error)
	BeginRun(ctx context.Context, kind string) (string, error)
	FinishRun(ctx context.Context, runID, status string, stats RunStats) error
}

// RunStats summarizes one pipeline run.
type RunStats struct {
	Fetched   int   `json:"fetched"`
	Relevant  int   `json:"relevant"`
	Saved     int   `json:"saved"`
	Seeded    bool  `json:"seeded"`
	ElapsedMS int64 `json:"elapsed_ms"`
}
