package ingest

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/africaops/sam-monitor/internal/models"
	"github.com/africaops/sam-monitor/internal/samapi"
)

// incrementalWindow is the posted-date look-back for a routine refresh.
const incrementalWindow = 30 * 24 * time.Hour

// Pipeline ties fetch, filter, normalize and persist into the two run
// shapes the service exposes. At most one run executes at a time; a
// second caller gets ErrRunInProgress instead of queueing.
type Pipeline struct {
	store      Store
	fetcher    Fetcher
	chunker    *Chunker
	filter     *RelevanceFilter
	normalizer *Normalizer
	yearsBack  int
	pageSize   int

	runMu sync.Mutex
	now   func() time.Time
}

func NewPipeline(store Store, fetcher Fetcher, chunker *Chunker, filter *RelevanceFilter, normalizer *Normalizer, yearsBack, pageSize int) *Pipeline {
	return &Pipeline{
		store:      store,
		fetcher:    fetcher,
		chunker:    chunker,
		filter:     filter,
		normalizer: normalizer,
		yearsBack:  yearsBack,
		pageSize:   pageSize,
		now:        time.Now,
	}
}

// RunIncremental refreshes the store from the trailing 30-day window.
func (p *Pipeline) RunIncremental(ctx context.Context) (RunStats, error) {
	return p.run(ctx, "incremental", func(ctx context.Context) ([]samapi.RawOpportunity, error) {
		now := p.now()
		return p.fetcher.Fetch(ctx, samapi.Query{
			PostedFrom: now.Add(-incrementalWindow),
			PostedTo:   now,
			Limit:      p.pageSize,
		})
	})
}

// RunHistorical rebuilds the multi-year record via chunked collection.
// Existing rows outside the collected windows are left untouched.
func (p *Pipeline) RunHistorical(ctx context.Context) (RunStats, error) {
	return p.run(ctx, "historical", func(ctx context.Context) ([]samapi.RawOpportunity, error) {
		return p.chunker.Collect(ctx, p.yearsBack)
	})
}

func (p *Pipeline) run(ctx context.Context, kind string, collect func(context.Context) ([]samapi.RawOpportunity, error)) (RunStats, error) {
	if !p.runMu.TryLock() {
		return RunStats{}, ErrRunInProgress
	}
	defer p.runMu.Unlock()

	started := p.now()
	runID, err := p.store.BeginRun(ctx, kind)
	if err != nil {
		// Run bookkeeping is best effort; the collection still proceeds.
		log.Printf("[Pipeline] begin %s run not recorded: %v", kind, err)
	}

	var stats RunStats
	status := "completed"

	raws, fetchErr := collect(ctx)
	if fetchErr != nil {
		if ctx.Err() != nil {
			p.finish(ctx, runID, "cancelled", stats)
			return stats, fetchErr
		}
		status = "degraded"
		log.Printf("[Pipeline] %s collection degraded, continuing with %d notices: %v", kind, len(raws), fetchErr)
	}
	stats.Fetched = len(raws)

	relevant := p.filter.Filter(raws)
	stats.Relevant = len(relevant)

	opps := make([]models.Opportunity, 0, len(relevant))
	for _, raw := range relevant {
		opps = append(opps, p.normalizer.Normalize(raw))
	}

	if len(opps) == 0 {
		seeded, seedErr := p.seedIfEmpty(ctx, started)
		stats.Seeded = seeded
		stats.ElapsedMS = time.Since(started).Milliseconds()
		if seedErr != nil {
			p.finish(ctx, runID, "failed", stats)
			return stats, seedErr
		}
		if status == "completed" {
			status = "empty"
		}
		p.finish(ctx, runID, status, stats)
		log.Printf("[Pipeline] %s run %s: fetched=%d relevant=0 seeded=%t", kind, status, stats.Fetched, seeded)
		return stats, nil
	}

	saved, err := p.store.UpsertAll(ctx, opps)
	stats.Saved = saved
	stats.ElapsedMS = time.Since(started).Milliseconds()
	if err != nil {
		p.finish(ctx, runID, "failed", stats)
		return stats, err
	}

	p.finish(ctx, runID, status, stats)
	log.Printf("[Pipeline] %s run %s: fetched=%d relevant=%d saved=%d in %dms",
		kind, status, stats.Fetched, stats.Relevant, stats.Saved, stats.ElapsedMS)
	return stats, nil
}

// Bootstrap runs an incremental collection when the store holds no real
// data yet, so a fresh deployment serves content immediately instead of
// waiting for the first scheduled tick. Reports whether a run happened.
func (p *Pipeline) Bootstrap(ctx context.Context) (RunStats, bool, error) {
	real, err := p.store.CountReal(ctx)
	if err != nil {
		return RunStats{}, false, err
	}
	if real > 0 {
		return RunStats{}, false, nil
	}
	log.Print("[Pipeline] store has no real data, running initial collection")
	stats, err := p.RunIncremental(ctx)
	return stats, true, err
}

// seedIfEmpty installs the demo records, but only while the store has
// never held real data. A store with history keeps its history.
func (p *Pipeline) seedIfEmpty(ctx context.Context, now time.Time) (bool, error) {
	real, err := p.store.CountReal(ctx)
	if err != nil {
		return false, err
	}
	if real > 0 {
		return false, nil
	}
	samples := PlaceholderOpportunities(now)
	if _, err := p.store.UpsertAll(ctx, samples); err != nil {
		return false, err
	}
	log.Printf("[Pipeline] store empty, seeded %d placeholder records", len(samples))
	return true, nil
}

func (p *Pipeline) finish(ctx context.Context, runID, status string, stats RunStats) {
	if runID == "" {
		return
	}
	if err := p.store.FinishRun(ctx, runID, status, stats); err != nil {
		log.Printf("[Pipeline] finish run %s not recorded: %v", runID, err)
	}
}
