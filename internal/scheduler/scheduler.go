package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/robfig/cron/v3"

	"github.com/africaops/sam-monitor/internal/ingest"
)

// Scheduler drives the pipeline on a fixed cadence: an incremental
// refresh every few hours plus a nightly full resync. Ticks that land
// while a run is in flight are skipped, never queued.
type Scheduler struct {
	pipeline *ingest.Pipeline
	cron     *cron.Cron
}

func New(pipeline *ingest.Pipeline) *Scheduler {
	return &Scheduler{
		pipeline: pipeline,
		cron:     cron.New(),
	}
}

// Start registers the schedules and begins ticking. Jobs run on the
// cron's own goroutines against the supplied base context.
func (s *Scheduler) Start(ctx context.Context, intervalHours, resyncHourUTC int) error {
	if intervalHours <= 0 {
		intervalHours = 6
	}
	if resyncHourUTC < 0 || resyncHourUTC > 23 {
		resyncHourUTC = 2
	}

	refreshSpec := fmt.Sprintf("@every %dh", intervalHours)
	if _, err := s.cron.AddFunc(refreshSpec, s.tick(ctx, "refresh", s.pipeline.RunIncremental)); err != nil {
		return fmt.Errorf("schedule refresh: %w", err)
	}

	resyncSpec := fmt.Sprintf("0 %d * * *", resyncHourUTC)
	if _, err := s.cron.AddFunc(resyncSpec, s.tick(ctx, "resync", s.pipeline.RunHistorical)); err != nil {
		return fmt.Errorf("schedule resync: %w", err)
	}

	s.cron.Start()
	log.Printf("[Scheduler] started: refresh %s, resync daily at %02d:00 UTC", refreshSpec, resyncHourUTC)
	return nil
}

// Stop halts ticking and waits for any running job to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	log.Print("[Scheduler] stopped")
}

// tick wraps a pipeline run so a panic or failure in one tick never
// takes down the ticker.
func (s *Scheduler) tick(ctx context.Context, kind string, run func(context.Context) (ingest.RunStats, error)) func() {
	return func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("[Scheduler] %s tick panicked: %v", kind, r)
			}
		}()

		stats, err := run(ctx)
		switch {
		case errors.Is(err, ingest.ErrRunInProgress):
			log.Printf("[Scheduler] %s tick skipped, a run is already in progress", kind)
		case err != nil:
			log.Printf("[Scheduler] %s tick failed: %v", kind, err)
		default:
			log.Printf("[Scheduler] %s tick done: fetched=%d relevant=%d saved=%d",
				kind, stats.Fetched, stats.Relevant, stats.Saved)
		}
	}
}
