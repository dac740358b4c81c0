package ingest

import (
	"context"
	"log"
	"time"

	"github.com/africaops/sam-monitor/internal/samapi"
)

// chunkWindow is the per-request posted-date span for historical
// collection. The upstream search caps how far one query may reach, so a
// multi-year look-back is walked in consecutive 30-day windows.
const chunkWindow = 30 * 24 * time.Hour

// Chunker assembles a multi-year raw collection by driving the Fetcher
// across bounded windows. A failed window contributes whatever partial
// data the fetch returned; the walk never aborts short of cancellation.
type Chunker struct {
	fetcher  Fetcher
	pageSize int
	delay    time.Duration // between windows, longer than the per-page pacing
	now      func() time.Time
}

func NewChunker(fetcher Fetcher, pageSize int, delay time.Duration) *Chunker {
	return &Chunker{
		fetcher:  fetcher,
		pageSize: pageSize,
		delay:    delay,
		now:      time.Now,
	}
}

// Collect walks [now - yearsBack*365d, now) in 30-day windows, newest
// window clipped to end exactly at now, and returns every raw notice
// collected across all windows including expired/archived ones.
func (c *Chunker) Collect(ctx context.Context, yearsBack int) ([]samapi.RawOpportunity, error) {
	now := c.now()
	start := now.AddDate(0, 0, -yearsBack*365)

	var all []samapi.RawOpportunity
	windows, failed := 0, 0

	for cur := start; cur.Before(now); cur = cur.Add(chunkWindow) {
		end := cur.Add(chunkWindow)
		if end.After(now) {
			end = now
		}
		windows++

		raws, err := c.fetcher.Fetch(ctx, samapi.Query{
			PostedFrom:     cur,
			PostedTo:       end,
			Limit:          c.pageSize,
			IncludeExpired: true,
		})
		all = append(all, raws...)
		if err != nil {
			if ctx.Err() != nil {
				return all, ctx.Err()
			}
			failed++
			log.Printf("[Chunker] window %s..%s degraded, kept %d partial notices: %v",
				cur.Format("2006-01-02"), end.Format("2006-01-02"), len(raws), err)
		}

		if end.Before(now) {
			select {
			case <-ctx.Done():
				return all, ctx.Err()
			case <-time.After(c.delay):
			}
		}
	}

	log.Printf("[Chunker] collected %d notices across %d windows (%d degraded)", len(all), windows, failed)
	return all, nil
}
