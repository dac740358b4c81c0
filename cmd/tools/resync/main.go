package main

import (
	"context"
	"flag"
	"log"

	"github.com/africaops/sam-monitor/internal/config"
	"github.com/africaops/sam-monitor/internal/db"
	"github.com/africaops/sam-monitor/internal/ingest"
	"github.com/africaops/sam-monitor/internal/samapi"
)

func main() {
	years := flag.Int("years", 0, "Years of history to collect (default from config)")
	incremental := flag.Bool("incremental", false, "Run a 30-day incremental refresh instead of the full resync")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *years > 0 {
		cfg.HistoricalYearsBack = *years
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	if err := db.ApplyMigrations(ctx, pool); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	store := db.NewStore(pool)
	client := samapi.New(samapi.Config{
		BaseURL:     cfg.BaseURL,
		APIKey:      cfg.APIKey,
		PageDelay:   cfg.PageDelay,
		Backoff:     cfg.RateLimitBackoff,
		MaxRequests: cfg.MaxRequestsPerFetch,
		PageSize:    cfg.MaxPageSize,
	})
	filter := ingest.NewRelevanceFilter(cfg.CountryCodes, cfg.CountryNames, cfg.Keywords)
	normalizer := ingest.NewNormalizer(cfg.CountryNames, cfg.DetailBaseURL, cfg.DescriptionMaxLen)
	chunker := ingest.NewChunker(client, cfg.MaxPageSize, cfg.WindowDelay)
	pipeline := ingest.NewPipeline(store, client, chunker, filter, normalizer,
		cfg.HistoricalYearsBack, cfg.MaxPageSize)

	var stats ingest.RunStats
	if *incremental {
		log.Print("Starting incremental refresh...")
		stats, err = pipeline.RunIncremental(ctx)
	} else {
		log.Printf("Starting historical resync for %d years...", cfg.HistoricalYearsBack)
		stats, err = pipeline.RunHistorical(ctx)
	}
	if err != nil {
		log.Fatalf("Run failed: %v", err)
	}

	log.Printf("Run finished. Fetched: %d, Relevant: %d, Saved: %d, Seeded: %t, Elapsed: %dms",
		stats.Fetched, stats.Relevant, stats.Saved, stats.Seeded, stats.ElapsedMS)
}
