package main

import (
	"context"
	"log"

	"github.com/africaops/sam-monitor/internal/api"
	"github.com/africaops/sam-monitor/internal/config"
	"github.com/africaops/sam-monitor/internal/db"
	"github.com/africaops/sam-monitor/internal/ingest"
	"github.com/africaops/sam-monitor/internal/samapi"
	"github.com/africaops/sam-monitor/internal/scheduler"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.APIKey == "" {
		log.Print("SAM_API_KEY is not set; collection runs will seed placeholder data only")
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

	if cfg.APIKey != "" {
		if err := client.ValidateKey(ctx); err != nil {
			log.Printf("SAM API key rejected by upstream: %v", err)
		}
	}

	filter := ingest.NewRelevanceFilter(cfg.CountryCodes, cfg.CountryNames, cfg.Keywords)
	normalizer := ingest.NewNormalizer(cfg.CountryNames, cfg.DetailBaseURL, cfg.DescriptionMaxLen)
	chunker := ingest.NewChunker(client, cfg.MaxPageSize, cfg.WindowDelay)
	pipeline := ingest.NewPipeline(store, client, chunker, filter, normalizer,
		cfg.HistoricalYearsBack, cfg.MaxPageSize)

	go func() {
		stats, ran, err := pipeline.Bootstrap(ctx)
		if err != nil {
			log.Printf("Initial collection failed: %v", err)
			return
		}
		if ran {
			log.Printf("Initial collection done: saved=%d seeded=%t", stats.Saved, stats.Seeded)
		}
	}()

	sched := scheduler.New(pipeline)
	if err := sched.Start(ctx, cfg.UpdateIntervalHours, cfg.ResyncHourUTC); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	srv := api.NewServer(pool, store, pipeline)
	log.Printf("Server starting on port %s...", cfg.Port)
	if err := srv.Start(cfg.Port); err != nil {
		log.Fatal(err)
	}
}
