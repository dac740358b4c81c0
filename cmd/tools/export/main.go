package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/africaops/sam-monitor/internal/config"
	"github.com/africaops/sam-monitor/internal/db"
)

func main() {
	out := flag.String("out", "", "Output file (default stdout)")
	status := flag.String("status", "all", "Filter: active, historical, or all")
	country := flag.String("country", "", "Filter by mapped country name")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	w := os.Stdout
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			log.Fatalf("Failed to create output file: %v", err)
		}
		defer f.Close()
		w = f
	}

	params := db.ListParams{Status: *status}
	if *country != "" {
		params.Country = []string{*country}
	}

	n, err := db.NewStore(pool).ExportCSV(ctx, w, params)
	if err != nil {
		log.Fatalf("Export failed: %v", err)
	}
	log.Printf("Exported %d opportunities", n)
}
