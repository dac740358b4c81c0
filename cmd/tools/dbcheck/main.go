package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/africaops/sam-monitor/internal/config"
	"github.com/africaops/sam-monitor/internal/db"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal(err)
	}
	defer pool.Close()

	store := db.NewStore(pool)

	stats, err := store.GetStats(ctx)
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("Opportunities: total=%v active=%v historical=%v countries=%v",
		stats["total"], stats["active"], stats["historical"], stats["countries"])

	result, err := store.ListOpportunities(ctx, db.ListParams{Status: "all", Limit: 10})
	if err != nil {
		log.Fatal(err)
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Notice ID", "Country", "Posted", "Type", "Active", "Title"})
	for _, o := range result.Opportunities {
		title := o.Title
		if len(title) > 60 {
			title = title[:57] + "..."
		}
		t.AppendRow(table.Row{o.NoticeID, o.AfricanCountry, o.PostedDate, o.NoticeType, o.IsActive, title})
	}
	t.Render()

	runs, err := store.RecentRuns(ctx, 10)
	if err != nil {
		log.Fatal(err)
	}

	rt := table.NewWriter()
	rt.SetOutputMirror(os.Stdout)
	rt.AppendHeader(table.Row{"Kind", "Status", "Fetched", "Relevant", "Saved", "Duration", "Started At"})
	for _, r := range runs {
		duration := "Running..."
		if r.CompletedAt != nil {
			duration = r.CompletedAt.Sub(r.StartedAt).Round(time.Second).String()
		}
		rt.AppendRow(table.Row{r.Kind, r.Status, r.Fetched, r.Relevant, r.Saved, duration, r.StartedAt.Format("2006-01-02 15:04:05")})
	}
	rt.Render()
}
