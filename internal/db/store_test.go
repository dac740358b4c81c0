package db

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/africaops/sam-monitor/internal/ingest"
	"github.com/africaops/sam-monitor/internal/models"
)

func TestBuildWhereDefaultsToActive(t *testing.T) {
	where, args := buildWhere(ListParams{})
	if !strings.Contains(where, "is_active = true") {
		t.Fatalf("default status must filter to active rows: %s", where)
	}
	if len(args) != 0 {
		t.Fatalf("no filters should produce no args, got %d", len(args))
	}
}

func TestBuildWhereStatus(t *testing.T) {
	tests := []struct {
		status string
		want   string
		absent string
	}{
		{"all", "", "is_active"},
		{"historical", "is_active = false", ""},
		{"active", "is_active = true", ""},
		{"", "is_active = true", ""},
	}
	for _, tt := range tests {
		where, _ := buildWhere(ListParams{Status: tt.status})
		if tt.want != "" && !strings.Contains(where, tt.want) {
			t.Errorf("status %q: missing %q in %s", tt.status, tt.want, where)
		}
		if tt.absent != "" && strings.Contains(where, tt.absent) {
			t.Errorf("status %q: unexpected %q in %s", tt.status, tt.absent, where)
		}
	}
}

func TestBuildWhereNumbersPlaceholdersInOrder(t *testing.T) {
	where, args := buildWhere(ListParams{
		Country:    []string{"Kenya", "Ghana"},
		Department: []string{"DEPARTMENT OF STATE"},
		NoticeType: []string{"Presolicitation"},
		Query:      "road",
	})

	for _, token := range []string{
		"african_country = ANY($1)",
		"department = ANY($2)",
		"notice_type = ANY($3)",
		"title ILIKE $4",
	} {
		if !strings.Contains(where, token) {
			t.Errorf("missing %q in %s", token, where)
		}
	}
	if len(args) != 4 {
		t.Fatalf("args = %d, want 4", len(args))
	}
	if args[3] != "%road%" {
		t.Errorf("query arg = %v, want wrapped in wildcards", args[3])
	}
}

// testPool connects or skips. Integration tests only run against a
// disposable database named by TEST_DATABASE_URL.
func testPool(t *testing.T) *Store {
	t.Helper()
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := Connect(ctx, dbURL)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)

	if err := ApplyMigrations(ctx, pool); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if _, err := pool.Exec(ctx, "TRUNCATE opportunities, ingest_runs"); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	return NewStore(pool)
}

func testOpportunity(id string) models.Opportunity {
	now := time.Now().UTC().Truncate(time.Second)
	return models.Opportunity{
		NoticeID:           id,
		Title:              "Road rehabilitation " + id,
		Department:         "DEPARTMENT OF STATE",
		PostedDate:         "2026-03-01",
		NoticeType:         "Presolicitation",
		PopCountryCode:     "GHA",
		AfricanCountry:     "Ghana",
		SamURL:             "https://sam.gov/opp/" + id,
		IsActive:           true,
		DataCollectionDate: now,
		LastUpdated:        now,
	}
}

func TestUpsertAllReplacesOnConflict(t *testing.T) {
	store := testPool(t)
	ctx := context.Background()

	first := testOpportunity("n1")
	if _, err := store.UpsertAll(ctx, []models.Opportunity{first}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	amended := first
	amended.Title = "Amended title"
	amended.ArchiveType = "auto15"
	amended.IsActive = false
	if _, err := store.UpsertAll(ctx, []models.Opportunity{amended}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := store.GetOpportunity(ctx, "n1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil {
		t.Fatal("row missing after upsert")
	}
	if got.Title != "Amended title" || got.IsActive {
		t.Errorf("conflict did not replace fields: %+v", got)
	}

	var count int
	if err := store.pool.QueryRow(ctx, "SELECT COUNT(*) FROM opportunities").Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("row count = %d, want 1", count)
	}
}

func TestCountRealExcludesPlaceholders(t *testing.T) {
	store := testPool(t)
	ctx := context.Background()

	opps := []models.Opportunity{testOpportunity("n1")}
	opps = append(opps, ingest.PlaceholderOpportunities(time.Now())...)
	if _, err := store.UpsertAll(ctx, opps); err != nil {
		t.Fatal(err)
	}

	real, err := store.CountReal(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if real != 1 {
		t.Errorf("CountReal = %d, want 1", real)
	}
}

func TestListAndAggregations(t *testing.T) {
	store := testPool(t)
	ctx := context.Background()

	a := testOpportunity("n1")
	b := testOpportunity("n2")
	b.AfricanCountry = "Kenya"
	b.PostedDate = "2026-03-05"
	c := testOpportunity("n3")
	c.IsActive = false
	c.ArchiveType = "auto15"
	if _, err := store.UpsertAll(ctx, []models.Opportunity{a, b, c}); err != nil {
		t.Fatal(err)
	}

	res, err := store.ListOpportunities(ctx, ListParams{})
	if err != nil {
		t.Fatal(err)
	}
	if res.Total != 2 {
		t.Errorf("active total = %d, want 2", res.Total)
	}
	if len(res.Opportunities) != 2 || res.Opportunities[0].NoticeID != "n2" {
		t.Errorf("expected newest first, got %+v", res.Opportunities)
	}

	res, err = store.ListOpportunities(ctx, ListParams{Status: "all", Country: []string{"Kenya"}})
	if err != nil {
		t.Fatal(err)
	}
	if res.Total != 1 || res.Opportunities[0].NoticeID != "n2" {
		t.Errorf("country filter: %+v", res)
	}

	aggs, err := store.GetAggregations(ctx, ListParams{Status: "all"})
	if err != nil {
		t.Fatal(err)
	}
	if len(aggs.Countries) != 2 {
		t.Errorf("countries facet = %+v", aggs.Countries)
	}
}

func TestActiveHistoricalSplit(t *testing.T) {
	store := testPool(t)
	ctx := context.Background()

	a := testOpportunity("n1")
	b := testOpportunity("n2")
	b.IsActive = false
	b.ArchiveType = "auto15"
	c := testOpportunity("n3")
	if _, err := store.UpsertAll(ctx, []models.Opportunity{a, b, c}); err != nil {
		t.Fatal(err)
	}

	active, historical, err := store.ActiveHistoricalSplit(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if active != 2 || historical != 1 {
		t.Errorf("split = %d/%d, want 2/1", active, historical)
	}
}

func TestRunLifecycle(t *testing.T) {
	store := testPool(t)
	ctx := context.Background()

	runID, err := store.BeginRun(ctx, "incremental")
	if err != nil {
		t.Fatal(err)
	}
	stats := ingest.RunStats{Fetched: 10, Relevant: 4, Saved: 4, ElapsedMS: 1200}
	if err := store.FinishRun(ctx, runID, "completed", stats); err != nil {
		t.Fatal(err)
	}

	runs, err := store.RecentRuns(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 {
		t.Fatalf("runs = %d, want 1", len(runs))
	}
	if runs[0].Status != "completed" || runs[0].Saved != 4 || runs[0].CompletedAt == nil {
		t.Errorf("run record: %+v", runs[0])
	}
}

func TestExportCSV(t *testing.T) {
	store := testPool(t)
	ctx := context.Background()

	if _, err := store.UpsertAll(ctx, []models.Opportunity{testOpportunity("n1")}); err != nil {
		t.Fatal(err)
	}

	var buf strings.Builder
	n, err := store.ExportCSV(ctx, &buf, ListParams{Status: "all"})
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("exported %d rows, want 1", n)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("csv lines = %d, want header + 1", len(lines))
	}
	if !strings.HasPrefix(lines[0], "notice_id,title") {
		t.Errorf("header = %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "n1,") {
		t.Errorf("row = %q", lines[1])
	}
}
