package db

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/africaops/sam-monitor/internal/ingest"
	"github.com/africaops/sam-monitor/internal/models"
)

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

type ListParams struct {
	Query      string // title substring, case-insensitive
	Country    []string
	Department []string
	NoticeType []string
	Status     string // "active" (default), "historical", or "all"
	Limit      int
	Offset     int
}

type ListResult struct {
	Opportunities []models.Opportunity `json:"opportunities"`
	Total         int                  `json:"total"`
	Limit         int                  `json:"limit"`
	Offset        int                  `json:"offset"`
}

// selectCols is the comprehensive column list for all queries.
const selectCols = `notice_id, title, description, department, sub_tier, office,
	posted_date, response_date, archive_date, award_date,
	notice_type, base_type, archive_type,
	award_number, award_amount, awardee,
	pop_country_code, pop_country_name, pop_state, pop_city,
	african_country, sam_url, is_active,
	data_collection_date, last_updated`

func scanOpportunity(scan func(dest ...interface{}) error) (models.Opportunity, error) {
	var o models.Opportunity
	err := scan(
		&o.NoticeID, &o.Title, &o.Description, &o.Department, &o.SubTier, &o.Office,
		&o.PostedDate, &o.ResponseDate, &o.ArchiveDate, &o.AwardDate,
		&o.NoticeType, &o.BaseType, &o.ArchiveType,
		&o.AwardNumber, &o.AwardAmount, &o.Awardee,
		&o.PopCountryCode, &o.PopCountryName, &o.PopState, &o.PopCity,
		&o.AfricanCountry, &o.SamURL, &o.IsActive,
		&o.DataCollectionDate, &o.LastUpdated,
	)
	return o, err
}

const upsertSQL = `
	INSERT INTO opportunities (
		notice_id, title, description, department, sub_tier, office,
		posted_date, response_date, archive_date, award_date,
		notice_type, base_type, archive_type,
		award_number, award_amount, awardee,
		pop_country_code, pop_country_name, pop_state, pop_city,
		african_country, sam_url, is_active,
		data_collection_date, last_updated
	) VALUES (
		$1, $2, $3, $4, $5, $6,
		$7, $8, $9, $10,
		$11, $12, $13,
		$14, $15, $16,
		$17, $18, $19, $20,
		$21, $22, $23,
		$24, $25
	)
	ON CONFLICT (notice_id) DO UPDATE SET
		title = EXCLUDED.title,
		description = EXCLUDED.description,
		department = EXCLUDED.department,
		sub_tier = EXCLUDED.sub_tier,
		office = EXCLUDED.office,
		posted_date = EXCLUDED.posted_date,
		response_date = EXCLUDED.response_date,
		archive_date = EXCLUDED.archive_date,
		award_date = EXCLUDED.award_date,
		notice_type = EXCLUDED.notice_type,
		base_type = EXCLUDED.base_type,
		archive_type = EXCLUDED.archive_type,
		award_number = EXCLUDED.award_number,
		award_amount = EXCLUDED.award_amount,
		awardee = EXCLUDED.awardee,
		pop_country_code = EXCLUDED.pop_country_code,
		pop_country_name = EXCLUDED.pop_country_name,
		pop_state = EXCLUDED.pop_state,
		pop_city = EXCLUDED.pop_city,
		african_country = EXCLUDED.african_country,
		sam_url = EXCLUDED.sam_url,
		is_active = EXCLUDED.is_active,
		data_collection_date = EXCLUDED.data_collection_date,
		last_updated = EXCLUDED.last_updated`

// UpsertAll writes every opportunity keyed by notice_id: a re-seen id
// replaces all fields, a new id inserts. first_seen_at keeps its
// original value across replacements. Skips records without a notice_id.
func (s *Store) UpsertAll(ctx context.Context, opps []models.Opportunity) (int, error) {
	if len(opps) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	queued := 0
	for _, o := range opps {
		if o.NoticeID == "" {
			continue
		}
		batch.Queue(upsertSQL,
			o.NoticeID, o.Title, o.Description, o.Department, o.SubTier, o.Office,
			o.PostedDate, o.ResponseDate, o.ArchiveDate, o.AwardDate,
			o.NoticeType, o.BaseType, o.ArchiveType,
			o.AwardNumber, o.AwardAmount, o.Awardee,
			o.PopCountryCode, o.PopCountryName, o.PopState, o.PopCity,
			o.AfricanCountry, o.SamURL, o.IsActive,
			o.DataCollectionDate, o.LastUpdated,
		)
		queued++
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()
	for i := 0; i < queued; i++ {
		if _, err := results.Exec(); err != nil {
			return i, fmt.Errorf("upsert batch item %d: %w", i, err)
		}
	}
	return queued, nil
}

// CountReal counts stored rows excluding placeholder seeds.
func (s *Store) CountReal(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM opportunities WHERE notice_id NOT LIKE $1",
		ingest.PlaceholderPrefix+"%",
	).Scan(&n)
	return n, err
}

func (s *Store) BeginRun(ctx context.Context, kind string) (string, error) {
	runID := uuid.New().String()
	_, err := s.pool.Exec(ctx,
		"INSERT INTO ingest_runs (run_id, kind) VALUES ($1, $2)", runID, kind)
	if err != nil {
		return "", fmt.Errorf("begin run: %w", err)
	}
	return runID, nil
}

func (s *Store) FinishRun(ctx context.Context, runID, status string, stats ingest.RunStats) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE ingest_runs
		SET status = $2, fetched = $3, relevant = $4, saved = $5, seeded = $6,
		    elapsed_ms = $7, completed_at = NOW()
		WHERE run_id = $1`,
		runID, status, stats.Fetched, stats.Relevant, stats.Saved, stats.Seeded, stats.ElapsedMS)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// buildWhere translates ListParams into a WHERE clause and its args.
func buildWhere(params ListParams) (string, []interface{}) {
	where := "WHERE 1=1"
	args := []interface{}{}
	argIdx := 1

	if len(params.Country) > 0 {
		where += fmt.Sprintf(" AND african_country = ANY($%d)", argIdx)
		args = append(args, params.Country)
		argIdx++
	}
	if len(params.Department) > 0 {
		where += fmt.Sprintf(" AND department = ANY($%d)", argIdx)
		args = append(args, params.Department)
		argIdx++
	}
	if len(params.NoticeType) > 0 {
		where += fmt.Sprintf(" AND notice_type = ANY($%d)", argIdx)
		args = append(args, params.NoticeType)
		argIdx++
	}
	if params.Query != "" {
		where += fmt.Sprintf(" AND title ILIKE $%d", argIdx)
		args = append(args, "%"+params.Query+"%")
		argIdx++
	}

	switch params.Status {
	case "all":
		// No filter.
	case "historical":
		where += " AND is_active = false"
	default:
		where += " AND is_active = true"
	}

	return where, args
}

func (s *Store) ListOpportunities(ctx context.Context, params ListParams) (*ListResult, error) {
	if params.Limit <= 0 || params.Limit > 500 {
		params.Limit = 50
	}
	if params.Offset < 0 {
		params.Offset = 0
	}

	where, args := buildWhere(params)

	var total int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM opportunities "+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count failed: %w", err)
	}

	selectSQL := fmt.Sprintf(
		"SELECT %s FROM opportunities %s ORDER BY posted_date DESC, notice_id LIMIT $%d OFFSET $%d",
		selectCols, where, len(args)+1, len(args)+2)
	args = append(args, params.Limit, params.Offset)

	rows, err := s.pool.Query(ctx, selectSQL, args...)
	if err != nil {
		return nil, fmt.Errorf("list query failed: %w", err)
	}
	defer rows.Close()

	opps := []models.Opportunity{}
	for rows.Next() {
		o, err := scanOpportunity(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		opps = append(opps, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &ListResult{
		Opportunities: opps,
		Total:         total,
		Limit:         params.Limit,
		Offset:        params.Offset,
	}, nil
}

func (s *Store) GetOpportunity(ctx context.Context, noticeID string) (*models.Opportunity, error) {
	row := s.pool.QueryRow(ctx,
		fmt.Sprintf("SELECT %s FROM opportunities WHERE notice_id = $1", selectCols), noticeID)
	o, err := scanOpportunity(row.Scan)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &o, nil
}

// ActiveHistoricalSplit partitions the stored record count by the
// derived is_active flag.
func (s *Store) ActiveHistoricalSplit(ctx context.Context) (active, historical int, err error) {
	err = s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FILTER (WHERE is_active),
		       COUNT(*) FILTER (WHERE NOT is_active)
		FROM opportunities`).Scan(&active, &historical)
	if err != nil {
		return 0, 0, fmt.Errorf("split query failed: %w", err)
	}
	return active, historical, nil
}

// GetStats reports totals for the dashboard header: overall count,
// active/historical split, distinct countries and departments, and the
// most recent collection timestamp.
func (s *Store) GetStats(ctx context.Context) (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	active, historical, err := s.ActiveHistoricalSplit(ctx)
	if err != nil {
		return nil, err
	}

	var countries, departments int
	var lastCollected *time.Time
	err = s.pool.QueryRow(ctx, `
		SELECT COUNT(DISTINCT african_country),
		       COUNT(DISTINCT department) FILTER (WHERE department <> ''),
		       MAX(data_collection_date)
		FROM opportunities`).Scan(&countries, &departments, &lastCollected)
	if err != nil {
		return nil, fmt.Errorf("stats query failed: %w", err)
	}

	stats["total"] = active + historical
	stats["active"] = active
	stats["historical"] = historical
	stats["countries"] = countries
	stats["departments"] = departments
	if lastCollected != nil {
		stats["last_collected"] = lastCollected.UTC().Format(time.RFC3339)
	}

	var lastRun *time.Time
	var lastStatus *string
	err = s.pool.QueryRow(ctx, `
		SELECT started_at, status FROM ingest_runs
		ORDER BY started_at DESC LIMIT 1`).Scan(&lastRun, &lastStatus)
	if err != nil && err != pgx.ErrNoRows {
		return nil, fmt.Errorf("last run query failed: %w", err)
	}
	if lastRun != nil {
		stats["last_run_at"] = lastRun.UTC().Format(time.RFC3339)
		stats["last_run_status"] = *lastStatus
	}

	return stats, nil
}

type FacetCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

type AggregationResult struct {
	Countries   []FacetCount `json:"countries"`
	Departments []FacetCount `json:"departments"`
	NoticeTypes []FacetCount `json:"notice_types"`
}

// GetAggregations returns facet counts under the current filters. Each
// facet excludes its own dimension so the UI can widen a selection.
func (s *Store) GetAggregations(ctx context.Context, params ListParams) (*AggregationResult, error) {
	result := &AggregationResult{}

	facets := []struct {
		column string
		strip  func(ListParams) ListParams
		dest   *[]FacetCount
	}{
		{"african_country", func(p ListParams) ListParams { p.Country = nil; return p }, &result.Countries},
		{"department", func(p ListParams) ListParams { p.Department = nil; return p }, &result.Departments},
		{"notice_type", func(p ListParams) ListParams { p.NoticeType = nil; return p }, &result.NoticeTypes},
	}

	for _, facet := range facets {
		where, args := buildWhere(facet.strip(params))
		sql := fmt.Sprintf(`
			SELECT %s, COUNT(*) FROM opportunities %s AND %s <> ''
			GROUP BY %s ORDER BY COUNT(*) DESC, %s`,
			facet.column, where, facet.column, facet.column, facet.column)

		rows, err := s.pool.Query(ctx, sql, args...)
		if err != nil {
			return nil, fmt.Errorf("aggregation on %s failed: %w", facet.column, err)
		}
		counts := []FacetCount{}
		for rows.Next() {
			var fc FacetCount
			if err := rows.Scan(&fc.Value, &fc.Count); err != nil {
				rows.Close()
				return nil, err
			}
			counts = append(counts, fc)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, err
		}
		*facet.dest = counts
	}

	return result, nil
}

// RunRecord is one row of ingest run history.
type RunRecord struct {
	RunID       string     `json:"run_id"`
	Kind        string     `json:"kind"`
	Status      string     `json:"status"`
	Fetched     int        `json:"fetched"`
	Relevant    int        `json:"relevant"`
	Saved       int        `json:"saved"`
	Seeded      bool       `json:"seeded"`
	ElapsedMS   int64      `json:"elapsed_ms"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func (s *Store) RecentRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx, `
		SELECT run_id, kind, status, fetched, relevant, saved, seeded, elapsed_ms, started_at, completed_at
		FROM ingest_runs ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent runs query failed: %w", err)
	}
	defer rows.Close()

	runs := []RunRecord{}
	for rows.Next() {
		var r RunRecord
		if err := rows.Scan(&r.RunID, &r.Kind, &r.Status, &r.Fetched, &r.Relevant, &r.Saved,
			&r.Seeded, &r.ElapsedMS, &r.StartedAt, &r.CompletedAt); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// csvHeader matches the canonical schema field order.
var csvHeader = []string{
	"notice_id", "title", "description", "department", "sub_tier", "office",
	"posted_date", "response_date", "archive_date", "award_date",
	"notice_type", "base_type", "archive_type",
	"award_number", "award_amount", "awardee",
	"pop_country_code", "pop_country_name", "pop_state", "pop_city",
	"african_country", "sam_url", "is_active",
	"data_collection_date", "last_updated",
}

// ExportCSV streams the filtered record set as CSV, newest first.
func (s *Store) ExportCSV(ctx context.Context, w io.Writer, params ListParams) (int, error) {
	where, args := buildWhere(params)
	sql := fmt.Sprintf("SELECT %s FROM opportunities %s ORDER BY posted_date DESC, notice_id",
		selectCols, where)

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("export query failed: %w", err)
	}
	defer rows.Close()

	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return 0, err
	}

	written := 0
	for rows.Next() {
		o, err := scanOpportunity(rows.Scan)
		if err != nil {
			return written, fmt.Errorf("scan failed: %w", err)
		}
		record := []string{
			o.NoticeID, o.Title, o.Description, o.Department, o.SubTier, o.Office,
			o.PostedDate, o.ResponseDate, o.ArchiveDate, o.AwardDate,
			o.NoticeType, o.BaseType, o.ArchiveType,
			o.AwardNumber, o.AwardAmount, o.Awardee,
			o.PopCountryCode, o.PopCountryName, o.PopState, o.PopCity,
			o.AfricanCountry, o.SamURL, strconv.FormatBool(o.IsActive),
			o.DataCollectionDate.UTC().Format(time.RFC3339),
			o.LastUpdated.UTC().Format(time.RFC3339),
		}
		if err := cw.Write(record); err != nil {
			return written, err
		}
		written++
	}
	if err := rows.Err(); err != nil {
		return written, err
	}

	cw.Flush()
	return written, cw.Error()
}
