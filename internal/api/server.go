package api

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/africaops/sam-monitor/internal/db"
	"github.com/africaops/sam-monitor/internal/ingest"
	"github.com/africaops/sam-monitor/internal/models"
)

type Server struct {
	Store    *db.Store
	Pipeline *ingest.Pipeline
	Echo     *echo.Echo
	DB       *pgxpool.Pool

	// Background job tracking
	jobMu      sync.Mutex
	runningJob *backgroundJob
}

type backgroundJob struct {
	ID        string             `json:"id"`
	Kind      string             `json:"kind"`
	Status    string             `json:"status"` // running, completed, failed
	StartedAt time.Time          `json:"started_at"`
	EndedAt   time.Time          `json:"ended_at,omitempty"`
	Result    any                `json:"result,omitempty"`
	Error     string             `json:"error,omitempty"`
	Cancel    context.CancelFunc `json:"-"`
}

var (
	adminSecretOnce    sync.Once
	adminSecretRuntime string
	adminSecretErr     error
)

func NewServer(pool *pgxpool.Pool, store *db.Store, pipeline *ingest.Pipeline) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	// CORS: allow dashboard origins from env or default to localhost
	allowedOrigins := []string{"http://localhost:3000"}
	if extra := os.Getenv("CORS_ORIGINS"); extra != "" {
		for _, o := range strings.Split(extra, ",") {
			o = strings.TrimSpace(o)
			if o != "" {
				allowedOrigins = append(allowedOrigins, o)
			}
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: allowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, "X-Admin-Secret"},
	}))

	s := &Server{
		DB:       pool,
		Store:    store,
		Pipeline: pipeline,
		Echo:     e,
	}

	s.routes()
	return s
}

func (s *Server) routes() {
	s.Echo.GET("/health", s.handleHealth)

	api := s.Echo.Group("/api/v1")
	api.GET("/opportunities", s.handleListOpportunities)
	api.GET("/opportunities/:id", s.handleGetOpportunity)
	api.GET("/stats", s.handleGetStats)
	api.GET("/aggregations", s.handleGetAggregations)
	api.GET("/export.csv", s.handleExportCSV)
	api.GET("/runs", s.handleRecentRuns)

	admin := api.Group("")
	admin.Use(s.adminMiddleware)
	admin.POST("/admin/refresh", s.handleRefresh)
	admin.POST("/admin/resync", s.handleResync)
	admin.GET("/admin/job/:id", s.handleJobStatus)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok", "time": time.Now().UTC().Format(time.RFC3339)})
}

func listParams(c echo.Context) db.ListParams {
	params := db.ListParams{
		Query:      strings.TrimSpace(c.QueryParam("q")),
		Country:    splitCSV(c.QueryParam("country")),
		Department: splitCSV(c.QueryParam("department")),
		NoticeType: splitCSV(c.QueryParam("notice_type")),
		Status:     strings.TrimSpace(c.QueryParam("status")),
	}
	if raw := c.QueryParam("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			params.Limit = v
		}
	}
	if raw := c.QueryParam("offset"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			params.Offset = v
		}
	}
	return params
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Reads degrade to an empty result set rather than a 500 when the
// database query fails: the dashboard stays up.
func (s *Server) handleListOpportunities(c echo.Context) error {
	params := listParams(c)
	result, err := s.Store.ListOpportunities(c.Request().Context(), params)
	if err != nil {
		log.Printf("[API] list opportunities failed: %v", err)
		return c.JSON(http.StatusOK, &db.ListResult{
			Opportunities: []models.Opportunity{},
			Limit:         params.Limit,
			Offset:        params.Offset,
		})
	}
	return c.JSON(http.StatusOK, result)
}

func (s *Server) handleGetOpportunity(c echo.Context) error {
	opp, err := s.Store.GetOpportunity(c.Request().Context(), c.Param("id"))
	if err != nil {
		log.Printf("[API] get opportunity failed: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "lookup failed"})
	}
	if opp == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "opportunity not found"})
	}
	return c.JSON(http.StatusOK, opp)
}

func (s *Server) handleGetStats(c echo.Context) error {
	stats, err := s.Store.GetStats(c.Request().Context())
	if err != nil {
		log.Printf("[API] stats failed: %v", err)
		return c.JSON(http.StatusOK, map[string]interface{}{"total": 0, "active": 0, "historical": 0})
	}
	return c.JSON(http.StatusOK, stats)
}

func (s *Server) handleGetAggregations(c echo.Context) error {
	aggs, err := s.Store.GetAggregations(c.Request().Context(), listParams(c))
	if err != nil {
		log.Printf("[API] aggregations failed: %v", err)
		return c.JSON(http.StatusOK, &db.AggregationResult{})
	}
	return c.JSON(http.StatusOK, aggs)
}

func (s *Server) handleExportCSV(c echo.Context) error {
	c.Response().Header().Set(echo.HeaderContentType, "text/csv; charset=utf-8")
	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf(`attachment; filename="opportunities-%s.csv"`, time.Now().UTC().Format("2006-01-02")))
	c.Response().WriteHeader(http.StatusOK)

	if _, err := s.Store.ExportCSV(c.Request().Context(), c.Response(), listParams(c)); err != nil {
		// Headers are already sent, all we can do is log.
		log.Printf("[API] csv export failed mid-stream: %v", err)
	}
	return nil
}

func (s *Server) handleRecentRuns(c echo.Context) error {
	limit := 20
	if raw := c.QueryParam("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			limit = v
		}
	}
	runs, err := s.Store.RecentRuns(c.Request().Context(), limit)
	if err != nil {
		log.Printf("[API] recent runs failed: %v", err)
		return c.JSON(http.StatusOK, []db.RunRecord{})
	}
	return c.JSON(http.StatusOK, runs)
}

// handleRefresh triggers an incremental collection in the background.
func (s *Server) handleRefresh(c echo.Context) error {
	return s.startCollectionJob(c, "refresh", 30*time.Minute, s.Pipeline.RunIncremental)
}

// handleResync triggers the full multi-year rebuild. Long: the job
// timeout allows for hundreds of rate-limited windows.
func (s *Server) handleResync(c echo.Context) error {
	return s.startCollectionJob(c, "resync", 6*time.Hour, s.Pipeline.RunHistorical)
}

func (s *Server) startCollectionJob(c echo.Context, kind string, timeout time.Duration, run func(context.Context) (ingest.RunStats, error)) error {
	s.jobMu.Lock()
	if s.runningJob != nil && s.runningJob.Status == "running" {
		job := s.runningJob
		s.jobMu.Unlock()
		return c.JSON(http.StatusConflict, map[string]interface{}{
			"error":  "A collection job is already running",
			"job_id": job.ID,
		})
	}

	// context.WithoutCancel detaches from the HTTP lifecycle but keeps
	// trace values. Our own timeout bounds the job.
	jobCtx, jobCancel := context.WithTimeout(
		context.WithoutCancel(c.Request().Context()), timeout,
	)

	jobID := uuid.New().String()[:8]
	job := &backgroundJob{
		ID:        jobID,
		Kind:      kind,
		Status:    "running",
		StartedAt: time.Now(),
		Cancel:    jobCancel,
	}
	s.runningJob = job
	s.jobMu.Unlock()

	// Run in background goroutine, the handler returns 202 immediately.
	go func() {
		defer jobCancel()

		stats, err := run(jobCtx)
		s.jobMu.Lock()
		defer s.jobMu.Unlock()
		job.EndedAt = time.Now()
		if err != nil {
			job.Status = "failed"
			job.Error = err.Error()
			if errors.Is(err, ingest.ErrRunInProgress) {
				job.Error = "a scheduled run was already in progress"
			}
			log.Printf("[%s-job %s] failed: %v", kind, jobID, err)
			return
		}
		job.Status = "completed"
		job.Result = stats
		log.Printf("[%s-job %s] completed: fetched=%d saved=%d", kind, jobID, stats.Fetched, stats.Saved)
	}()

	return c.JSON(http.StatusAccepted, map[string]interface{}{
		"message": fmt.Sprintf("%s job started", kind),
		"job_id":  jobID,
		"poll":    fmt.Sprintf("/api/v1/admin/job/%s", jobID),
	})
}

func (s *Server) handleJobStatus(c echo.Context) error {
	queried := c.Param("id")
	s.jobMu.Lock()
	defer s.jobMu.Unlock()

	job := s.runningJob
	if job == nil || job.ID != queried {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "job not found"})
	}

	resp := map[string]interface{}{
		"id":         job.ID,
		"kind":       job.Kind,
		"status":     job.Status,
		"started_at": job.StartedAt,
	}
	if !job.EndedAt.IsZero() {
		resp["ended_at"] = job.EndedAt
		resp["duration"] = job.EndedAt.Sub(job.StartedAt).String()
	}
	if job.Result != nil {
		resp["result"] = job.Result
	}
	if job.Error != "" {
		resp["error"] = job.Error
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) Start(port string) error {
	return s.Echo.Start(":" + port)
}

func (s *Server) adminMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		secret, err := adminSecret()
		if err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Server admin configuration error"})
		}

		// Check X-Admin-Secret header or Bearer token
		authHeader := c.Request().Header.Get("Authorization")
		adminHeader := c.Request().Header.Get("X-Admin-Secret")

		if secretsMatch(adminHeader, secret) {
			return next(c)
		}
		if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
			if secretsMatch(authHeader[7:], secret) {
				return next(c)
			}
		}

		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized admin access"})
	}
}

func secretsMatch(candidate, secret string) bool {
	return subtle.ConstantTimeCompare([]byte(candidate), []byte(secret)) == 1
}

func adminSecret() (string, error) {
	adminSecretOnce.Do(func() {
		secret := strings.TrimSpace(os.Getenv("ADMIN_SECRET"))
		if secret != "" {
			adminSecretRuntime = secret
			return
		}

		buf := make([]byte, 48)
		if _, err := rand.Read(buf); err != nil {
			adminSecretErr = fmt.Errorf("failed to generate ADMIN_SECRET fallback: %w", err)
			return
		}

		adminSecretRuntime = base64.RawURLEncoding.EncodeToString(buf)
		log.Print("ADMIN_SECRET is not set; using ephemeral in-memory fallback secret")
	})

	if adminSecretErr != nil {
		return "", adminSecretErr
	}
	if adminSecretRuntime == "" {
		return "", fmt.Errorf("admin secret unavailable")
	}
	return adminSecretRuntime, nil
}
