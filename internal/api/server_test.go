package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/africaops/sam-monitor/internal/ingest"
	"github.com/africaops/sam-monitor/internal/models"
	"github.com/africaops/sam-monitor/internal/samapi"
)

const testAdminSecret = "test-admin-secret"

func TestMain(m *testing.M) {
	// adminSecret resolves once per process.
	os.Setenv("ADMIN_SECRET", testAdminSecret)
	os.Exit(m.Run())
}

type stubStore struct{}

func (stubStore) UpsertAll(_ context.Context, opps []models.Opportunity) (int, error) {
	return len(opps), nil
}
func (stubStore) CountReal(context.Context) (int, error)               { return 1, nil }
func (stubStore) BeginRun(context.Context, string) (string, error)     { return "r1", nil }
func (stubStore) FinishRun(context.Context, string, string, ingest.RunStats) error {
	return nil
}

type stubFetcher struct{}

func (stubFetcher) Fetch(context.Context, samapi.Query) ([]samapi.RawOpportunity, error) {
	raw := samapi.RawOpportunity{NoticeID: "n1", Title: "Kenya road works", PostedDate: "2026-03-01"}
	raw.PlaceOfPerformance.Country.Code = "KEN"
	return []samapi.RawOpportunity{raw}, nil
}

func testServer() *Server {
	fetcher := stubFetcher{}
	filter := ingest.NewRelevanceFilter([]string{"KEN"}, map[string]string{"KEN": "Kenya"}, nil)
	norm := ingest.NewNormalizer(map[string]string{"KEN": "Kenya"}, "https://sam.gov/opp/", 1000)
	chunker := ingest.NewChunker(fetcher, 1000, time.Millisecond)
	pipeline := ingest.NewPipeline(stubStore{}, fetcher, chunker, filter, norm, 1, 1000)
	return NewServer(nil, nil, pipeline)
}

func TestHealth(t *testing.T) {
	s := testServer()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.Echo.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestAdminRejectsMissingSecret(t *testing.T) {
	s := testServer()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/refresh", nil)
	rec := httptest.NewRecorder()
	s.Echo.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminRejectsWrongSecret(t *testing.T) {
	s := testServer()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/refresh", nil)
	req.Header.Set("X-Admin-Secret", "wrong")
	rec := httptest.NewRecorder()
	s.Echo.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRefreshJobLifecycle(t *testing.T) {
	s := testServer()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/refresh", nil)
	req.Header.Set("Authorization", "Bearer "+testAdminSecret)
	rec := httptest.NewRecorder()
	s.Echo.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	var accepted struct {
		JobID string `json:"job_id"`
		Poll  string `json:"poll"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &accepted))
	require.Len(t, accepted.JobID, 8)
	require.Contains(t, accepted.Poll, accepted.JobID)

	require.Eventually(t, func() bool {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/job/"+accepted.JobID, nil)
		req.Header.Set("X-Admin-Secret", testAdminSecret)
		rec := httptest.NewRecorder()
		s.Echo.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			return false
		}
		var status struct {
			Status string `json:"status"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
			return false
		}
		return status.Status == "completed"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestJobStatusUnknownID(t *testing.T) {
	s := testServer()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/job/deadbeef", nil)
	req.Header.Set("X-Admin-Secret", testAdminSecret)
	rec := httptest.NewRecorder()
	s.Echo.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSecretsMatch(t *testing.T) {
	require.True(t, secretsMatch("s3cret", "s3cret"))
	require.False(t, secretsMatch("s3cret", "other"))
	require.False(t, secretsMatch("s3cre", "s3cret"))
	require.False(t, secretsMatch("", "s3cret"))
}

func TestSplitCSV(t *testing.T) {
	require.Nil(t, splitCSV(""))
	require.Equal(t, []string{"Kenya"}, splitCSV("Kenya"))
	require.Equal(t, []string{"Kenya", "Ghana"}, splitCSV(" Kenya , Ghana ,"))
}
