// Package samapi implements the SAM.gov opportunities search client:
// offset pagination with a hard request cap, fixed inter-page pacing,
// and degrade-to-partial handling for auth, rate-limit, and transport
// failures.
package samapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

const dateLayout = "01/02/2006" // query parameter format required upstream

var (
	// ErrMissingAPIKey is returned before any network call when no
	// credential is configured.
	ErrMissingAPIKey = errors.New("samapi: SAM_API_KEY is not set")

	// ErrUnauthorized is returned when the upstream rejects the
	// credential (HTTP 401). Accumulated pages are still returned.
	ErrUnauthorized = errors.New("samapi: unauthorized (check API key)")
)

// UpstreamError is a non-200, non-401, non-429 response. The fetch stops
// and returns whatever was accumulated before it.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("samapi: upstream returned %d: %s", e.StatusCode, e.Body)
}

// Query describes one fetch window.
type Query struct {
	// PostedFrom/PostedTo bound the window; both zero means the trailing
	// 30 days.
	PostedFrom time.Time
	PostedTo   time.Time
	// Limit is the page size. Zero means the client default.
	Limit int
	// IncludeExpired asks the upstream for archived/expired notices too,
	// used by the historical chunker.
	IncludeExpired bool
}

// Config tunes a Client. Zero values fall back to production defaults.
type Config struct {
	BaseURL     string
	APIKey      string
	Timeout     time.Duration
	PageDelay   time.Duration // enforced between successive page requests
	Backoff     time.Duration // sleep after a 429 before retrying the same offset
	MaxRequests int           // hard cap on requests per Fetch call
	PageSize    int           // default page size when Query.Limit is zero
}

// Client is a rate-limited SAM.gov search client. Safe for concurrent
// use, though the pipeline's run lock serializes fetches in practice.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	apiKey      string
	pacer       *rate.Limiter
	backoff     time.Duration
	maxRequests int
	pageSize    int
}

func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.sam.gov/opportunities/v2/search"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.PageDelay == 0 {
		cfg.PageDelay = time.Second
	}
	if cfg.Backoff == 0 {
		cfg.Backoff = 30 * time.Second
	}
	if cfg.MaxRequests == 0 {
		cfg.MaxRequests = 10
	}
	if cfg.PageSize == 0 {
		cfg.PageSize = 1000
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &Client{
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		// Burst of 1: the first page goes out immediately, every later
		// page waits out the full delay.
		pacer:       rate.NewLimiter(rate.Every(cfg.PageDelay), 1),
		backoff:     cfg.Backoff,
		maxRequests: cfg.MaxRequests,
		pageSize:    cfg.PageSize,
	}
}

// ValidateKey issues a single 1-item probe so a bad credential is
// reported before a long run starts. A transient upstream problem is not
// treated as a key failure.
func (c *Client) ValidateKey(ctx context.Context) error {
	if c.apiKey == "" {
		return ErrMissingAPIKey
	}

	now := time.Now()
	params := c.queryParams(Query{PostedFrom: now, PostedTo: now, Limit: 1}, 0)
	status, _, err := c.page(ctx, params)
	if err != nil {
		log.Printf("[SAM] key validation request failed, continuing anyway: %v", err)
		return nil
	}
	if status == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	if status != http.StatusOK {
		log.Printf("[SAM] key validation returned status %d, continuing anyway", status)
	}
	return nil
}

// Fetch pages through the search endpoint for the given window and
// returns all raw notices it managed to collect. Pagination stops on a
// short page, an empty page, or the hard request cap. On failure the
// accumulated partial slice is returned alongside the terminal error;
// callers log and keep going.
func (c *Client) Fetch(ctx context.Context, q Query) ([]RawOpportunity, error) {
	if c.apiKey == "" {
		log.Printf("[SAM] no API key configured, skipping fetch")
		return nil, ErrMissingAPIKey
	}

	limit := q.Limit
	if limit <= 0 {
		limit = c.pageSize
	}

	var all []RawOpportunity
	offset := 0

	for request := 1; request <= c.maxRequests; request++ {
		if err := c.pacer.Wait(ctx); err != nil {
			return all, err
		}

		params := c.queryParams(q, offset)

		log.Printf("[SAM] request %d/%d offset=%d window=%s..%s",
			request, c.maxRequests, offset, params.Get("postedFrom"), params.Get("postedTo"))

		status, body, err := c.page(ctx, params)
		if err != nil {
			return all, fmt.Errorf("request %d failed: %w", request, err)
		}

		switch status {
		case http.StatusOK:
			// fall through to decode
		case http.StatusUnauthorized:
			return all, ErrUnauthorized
		case http.StatusTooManyRequests:
			// Retry the same offset after backing off. The retry still
			// consumes a request slot so a permanently throttled
			// endpoint cannot loop forever.
			log.Printf("[SAM] rate limited, backing off %s", c.backoff)
			select {
			case <-ctx.Done():
				return all, ctx.Err()
			case <-time.After(c.backoff):
			}
			continue
		default:
			return all, &UpstreamError{StatusCode: status, Body: truncateBody(body)}
		}

		var resp searchResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return all, fmt.Errorf("decoding page at offset %d: %w", offset, err)
		}

		if len(resp.OpportunitiesData) == 0 {
			break
		}
		all = append(all, resp.OpportunitiesData...)
		log.Printf("[SAM] got %d notices (total %d)", len(resp.OpportunitiesData), len(all))

		if len(resp.OpportunitiesData) < limit {
			break
		}
		offset += limit
	}

	return all, nil
}

func (c *Client) queryParams(q Query, offset int) url.Values {
	from, to := q.PostedFrom, q.PostedTo
	if from.IsZero() {
		from = time.Now().AddDate(0, 0, -30)
	}
	if to.IsZero() {
		to = time.Now()
	}

	limit := q.Limit
	if limit <= 0 {
		limit = c.pageSize
	}

	params := url.Values{}
	params.Set("api_key", c.apiKey)
	params.Set("postedFrom", from.Format(dateLayout))
	params.Set("postedTo", to.Format(dateLayout))
	params.Set("limit", strconv.Itoa(limit))
	params.Set("offset", strconv.Itoa(offset))
	if q.IncludeExpired {
		params.Set("latest", "false")
	}
	return params
}

func (c *Client) page(ctx context.Context, params url.Values) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return 0, nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "sam-africa-monitor/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("reading response body: %w", err)
	}
	return resp.StatusCode, body, nil
}

func truncateBody(body []byte) string {
	const maxLen = 200
	if len(body) > maxLen {
		return string(body[:maxLen])
	}
	return string(body)
}
