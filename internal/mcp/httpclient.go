package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/claude/chalkline/internal/dashboard"
	"github.com/claude/chalkline/internal/metrics"
	"github.com/claude/chalkline/internal/models"
	"github.com/claude/chalkline/internal/storage"
)

// HTTPClient implements DataSource by calling the Chalkline REST API.
// Used for remote MCP mode where the binary runs locally (stdio) but
// data lives on the remote server (accessed over Tailscale). The server
// resolves the user from the tailnet identity, so user IDs are ignored.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

// Compile-time check: HTTPClient satisfies DataSource.
var _ DataSource = (*HTTPClient)(nil)

// NewHTTPClient creates an HTTPClient targeting the given base URL.
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// bucketToAgg maps MCP bucket values to REST API agg parameter values.
func bucketToAgg(bucket string) string {
	switch bucket {
	case "month", "1 month":
		return "monthly"
	default:
		return "weekly"
	}
}

func (c *HTTPClient) get(ctx context.Context, path string, params url.Values, out any) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("httpclient: create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("httpclient: %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("httpclient: read body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("httpclient: %s returned %d: %s", path, resp.StatusCode, body)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("httpclient: decode %s: %w", path, err)
	}
	return nil
}

func timeParams(start, end time.Time) url.Values {
	v := url.Values{}
	v.Set("start", start.Format(time.RFC3339))
	v.Set("end", end.Format(time.RFC3339))
	return v
}

func (c *HTTPClient) Compute(ctx context.Context, _ int) (metrics.Bundle, error) {
	var bundle metrics.Bundle
	err := c.get(ctx, "/api/v1/dashboard", nil, &bundle)
	return bundle, err
}

func (c *HTTPClient) History(ctx context.Context, start, end time.Time, _ int, limit int) ([]models.ScoreSnapshotRow, error) {
	params := timeParams(start, end)
	params.Set("limit", strconv.Itoa(limit))

	var rows []models.ScoreSnapshotRow
	if err := c.get(ctx, "/api/v1/dashboard/history", params, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (c *HTTPClient) WeeklySummary(ctx context.Context, _ int, weeks int) ([]dashboard.WeekSummary, error) {
	params := url.Values{}
	params.Set("weeks", strconv.Itoa(weeks))

	var summary []dashboard.WeekSummary
	if err := c.get(ctx, "/api/v1/dashboard/weekly", params, &summary); err != nil {
		return nil, err
	}
	return summary, nil
}

func (c *HTTPClient) ListSessions(ctx context.Context, start, end time.Time, _ int, limit int) ([]storage.SessionInfo, error) {
	params := timeParams(start, end)
	params.Set("limit", strconv.Itoa(limit))

	var sessions []storage.SessionInfo
	if err := c.get(ctx, "/api/v1/sessions", params, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

func (c *HTTPClient) GetTrainingSummary(ctx context.Context, start, end time.Time, bucket string, _ int) ([]storage.TrainingSummaryPeriod, error) {
	params := timeParams(start, end)
	params.Set("agg", bucketToAgg(bucket))

	var periods []storage.TrainingSummaryPeriod
	if err := c.get(ctx, "/api/v1/training/summary", params, &periods); err != nil {
		return nil, err
	}
	return periods, nil
}

func (c *HTTPClient) GetTrainingIntensity(ctx context.Context, start, end time.Time, _ int, angleFilter string) (*storage.TrainingIntensityResult, error) {
	params := timeParams(start, end)
	if angleFilter != "" {
		params.Set("angle", angleFilter)
	}

	var result storage.TrainingIntensityResult
	if err := c.get(ctx, "/api/v1/training/intensity", params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
