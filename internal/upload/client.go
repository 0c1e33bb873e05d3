package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/claude/chalkline/internal/ingest"
)

// UserHeader carries the climber login for API-key uploads.
const UserHeader = "X-Chalkline-User"

// Client sends climbing logs to the Chalkline server over HTTP.
type Client struct {
	serverURL  string
	apiKey     string
	user       string
	httpClient *http.Client

	// backoff returns the wait before the given retry attempt (1-based).
	backoff func(attempt int) time.Duration
}

// NewClient creates a new HTTP client for the Chalkline server. When user is
// non-empty, uploads are attributed to that login.
func NewClient(serverURL, apiKey, user string) *Client {
	return &Client{
		serverURL: serverURL,
		apiKey:    apiKey,
		user:      user,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		backoff: func(attempt int) time.Duration {
			return time.Duration(1<<uint(attempt-1)) * time.Second
		},
	}
}

// UploadCSV POSTs a CSV export to the server's ingest endpoint.
// Retries up to 3 times with exponential backoff on failure. Client errors
// (4xx) are not retried.
func (c *Client) UploadCSV(ctx context.Context, name string, data []byte) (*ingest.Result, error) {
	var lastErr error
	for attempt := range 3 {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.backoff(attempt)):
			}
		}

		result, retry, err := c.post(ctx, data)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !retry {
			return nil, fmt.Errorf("uploading %s: %w", name, err)
		}
	}

	return nil, fmt.Errorf("uploading %s after 3 attempts: %w", name, lastErr)
}

func (c *Client) post(ctx context.Context, body []byte) (*ingest.Result, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.serverURL+"/api/v1/ingest/csv", bytes.NewReader(body))
	if err != nil {
		return nil, false, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "text/csv")
	req.Header.Set("X-API-Key", c.apiKey)
	if c.user != "" {
		req.Header.Set(UserHeader, c.user)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, true, err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return nil, false, fmt.Errorf("ingest rejected (status %d): %s", resp.StatusCode, respBody)
	default:
		return nil, true, fmt.Errorf("ingest failed (status %d): %s", resp.StatusCode, respBody)
	}

	var result ingest.Result
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, false, fmt.Errorf("decoding ingest result: %w", err)
	}
	return &result, false, nil
}
