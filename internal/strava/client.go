package strava

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// DefaultBaseURL is the public API root
const DefaultBaseURL = "https://www.strava.com/api/v3"

// ErrRateLimited is matched by every *RateLimitError
var ErrRateLimited = errors.New("strava: rate limited")

// RateLimitError reports a 429. RetryAt is zero when the reset header is
// missing or unparsable.
type RateLimitError struct {
	RetryAt time.Time
}

func (e *RateLimitError) Error() string {
	if e.RetryAt.IsZero() {
		return ErrRateLimited.Error()
	}
	return fmt.Sprintf("%s until %s", ErrRateLimited, e.RetryAt.UTC().Format(time.RFC3339))
}

func (e *RateLimitError) Unwrap() error { return ErrRateLimited }

// APIError is any other non-2xx response
type APIError struct {
	Op     string
	Status int
	Body   string // first 200 bytes
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s %d: %s", e.Op, e.Status, e.Body)
}

// Client talks to the activity endpoints with a caller-supplied token
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client. An empty baseURL selects DefaultBaseURL and a
// nil httpClient a client with a 15s timeout.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

// GetActivity fetches one activity
func (c *Client) GetActivity(ctx context.Context, token string, id int64) (*ActivityDetail, error) {
	url := fmt.Sprintf("%s/activities/%d?include_all_efforts=false", c.baseURL, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch activity %d: %w", id, err)
	}
	defer resp.Body.Close()

	if err := checkResponse("detail", resp); err != nil {
		return nil, err
	}

	var detail ActivityDetail
	if err := json.NewDecoder(resp.Body).Decode(&detail); err != nil {
		return nil, fmt.Errorf("failed to decode activity %d: %w", id, err)
	}
	return &detail, nil
}

// UpdateDescription replaces the activity description
func (c *Client) UpdateDescription(ctx context.Context, token string, id int64, description string) error {
	body, err := json.Marshal(map[string]string{"description": description})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/activities/%d", c.baseURL, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to update activity %d: %w", id, err)
	}
	defer resp.Body.Close()

	if err := checkResponse("update", resp); err != nil {
		return err
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

func checkResponse(op string, resp *http.Response) error {
	if resp.StatusCode == http.StatusTooManyRequests {
		return &RateLimitError{RetryAt: parseRateLimitReset(resp.Header)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		return &APIError{Op: op, Status: resp.StatusCode, Body: string(text)}
	}
	return nil
}

// parseRateLimitReset reads the last epoch-seconds value of X-RateLimit-Reset
func parseRateLimitReset(h http.Header) time.Time {
	header := h.Get("X-RateLimit-Reset")
	if header == "" {
		return time.Time{}
	}
	parts := strings.Split(header, ",")
	epoch, err := strconv.ParseInt(strings.TrimSpace(parts[len(parts)-1]), 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(epoch, 0)
}
