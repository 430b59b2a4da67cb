// Package healthcheck polls an HTTP health endpoint until it reports
// healthy or the attempt budget runs out. This is the deploy verification
// step: fixed interval, fixed attempt count, no backoff.
package healthcheck

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Result records the outcome of a polling run.
type Result struct {
	Healthy    bool
	Attempts   int
	LastStatus int
	LastBody   string
	Elapsed    time.Duration
}

// Poller polls a health URL.
type Poller struct {
	Client      *http.Client
	URL         string
	Interval    time.Duration
	MaxAttempts int
}

// healthBody is the expected response shape of the /health endpoints the
// daemon serves and the deployed application is asked to serve.
type healthBody struct {
	Status string `json:"status"`
}

// Run polls until the endpoint is healthy, the budget is exhausted, or
// the context is canceled. An unhealthy run returns an error alongside
// the result so callers can report the attempt count.
func (p *Poller) Run(ctx context.Context) (Result, error) {
	client := p.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	interval := p.Interval
	if interval <= 0 {
		interval = 15 * time.Second
	}
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	start := time.Now()
	result := Result{}
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result.Attempts = attempt

		healthy, status, body, err := check(ctx, client, p.URL)
		result.LastStatus = status
		result.LastBody = body
		lastErr = err
		if healthy {
			result.Healthy = true
			result.Elapsed = time.Since(start)
			return result, nil
		}

		if attempt == maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			result.Elapsed = time.Since(start)
			return result, ctx.Err()
		case <-time.After(interval):
		}
	}

	result.Elapsed = time.Since(start)
	if lastErr != nil {
		return result, fmt.Errorf("health check failed after %d attempts: %w", result.Attempts, lastErr)
	}
	return result, fmt.Errorf("health check failed after %d attempts (last status %d)", result.Attempts, result.LastStatus)
}

// check performs a single probe. Healthy means a 2xx response whose body,
// when it is JSON with a status field, does not report a failure state.
func check(ctx context.Context, client *http.Client, url string) (bool, int, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, 0, "", fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return false, 0, "", err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return false, resp.StatusCode, string(body), nil
	}

	var parsed healthBody
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Status != "" {
		switch parsed.Status {
		case "ok", "healthy", "up":
			return true, resp.StatusCode, string(body), nil
		default:
			return false, resp.StatusCode, string(body), nil
		}
	}
	return true, resp.StatusCode, string(body), nil
}
