package seeding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/devhistory/internal/domain/types"
	"github.com/okian/devhistory/pkg/logger"
)

// HTTPClient wraps http.Client with timeout
type HTTPClient struct {
	client  *http.Client
	baseURL string
}

// newHTTPClient creates a new HTTP client with timeout
func newHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// Get performs a GET request
func (c *HTTPClient) Get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return c.client.Do(req)
}

// Post performs a POST request with JSON body
func (c *HTTPClient) Post(ctx context.Context, path string, body any) (*http.Response, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.client.Do(req)
}

// getJSON fetches path and decodes a 200 response into v.
func (c *HTTPClient) getJSON(ctx context.Context, path string, v any) error {
	resp, err := c.Get(ctx, path)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("GET %s: status %d: %s", path, resp.StatusCode, bytes.TrimSpace(body))
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

// metrics fetches a user's snapshot.
func (c *HTTPClient) metrics(ctx context.Context, userID string) (types.MetricsResponse, error) {
	var m types.MetricsResponse
	err := c.getJSON(ctx, "/users/"+url.PathEscape(userID)+"/metrics", &m)
	return m, err
}

type submitResult int

const (
	resultAccepted submitResult = iota
	resultDuplicate
	resultFailed
)

// submitAll posts every request using a pool of workers.
func submitAll(ctx context.Context, config *Config, users []UserHistory, stats *Stats) {
	var total int
	for _, u := range users {
		total += len(u.Requests)
	}
	log := logger.Get()
	log.Info(ctx, "submitting records", logger.Int("records", total), logger.Int("workers", config.Workers))

	client := newHTTPClient(config.BaseURL, config.Timeout)
	var accepted, duplicate, failed atomic.Int64

	reqs := make(chan SubmitRequest, config.Workers*WorkerChannelMultiplier)
	var wg sync.WaitGroup
	for range config.Workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for req := range reqs {
				switch submitOne(ctx, client, req) {
				case resultAccepted:
					accepted.Add(1)
				case resultDuplicate:
					duplicate.Add(1)
				default:
					failed.Add(1)
				}
			}
		}()
	}

	go func() {
		defer close(reqs)
		for _, u := range users {
			for _, r := range u.Requests {
				select {
				case <-ctx.Done():
					return
				case reqs <- r:
				}
			}
		}
	}()
	wg.Wait()

	stats.Accepted = int(accepted.Load())
	stats.Duplicate = int(duplicate.Load())
	stats.Failed = int(failed.Load())
	stats.Submitted = stats.Accepted + stats.Duplicate + stats.Failed
	log.Info(ctx, "submission completed",
		logger.Int("accepted", stats.Accepted),
		logger.Int("duplicate", stats.Duplicate),
		logger.Int("failed", stats.Failed),
	)
}

// submitOne posts one request. 202 is a new record, 200 a redelivery.
func submitOne(ctx context.Context, client *HTTPClient, req SubmitRequest) submitResult { //nolint:gocritic // hugeParam: read-only
	resp, err := client.Post(ctx, "/analyses", req)
	if err != nil {
		logger.Get().Debug(ctx, "submit failed", logger.String("record", req.Record.ID), logger.Error(err))
		return resultFailed
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch resp.StatusCode {
	case http.StatusAccepted:
		return resultAccepted
	case http.StatusOK:
		return resultDuplicate
	default:
		logger.Get().Debug(ctx, "submit rejected",
			logger.String("record", req.Record.ID),
			logger.Int("status", resp.StatusCode),
		)
		return resultFailed
	}
}
