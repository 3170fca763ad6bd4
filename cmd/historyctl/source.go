package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/okian/devhistory/internal/domain/export"
	"github.com/okian/devhistory/internal/domain/record"
)

const (
	defaultFetchTimeout = 10 * time.Second
	maxExportBytes      = 64 << 20
)

// ErrNoSource is returned when neither --file nor --url/--user is set.
var ErrNoSource = errors.New("one of --file or --url with --user is required")

// source locates the history a command operates on.
type source struct {
	file    string
	url     string
	user    string
	timeout time.Duration
}

// load reads the history from a file or fetches the service's JSON export.
func (s *source) load(ctx context.Context) ([]record.AnalysisRecord, error) {
	switch {
	case s.file != "" && s.url != "":
		return nil, fmt.Errorf("%w, not both", ErrNoSource)
	case s.file != "":
		data, err := os.ReadFile(s.file)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", s.file, err)
		}
		return export.DecodeJSON(data)
	case s.url != "" && s.user != "":
		return s.fetch(ctx)
	default:
		return nil, ErrNoSource
	}
}

func (s *source) fetch(ctx context.Context) ([]record.AnalysisRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	endpoint := strings.TrimRight(s.url, "/") + "/users/" + url.PathEscape(s.user) + "/export?format=" + string(export.FormatJSON)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", endpoint, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxExportBytes))
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", endpoint, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d: %s", endpoint, resp.StatusCode, strings.TrimSpace(string(data)))
	}
	return export.DecodeJSON(data)
}
