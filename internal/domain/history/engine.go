// Package history bundles the metrics, view and export operations over one
// user's analysis records.
package history

import (
	"time"

	"github.com/okian/devhistory/internal/domain/export"
	"github.com/okian/devhistory/internal/domain/query"
	"github.com/okian/devhistory/internal/domain/record"
	"github.com/okian/devhistory/internal/domain/summary"
)

// Engine is stateless after construction and safe for concurrent use. It
// never mutates the collections passed to it.
type Engine struct {
	calc       *summary.Calculator
	serializer *export.Serializer
	now        func() time.Time
}

// Option configures an Engine.
type Option func(*engineOptions)

type engineOptions struct {
	now        func() time.Time
	exportOpts []export.Option
}

// WithClock sets the time source for streaks and export file names.
func WithClock(now func() time.Time) Option {
	return func(o *engineOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// WithExportOptions configures the CSV/JSON serializer.
func WithExportOptions(opts ...export.Option) Option {
	return func(o *engineOptions) {
		o.exportOpts = append(o.exportOpts, opts...)
	}
}

// New creates an Engine.
func New(opts ...Option) *Engine {
	o := engineOptions{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return &Engine{
		calc:       summary.NewCalculator(summary.WithClock(o.now)),
		serializer: export.New(o.exportOpts...),
		now:        o.now,
	}
}

// Metrics summarizes records.
func (e *Engine) Metrics(records []record.AnalysisRecord) summary.Snapshot {
	return e.calc.Compute(records)
}

// View filters and sorts records for display.
func (e *Engine) View(records []record.AnalysisRecord, filter query.FilterSpec, sort query.SortSpec) ([]record.AnalysisRecord, error) {
	return query.Apply(records, filter, sort)
}

// Export serializes the view selected by filter and sort.
func (e *Engine) Export(records []record.AnalysisRecord, filter query.FilterSpec, sort query.SortSpec, format export.Format) (export.Payload, error) {
	if _, err := export.ParseFormat(string(format)); err != nil {
		return export.Payload{}, err
	}
	view, err := query.Apply(records, filter, sort)
	if err != nil {
		return export.Payload{}, err
	}
	return e.serializer.Serialize(view, format)
}

// FileName returns the download name for an export taken now.
func (e *Engine) FileName(prefix string, format export.Format) string {
	return export.FileName(prefix, format, e.now())
}

// Serializer exposes the configured serializer, e.g. for CSV headers.
func (e *Engine) Serializer() *export.Serializer {
	return e.serializer
}
