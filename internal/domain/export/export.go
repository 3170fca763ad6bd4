// Package export turns record collections into downloadable payloads.
package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/okian/devhistory/internal/domain/record"
)

// Format is a supported serialization.
type Format string

// Supported formats.
const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// Media types attached to payloads.
const (
	MediaTypeCSV  = "text/csv"
	MediaTypeJSON = "application/json"
)

// Default CSV settings.
const (
	DefaultSourceALabel = "Source-A"
	DefaultSourceBLabel = "Source-B"
	DefaultDateLayout   = "1/2/2006"

	achievementSeparator = "; "
)

// Formats lists the supported formats.
func Formats() []Format {
	return []Format{FormatCSV, FormatJSON}
}

// ParseFormat parses a wire value, case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatJSON:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
	}
}

// MediaType returns the content type for f.
func (f Format) MediaType() string {
	if f == FormatCSV {
		return MediaTypeCSV
	}
	return MediaTypeJSON
}

// Payload is a serialized collection tagged with how to deliver it.
type Payload struct {
	Data      []byte
	MediaType string
	Extension string
}

// Serializer encodes records. The zero value is not usable; call New.
type Serializer struct {
	labelA string
	labelB string
	layout string
	loc    *time.Location
	quoted bool
}

// Option configures a Serializer.
type Option func(*Serializer)

// WithSourceLabels names the two score sources in CSV headers.
func WithSourceLabels(a, b string) Option {
	return func(s *Serializer) {
		if a != "" {
			s.labelA = a
		}
		if b != "" {
			s.labelB = b
		}
	}
}

// WithDateLayout sets the Go time layout of the CSV Date column.
func WithDateLayout(layout string) Option {
	return func(s *Serializer) {
		if layout != "" {
			s.layout = layout
		}
	}
}

// WithLocation sets the zone CSV dates are rendered in.
func WithLocation(loc *time.Location) Option {
	return func(s *Serializer) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithQuotedFields switches CSV output to RFC 4180 quoting. The default
// keeps the historical unescaped join, so achievement labels containing
// commas shift columns for strict parsers.
func WithQuotedFields(quoted bool) Option {
	return func(s *Serializer) {
		s.quoted = quoted
	}
}

// New creates a Serializer.
func New(opts ...Option) *Serializer {
	s := &Serializer{
		labelA: DefaultSourceALabel,
		labelB: DefaultSourceBLabel,
		layout: DefaultDateLayout,
		loc:    time.UTC,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Serialize encodes records in the requested format. Records are written in
// the order given.
func (s *Serializer) Serialize(records []record.AnalysisRecord, format Format) (Payload, error) {
	var (
		data []byte
		err  error
	)
	switch format {
	case FormatCSV:
		data, err = s.csv(records)
	case FormatJSON:
		data, err = encodeJSON(records)
	default:
		return Payload{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return Payload{}, fmt.Errorf("serialize %s: %w", format, err)
	}
	return Payload{Data: data, MediaType: format.MediaType(), Extension: string(format)}, nil
}

// Serialize encodes records with default settings.
func Serialize(records []record.AnalysisRecord, format Format) (Payload, error) {
	return New().Serialize(records, format)
}

// FileName builds a download name such as analysis-history-2026-10-19.csv.
func FileName(prefix string, format Format, now time.Time) string {
	if prefix == "" {
		prefix = "analysis-history"
	}
	return fmt.Sprintf("%s-%s.%s", prefix, now.Format(time.DateOnly), format)
}
