package export

import (
	"bytes"
	"encoding/csv"
	"strconv"
	"strings"

	"github.com/okian/devhistory/internal/domain/record"
)

// Header returns the CSV column names.
func (s *Serializer) Header() []string {
	return []string{
		"ID",
		"Date",
		"Overall Score",
		s.labelA + " Score",
		s.labelB + " Score",
		"Status",
		s.labelA + " Handle",
		s.labelB + " Handle",
		"Duration(s)",
		"Achievements",
	}
}

func (s *Serializer) row(r *record.AnalysisRecord) []string {
	ids, _ := r.Handles()
	duration := ""
	if d, ok := r.Duration(); ok {
		duration = strconv.Itoa(d)
	}
	return []string{
		r.ID,
		r.CompletedAt.In(s.loc).Format(s.layout),
		strconv.Itoa(r.OverallScore),
		strconv.Itoa(r.SourceScoreA),
		strconv.Itoa(r.SourceScoreB),
		string(r.Status),
		ids.SourceA,
		ids.SourceB,
		duration,
		strings.Join(r.Achievements, achievementSeparator),
	}
}

func (s *Serializer) csv(records []record.AnalysisRecord) ([]byte, error) {
	if s.quoted {
		return s.quotedCSV(records)
	}
	var b strings.Builder
	b.WriteString(strings.Join(s.Header(), ","))
	b.WriteByte('\n')
	for i := range records {
		b.WriteString(strings.Join(s.row(&records[i]), ","))
		b.WriteByte('\n')
	}
	return []byte(b.String()), nil
}

func (s *Serializer) quotedCSV(records []record.AnalysisRecord) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(s.Header()); err != nil {
		return nil, err
	}
	for i := range records {
		if err := w.Write(s.row(&records[i])); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
