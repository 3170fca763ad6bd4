package export

import (
	"encoding/json"
	"fmt"

	"github.com/okian/devhistory/internal/domain/record"
)

func encodeJSON(records []record.AnalysisRecord) ([]byte, error) {
	if records == nil {
		records = []record.AnalysisRecord{}
	}
	return json.MarshalIndent(records, "", "  ")
}

// DecodeJSON parses a JSON export back into records.
func DecodeJSON(data []byte) ([]record.AnalysisRecord, error) {
	var out []record.AnalysisRecord
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode json export: %w", err)
	}
	if out == nil {
		out = []record.AnalysisRecord{}
	}
	return out, nil
}
