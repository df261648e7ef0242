package llm

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/joseph-ayodele/network-extractor/internal/common"
	"github.com/joseph-ayodele/network-extractor/internal/entity"
)

// ParseRecords turns raw engine text into records. Anything that cannot be
// read as a record array is a common.ErrParse; an empty array is not an error.
func ParseRecords(text string, logger *slog.Logger) ([]entity.Record, error) {
	if logger == nil {
		logger = slog.Default()
	}

	v, err := ExtractJSON(text)
	if err != nil {
		logger.Debug("llm.parse.no_json", "error", err, "preview", truncate(text, 200))
		return nil, common.ParseError("engine response is not valid JSON", err)
	}
	items, err := AsRecordArray(v)
	if err != nil {
		return nil, common.ParseError("engine response has no record array", err)
	}

	normalized := make([]any, 0, len(items))
	var notes []string
	skipped := 0
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			skipped++
			continue
		}
		rec, n := NormalizeRecord(obj)
		notes = append(notes, n...)
		normalized = append(normalized, rec)
	}
	if len(items) > 0 && len(normalized) == 0 {
		return nil, common.ParseError("engine response array holds no objects", fmt.Errorf("%d non-object items", skipped))
	}
	if len(notes) > 0 || skipped > 0 {
		logger.Debug("llm.parse.normalized", "changes", uniq(notes), "skipped_items", skipped)
	}

	if err := ValidateRecords(normalized); err != nil {
		logger.Warn("llm.parse.schema_validation_failed", "error", err)
		return nil, common.ParseError("engine records do not match schema", err)
	}

	b, err := json.Marshal(normalized)
	if err != nil {
		return nil, common.ParseError("re-encode records", err)
	}
	records := make([]entity.Record, 0, len(normalized))
	if err := json.Unmarshal(b, &records); err != nil {
		return nil, common.ParseError("decode records", err)
	}
	return records, nil
}

func uniq(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
