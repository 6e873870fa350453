package repository

import (
	"database/sql"
	"encoding/json"
	"time"
)

// Timestamps are stored as RFC3339 text in UTC so they sort as strings.
const timestampLayout = time.RFC3339

// parseStoredTime parses a nullable timestamp column. NULL, empty and
// unparsable values all read as nil.
func parseStoredTime(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t, err := time.Parse(timestampLayout, s.String)
	if err != nil {
		return nil
	}
	return &t
}

// storedTime returns nil (SQL NULL) for a nil or zero time.
func storedTime(t *time.Time) any {
	if t == nil || t.IsZero() {
		return nil
	}
	return t.UTC().Format(timestampLayout)
}

func nowStored() string {
	return time.Now().UTC().Format(timestampLayout)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// encodeCorrectness stores per-question correctness as a JSON object.
// A nil map, meaning the server did not report it, stays NULL.
func encodeCorrectness(m map[string]bool) (any, error) {
	if m == nil {
		return nil, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func decodeCorrectness(s sql.NullString) (map[string]bool, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	var m map[string]bool
	if err := json.Unmarshal([]byte(s.String), &m); err != nil {
		return nil, err
	}
	return m, nil
}
