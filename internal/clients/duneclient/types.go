package duneclient

import (
	"strconv"
	"strings"
	"time"
)

// ResultRow is one row of a Dune result set, keyed by column name. Cell
// values arrive as whatever JSON type the query produced: numbers, numeric
// strings (often with $ and thousands separators), timestamps or nulls.
type ResultRow map[string]any

// Execution states returned by the Dune API.
const (
	StateCompleted = "QUERY_STATE_COMPLETED"
	StateExecuting = "QUERY_STATE_EXECUTING"
	StatePending   = "QUERY_STATE_PENDING"
	StateFailed    = "QUERY_STATE_FAILED"
	StateCancelled = "QUERY_STATE_CANCELLED"
	StateExpired   = "QUERY_STATE_EXPIRED"
)

type resultResponse struct {
	ExecutionID string `json:"execution_id"`
	State       string `json:"state"`
	Result      struct {
		Rows []ResultRow `json:"rows"`
	} `json:"result"`
}

type executeRequest struct {
	QueryParameters map[string]string `json:"query_parameters,omitempty"`
	// Performance selects the execution engine tier ("medium"/"large").
	Performance string `json:"performance,omitempty"`
}

type executeResponse struct {
	ExecutionID string `json:"execution_id"`
	State       string `json:"state"`
}

type statusResponse struct {
	ExecutionID string `json:"execution_id"`
	State       string `json:"state"`
}

func isTerminalState(state string) bool {
	switch state {
	case StateCompleted, StateFailed, StateCancelled, StateExpired:
		return true
	}
	return false
}

// Float reads the named cell as a float64, coercing numeric strings the way
// the result sets format them ("$1,234.56" parses as 1234.56). The second
// return is false for nulls, missing columns and unparseable cells.
func (r ResultRow) Float(column string) (float64, bool) {
	switch v := r[column].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		cleaned := strings.TrimSpace(v)
		cleaned = strings.TrimPrefix(cleaned, "$")
		cleaned = strings.ReplaceAll(cleaned, ",", "")
		f, err := strconv.ParseFloat(cleaned, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// String reads the named cell as a string; non-string cells and nulls read
// as the empty string.
func (r ResultRow) String(column string) string {
	s, _ := r[column].(string)
	return s
}

// Dune serializes timestamps in a handful of layouts depending on the query
// engine; all observed ones are covered here.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05.000 UTC",
	"2006-01-02 15:04:05 UTC",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Time reads the named cell as a timestamp, trying the known layouts.
func (r ResultRow) Time(column string) (time.Time, bool) {
	s := r.String(column)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// NumericColumn extracts the named column across all rows as float64 values.
// Cells that fail to coerce are skipped, matching how the analyses treat
// missing or malformed amounts: no contribution, no error.
func NumericColumn(rows []ResultRow, column string) []float64 {
	values := make([]float64, 0, len(rows))
	for _, row := range rows {
		if v, ok := row.Float(column); ok {
			values = append(values, v)
		}
	}
	return values
}
