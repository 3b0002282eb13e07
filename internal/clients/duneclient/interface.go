package duneclient

import "context"

type DuneInterface interface {
	// GetLatestResult returns the most recent stored result set of a saved
	// query without triggering a fresh execution.
	GetLatestResult(ctx context.Context, queryID int64) ([]ResultRow, error)
	// RunQuery executes a saved query with the given parameters and waits
	// for the execution to finish.
	RunQuery(ctx context.Context, queryID int64, params map[string]string) ([]ResultRow, error)
}
