package duneclient

import (
	"context"
	"time"

	"github.com/MinterGMT/restaking-research-visuals/internal/observability/metrics"
)

type duneClientWithMetrics struct {
	dune DuneInterface
}

func NewDuneClientWithMetrics(dune DuneInterface) *duneClientWithMetrics {
	return &duneClientWithMetrics{dune: dune}
}

func (d *duneClientWithMetrics) GetLatestResult(ctx context.Context, queryID int64) ([]ResultRow, error) {
	return runDuneClientMethodWithMetrics("GetLatestResult", func() ([]ResultRow, error) {
		return d.dune.GetLatestResult(ctx, queryID)
	})
}

func (d *duneClientWithMetrics) RunQuery(ctx context.Context, queryID int64, params map[string]string) ([]ResultRow, error) {
	return runDuneClientMethodWithMetrics("RunQuery", func() ([]ResultRow, error) {
		return d.dune.RunQuery(ctx, queryID, params)
	})
}

func runDuneClientMethodWithMetrics[T any](method string, fn func() (T, error)) (T, error) {
	start := time.Now()
	result, err := fn()
	metrics.RecordDuneClientLatency(method, time.Since(start), err)
	return result, err
}
