package db

import (
	"context"
	"time"

	"github.com/MinterGMT/restaking-research-visuals/internal/db/model"
	"github.com/MinterGMT/restaking-research-visuals/internal/observability/metrics"
)

type DbWithMetrics struct {
	db DbInterface
}

func NewDbWithMetrics(db DbInterface) *DbWithMetrics {
	return &DbWithMetrics{db: db}
}

func (d *DbWithMetrics) Ping(ctx context.Context) error {
	return d.db.Ping(ctx)
}

func (d *DbWithMetrics) SaveQuerySnapshot(ctx context.Context, snapshot *model.QuerySnapshotDocument) error {
	return d.run("SaveQuerySnapshot", func() error {
		return d.db.SaveQuerySnapshot(ctx, snapshot)
	})
}

func (d *DbWithMetrics) GetQuerySnapshot(ctx context.Context, queryID int64, paramsHash string) (result *model.QuerySnapshotDocument, err error) {
	//nolint:errcheck
	d.run("GetQuerySnapshot", func() error {
		result, err = d.db.GetQuerySnapshot(ctx, queryID, paramsHash)
		return err
	})

	return
}

func (d *DbWithMetrics) UpsertConcentrationSummary(ctx context.Context, doc *model.ConcentrationSummaryDocument) error {
	return d.run("UpsertConcentrationSummary", func() error {
		return d.db.UpsertConcentrationSummary(ctx, doc)
	})
}

func (d *DbWithMetrics) GetConcentrationSummary(ctx context.Context, module, group string) (result *model.ConcentrationSummaryDocument, err error) {
	//nolint:errcheck
	d.run("GetConcentrationSummary", func() error {
		result, err = d.db.GetConcentrationSummary(ctx, module, group)
		return err
	})

	return
}

func (d *DbWithMetrics) ListConcentrationSummaries(ctx context.Context, module string) (result []*model.ConcentrationSummaryDocument, err error) {
	//nolint:errcheck
	d.run("ListConcentrationSummaries", func() error {
		result, err = d.db.ListConcentrationSummaries(ctx, module)
		return err
	})

	return
}

func (d *DbWithMetrics) run(method string, fn func() error) error {
	start := time.Now()
	err := fn()
	metrics.RecordDbLatency(method, time.Since(start), err)
	return err
}
