package db

import (
	"context"

	"github.com/MinterGMT/restaking-research-visuals/internal/db/model"
)

type DbInterface interface {
	Ping(ctx context.Context) error
	SaveQuerySnapshot(ctx context.Context, snapshot *model.QuerySnapshotDocument) error
	GetQuerySnapshot(ctx context.Context, queryID int64, paramsHash string) (*model.QuerySnapshotDocument, error)
	UpsertConcentrationSummary(ctx context.Context, doc *model.ConcentrationSummaryDocument) error
	GetConcentrationSummary(ctx context.Context, module, group string) (*model.ConcentrationSummaryDocument, error)
	ListConcentrationSummaries(ctx context.Context, module string) ([]*model.ConcentrationSummaryDocument, error)
}
