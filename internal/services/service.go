// Package services implements the analyses of the research pipeline: each
// service method fetches its dataset from Dune, computes the relevant
// statistics and writes the CSV and chart artifacts.
package services

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/MinterGMT/restaking-research-visuals/internal/clients/duneclient"
	"github.com/MinterGMT/restaking-research-visuals/internal/config"
	"github.com/MinterGMT/restaking-research-visuals/internal/db"
	"github.com/MinterGMT/restaking-research-visuals/internal/db/model"
)

// Service wires the Dune client, the database and the analysis
// configuration together.
type Service struct {
	cfg  *config.Config
	db   db.DbInterface
	dune duneclient.DuneInterface
}

func NewService(cfg *config.Config, db db.DbInterface, dune duneclient.DuneInterface) *Service {
	return &Service{
		cfg:  cfg,
		db:   db,
		dune: dune,
	}
}

// outputPath resolves an artifact path under the configured output root.
func (s *Service) outputPath(parts ...string) string {
	return filepath.Join(append([]string{s.cfg.Analysis.OutputDir}, parts...)...)
}

// fetchLatest pulls the latest stored result of a query and caches the rows
// as a snapshot. When the fetch fails, the last cached snapshot is served
// instead, so an API outage or an exhausted credit budget does not stop an
// analysis that has run before. Caching is best effort: a storage failure is
// logged but never fails the analysis.
func (s *Service) fetchLatest(ctx context.Context, queryID int64) ([]duneclient.ResultRow, error) {
	rows, err := s.dune.GetLatestResult(ctx, queryID)
	if err != nil {
		if cached, ok := s.cachedRows(ctx, queryID, nil); ok {
			log.Ctx(ctx).Warn().Err(err).
				Int64("query_id", queryID).
				Msg("fetch failed, serving cached snapshot")
			return cached, nil
		}
		return nil, fmt.Errorf("failed to fetch latest result of query %d: %w", queryID, err)
	}

	s.cacheSnapshot(ctx, queryID, nil, rows)
	return rows, nil
}

// runQuery executes a query with parameters, waits for completion and caches
// the rows. Falls back to the cached snapshot of the same query and
// parameters when the execution fails.
func (s *Service) runQuery(ctx context.Context, queryID int64, params map[string]string) ([]duneclient.ResultRow, error) {
	rows, err := s.dune.RunQuery(ctx, queryID, params)
	if err != nil {
		if cached, ok := s.cachedRows(ctx, queryID, params); ok {
			log.Ctx(ctx).Warn().Err(err).
				Int64("query_id", queryID).
				Msg("query run failed, serving cached snapshot")
			return cached, nil
		}
		return nil, fmt.Errorf("failed to run query %d: %w", queryID, err)
	}

	s.cacheSnapshot(ctx, queryID, params, rows)
	return rows, nil
}

// cachedRows loads the last cached result set of a query, if any.
func (s *Service) cachedRows(ctx context.Context, queryID int64, params map[string]string) ([]duneclient.ResultRow, bool) {
	snapshot, err := s.db.GetQuerySnapshot(ctx, queryID, model.HashParams(params))
	if err != nil {
		return nil, false
	}

	rows := make([]duneclient.ResultRow, len(snapshot.Rows))
	for i, raw := range snapshot.Rows {
		rows[i] = raw
	}
	return rows, true
}

func (s *Service) cacheSnapshot(ctx context.Context, queryID int64, params map[string]string, rows []duneclient.ResultRow) {
	raw := make([]map[string]any, len(rows))
	for i, row := range rows {
		raw[i] = row
	}

	hash := model.HashParams(params)
	snapshot := &model.QuerySnapshotDocument{
		ID:         model.SnapshotID(queryID, hash),
		QueryID:    queryID,
		ParamsHash: hash,
		Rows:       raw,
	}
	if err := s.db.SaveQuerySnapshot(ctx, snapshot); err != nil {
		if db.IsDuplicateKeyError(err) {
			// A concurrent run lost the upsert race; its rows are as good.
			log.Ctx(ctx).Debug().
				Int64("query_id", queryID).
				Msg("snapshot already cached by a concurrent run")
			return
		}
		log.Ctx(ctx).Warn().Err(err).
			Int64("query_id", queryID).
			Msg("failed to cache query snapshot")
	}
}
