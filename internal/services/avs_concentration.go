package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/MinterGMT/restaking-research-visuals/internal/clients/duneclient"
	"github.com/MinterGMT/restaking-research-visuals/internal/concentration"
	"github.com/MinterGMT/restaking-research-visuals/internal/db/model"
	"github.com/MinterGMT/restaking-research-visuals/internal/observability/metrics"
	"github.com/MinterGMT/restaking-research-visuals/internal/report"
)

const (
	ModuleAVSConcentration = "avs_concentration"

	avsAddressParam = "avs_address"

	avsOutputDir = "module1.5_AVS_concentration"
	avsCSVName   = "avs_concentration_summary.csv"
)

// RunAVSConcentration measures operator concentration inside each configured
// AVS market by executing the parameterized master query once per market.
// Delegated USD is a proxy metric: the stake an operator carries overall, not
// the slice securing that particular AVS.
func (s *Service) RunAVSConcentration(ctx context.Context) error {
	return metrics.RecordAnalysisDuration(ModuleAVSConcentration, s.runAVSConcentration)(ctx)
}

func (s *Service) runAVSConcentration(ctx context.Context) error {
	markets := s.cfg.Analysis.Markets
	if len(markets) == 0 {
		return fmt.Errorf("no AVS markets configured")
	}

	names := make([]string, 0, len(markets))
	for name := range markets {
		names = append(names, name)
	}
	sort.Strings(names)

	logger := log.Ctx(ctx)
	var summaryRows []report.Row
	for i, name := range names {
		if i > 0 {
			// Spacing out executions keeps a free-tier API key under its
			// rate limit across a long market list.
			select {
			case <-time.After(s.cfg.Dune.Cooldown):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		row, err := s.analyzeAVSMarket(ctx, name, markets[name])
		if err != nil {
			// One broken market must not sink the whole comparison.
			logger.Error().Err(err).Str("market", name).Msg("skipping AVS market")
			continue
		}
		summaryRows = append(summaryRows, row)
	}

	if len(summaryRows) == 0 {
		return fmt.Errorf("all %d AVS markets failed", len(names))
	}

	csvPath := s.outputPath(avsOutputDir, avsCSVName)
	if err := report.WriteAVSSummaryCSV(csvPath, summaryRows); err != nil {
		return fmt.Errorf("failed to write AVS summary: %w", err)
	}

	report.LogSummaryTable(ctx, "AVS Market Concentration", summaryRows)
	return nil
}

func (s *Service) analyzeAVSMarket(ctx context.Context, name, address string) (report.Row, error) {
	logger := log.Ctx(ctx)
	logger.Info().Str("market", name).Str("address", address).Msg("analyzing AVS market")

	rows, err := s.runQuery(ctx, s.cfg.Analysis.AVSQueryID, map[string]string{avsAddressParam: address})
	if err != nil {
		return report.Row{}, err
	}

	// The master query returns one row per operator, so the delegated
	// amounts can be taken as a column without aggregating by name.
	stakes := duneclient.NumericColumn(rows, colDelegatedUSD)

	summary := concentration.Summarize(stakes)
	logger.Info().
		Str("market", name).
		Int("operators", summary.Entities).
		Float64("hhi", summary.HHI).
		Msg("analyzed AVS market")

	doc := model.FromSummary(ModuleAVSConcentration, name, summary)
	if err := s.db.UpsertConcentrationSummary(ctx, doc); err != nil {
		logger.Warn().Err(err).Str("market", name).Msg("failed to persist concentration summary")
	}

	return report.Row{Group: name, Summary: summary}, nil
}
