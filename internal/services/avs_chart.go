package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/MinterGMT/restaking-research-visuals/internal/charts"
	"github.com/MinterGMT/restaking-research-visuals/internal/observability/metrics"
	"github.com/MinterGMT/restaking-research-visuals/internal/report"
)

const (
	avsChartName       = "avs_hhi_comparison.html"
	overallBaselineBar = "Overall LRT Market (Baseline)"
)

// RenderAVSChart renders the cross-market HHI comparison from previously
// computed summaries. Summaries come from the database when present, else
// from the CSV artifact of the last run, so the chart can be regenerated
// without spending API credits.
func (s *Service) RenderAVSChart(ctx context.Context) error {
	logger := log.Ctx(ctx)

	rows, err := s.loadAVSSummaries(ctx)
	if err != nil {
		return err
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].Summary.HHI < rows[j].Summary.HHI
	})

	markets := make([]string, 0, len(rows)+1)
	scores := make([]float64, 0, len(rows)+1)

	// The overall LRT market leads the chart as the context bar the AVS
	// scores are judged against.
	if baseline, ok := s.overallMarketBaseline(ctx); ok {
		markets = append(markets, overallBaselineBar)
		scores = append(scores, baseline)
	}
	for _, row := range rows {
		markets = append(markets, row.Group)
		scores = append(scores, row.Summary.HHI)
	}

	path := s.outputPath(avsOutputDir, avsChartName)
	if err := charts.HHIBarHTML(path, "Operator Concentration (HHI) Across AVS Markets", markets, scores); err != nil {
		metrics.RecordChartRenderError("avs_hhi")
		return fmt.Errorf("failed to render AVS comparison chart: %w", err)
	}

	logger.Info().Str("path", path).Int("markets", len(markets)).Msg("rendered AVS comparison chart")
	return nil
}

func (s *Service) loadAVSSummaries(ctx context.Context) ([]report.Row, error) {
	logger := log.Ctx(ctx)

	docs, err := s.db.ListConcentrationSummaries(ctx, ModuleAVSConcentration)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to list stored AVS summaries, falling back to CSV")
	} else if len(docs) > 0 {
		rows := make([]report.Row, len(docs))
		for i, doc := range docs {
			rows[i] = report.Row{Group: doc.Group, Summary: doc.ToSummary()}
		}
		return rows, nil
	}

	csvPath := s.outputPath(avsOutputDir, avsCSVName)
	rows, err := report.ReadAVSSummaryCSV(csvPath)
	if err != nil {
		return nil, fmt.Errorf("no AVS summaries available, run the concentration analysis first: %w", err)
	}
	return rows, nil
}

// overallMarketBaseline resolves the overall-market HHI: the stored
// operator-analysis summary when one exists, else the configured fallback.
func (s *Service) overallMarketBaseline(ctx context.Context) (float64, bool) {
	doc, err := s.db.GetConcentrationSummary(ctx, ModuleOperatorConcentration, overallMarketGroup)
	if err == nil {
		return doc.HHI, true
	}

	if s.cfg.Analysis.OverallMarketHHI > 0 {
		return s.cfg.Analysis.OverallMarketHHI, true
	}

	log.Ctx(ctx).Warn().Err(err).Msg("no overall market baseline available, omitting baseline bar")
	return 0, false
}
