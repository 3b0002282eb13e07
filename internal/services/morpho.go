package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/MinterGMT/restaking-research-visuals/internal/charts"
	"github.com/MinterGMT/restaking-research-visuals/internal/observability/metrics"
)

const (
	ModuleMorphoLiquidations = "morpho_liquidations"

	morphoChartName = "figure_morpho_liquidations.png"
)

// The crisis week the liquidation figure covers. The scaffold keeps
// zero-liquidation days on the axis even when the query omits them.
var (
	morphoScaffoldFrom = time.Date(2024, time.April, 23, 0, 0, 0, 0, time.UTC)
	morphoScaffoldTo   = time.Date(2024, time.April, 26, 0, 0, 0, 0, time.UTC)
)

// RunMorphoLiquidations renders the daily ezETH liquidation totals on Morpho
// Blue during the crisis week as a standalone bar figure.
func (s *Service) RunMorphoLiquidations(ctx context.Context) error {
	return metrics.RecordAnalysisDuration(ModuleMorphoLiquidations, s.runMorphoLiquidations)(ctx)
}

func (s *Service) runMorphoLiquidations(ctx context.Context) error {
	rows, err := s.fetchLatest(ctx, s.cfg.Analysis.MorphoLiquidationsQueryID)
	if err != nil {
		return err
	}

	liquidations := alignDaily(seriesFrom(rows, colDay, colUSDLiquidated), morphoScaffoldFrom, morphoScaffoldTo)

	path := s.outputPath(depegOutputDir, morphoChartName)
	err = charts.DailyBarsPNG(path,
		"Daily ezETH Liquidations on Morpho Blue",
		"Date", "Value Liquidated (USD)",
		labels(liquidations, dayLabelLayout), values(liquidations))
	if err != nil {
		metrics.RecordChartRenderError("morpho_liquidations")
		return fmt.Errorf("failed to render liquidation chart: %w", err)
	}

	log.Ctx(ctx).Info().Str("path", path).Msg("rendered Morpho liquidation chart")
	return nil
}
