package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/MinterGMT/restaking-research-visuals/internal/charts"
	"github.com/MinterGMT/restaking-research-visuals/internal/clients/duneclient"
	"github.com/MinterGMT/restaking-research-visuals/internal/observability/metrics"
)

const (
	ModuleDexVolume = "dex_volume"

	dexChartName = "figure_market_wide_dex_volume.png"

	colProject        = "project"
	colTotalVolumeUSD = "total_volume_usd"
)

// dexStackOrder fixes the stacking of known venues, biggest at the bottom.
// Projects the query returns beyond these are appended alphabetically.
var dexStackOrder = []string{"balancer", "uniswap", "curve", "0x-API", "1inch-LOP"}

// RunDexVolume renders the daily per-DEX trading volume of the crisis week
// as a stacked bar chart, the context figure for the Balancer-centric
// de-peg narrative.
func (s *Service) RunDexVolume(ctx context.Context) error {
	return metrics.RecordAnalysisDuration(ModuleDexVolume, s.runDexVolume)(ctx)
}

func (s *Service) runDexVolume(ctx context.Context) error {
	rows, err := s.fetchLatest(ctx, s.cfg.Analysis.DexVolumeQueryID)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return fmt.Errorf("DEX volume query %d returned no rows", s.cfg.Analysis.DexVolumeQueryID)
	}

	days, series := pivotByProject(rows)
	if len(series) == 0 {
		return fmt.Errorf("DEX volume rows carry no parseable volumes")
	}

	path := s.outputPath(depegOutputDir, dexChartName)
	err = charts.StackedBarsPNG(path,
		"Daily ezETH Trading Volume by DEX Surrounding the Crisis Period",
		"Date", "Trading Volume (USD)", days, series)
	if err != nil {
		metrics.RecordChartRenderError("dex_volume")
		return fmt.Errorf("failed to render DEX volume chart: %w", err)
	}

	log.Ctx(ctx).Info().Str("path", path).Int("projects", len(series)).Msg("rendered DEX volume chart")
	return nil
}

// pivotByProject turns (day, project, volume) rows into one aligned series
// per project over the union of days. Missing day/project combinations
// become zero so every series spans the full axis.
func pivotByProject(rows []duneclient.ResultRow) ([]string, []charts.Series) {
	perProject := make(map[string]map[time.Time]float64)
	daySet := make(map[time.Time]bool)

	for _, row := range rows {
		day, ok := row.Time(colDay)
		if !ok {
			continue
		}
		volume, ok := row.Float(colTotalVolumeUSD)
		if !ok {
			continue
		}
		project := row.String(colProject)
		if project == "" {
			continue
		}

		day = day.UTC().Truncate(24 * time.Hour)
		daySet[day] = true
		if perProject[project] == nil {
			perProject[project] = make(map[time.Time]float64)
		}
		perProject[project][day] += volume
	}

	days := make([]time.Time, 0, len(daySet))
	for day := range daySet {
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	labels := make([]string, len(days))
	for i, day := range days {
		labels[i] = day.Format(dayLabelLayout)
	}

	series := make([]charts.Series, 0, len(perProject))
	for _, project := range orderedProjects(perProject) {
		byDay := perProject[project]
		vals := make([]float64, len(days))
		for i, day := range days {
			vals[i] = byDay[day]
		}
		series = append(series, charts.Series{Name: project, Values: vals})
	}

	return labels, series
}

func orderedProjects(perProject map[string]map[time.Time]float64) []string {
	var ordered []string
	seen := make(map[string]bool)
	for _, project := range dexStackOrder {
		if perProject[project] != nil {
			ordered = append(ordered, project)
			seen[project] = true
		}
	}

	var rest []string
	for project := range perProject {
		if !seen[project] {
			rest = append(rest, project)
		}
	}
	sort.Strings(rest)

	return append(ordered, rest...)
}
