package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"

	"github.com/MinterGMT/restaking-research-visuals/internal/charts"
	"github.com/MinterGMT/restaking-research-visuals/internal/clients/duneclient"
	"github.com/MinterGMT/restaking-research-visuals/internal/observability/metrics"
)

const (
	ModuleDepeg = "depeg"

	depegOutputDir = "module2_depeg_analysis"

	mainnetChartName = "ezETH_depeg_mainnet_analysis.html"
	blastChartName   = "ezETH_depeg_blast_contagion.html"

	colMinute           = "minute"
	colDay              = "day"
	colPriceRatioWeth   = "price_ratio_weth"
	colVolumeUSD        = "volume_usd"
	colWethDrained      = "cumulative_weth_drained"
	colUSDLiquidated    = "total_usd_liquidated"
	colGrossDeposits    = "gross_deposits"
	colGrossWithdrawals = "gross_withdrawals"
	colNetFlow          = "net_flow_ezeth"

	minuteLabelLayout = "01-02 15:04"
	dayLabelLayout    = "2006-01-02"
)

// timePoint is one observation of a time series.
type timePoint struct {
	At    time.Time
	Value float64
}

type depegData struct {
	priceVolume []duneclient.ResultRow
	wethDrain   []duneclient.ResultRow
	morphoLiqs  []duneclient.ResultRow
	blastFlows  []duneclient.ResultRow
}

// RunDepegAnalysis reconstructs the April 2024 ezETH de-peg: the mainnet
// crisis chart (price ratio, liquidity drain, hourly volume, liquidations)
// and the Blast L2 contagion chart. The four datasets are fetched
// concurrently since none depends on another.
func (s *Service) RunDepegAnalysis(ctx context.Context) error {
	return metrics.RecordAnalysisDuration(ModuleDepeg, s.runDepegAnalysis)(ctx)
}

func (s *Service) runDepegAnalysis(ctx context.Context) error {
	data, err := s.fetchDepegData(ctx)
	if err != nil {
		return err
	}

	if err := s.renderMainnetChart(ctx, data); err != nil {
		return err
	}
	return s.renderBlastChart(ctx, data.blastFlows)
}

func (s *Service) fetchDepegData(ctx context.Context) (*depegData, error) {
	cfg := s.cfg.Analysis
	var data depegData

	p := pool.New().WithContext(ctx).WithCancelOnError()
	p.Go(func(ctx context.Context) error {
		rows, err := s.fetchLatest(ctx, cfg.PriceVolumeQueryID)
		data.priceVolume = rows
		return err
	})
	p.Go(func(ctx context.Context) error {
		rows, err := s.fetchLatest(ctx, cfg.WethDrainQueryID)
		data.wethDrain = rows
		return err
	})
	p.Go(func(ctx context.Context) error {
		rows, err := s.fetchLatest(ctx, cfg.MorphoLiquidationsQueryID)
		data.morphoLiqs = rows
		return err
	})
	p.Go(func(ctx context.Context) error {
		rows, err := s.fetchLatest(ctx, cfg.BlastFlowsQueryID)
		data.blastFlows = rows
		return err
	})
	if err := p.Wait(); err != nil {
		return nil, fmt.Errorf("failed to fetch de-peg datasets: %w", err)
	}

	if len(data.priceVolume) == 0 {
		return nil, fmt.Errorf("price/volume query %d returned no rows", cfg.PriceVolumeQueryID)
	}

	log.Ctx(ctx).Info().
		Int("price_volume_rows", len(data.priceVolume)).
		Int("weth_drain_rows", len(data.wethDrain)).
		Int("morpho_rows", len(data.morphoLiqs)).
		Int("blast_rows", len(data.blastFlows)).
		Msg("fetched de-peg datasets")
	return &data, nil
}

func (s *Service) renderMainnetChart(ctx context.Context, data *depegData) error {
	price := seriesFrom(data.priceVolume, colMinute, colPriceRatioWeth)
	drain := seriesFrom(data.wethDrain, colMinute, colWethDrained)
	volume := resampleHourly(seriesFrom(data.priceVolume, colMinute, colVolumeUSD))
	from, to := timeSpan(price)
	liquidations := alignDaily(seriesFrom(data.morphoLiqs, colDay, colUSDLiquidated), from, to)

	// The drain series shares the minute axis of the price panel.
	drainByMinute := make(map[time.Time]float64, len(drain))
	for _, pt := range drain {
		drainByMinute[pt.At] = pt.Value
	}
	drainValues := make([]float64, len(price))
	lastDrained := 0.0
	for i, pt := range price {
		if v, ok := drainByMinute[pt.At]; ok {
			lastDrained = v
		}
		drainValues[i] = lastDrained
	}

	panels := charts.DepegPanels{
		Minutes:         labels(price, minuteLabelLayout),
		PriceRatio:      values(price),
		WethDrain:       drainValues,
		Hours:           labels(volume, minuteLabelLayout),
		HourlyVolume:    values(volume),
		Days:            labels(liquidations, dayLabelLayout),
		DailyLiquidated: values(liquidations),
	}

	path := s.outputPath(depegOutputDir, mainnetChartName)
	title := "Anatomy of the ezETH De-Peg Crisis: Ethereum Mainnet (April 24, 2024)"
	if err := charts.DepegMainnetHTML(path, title, panels); err != nil {
		metrics.RecordChartRenderError("depeg_mainnet")
		return fmt.Errorf("failed to render mainnet crisis chart: %w", err)
	}

	log.Ctx(ctx).Info().Str("path", path).Msg("rendered mainnet crisis chart")
	return nil
}

func (s *Service) renderBlastChart(ctx context.Context, rows []duneclient.ResultRow) error {
	deposits := seriesFrom(rows, colDay, colGrossDeposits)
	withdrawals := seriesFrom(rows, colDay, colGrossWithdrawals)
	netFlow := seriesFrom(rows, colDay, colNetFlow)

	// Withdrawals come out of the query as negative flows.
	for i := range withdrawals {
		withdrawals[i].Value = math.Abs(withdrawals[i].Value)
	}

	path := s.outputPath(depegOutputDir, blastChartName)
	title := "Cross-Chain Contagion: Bank Run on the Blast L2 ezETH Vault"
	err := charts.LinesHTML(path, title, labels(deposits, dayLabelLayout), []charts.Series{
		{Name: "Daily Deposits", Values: values(deposits)},
		{Name: "Daily Withdrawals", Values: values(withdrawals)},
		{Name: "Net Daily Flow", Values: values(netFlow)},
	})
	if err != nil {
		metrics.RecordChartRenderError("depeg_blast")
		return fmt.Errorf("failed to render Blast contagion chart: %w", err)
	}

	log.Ctx(ctx).Info().Str("path", path).Msg("rendered Blast contagion chart")
	return nil
}

// seriesFrom extracts a chronologically sorted time series from result rows,
// skipping rows whose timestamp or value cannot be parsed.
func seriesFrom(rows []duneclient.ResultRow, timeCol, valueCol string) []timePoint {
	points := make([]timePoint, 0, len(rows))
	for _, row := range rows {
		at, ok := row.Time(timeCol)
		if !ok {
			continue
		}
		v, ok := row.Float(valueCol)
		if !ok {
			continue
		}
		points = append(points, timePoint{At: at.UTC(), Value: v})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].At.Before(points[j].At) })
	return points
}

// resampleHourly sums a minute series into hourly buckets.
func resampleHourly(points []timePoint) []timePoint {
	buckets := make(map[time.Time]float64)
	for _, pt := range points {
		buckets[pt.At.Truncate(time.Hour)] += pt.Value
	}

	out := make([]timePoint, 0, len(buckets))
	for at, v := range buckets {
		out = append(out, timePoint{At: at, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].At.Before(out[j].At) })
	return out
}

// alignDaily projects a daily series onto a continuous day scaffold spanning
// from and to, so days without observations plot as zero instead of being
// dropped from the axis.
func alignDaily(points []timePoint, from, to time.Time) []timePoint {
	byDay := make(map[time.Time]float64, len(points))
	for _, pt := range points {
		byDay[pt.At.Truncate(24*time.Hour)] += pt.Value
	}

	var out []timePoint
	for day := from.Truncate(24 * time.Hour); !day.After(to); day = day.Add(24 * time.Hour) {
		out = append(out, timePoint{At: day, Value: byDay[day]})
	}
	return out
}

// timeSpan returns the first and last timestamp of a sorted series.
func timeSpan(points []timePoint) (time.Time, time.Time) {
	if len(points) == 0 {
		return time.Time{}, time.Time{}
	}
	return points[0].At, points[len(points)-1].At
}

func labels(points []timePoint, layout string) []string {
	out := make([]string, len(points))
	for i, pt := range points {
		out[i] = pt.At.Format(layout)
	}
	return out
}

func values(points []timePoint) []float64 {
	out := make([]float64, len(points))
	for i, pt := range points {
		out[i] = pt.Value
	}
	return out
}
