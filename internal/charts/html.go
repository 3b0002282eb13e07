package charts

import (
	"fmt"
	"io"
	"os"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// HHI thresholds from the merger guidelines the thesis uses as reference
// lines: markets above 1500 count as moderately, above 2500 as highly
// concentrated.
const (
	HHIModerateThreshold = 1500
	HHIHighThreshold     = 2500
)

// HHIBarHTML renders the cross-market HHI comparison as an interactive
// horizontal bar chart with the concentration threshold markers.
func HHIBarHTML(path, title string, markets []string, scores []float64) error {
	if len(markets) != len(scores) {
		return fmt.Errorf("label/value length mismatch: %d vs %d", len(markets), len(scores))
	}
	if err := ensureDir(path); err != nil {
		return err
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithInitializationOpts(opts.Initialization{Width: "1200px", Height: "1000px"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)

	items := make([]opts.BarData, len(scores))
	for i, score := range scores {
		items[i] = opts.BarData{Value: score}
	}

	bar.SetXAxis(markets).AddSeries("HHI", items,
		charts.WithMarkLineNameYAxisItemOpts(
			opts.MarkLineNameYAxisItem{Name: "Moderately Concentrated", YAxis: HHIModerateThreshold},
			opts.MarkLineNameYAxisItem{Name: "Highly Concentrated", YAxis: HHIHighThreshold},
		),
	)
	bar.XYReversal()

	return renderTo(path, bar)
}

// DepegPanels carries the three datasets of the mainnet crisis narrative.
type DepegPanels struct {
	Minutes    []string
	PriceRatio []float64
	WethDrain  []float64

	Hours        []string
	HourlyVolume []float64

	Days            []string
	DailyLiquidated []float64
}

// DepegMainnetHTML renders the multi-panel crisis narrative: the price
// de-peg against the liquidity drain, hourly DEX volume and daily
// liquidations, stacked on one page.
func DepegMainnetHTML(path, title string, panels DepegPanels) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	priceLine := charts.NewLine()
	priceLine.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: "Price De-peg vs. WETH Liquidity Drain (Balancer Pool)"}),
		charts.WithInitializationOpts(opts.Initialization{Width: "1200px", Height: "450px"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
	)
	priceLine.ExtendYAxis(opts.YAxis{Name: "WETH Drained", Type: "value"})
	priceLine.SetXAxis(panels.Minutes).
		AddSeries("ezETH/WETH Price Ratio", lineData(panels.PriceRatio)).
		AddSeries("Cumulative WETH Drained", lineData(panels.WethDrain),
			charts.WithLineChartOpts(opts.LineChart{YAxisIndex: 1}),
		)

	volumeBar := charts.NewBar()
	volumeBar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "DEX Trading Volume (Hourly)"}),
		charts.WithInitializationOpts(opts.Initialization{Width: "1200px", Height: "300px"}),
	)
	volumeBar.SetXAxis(panels.Hours).AddSeries("Hourly Trading Volume", barData(panels.HourlyVolume))

	liquidationBar := charts.NewBar()
	liquidationBar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "On-Chain Liquidations (Morpho Blue)"}),
		charts.WithInitializationOpts(opts.Initialization{Width: "1200px", Height: "300px"}),
	)
	liquidationBar.SetXAxis(panels.Days).AddSeries("Daily Liquidation Value", barData(panels.DailyLiquidated))

	page := components.NewPage()
	page.AddCharts(priceLine, volumeBar, liquidationBar)

	return renderTo(path, page)
}

// LinesHTML renders a multi-series line chart over shared labels.
func LinesHTML(path, title string, labels []string, series []Series) error {
	if len(series) == 0 {
		return fmt.Errorf("no series to plot")
	}
	for _, s := range series {
		if len(s.Values) != len(labels) {
			return fmt.Errorf("series %q has %d values for %d labels", s.Name, len(s.Values), len(labels))
		}
	}
	if err := ensureDir(path); err != nil {
		return err
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithInitializationOpts(opts.Initialization{Width: "1200px", Height: "600px"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
	)

	line.SetXAxis(labels)
	for _, s := range series {
		line.AddSeries(s.Name, lineData(s.Values))
	}

	return renderTo(path, line)
}

type renderable interface {
	Render(w io.Writer) error
}

func renderTo(path string, chart renderable) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create chart file: %w", err)
	}
	defer f.Close()

	return chart.Render(f)
}

func lineData(values []float64) []opts.LineData {
	items := make([]opts.LineData, len(values))
	for i, v := range values {
		items[i] = opts.LineData{Value: v}
	}
	return items
}

func barData(values []float64) []opts.BarData {
	items := make([]opts.BarData, len(values))
	for i, v := range values {
		items[i] = opts.BarData{Value: v}
	}
	return items
}
