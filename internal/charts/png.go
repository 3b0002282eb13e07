// Package charts renders the visual artifacts of the analyses: static PNG
// figures for the thesis document and interactive HTML charts for
// exploration. Layouts follow the thesis figures, not pixel-exactly.
package charts

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/MinterGMT/restaking-research-visuals/internal/concentration"
)

// Series is one named value set of a multi-series chart.
type Series struct {
	Name   string
	Values []float64
}

var (
	navy      = color.RGBA{R: 0x4A, G: 0x55, B: 0xA2, A: 0xFF}
	crisisRed = color.RGBA{R: 0xC5, G: 0x16, B: 0x05, A: 0xFF}
)

// OperatorBarPNG renders a horizontal bar chart of per-operator stake,
// largest on top.
func OperatorBarPNG(path, title string, operators []string, stakes []float64) error {
	if len(operators) != len(stakes) {
		return fmt.Errorf("label/value length mismatch: %d vs %d", len(operators), len(stakes))
	}
	if err := ensureDir(path); err != nil {
		return err
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "USD Value Delegated"

	bars, err := plotter.NewBarChart(plotter.Values(stakes), vg.Points(14))
	if err != nil {
		return err
	}
	bars.Horizontal = true
	bars.Color = navy
	bars.LineStyle.Width = 0

	p.Add(bars, plotter.NewGrid())
	p.NominalY(operators...)

	return p.Save(10*vg.Inch, 8*vg.Inch, path)
}

// LorenzPNG renders the Lorenz curve of one analysis group against the line
// of perfect equality.
func LorenzPNG(path, group string, points []concentration.Point) error {
	if len(points) == 0 {
		return fmt.Errorf("no Lorenz points for group %q", group)
	}
	if err := ensureDir(path); err != nil {
		return err
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Lorenz Curve for: %s", group)
	p.X.Label.Text = "Cumulative % of Operators"
	p.Y.Label.Text = "Cumulative % of Delegated Stake"
	p.X.Min, p.X.Max = 0, 1
	p.Y.Min, p.Y.Max = 0, 1

	equality, err := plotter.NewLine(plotter.XYs{{X: 0, Y: 0}, {X: 1, Y: 1}})
	if err != nil {
		return err
	}
	equality.Color = crisisRed
	equality.Dashes = []vg.Length{vg.Points(4), vg.Points(3)}

	xys := make(plotter.XYs, len(points))
	for i, pt := range points {
		xys[i] = plotter.XY{X: pt.X, Y: pt.Y}
	}
	curve, err := plotter.NewLine(xys)
	if err != nil {
		return err
	}
	curve.Color = navy
	curve.Width = vg.Points(1.5)

	p.Add(equality, curve, plotter.NewGrid())
	p.Legend.Add("Line of Perfect Equality", equality)
	p.Legend.Add(fmt.Sprintf("%s Lorenz Curve", group), curve)
	p.Legend.Top = true
	p.Legend.Left = true

	return p.Save(8*vg.Inch, 8*vg.Inch, path)
}

// StackedBarsPNG renders one stacked bar per label, stacking the series in
// the given order (first series at the bottom).
func StackedBarsPNG(path, title, xLabel, yLabel string, labels []string, series []Series) error {
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

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xLabel
	p.Y.Label.Text = yLabel

	var previous *plotter.BarChart
	for i, s := range series {
		bars, err := plotter.NewBarChart(plotter.Values(s.Values), vg.Points(20))
		if err != nil {
			return err
		}
		bars.Color = plotutil.Color(i)
		bars.LineStyle.Width = 0
		if previous != nil {
			bars.StackOn(previous)
		}
		previous = bars

		p.Add(bars)
		p.Legend.Add(s.Name, bars)
	}

	p.Add(plotter.NewGrid())
	p.NominalX(labels...)
	p.Legend.Top = true

	return p.Save(12*vg.Inch, 8*vg.Inch, path)
}

// DailyBarsPNG renders a single-series bar chart over date labels.
func DailyBarsPNG(path, title, xLabel, yLabel string, days []string, values []float64) error {
	if len(days) != len(values) {
		return fmt.Errorf("label/value length mismatch: %d vs %d", len(days), len(values))
	}
	if err := ensureDir(path); err != nil {
		return err
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xLabel
	p.Y.Label.Text = yLabel

	bars, err := plotter.NewBarChart(plotter.Values(values), vg.Points(20))
	if err != nil {
		return err
	}
	bars.Color = crisisRed
	bars.LineStyle.Width = 0

	p.Add(bars, plotter.NewGrid())
	p.NominalX(days...)

	return p.Save(12*vg.Inch, 8*vg.Inch, path)
}

func ensureDir(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	return nil
}
