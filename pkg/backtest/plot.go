package backtest

import (
	"errors"
	"fmt"
	"image/color"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

var (
	strategyColor  = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	benchmarkColor = color.RGBA{R: 214, G: 39, B: 40, A: 255}
)

// Plot draws the strategy and benchmark equity curves to path. The image
// format follows the extension (png, svg, pdf, ...). benchmark labels the
// second curve.
func (r *Report) Plot(path, benchmark string) error {
	p := plot.New()
	p.Title.Text = "Strategy vs " + benchmark
	p.X.Label.Text = "Quarter end"
	p.Y.Label.Text = "Equity"
	p.X.Tick.Marker = plot.TimeTicks{Format: "2006-01"}
	p.Legend.Top = true
	p.Legend.Left = true
	p.Add(plotter.NewGrid())

	drawn := 0
	for _, c := range []struct {
		name  string
		curve []Point
		color color.Color
	}{
		{"Strategy", r.Strategy, strategyColor},
		{benchmark, r.Benchmark, benchmarkColor},
	} {
		pts := curvePoints(c.curve)
		if len(pts) == 0 {
			continue
		}
		line, scatter, err := plotter.NewLinePoints(pts)
		if err != nil {
			return fmt.Errorf("backtest: plot %s: %w", c.name, err)
		}
		line.Color = c.color
		line.Width = vg.Points(2)
		scatter.Shape = draw.CircleGlyph{}
		scatter.Color = c.color
		scatter.Radius = vg.Points(2.5)
		p.Add(line, scatter)
		p.Legend.Add(c.name, line, scatter)
		drawn++
	}
	if drawn == 0 {
		return errors.New("backtest: plot: no equity points")
	}
	if err := p.Save(10*vg.Inch, 5*vg.Inch, path); err != nil {
		return fmt.Errorf("backtest: save plot: %w", err)
	}
	return nil
}

// curvePoints maps a curve to unix-second x values, skipping missing equity.
func curvePoints(curve []Point) plotter.XYs {
	pts := make(plotter.XYs, 0, len(curve))
	for _, pt := range curve {
		if math.IsNaN(pt.Equity) || math.IsInf(pt.Equity, 0) {
			continue
		}
		pts = append(pts, plotter.XY{X: float64(pt.Date.Unix()), Y: pt.Equity})
	}
	return pts
}
