package backtest

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReportPlot(t *testing.T) {
	rep, err := New(fixture()).Run(context.Background(), preds, date(2022, 12, 31), date(2023, 6, 30))
	require.NoError(t, err)
	rep.Benchmark = append(rep.Benchmark, Point{Date: date(2023, 9, 30), Equity: math.NaN()})

	dir := t.TempDir()
	png := filepath.Join(dir, "equity.png")
	require.NoError(t, rep.Plot(png, "^GSPC"))
	b, err := os.ReadFile(png)
	require.NoError(t, err)
	assert.Equal(t, "\x89PNG\r\n\x1a\n", string(b[:8]))

	svg := filepath.Join(dir, "equity.svg")
	require.NoError(t, rep.Plot(svg, "^GSPC"))
	b, err = os.ReadFile(svg)
	require.NoError(t, err)
	assert.Contains(t, string(b), "<svg")
}

func TestReportPlotWithoutPoints(t *testing.T) {
	rep := &Report{Strategy: []Point{{Date: date(2023, 3, 31), Equity: math.NaN()}}}
	assert.Error(t, rep.Plot(filepath.Join(t.TempDir(), "empty.png"), "^GSPC"))
}
