package render

import (
	"bytes"
	"context"
	"fmt"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/samirrijal/signalmap/internal/core/domain"
)

// DefaultMaxCells bounds the number of heatmap columns/rows sent to the browser.
const DefaultMaxCells = 120

var coverageColors = []string{"#3b4cc0", "#6788ee", "#9abbff", "#c9d7f0", "#edd1c2", "#f7a889", "#e26952", "#b40426"}

// HTML renders an interactive page with go-echarts.
type HTML struct {
	title    string
	maxCells int
}

// NewHTML builds an HTML renderer. maxCells <= 0 uses DefaultMaxCells.
func NewHTML(title string, maxCells int) *HTML {
	if maxCells <= 0 {
		maxCells = DefaultMaxCells
	}
	return &HTML{title: title, maxCells: maxCells}
}

func (r *HTML) ContentType() string { return "text/html; charset=utf-8" }

// Render writes a page with the downsampled field and a scatter of the
// measurement points.
func (r *HTML) Render(_ context.Context, field domain.ScalarField, points []domain.HeatPoint) ([]byte, error) {
	if field.Width <= 0 || field.Height <= 0 || len(field.Values) != field.Width*field.Height {
		return nil, fmt.Errorf("render html: %w", domain.ErrInvalidExtent)
	}

	step := blockSize(field.Width, field.Height, r.maxCells)
	cols := (field.Width + step - 1) / step
	rows := (field.Height + step - 1) / step

	xLabels := make([]string, cols)
	for i := range xLabels {
		xLabels[i] = strconv.Itoa(i * step)
	}
	// Category axes grow upward, so list rows bottom first.
	yLabels := make([]string, rows)
	for i := range yLabels {
		yLabels[i] = strconv.Itoa((rows - 1 - i) * step)
	}

	cells := make([]opts.HeatMapData, 0, cols*rows)
	for by := 0; by < rows; by++ {
		for bx := 0; bx < cols; bx++ {
			v := blockMean(field, bx*step, by*step, step)
			cells = append(cells, opts.HeatMapData{Value: [3]interface{}{bx, rows - 1 - by, round2(v)}})
		}
	}

	peak := float32(field.Max)
	if peak <= 0 {
		peak = 1
	}

	hm := charts.NewHeatMap()
	hm.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: r.title, Width: "1000px", Height: "800px"}),
		charts.WithTitleOpts(opts.Title{Title: r.title, Subtitle: fmt.Sprintf("method=%s points=%d max=%.2f Mbps", field.Method, field.Points, field.Max)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "category", Data: xLabels, Name: "x (px)"}),
		charts.WithYAxisOpts(opts.YAxis{Type: "category", Data: yLabels, Name: "y (px)"}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        peak,
			InRange:    &opts.VisualMapInRange{Color: coverageColors},
		}),
	)
	hm.AddSeries("coverage", cells)

	page := components.NewPage()
	page.PageTitle = r.title
	page.AddCharts(hm)

	if len(points) > 0 {
		data := make([]opts.ScatterData, 0, len(points))
		for _, p := range points {
			data = append(data, opts.ScatterData{Value: []interface{}{p.X, field.Height - 1 - p.Y, round2(p.Value)}})
		}
		scatter := charts.NewScatter()
		scatter.SetGlobalOptions(
			charts.WithInitializationOpts(opts.Initialization{Width: "1000px", Height: "800px"}),
			charts.WithTitleOpts(opts.Title{Title: "Measurements", Subtitle: fmt.Sprintf("count=%d", len(points))}),
			charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
			charts.WithXAxisOpts(opts.XAxis{Min: 0, Max: field.Width - 1, Name: "x (px)"}),
			charts.WithYAxisOpts(opts.YAxis{Min: 0, Max: field.Height - 1, Name: "y (px from bottom)"}),
			charts.WithVisualMapOpts(opts.VisualMap{
				Show:       opts.Bool(true),
				Calculable: opts.Bool(true),
				Min:        0,
				Max:        peak,
				Dimension:  "2",
				InRange:    &opts.VisualMapInRange{Color: coverageColors},
			}),
		)
		scatter.AddSeries("download", data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 8}))
		page.AddCharts(scatter)
	}

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		return nil, fmt.Errorf("render html: %w", err)
	}
	return buf.Bytes(), nil
}

func blockSize(w, h, maxCells int) int {
	side := w
	if h > side {
		side = h
	}
	step := (side + maxCells - 1) / maxCells
	if step < 1 {
		step = 1
	}
	return step
}

func blockMean(f domain.ScalarField, x0, y0, step int) float64 {
	var sum float64
	var n int
	for y := y0; y < y0+step && y < f.Height; y++ {
		for x := x0; x < x0+step && x < f.Width; x++ {
			sum += f.At(x, y)
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5*sign(v))) / 100
}

func sign(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}
