package report

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// lineData converts values for echarts; missing points are "-".
func lineData(values []float64) []opts.LineData {
	out := make([]opts.LineData, len(values))
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			out[i] = opts.LineData{Value: "-"}
			continue
		}
		out[i] = opts.LineData{Value: v}
	}
	return out
}

// BandChart builds an interactive line chart of a confidence band.
func BandChart(f BandFigure) *charts.Line {
	labels := make([]string, len(f.Band.Grid))
	for i, x := range f.Band.Grid {
		labels[i] = strconv.FormatFloat(x, 'g', 4, 64)
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "900px", Height: "540px"}),
		charts.WithTitleOpts(opts.Title{Title: f.Title, Subtitle: fmt.Sprintf("%.0f%% interval", 100*f.Band.Level)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Bottom: "0"}),
		charts.WithXAxisOpts(opts.XAxis{Name: f.XLabel, NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: f.YLabel}),
	)
	dashed := charts.WithLineStyleOpts(opts.LineStyle{Type: "dashed"})

	line.SetXAxis(labels).
		AddSeries("lower", lineData(f.Band.Lower), dashed).
		AddSeries("mean", lineData(f.Band.Mean)).
		AddSeries("upper", lineData(f.Band.Upper), dashed)

	if f.Truth != nil && len(f.Truth.Y) == len(labels) {
		line.AddSeries(f.Truth.Name, lineData(f.Truth.Y), dashed)
	}
	return line
}

// WriteHTML renders the bands of figs onto one page at filename.
func WriteHTML(filename, pageTitle string, figs []BandFigure) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return fmt.Errorf("cannot create directory: %w", err)
	}

	page := components.NewPage()
	page.PageTitle = pageTitle
	for _, f := range figs {
		page.AddCharts(BandChart(f))
	}

	out, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("cannot create html: %w", err)
	}
	defer out.Close()
	if err := page.Render(out); err != nil {
		return fmt.Errorf("render error: %w", err)
	}
	return out.Close()
}
