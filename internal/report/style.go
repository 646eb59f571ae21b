// Package report renders fit results as PDF/PNG figures with Gonum Plot and
// as interactive HTML charts with go-echarts.
package report

import (
	"bufio"
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

// Palette used across figures.
var (
	ColorData  = color.RGBA{R: 30, G: 30, B: 30, A: 255}
	ColorMean  = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	ColorBand  = color.RGBA{R: 31, G: 119, B: 180, A: 70}
	ColorTruth = color.RGBA{R: 214, G: 39, B: 40, A: 255}
	ColorAlt   = color.RGBA{R: 44, G: 160, B: 44, A: 255}
)

// limitedTicker returns a tick generator that produces at most maxLabels
// labels formatted with labelFmt (e.g. "%.1f").
func limitedTicker(maxLabels int, labelFmt string) plot.Ticker {
	if maxLabels < 2 {
		maxLabels = 2
	}
	return plot.TickerFunc(func(min, max float64) []plot.Tick {
		if math.IsNaN(min) || math.IsNaN(max) || math.IsInf(min, 0) || math.IsInf(max, 0) {
			return nil
		}
		if min == max {
			return []plot.Tick{{Value: min, Label: fmt.Sprintf(labelFmt, min)}}
		}
		step := (max - min) / float64(maxLabels-1)
		ticks := make([]plot.Tick, 0, maxLabels)
		for i := 0; i < maxLabels; i++ {
			v := min + float64(i)*step
			ticks = append(ticks, plot.Tick{Value: v, Label: fmt.Sprintf(labelFmt, v)})
		}
		return ticks
	})
}

// Style applies the house style: large fonts, thick axes and at most eight
// tick labels per axis. labelFmt formats the tick labels of both axes.
func Style(p *plot.Plot, labelFmt string) {
	p.Title.TextStyle.Font.Size = vg.Points(16)
	p.Title.Padding = vg.Points(10)

	p.X.Label.TextStyle.Font.Size = vg.Points(13)
	p.Y.Label.TextStyle.Font.Size = vg.Points(13)
	p.X.Label.Padding = vg.Points(6)
	p.Y.Label.Padding = vg.Points(6)

	p.X.LineStyle.Width = vg.Points(1.4)
	p.Y.LineStyle.Width = vg.Points(1.4)
	p.X.Padding = vg.Points(10)
	p.Y.Padding = vg.Points(10)

	p.X.Tick.LineStyle.Width = vg.Points(1.2)
	p.Y.Tick.LineStyle.Width = vg.Points(1.2)
	p.X.Tick.Length = vg.Points(5)
	p.Y.Tick.Length = vg.Points(5)

	p.X.Tick.Label.Font.Size = vg.Points(10)
	p.Y.Tick.Label.Font.Size = vg.Points(10)

	p.X.Tick.Marker = limitedTicker(8, labelFmt)
	p.Y.Tick.Marker = limitedTicker(8, labelFmt)

	p.Legend.Top = true
	p.Legend.TextStyle.Font.Size = vg.Points(10)
}

// Save writes p to filename. ".png" files are rasterized at 300 DPI; every
// other extension Gonum Plot knows (".pdf", ".svg", ".eps") is vector output.
func Save(p *plot.Plot, widthIn, heightIn float64, filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return fmt.Errorf("cannot create directory: %w", err)
	}
	w := vg.Length(widthIn) * vg.Inch
	h := vg.Length(heightIn) * vg.Inch

	if !strings.EqualFold(filepath.Ext(filename), ".png") {
		if err := p.Save(w, h, filename); err != nil {
			return fmt.Errorf("cannot save %s: %w", filename, err)
		}
		return nil
	}

	c := vgimg.NewWith(
		vgimg.UseWH(w, h),
		vgimg.UseDPI(300),
	)
	p.Draw(draw.New(c))

	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("cannot create png: %w", err)
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	pngc := vgimg.PngCanvas{Canvas: c}
	if _, err := pngc.WriteTo(bw); err != nil {
		return fmt.Errorf("cannot write png: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("cannot write png: %w", err)
	}
	return f.Close()
}
