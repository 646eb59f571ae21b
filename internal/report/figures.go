package report

import (
	"errors"
	"fmt"
	"image/color"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/mohammadijoo/NeuralODE_Fits_Go/internal/bootstrap"
)

// Series is a named curve.
type Series struct {
	Name string
	X, Y []float64
}

// Points are measurements with optional symmetric error bars.
type Points struct {
	Name       string
	X, Y       []float64
	XErr, YErr []float64
}

// BandFigure describes a confidence band plot: the pointwise mean of the
// bootstrap curves, a shaded interval and optional reference curves and data.
type BandFigure struct {
	Title, XLabel, YLabel string
	TickFormat            string
	Band                  bootstrap.Band
	Truth                 *Series
	Data                  *Points
	Extra                 []Series
}

type errPoints struct {
	plotter.XYs
	plotter.XErrors
	plotter.YErrors
}

func xys(x, y []float64) (plotter.XYs, error) {
	if len(x) != len(y) {
		return nil, fmt.Errorf("plot data invalid: %d x values, %d y values", len(x), len(y))
	}
	pts := make(plotter.XYs, 0, len(x))
	for i := range x {
		if math.IsNaN(y[i]) || math.IsInf(y[i], 0) {
			continue
		}
		pts = append(pts, plotter.XY{X: x[i], Y: y[i]})
	}
	return pts, nil
}

func tickFormat(f string) string {
	if f == "" {
		return "%.3g"
	}
	return f
}

// bandPolygon outlines the finite part of the interval: along Lower, then
// back along Upper.
func bandPolygon(b bootstrap.Band) plotter.XYs {
	var poly plotter.XYs
	for i, x := range b.Grid {
		if b.Count[i] > 0 {
			poly = append(poly, plotter.XY{X: x, Y: b.Lower[i]})
		}
	}
	for i := len(b.Grid) - 1; i >= 0; i-- {
		if b.Count[i] > 0 {
			poly = append(poly, plotter.XY{X: b.Grid[i], Y: b.Upper[i]})
		}
	}
	return poly
}

func addLine(p *plot.Plot, s Series, width float64, dashed bool, c color.Color) error {
	pts, err := xys(s.X, s.Y)
	if err != nil {
		return err
	}
	if len(pts) == 0 {
		return nil
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	line.LineStyle.Width = vg.Points(width)
	if dashed {
		line.LineStyle.Dashes = []vg.Length{vg.Points(5), vg.Points(3)}
	}
	line.LineStyle.Color = c
	p.Add(line)
	if s.Name != "" {
		p.Legend.Add(s.Name, line)
	}
	return nil
}

func addPoints(p *plot.Plot, d Points) error {
	pts, err := xys(d.X, d.Y)
	if err != nil {
		return err
	}
	if len(pts) != len(d.X) {
		return errors.New("plot data invalid: non-finite measurements")
	}
	sc, err := plotter.NewScatter(pts)
	if err != nil {
		return err
	}
	sc.GlyphStyle.Color = ColorData
	sc.GlyphStyle.Radius = vg.Points(1.8)
	p.Add(sc)
	if d.Name != "" {
		p.Legend.Add(d.Name, sc)
	}

	ep := errPoints{XYs: pts}
	if len(d.YErr) == len(d.X) {
		ep.YErrors = make(plotter.YErrors, len(d.X))
		for i, e := range d.YErr {
			ep.YErrors[i].Low, ep.YErrors[i].High = e, e
		}
		bars, err := plotter.NewYErrorBars(ep)
		if err != nil {
			return err
		}
		bars.LineStyle.Color = ColorData
		p.Add(bars)
	}
	if len(d.XErr) == len(d.X) {
		ep.XErrors = make(plotter.XErrors, len(d.X))
		for i, e := range d.XErr {
			ep.XErrors[i].Low, ep.XErrors[i].High = e, e
		}
		bars, err := plotter.NewXErrorBars(ep)
		if err != nil {
			return err
		}
		bars.LineStyle.Color = ColorData
		p.Add(bars)
	}
	return nil
}

// Plot builds the figure.
func (f BandFigure) Plot() (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = f.Title
	p.X.Label.Text = f.XLabel
	p.Y.Label.Text = f.YLabel
	Style(p, tickFormat(f.TickFormat))

	if poly := bandPolygon(f.Band); len(poly) >= 3 {
		band, err := plotter.NewPolygon(poly)
		if err != nil {
			return nil, err
		}
		band.Color = ColorBand
		band.LineStyle.Width = 0
		p.Add(band)
		p.Legend.Add(fmt.Sprintf("%.0f%% CI", 100*f.Band.Level), band)
	}

	if err := addLine(p, Series{Name: "bootstrap mean", X: f.Band.Grid, Y: f.Band.Mean}, 2, false, ColorMean); err != nil {
		return nil, err
	}
	if f.Truth != nil {
		if err := addLine(p, *f.Truth, 1.5, true, ColorTruth); err != nil {
			return nil, err
		}
	}
	for _, s := range f.Extra {
		if err := addLine(p, s, 1.2, false, ColorAlt); err != nil {
			return nil, err
		}
	}
	if f.Data != nil {
		if err := addPoints(p, *f.Data); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// SaveBand renders f to filename at 7x5 inches.
func SaveBand(f BandFigure, filename string) error {
	p, err := f.Plot()
	if err != nil {
		return err
	}
	return Save(p, 7, 5, filename)
}

// OrbitFigure draws sky-plane trajectories: every accepted bootstrap orbit
// as a thin line, the pointwise mean, the truth and the astrometry.
type OrbitFigure struct {
	Title        string
	Trajectories []Series
	Mean         Series
	Truth        *Series
	Data         *Points
}

// SaveOrbit renders f to filename with equal axis spans.
func SaveOrbit(f OrbitFigure, filename string) error {
	p := plot.New()
	p.Title.Text = f.Title
	p.X.Label.Text = "X (sky)"
	p.Y.Label.Text = "Y (sky)"
	Style(p, "%.3g")

	for _, s := range f.Trajectories {
		if err := addLine(p, Series{X: s.X, Y: s.Y}, 0.4, false, ColorBand); err != nil {
			return err
		}
	}
	if err := addLine(p, f.Mean, 2, false, ColorMean); err != nil {
		return err
	}
	if f.Truth != nil {
		if err := addLine(p, *f.Truth, 1.5, true, ColorTruth); err != nil {
			return err
		}
	}
	if f.Data != nil {
		if err := addPoints(p, *f.Data); err != nil {
			return err
		}
	}

	// Equal spans keep the ellipse undistorted.
	span := math.Max(p.X.Max-p.X.Min, p.Y.Max-p.Y.Min) / 2
	cx, cy := (p.X.Max+p.X.Min)/2, (p.Y.Max+p.Y.Min)/2
	p.X.Min, p.X.Max = cx-span, cx+span
	p.Y.Min, p.Y.Max = cy-span, cy+span

	return Save(p, 6, 6, filename)
}

// SaveHistogram renders the bootstrap distribution of one parameter, with
// an optional vertical marker at the true value.
func SaveHistogram(title, xlabel string, values []float64, truth *float64, filename string) error {
	if len(values) == 0 {
		return errors.New("histogram: no values")
	}
	if floats.Min(values) == floats.Max(values) {
		return fmt.Errorf("histogram: all %d values equal %g", len(values), values[0])
	}
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xlabel
	p.Y.Label.Text = "density"
	Style(p, "%.3g")

	bins := int(math.Max(5, math.Sqrt(float64(len(values)))))
	h, err := plotter.NewHist(plotter.Values(values), bins)
	if err != nil {
		return err
	}
	h.Normalize(1)
	h.FillColor = ColorBand
	h.LineStyle.Color = ColorMean
	p.Add(h)

	if truth != nil {
		_, _, _, ymax := h.DataRange()
		marker := Series{Name: "truth", X: []float64{*truth, *truth}, Y: []float64{0, ymax}}
		if err := addLine(p, marker, 1.5, true, ColorTruth); err != nil {
			return err
		}
	}
	return Save(p, 6, 4.5, filename)
}

// SaveLoss renders training loss histories on a log scale.
func SaveLoss(title string, histories [][]float64, threshold float64, filename string) error {
	if len(histories) == 0 {
		return errors.New("loss plot: no histories")
	}
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "iteration"
	p.Y.Label.Text = "loss"
	Style(p, "%.3g")
	p.Y.Scale = plot.LogScale{}
	p.Y.Tick.Marker = plot.LogTicks{Prec: -1}

	maxLen := 0
	for _, hist := range histories {
		x := make([]float64, len(hist))
		y := make([]float64, len(hist))
		for i, l := range hist {
			x[i] = float64(i)
			y[i] = math.Max(l, 1e-12)
		}
		if len(hist) > maxLen {
			maxLen = len(hist)
		}
		if err := addLine(p, Series{X: x, Y: y}, 0.6, false, ColorMean); err != nil {
			return err
		}
	}
	if threshold > 0 && maxLen > 1 {
		th := Series{Name: "threshold", X: []float64{0, float64(maxLen - 1)}, Y: []float64{threshold, threshold}}
		if err := addLine(p, th, 1.5, true, ColorTruth); err != nil {
			return err
		}
	}
	return Save(p, 7, 5, filename)
}

// Grid is a regular two-parameter grid of loss values; Values[r][c] is the
// value at (Xs[c], Ys[r]).
type Grid struct {
	Xs, Ys []float64
	Values [][]float64
}

func (g Grid) Dims() (c, r int)   { return len(g.Xs), len(g.Ys) }
func (g Grid) Z(c, r int) float64 { return g.Values[r][c] }
func (g Grid) X(c int) float64    { return g.Xs[c] }
func (g Grid) Y(r int) float64    { return g.Ys[r] }

// SaveHeatmap renders g with the Kindlmann palette and marks the best point.
func SaveHeatmap(title, xlabel, ylabel string, g Grid, best *plotter.XY, filename string) error {
	c, r := g.Dims()
	if c < 2 || r < 2 {
		return errors.New("heatmap: grid needs at least 2x2 points")
	}
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xlabel
	p.Y.Label.Text = ylabel
	Style(p, "%.2f")

	pal := moreland.Kindlmann().Palette(255)
	hm := plotter.NewHeatMap(g, pal)
	p.Add(hm)

	if best != nil {
		sc, err := plotter.NewScatter(plotter.XYs{*best})
		if err != nil {
			return err
		}
		sc.GlyphStyle.Color = ColorTruth
		sc.GlyphStyle.Radius = vg.Points(4)
		p.Add(sc)
		p.Legend.Add("best fit", sc)
	}
	return Save(p, 6.5, 5.5, filename)
}
