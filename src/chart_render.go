package main

import (
	"bytes"
	"fmt"
	"image/color"
	"math"
	"strconv"
	"sync"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

// A4 minus 20mm margins on each side
const (
	contentWidthMM  = 210.0 - 40.0
	contentHeightMM = 297.0 - 40.0
)

// DefaultChartDPI is the raster resolution of rendered charts
const DefaultChartDPI = 300

// ChartSize is the physical size of a rendered chart
type ChartSize struct {
	Width  vg.Length
	Height vg.Length
	DPI    int
}

// sizeFor returns the page slice a chart kind occupies
func sizeFor(kind ChartKind, dpi int) ChartSize {
	if dpi <= 0 {
		dpi = DefaultChartDPI
	}
	fraction := 5.0
	if kind == ChartScatter {
		fraction = 4.0
	}
	return ChartSize{
		Width:  vg.Length(contentWidthMM) * vg.Millimeter,
		Height: vg.Length(contentHeightMM/fraction) * vg.Millimeter,
		DPI:    dpi,
	}
}

var palette = []color.Color{
	color.RGBA{R: 0xd6, G: 0x27, B: 0x28, A: 0xff},
	color.RGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff},
	color.RGBA{R: 0x2c, G: 0xa0, B: 0x2c, A: 0xff},
	color.RGBA{R: 0xff, G: 0x7f, B: 0x0e, A: 0xff},
	color.RGBA{R: 0x94, G: 0x67, B: 0xbd, A: 0xff},
	color.RGBA{R: 0x8c, G: 0x56, B: 0x4b, A: 0xff},
}

// fStops are the whole-stop apertures used as scatter ticks
var fStops = []float64{1.0, 2, 2.8, 4, 5.6, 8, 11, 16, 22, 32}

var encodeBuffers = sync.Pool{
	New: func() any { return new(bytes.Buffer) },
}

// RenderChart aggregates records as the ChartSpec describes and renders the chart
func RenderChart(spec ChartSpec, records []*PhotoMetadata, topN, dpi int) (*ChartImage, error) {
	size := sizeFor(spec.Kind, dpi)

	if spec.Kind == ChartScatter {
		title := spec.Title
		if title == "" {
			title = "Aperture vs focal length"
		}
		return RenderScatterChart(title, BuildPairSeries(records), size)
	}

	rule, ok := LookupRule(spec.Rule)
	if !ok {
		return nil, fmt.Errorf("chart %s: unknown rule %q", spec.Kind, spec.Rule)
	}
	title := spec.Title
	if title == "" {
		title = rule.Title
	}
	table := RankedFrequency(records, rule, topN)

	switch spec.Kind {
	case ChartBar:
		return RenderBarChart(title, table, size)
	case ChartPie:
		return RenderPieChart(title, table, size)
	default:
		return nil, fmt.Errorf("unknown chart kind %q", spec.Kind)
	}
}

// RenderBarChart draws one horizontal bar per table entry, first entry on top
func RenderBarChart(title string, table FrequencyTable, size ChartSize) (*ChartImage, error) {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Photos"
	p.X.Tick.Marker = countTicks{}

	grid := plotter.NewGrid()
	grid.Horizontal.Color = nil
	grid.Vertical.Color = color.Gray{Y: 0xb0}
	grid.Vertical.Dashes = []vg.Length{vg.Points(2), vg.Points(2)}
	p.Add(grid)

	n := len(table)
	width := size.Height * 0.6 / vg.Length(n)
	labels := make([]string, n)
	var (
		centres plotter.XYs
		counts  []string
		maxVal  float64
	)

	for i, e := range table {
		// Position 0 is the bottom of the axis, so rank 1 goes last
		pos := n - 1 - i
		labels[pos] = e.Label

		bar, err := plotter.NewBarChart(plotter.Values{float64(e.Count)}, width)
		if err != nil {
			return nil, fmt.Errorf("bar %q: %w", e.Label, err)
		}
		bar.Horizontal = true
		bar.XMin = float64(pos)
		bar.Color = palette[i%len(palette)]
		bar.LineStyle.Width = 0
		p.Add(bar)

		if e.Count > 0 {
			centres = append(centres, plotter.XY{X: float64(e.Count) / 2, Y: float64(pos)})
			counts = append(counts, strconv.Itoa(e.Count))
		}
		maxVal = math.Max(maxVal, float64(e.Count))
	}

	if len(centres) > 0 {
		lbls, err := plotter.NewLabels(plotter.XYLabels{XYs: centres, Labels: counts})
		if err != nil {
			return nil, fmt.Errorf("bar labels: %w", err)
		}
		for i := range lbls.TextStyle {
			lbls.TextStyle[i].Color = color.White
			lbls.TextStyle[i].XAlign = draw.XCenter
			lbls.TextStyle[i].YAlign = draw.YCenter
		}
		p.Add(lbls)
	}

	p.NominalY(labels...)
	p.Y.Min, p.Y.Max = -0.5, float64(n)-0.5
	p.X.Min = 0
	p.X.Max = math.Max(1, maxVal*1.05)

	return encodePNG(p, title, ChartBar, size)
}

// RenderScatterChart plots one point per pair; overlapping points are kept
func RenderScatterChart(title string, series PairSeries, size ChartSize) (*ChartImage, error) {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "F-number"
	p.Y.Label.Text = "Focal length (35mm equiv.)"
	p.Add(plotter.NewGrid())

	xmin, xmax := fStops[0], fStops[len(fStops)-1]
	ymin, ymax := 0.0, 100.0

	if len(series) > 0 {
		xys := make(plotter.XYs, len(series))
		ymin, ymax = math.Inf(1), math.Inf(-1)
		for i, pair := range series {
			xys[i].X = pair.Aperture
			xys[i].Y = float64(pair.FocalLength)
			xmin = math.Min(xmin, pair.Aperture)
			xmax = math.Max(xmax, pair.Aperture)
			ymin = math.Min(ymin, xys[i].Y)
			ymax = math.Max(ymax, xys[i].Y)
		}

		s, err := plotter.NewScatter(xys)
		if err != nil {
			return nil, fmt.Errorf("scatter: %w", err)
		}
		s.GlyphStyle.Shape = draw.CircleGlyph{}
		s.GlyphStyle.Radius = vg.Points(3)
		s.GlyphStyle.Color = color.NRGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 0x80}
		p.Add(s)

		pad := math.Max(5, (ymax-ymin)*0.05)
		ymin, ymax = math.Max(0, ymin-pad), ymax+pad
	}

	ticks := make([]plot.Tick, len(fStops))
	for i, f := range fStops {
		ticks[i] = plot.Tick{Value: f, Label: strconv.FormatFloat(f, 'f', -1, 64)}
	}
	p.X.Tick.Marker = plot.ConstantTicks(ticks)
	p.X.Tick.Label.Rotation = math.Pi / 2
	p.X.Tick.Label.XAlign = draw.XRight
	p.X.Tick.Label.YAlign = draw.YCenter
	p.X.Min, p.X.Max = xmin-0.5, xmax+0.5
	p.Y.Min, p.Y.Max = ymin, ymax

	return encodePNG(p, title, ChartScatter, size)
}

// countTicks marks whole numbers only
type countTicks struct{}

func (countTicks) Ticks(lo, hi float64) []plot.Tick {
	step := math.Max(1, math.Ceil((hi-lo)/6))
	var ticks []plot.Tick
	for v := math.Ceil(lo); v <= hi; v += step {
		ticks = append(ticks, plot.Tick{Value: v, Label: strconv.Itoa(int(v))})
	}
	return ticks
}

// encodePNG draws p onto a fresh raster canvas and returns a copy of the
// PNG bytes. The pooled buffer goes back to the pool on every return path.
func encodePNG(p *plot.Plot, title string, kind ChartKind, size ChartSize) (*ChartImage, error) {
	canvas := vgimg.NewWith(vgimg.UseWH(size.Width, size.Height), vgimg.UseDPI(size.DPI))

	buf := encodeBuffers.Get().(*bytes.Buffer)
	buf.Reset()
	defer encodeBuffers.Put(buf)

	p.Draw(draw.New(canvas))
	if _, err := (vgimg.PngCanvas{Canvas: canvas}).WriteTo(buf); err != nil {
		return nil, fmt.Errorf("encode %s chart: %w", kind, err)
	}

	return &ChartImage{
		Name:   fmt.Sprintf("%s-%s", kind, slug(title)),
		Title:  title,
		Kind:   kind,
		PNG:    bytes.Clone(buf.Bytes()),
		Width:  float64(size.Width / vg.Millimeter),
		Height: float64(size.Height / vg.Millimeter),
	}, nil
}

// slug makes a lowercase ASCII identifier from s
func slug(s string) string {
	var b []byte
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b = append(b, byte(r))
		case r >= 'A' && r <= 'Z':
			b = append(b, byte(r-'A'+'a'))
		case len(b) > 0 && b[len(b)-1] != '-':
			b = append(b, '-')
		}
	}
	if len(b) > 0 && b[len(b)-1] == '-' {
		b = b[:len(b)-1]
	}
	return string(b)
}
