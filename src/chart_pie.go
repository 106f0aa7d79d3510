package main

import (
	"fmt"
	"image/color"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// RenderPieChart draws a ring chart with a percentage on every non-empty wedge
func RenderPieChart(title string, table FrequencyTable, size ChartSize) (*ChartImage, error) {
	p := plot.New()
	p.Title.Text = title
	p.HideAxes()

	wedges := &pieWedges{table: table, hole: 0.5}
	p.Add(wedges)

	p.Legend.Top = true
	for i, e := range table {
		p.Legend.Add(fmt.Sprintf("%s (%d)", e.Label, e.Count), swatch{palette[i%len(palette)]})
	}

	return encodePNG(p, title, ChartPie, size)
}

// pieWedges implements plot.Plotter for a ring chart centred in the data area
type pieWedges struct {
	table FrequencyTable
	hole  float64 // inner radius as a fraction of the outer one
}

func (pw *pieWedges) DataRange() (xmin, xmax, ymin, ymax float64) {
	return -1, 1, -1, 1
}

func (pw *pieWedges) Plot(c draw.Canvas, plt *plot.Plot) {
	centre := vg.Point{X: (c.Min.X + c.Max.X) / 2, Y: (c.Min.Y + c.Max.Y) / 2}
	outer := 0.45 * minLength(c.Max.X-c.Min.X, c.Max.Y-c.Min.Y)
	inner := outer * vg.Length(pw.hole)

	label := plt.Legend.TextStyle
	label.Font.Size = vg.Points(8)
	label.XAlign = draw.XCenter
	label.YAlign = draw.YCenter

	total := pw.table.Total()
	if total == 0 {
		c.SetColor(color.Gray{Y: 0xd0})
		c.Fill(wedgePath(centre, outer, 0, 2*math.Pi))
		c.SetColor(color.White)
		c.Fill(wedgePath(centre, inner, 0, 2*math.Pi))
		label.Color = color.Gray{Y: 0x60}
		c.FillText(label, centre, "no data")
		return
	}

	// Start at 12 o'clock and go counter-clockwise
	start := math.Pi / 2
	type mark struct {
		at  vg.Point
		txt string
	}
	var marks []mark
	for i, e := range pw.table {
		if e.Count == 0 {
			continue
		}
		sweep := 2 * math.Pi * float64(e.Count) / float64(total)
		c.SetColor(palette[i%len(palette)])
		c.Fill(wedgePath(centre, outer, start, sweep))

		mid := start + sweep/2
		r := (outer + inner) / 2
		marks = append(marks, mark{
			at:  vg.Point{X: centre.X + r*vg.Length(math.Cos(mid)), Y: centre.Y + r*vg.Length(math.Sin(mid))},
			txt: fmt.Sprintf("%.1f%%", 100*float64(e.Count)/float64(total)),
		})
		start += sweep
	}

	c.SetColor(color.White)
	c.Fill(wedgePath(centre, inner, 0, 2*math.Pi))

	label.Color = color.White
	for _, m := range marks {
		c.FillText(label, m.at, m.txt)
	}
}

// wedgePath is a filled circular sector; a full turn yields a disc
func wedgePath(centre vg.Point, radius vg.Length, start, sweep float64) vg.Path {
	var path vg.Path
	if sweep >= 2*math.Pi {
		path.Move(vg.Point{X: centre.X + radius, Y: centre.Y})
		path.Arc(centre, radius, 0, 2*math.Pi)
		path.Close()
		return path
	}
	path.Move(centre)
	path.Line(vg.Point{
		X: centre.X + radius*vg.Length(math.Cos(start)),
		Y: centre.Y + radius*vg.Length(math.Sin(start)),
	})
	path.Arc(centre, radius, start, sweep)
	path.Close()
	return path
}

func minLength(a, b vg.Length) vg.Length {
	if a < b {
		return a
	}
	return b
}

// swatch is a legend thumbnail filled with one colour
type swatch struct {
	color color.Color
}

func (s swatch) Thumbnail(c *draw.Canvas) {
	pts := []vg.Point{
		{X: c.Min.X, Y: c.Min.Y},
		{X: c.Min.X, Y: c.Max.Y},
		{X: c.Max.X, Y: c.Max.Y},
		{X: c.Max.X, Y: c.Min.Y},
	}
	c.FillPolygon(s.color, c.ClipPolygonY(pts))
}
