package output

import (
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"slices"

	"github.com/fogleman/gg"
)

const (
	chartWidth  = 900
	chartHeight = 500
	marginLeft  = 70.0
	marginRight = 30.0
	marginTop   = 50.0
	marginBot   = 80.0
)

var seriesColors = []color.NRGBA{
	{R: 215, G: 48, B: 31, A: 255},
	{R: 33, G: 102, B: 172, A: 255},
	{R: 26, G: 152, B: 80, A: 255},
	{R: 253, G: 174, B: 97, A: 255},
	{R: 118, G: 42, B: 131, A: 255},
}

// Series is one named line; Labels and Values are parallel.
type Series struct {
	Name   string
	Labels []string
	Values []float64
}

// BarGroup is one category of a grouped bar chart; Values follow the series
// names passed alongside.
type BarGroup struct {
	Category string
	Values   []float64
}

type plot struct {
	dc         *gg.Context
	xmin, xmax float64
	ymin, ymax float64
}

func newPlot(title, xLabel, yLabel string, xmin, xmax, ymin, ymax float64) *plot {
	if xmax <= xmin {
		xmax = xmin + 1
	}
	if ymax <= ymin {
		ymin, ymax = ymin-1, ymax+1
	}
	pad := (ymax - ymin) * 0.05
	p := &plot{dc: gg.NewContext(chartWidth, chartHeight), xmin: xmin, xmax: xmax, ymin: ymin - pad, ymax: ymax + pad}

	dc := p.dc
	dc.SetRGB(1, 1, 1)
	dc.Clear()
	dc.SetRGB(0, 0, 0)
	dc.DrawStringAnchored(title, chartWidth/2, marginTop/2, 0.5, 0.5)
	dc.DrawStringAnchored(xLabel, chartWidth/2, chartHeight-15, 0.5, 0.5)
	dc.Push()
	dc.RotateAbout(gg.Radians(-90), 15, chartHeight/2)
	dc.DrawStringAnchored(yLabel, 15, chartHeight/2, 0.5, 0.5)
	dc.Pop()

	dc.SetLineWidth(1)
	dc.DrawLine(marginLeft, marginTop, marginLeft, chartHeight-marginBot)
	dc.DrawLine(marginLeft, chartHeight-marginBot, chartWidth-marginRight, chartHeight-marginBot)
	dc.Stroke()

	for i := 0; i <= 5; i++ {
		v := p.ymin + (p.ymax-p.ymin)*float64(i)/5
		y := p.y(v)
		dc.SetRGBA(0, 0, 0, 0.1)
		dc.DrawLine(marginLeft, y, chartWidth-marginRight, y)
		dc.Stroke()
		dc.SetRGB(0, 0, 0)
		dc.DrawStringAnchored(formatTick(v), marginLeft-6, y, 1, 0.5)
	}
	return p
}

func (p *plot) x(v float64) float64 {
	return marginLeft + (v-p.xmin)/(p.xmax-p.xmin)*(chartWidth-marginLeft-marginRight)
}

func (p *plot) y(v float64) float64 {
	return chartHeight - marginBot - (v-p.ymin)/(p.ymax-p.ymin)*(chartHeight-marginTop-marginBot)
}

func (p *plot) xTicks(labels []string, at func(i int) float64) {
	step := max(1, len(labels)/10)
	p.dc.SetRGB(0, 0, 0)
	for i := 0; i < len(labels); i += step {
		x := at(i)
		p.dc.Push()
		p.dc.RotateAbout(gg.Radians(-35), x, chartHeight-marginBot+12)
		p.dc.DrawStringAnchored(labels[i], x, chartHeight-marginBot+12, 1, 0.5)
		p.dc.Pop()
	}
}

func (p *plot) legend(names []string) {
	for i, name := range names {
		y := marginTop + float64(i)*16
		p.dc.SetColor(seriesColors[i%len(seriesColors)])
		p.dc.DrawRectangle(chartWidth-marginRight-150, y, 10, 10)
		p.dc.Fill()
		p.dc.SetRGB(0, 0, 0)
		p.dc.DrawStringAnchored(name, chartWidth-marginRight-135, y+5, 0, 0.5)
	}
}

func (p *plot) save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return fmt.Errorf("failed to create chart folder: %w", err)
	}
	if err := p.dc.SavePNG(path); err != nil {
		return fmt.Errorf("failed to save chart: %w", err)
	}
	return nil
}

// LineChart draws every series over the sorted union of their labels.
func LineChart(title, yLabel string, series []Series, path string) error {
	var labels []string
	var values []float64
	for _, s := range series {
		labels = append(labels, s.Labels...)
		values = append(values, s.Values...)
	}
	if len(values) == 0 {
		return fmt.Errorf("no data to plot")
	}
	slices.Sort(labels)
	labels = slices.Compact(labels)
	index := make(map[string]int, len(labels))
	for i, l := range labels {
		index[l] = i
	}

	p := newPlot(title, "Fecha", yLabel, 0, float64(max(1, len(labels)-1)), slices.Min(values), slices.Max(values))
	for k, s := range series {
		p.dc.SetColor(seriesColors[k%len(seriesColors)])
		p.dc.SetLineWidth(2)
		for i := range s.Values {
			x, y := p.x(float64(index[s.Labels[i]])), p.y(s.Values[i])
			if i == 0 {
				p.dc.MoveTo(x, y)
			} else {
				p.dc.LineTo(x, y)
			}
		}
		p.dc.Stroke()
		for i := range s.Values {
			p.dc.DrawCircle(p.x(float64(index[s.Labels[i]])), p.y(s.Values[i]), 3)
			p.dc.Fill()
		}
	}
	p.xTicks(labels, func(i int) float64 { return p.x(float64(i)) })
	if len(series) > 1 {
		names := make([]string, len(series))
		for i, s := range series {
			names[i] = s.Name
		}
		p.legend(names)
	}
	return p.save(path)
}

func ScatterChart(title, xLabel, yLabel string, xs, ys []float64, path string) error {
	if len(xs) == 0 || len(xs) != len(ys) {
		return fmt.Errorf("scatter needs matching non-empty series, got %d and %d", len(xs), len(ys))
	}
	p := newPlot(title, xLabel, yLabel, slices.Min(xs), slices.Max(xs), slices.Min(ys), slices.Max(ys))
	p.dc.SetColor(seriesColors[0])
	for i := range xs {
		p.dc.DrawCircle(p.x(xs[i]), p.y(ys[i]), 2.5)
		p.dc.Fill()
	}
	labels := make([]string, 6)
	for i := range labels {
		labels[i] = formatTick(p.xmin + (p.xmax-p.xmin)*float64(i)/5)
	}
	p.xTicks(labels, func(i int) float64 { return p.x(p.xmin + (p.xmax-p.xmin)*float64(i)/5) })
	return p.save(path)
}

// HistogramBins splits [min, max] into n equal bins. The last bin is closed.
func HistogramBins(values []float64, n int) (edges []float64, counts []int) {
	if len(values) == 0 || n <= 0 {
		return nil, nil
	}
	lo, hi := slices.Min(values), slices.Max(values)
	width := (hi - lo) / float64(n)
	edges = make([]float64, n+1)
	for i := range edges {
		edges[i] = lo + width*float64(i)
	}
	counts = make([]int, n)
	for _, v := range values {
		i := n - 1
		if width > 0 {
			i = min(n-1, int(math.Floor((v-lo)/width)))
		}
		counts[i]++
	}
	return edges, counts
}

func Histogram(title, xLabel string, values []float64, bins int, path string) error {
	edges, counts := HistogramBins(values, bins)
	if counts == nil {
		return fmt.Errorf("no data to plot")
	}
	p := newPlot(title, xLabel, "Frecuencia", edges[0], edges[len(edges)-1], 0, float64(slices.Max(counts)))
	p.dc.SetColor(seriesColors[0])
	for i, c := range counts {
		x0, x1 := p.x(edges[i]), p.x(edges[i+1])
		if x1-x0 < 1 {
			x1 = x0 + 1
		}
		p.dc.DrawRectangle(x0, p.y(float64(c)), x1-x0-1, p.y(0)-p.y(float64(c)))
		p.dc.Fill()
	}
	labels := make([]string, len(edges))
	for i, e := range edges {
		labels[i] = formatTick(e)
	}
	p.xTicks(labels, func(i int) float64 { return p.x(edges[i]) })
	return p.save(path)
}

// GroupedBarChart draws one bar per series inside each category.
func GroupedBarChart(title, yLabel string, seriesNames []string, groups []BarGroup, path string) error {
	var values []float64
	for _, g := range groups {
		values = append(values, g.Values...)
	}
	if len(values) == 0 {
		return fmt.Errorf("no data to plot")
	}
	p := newPlot(title, "", yLabel, 0, float64(len(groups)), math.Min(0, slices.Min(values)), slices.Max(values))
	slot := p.x(1) - p.x(0)
	barWidth := slot * 0.8 / float64(max(1, len(seriesNames)))
	labels := make([]string, len(groups))
	for gi, g := range groups {
		labels[gi] = g.Category
		for si, v := range g.Values {
			x := p.x(float64(gi)) + slot*0.1 + float64(si)*barWidth
			p.dc.SetColor(seriesColors[si%len(seriesColors)])
			p.dc.DrawRectangle(x, p.y(v), barWidth-2, p.y(0)-p.y(v))
			p.dc.Fill()
		}
	}
	p.xTicks(labels, func(i int) float64 { return p.x(float64(i) + 0.5) })
	p.legend(seriesNames)
	return p.save(path)
}
