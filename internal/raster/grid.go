// Package raster is an in-process evaluator for the expression graphs built
// with package earthengine. It works on a catalog of co-registered scenes held
// in memory and supports the algorithms the heat-island pipeline emits.
package raster

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// Grid is the pixel layout shared by every image of a catalog. Lon and Lat
// hold WGS84 pixel centres in row-major order.
type Grid struct {
	Width     int
	Height    int
	PixelSize float64 // metres
	Lon       []float64
	Lat       []float64

	bound orb.Bound
}

func NewGrid(width, height int, pixelSize float64, lon, lat []float64) (*Grid, error) {
	n := width * height
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid grid size %dx%d", width, height)
	}
	if len(lon) != n || len(lat) != n {
		return nil, fmt.Errorf("grid %dx%d needs %d coordinates, got %d/%d", width, height, n, len(lon), len(lat))
	}
	if pixelSize <= 0 {
		return nil, fmt.Errorf("invalid pixel size %v", pixelSize)
	}
	g := &Grid{Width: width, Height: height, PixelSize: pixelSize, Lon: lon, Lat: lat}
	g.bound = orb.Bound{Min: orb.Point{lon[0], lat[0]}, Max: orb.Point{lon[0], lat[0]}}
	for i := range lon {
		g.bound = g.bound.Extend(orb.Point{lon[i], lat[i]})
	}
	return g, nil
}

// NewAffineGrid lays pixels out on a regular lon/lat lattice starting at the
// centre of the upper-left pixel.
func NewAffineGrid(width, height int, originLon, originLat, stepDeg, pixelSize float64) *Grid {
	lon := make([]float64, width*height)
	lat := make([]float64, width*height)
	for row := 0; row < height; row++ {
		for col := 0; col < width; col++ {
			i := row*width + col
			lon[i] = originLon + float64(col)*stepDeg
			lat[i] = originLat - float64(row)*stepDeg
		}
	}
	g, err := NewGrid(width, height, pixelSize, lon, lat)
	if err != nil {
		panic(err)
	}
	return g
}

func (g *Grid) Len() int { return g.Width * g.Height }

func (g *Grid) Bound() orb.Bound { return g.bound }

func (g *Grid) Point(i int) orb.Point { return orb.Point{g.Lon[i], g.Lat[i]} }

// stride converts a nominal scale in metres into a pixel step.
func (g *Grid) stride(scale float64) int {
	if scale <= 0 {
		return 1
	}
	return max(1, int(math.Round(scale/g.PixelSize)))
}

// nearest returns the pixel whose footprint holds p, or -1.
func (g *Grid) nearest(p orb.Point) int {
	best, bestDist := -1, math.Inf(1)
	for i := range g.Lon {
		d := metres(p, g.Point(i))
		if d < bestDist {
			best, bestDist = i, d
		}
	}
	if best < 0 || bestDist > g.PixelSize*0.75 {
		return -1
	}
	return best
}

// Region lists the pixels covered by geom, taking every stride-th row and
// column. A point selects the single pixel under it.
func (g *Grid) Region(geom orb.Geometry, stride int) []int {
	if p, ok := geom.(orb.Point); ok {
		if i := g.nearest(p); i >= 0 {
			return []int{i}
		}
		return nil
	}
	bound := geom.Bound()
	var out []int
	for row := 0; row < g.Height; row += stride {
		for col := 0; col < g.Width; col += stride {
			i := row*g.Width + col
			pt := g.Point(i)
			if !bound.Contains(pt) {
				continue
			}
			if covers(geom, pt) {
				out = append(out, i)
			}
		}
	}
	return out
}

func covers(geom orb.Geometry, p orb.Point) bool {
	switch v := geom.(type) {
	case orb.Polygon:
		return planar.PolygonContains(v, p)
	case orb.MultiPolygon:
		return planar.MultiPolygonContains(v, p)
	case orb.Bound:
		return v.Contains(p)
	case orb.Ring:
		return planar.RingContains(v, p)
	case orb.Collection:
		for _, part := range v {
			if covers(part, p) {
				return true
			}
		}
	}
	return false
}

func metres(a, b orb.Point) float64 {
	lat := (a[1] + b[1]) / 2 * math.Pi / 180
	dx := (a[0] - b[0]) * 111320 * math.Cos(lat)
	dy := (a[1] - b[1]) * 110540
	return math.Hypot(dx, dy)
}
