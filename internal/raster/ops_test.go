package raster

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPercentile(t *testing.T) {
	sorted := []float64{1, 2, 3, 4}
	assert.InDelta(t, 2.5, Percentile(sorted, 50), 1e-12)
	assert.InDelta(t, 3.7, Percentile(sorted, 90), 1e-12)
	assert.InDelta(t, 1, Percentile(sorted, 0), 1e-12)
	assert.InDelta(t, 4, Percentile(sorted, 100), 1e-12)
	assert.InDelta(t, 7, Percentile([]float64{7}, 95), 1e-12)
}

func TestReducerOutputs(t *testing.T) {
	assert.Equal(t, []string{"p50"}, reducer{kind: "percentile", percentiles: []float64{50}}.outputs())
	mean, maxR := reducer{kind: "mean"}, reducer{kind: "max"}
	combined := reducer{kind: "combine", left: &mean, right: &maxR}
	assert.Equal(t, []string{"mean", "max"}, combined.outputs())
	assert.Equal(t, []any{2.0, 3.0}, combined.apply([]float64{1, 2, 3}))
	assert.Equal(t, []any{nil, nil}, combined.apply(nil))
}

// mask draws a band from rows of '#' (1), '.' (0) and ' ' (masked).
func mask(rows ...string) (*Grid, Band) {
	grid := NewAffineGrid(len(rows[0]), len(rows), 0, 0, 0.001, 100)
	b := newBand("hot", grid.Len())
	for r, row := range rows {
		for c, ch := range row {
			i := r*grid.Width + c
			switch ch {
			case '#':
				b.Data[i], b.Valid[i] = 1, true
			case '.':
				b.Data[i], b.Valid[i] = 0, true
			}
		}
	}
	return grid, b
}

func TestConnectedCountEightNeighbours(t *testing.T) {
	grid, b := mask(
		"#...#",
		".#...",
		"..#..",
		".....",
		"##...",
	)
	got := connectedCount(grid, b, 100, true)

	assert.Equal(t, 3.0, got.Data[0])  // diagonal chain of three
	assert.Equal(t, 3.0, got.Data[12]) // same chain
	assert.Equal(t, 1.0, got.Data[4])  // isolated corner
	assert.Equal(t, 2.0, got.Data[20])
	assert.Equal(t, 2.0, got.Data[21])
	assert.Equal(t, 19.0, got.Data[1]) // background zeros form one component
}

func TestConnectedCountFourNeighbours(t *testing.T) {
	grid, b := mask(
		"#..",
		".#.",
		"..#",
	)
	got := connectedCount(grid, b, 100, false)
	assert.Equal(t, 1.0, got.Data[0])
	assert.Equal(t, 1.0, got.Data[4])
}

func TestConnectedCountCapAndMask(t *testing.T) {
	grid, b := mask(
		"#### ",
		"####.",
	)
	got := connectedCount(grid, b, 5, true)
	assert.Equal(t, 5.0, got.Data[0])
	assert.False(t, got.Valid[4])
	assert.Equal(t, 1.0, got.Data[9])
}

func TestGridRegionStride(t *testing.T) {
	grid := NewAffineGrid(10, 10, 0, 0.009, 0.001, 100)
	area := orb.Polygon{{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}, {-1, -1}}}

	assert.Len(t, grid.Region(area, 1), 100)
	assert.Len(t, grid.Region(area, grid.stride(300)), 16)
	assert.Equal(t, 1, grid.stride(30))

	pts := grid.Region(grid.Point(55), 1)
	require.Len(t, pts, 1)
	assert.Equal(t, 55, pts[0])

	assert.Empty(t, grid.Region(orb.Point{5, 5}, 1))
}

func TestImageAddBandValidation(t *testing.T) {
	grid := NewAffineGrid(2, 2, 0, 0, 0.001, 100)
	img := NewImage(grid, nil)
	require.NoError(t, img.AddBand("a", []float64{1, 2, 3, 4}, nil))
	assert.Error(t, img.AddBand("a", []float64{1, 2, 3, 4}, nil))
	assert.Error(t, img.AddBand("b", []float64{1}, nil))
	assert.Equal(t, []string{"a"}, img.BandNames())
}
