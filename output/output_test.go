package output

import (
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHexColor(t *testing.T) {
	c, err := ParseHexColor("#d7301f")
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{R: 0xd7, G: 0x30, B: 0x1f, A: 255}, c)

	c, err = ParseHexColor("00FF00")
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{G: 255, A: 255}, c)

	_, err = ParseHexColor("green")
	assert.Error(t, err)
}

func TestColorizeStretchesAndMasks(t *testing.T) {
	layer := Layer{
		Width:   3,
		Height:  1,
		Values:  []float64{28, 45, 50},
		Valid:   []bool{true, true, false},
		Min:     28,
		Max:     45,
		Palette: []string{"0000FF", "FF0000"},
	}
	img, err := Colorize(layer)
	require.NoError(t, err)

	assert.Equal(t, color.NRGBA{B: 255, A: 255}, img.NRGBAAt(0, 0))
	assert.Equal(t, color.NRGBA{R: 255, A: 255}, img.NRGBAAt(1, 0))
	assert.Equal(t, uint8(0), img.NRGBAAt(2, 0).A)
}

func TestColorizeSingleColourPalette(t *testing.T) {
	img, err := Colorize(Layer{Width: 2, Height: 1, Values: []float64{1, 1}, Valid: []bool{true, true}, Palette: []string{"#d7301f"}})
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{R: 0xd7, G: 0x30, B: 0x1f, A: 255}, img.NRGBAAt(1, 0))
}

func TestColorizeRejectsShortMask(t *testing.T) {
	_, err := Colorize(Layer{Width: 2, Height: 1, Values: []float64{1, 2}, Valid: []bool{true}})
	assert.Error(t, err)
}

func TestHistogramBins(t *testing.T) {
	edges, counts := HistogramBins([]float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, 5)
	require.Len(t, edges, 6)
	assert.InDelta(t, 0, edges[0], 1e-12)
	assert.InDelta(t, 10, edges[5], 1e-12)
	assert.Equal(t, []int{2, 2, 2, 2, 3}, counts)

	total := 0
	_, counts = HistogramBins([]float64{30, 31.5, 33, 40, 41, 44.9}, 20)
	for _, c := range counts {
		total += c
	}
	assert.Equal(t, 6, total)

	_, counts = HistogramBins([]float64{7, 7, 7}, 20)
	assert.Equal(t, 3, counts[19])

	edges, counts = HistogramBins(nil, 20)
	assert.Nil(t, edges)
	assert.Nil(t, counts)
}

func TestChartsWritePNG(t *testing.T) {
	dir := t.TempDir()

	line := filepath.Join(dir, "serie.png")
	require.NoError(t, LineChart("Serie", "LST (°C)", []Series{
		{Name: "Villahermosa", Labels: []string{"2024-04-03", "2024-04-19"}, Values: []float64{34.2, 36.1}},
		{Name: "Cárdenas", Labels: []string{"2024-04-10"}, Values: []float64{33.0}},
	}, line))
	assert.FileExists(t, line)

	bars := filepath.Join(dir, "bars.png")
	require.NoError(t, GroupedBarChart("Comparativa", "°C", []string{"Villahermosa", "Cárdenas"}, []BarGroup{
		{Category: "LST Promedio (°C)", Values: []float64{35, 34}},
		{Category: "LST Máxima (°C)", Values: []float64{41, 39}},
	}, bars))
	assert.FileExists(t, bars)

	scatter := filepath.Join(dir, "scatter.png")
	require.NoError(t, ScatterChart("NDVI vs LST", "NDVI", "LST", []float64{0.1, 0.4}, []float64{38, 31}, scatter))

	legend := filepath.Join(dir, "legend.png")
	require.NoError(t, RenderLegend("LST (°C)", 28, 45, []string{"0000FF", "00FFFF", "FFFF00", "FF0000"}, legend))
	info, err := os.Stat(legend)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))

	assert.Error(t, LineChart("vacío", "", nil, filepath.Join(dir, "empty.png")))
}
