package export

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/itss-sierra/islas-calor/internal/analysis"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var samples = []analysis.SamplePoint{
	{Lon: -92.9301, Lat: 17.9872, LST: 38.41, NDVI: 0.12},
	{Lon: -92.9288, Lat: 17.9860, LST: 31.07, NDVI: 0.55},
	{Lon: -92.9275, Lat: 17.9849, LST: 35.5, NDVI: -0.02},
}

func TestSamplesCSVRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteSamples(&buf, samples))

	header, err := csv.NewReader(bytes.NewReader(buf.Bytes())).Read()
	require.NoError(t, err)
	assert.Equal(t, []string{"Lon", "Lat", "LST_C", "NDVI"}, header)

	records, err := ReadSamples(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	require.Len(t, records, len(samples))
	for i, r := range records {
		assert.Equal(t, samples[i].Lon, r.Lon)
		assert.Equal(t, samples[i].Lat, r.Lat)
		assert.Equal(t, samples[i].LST, r.LSTC)
		assert.Equal(t, samples[i].NDVI, r.NDVI)
	}
}

func TestSeriesCSV(t *testing.T) {
	rows := []analysis.ExportRow{
		{Date: "2024-04-03", LSTMean: 34.2, LSTMax: 41.9},
		{Date: "2024-04-19", LSTMean: 36.1, LSTMax: 43.0},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteSeries(&buf, rows))

	lines, err := csv.NewReader(bytes.NewReader(buf.Bytes())).ReadAll()
	require.NoError(t, err)
	require.Len(t, lines, 3)
	assert.Equal(t, []string{"Fecha", "LST_Promedio", "LST_Maxima"}, lines[0])
	assert.Equal(t, "2024-04-03", lines[1][0])

	records, err := ReadSeries(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, 43.0, records[1].LSTMaxima)
}

func TestWriteFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "Villahermosa")
	written, err := WriteFiles(dir, "Villahermosa", &analysis.Downloads{
		Series:  []analysis.ExportRow{{Date: "2024-04-03", LSTMean: 34.2, LSTMax: 41.9}},
		Samples: samples,
	})
	require.NoError(t, err)
	require.Len(t, written, 3)
	assert.Equal(t, filepath.Join(dir, "serie_tiempo_Villahermosa.csv"), written[0])
	assert.Equal(t, filepath.Join(dir, "puntos_muestreo_Villahermosa.csv"), written[1])

	raw, err := os.ReadFile(written[2])
	require.NoError(t, err)
	fc, err := geojson.UnmarshalFeatureCollection(raw)
	require.NoError(t, err)
	require.Len(t, fc.Features, len(samples))
	assert.Equal(t, samples[0].LST, fc.Features[0].Properties.MustFloat64("LST_C"))
}

func TestWriteFilesSkipsEmptyTables(t *testing.T) {
	written, err := WriteFiles(t.TempDir(), "Teapa", &analysis.Downloads{})
	require.NoError(t, err)
	assert.Empty(t, written)
}

func TestWriteFileReportsCloseError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "serie_tiempo_Teapa.csv")

	err := writeFile(path, func(w io.Writer) error {
		// Closing early makes the deferred close fail.
		return w.(io.Closer).Close()
	})
	assert.ErrorIs(t, err, os.ErrClosed)

	writeErr := errors.New("disco lleno")
	err = writeFile(path, func(io.Writer) error { return writeErr })
	assert.ErrorIs(t, err, writeErr)
}
