// Package export writes the downloadable tables: the per-scene LST series
// and the sampled composite points.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"
	"github.com/itss-sierra/islas-calor/internal/analysis"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

const (
	KindSeries  = "serie_tiempo"
	KindSamples = "puntos_muestreo"
)

type SeriesRecord struct {
	Fecha       string  `csv:"Fecha"`
	LSTPromedio float64 `csv:"LST_Promedio"`
	LSTMaxima   float64 `csv:"LST_Maxima"`
}

type SampleRecord struct {
	Lon  float64 `csv:"Lon"`
	Lat  float64 `csv:"Lat"`
	LSTC float64 `csv:"LST_C"`
	NDVI float64 `csv:"NDVI"`
}

// FileName returns e.g. serie_tiempo_Villahermosa.csv.
func FileName(kind, locality string) string {
	return fmt.Sprintf("%s_%s.csv", kind, locality)
}

func seriesRecords(rows []analysis.ExportRow) []*SeriesRecord {
	out := make([]*SeriesRecord, len(rows))
	for i, r := range rows {
		out[i] = &SeriesRecord{Fecha: r.Date, LSTPromedio: r.LSTMean, LSTMaxima: r.LSTMax}
	}
	return out
}

func sampleRecords(points []analysis.SamplePoint) []*SampleRecord {
	out := make([]*SampleRecord, len(points))
	for i, p := range points {
		out[i] = &SampleRecord{Lon: p.Lon, Lat: p.Lat, LSTC: p.LST, NDVI: p.NDVI}
	}
	return out
}

func WriteSeries(w io.Writer, rows []analysis.ExportRow) error {
	records := seriesRecords(rows)
	if err := gocsv.Marshal(&records, w); err != nil {
		return fmt.Errorf("error writing time series CSV: %w", err)
	}
	return nil
}

func WriteSamples(w io.Writer, points []analysis.SamplePoint) error {
	records := sampleRecords(points)
	if err := gocsv.Marshal(&records, w); err != nil {
		return fmt.Errorf("error writing sample CSV: %w", err)
	}
	return nil
}

func ReadSamples(r io.Reader) ([]*SampleRecord, error) {
	var records []*SampleRecord
	if err := gocsv.Unmarshal(r, &records); err != nil {
		return nil, fmt.Errorf("error reading sample CSV: %w", err)
	}
	return records, nil
}

func ReadSeries(r io.Reader) ([]*SeriesRecord, error) {
	var records []*SeriesRecord
	if err := gocsv.Unmarshal(r, &records); err != nil {
		return nil, fmt.Errorf("error reading time series CSV: %w", err)
	}
	return records, nil
}

// SamplesGeoJSON returns the sampled points as a FeatureCollection with the
// same property names as the CSV.
func SamplesGeoJSON(points []analysis.SamplePoint) ([]byte, error) {
	fc := geojson.NewFeatureCollection()
	for _, p := range points {
		f := geojson.NewFeature(orb.Point{p.Lon, p.Lat})
		f.Properties["LST_C"] = p.LST
		f.Properties["NDVI"] = p.NDVI
		fc.Append(f)
	}
	return json.Marshal(fc)
}

// WriteFiles writes every non-empty table of d under dir and returns the
// paths written.
func WriteFiles(dir, locality string, d *analysis.Downloads) ([]string, error) {
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return nil, fmt.Errorf("error creating export directory: %w", err)
	}

	var written []string
	if len(d.Series) > 0 {
		path := filepath.Join(dir, FileName(KindSeries, locality))
		if err := writeFile(path, func(w io.Writer) error { return WriteSeries(w, d.Series) }); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	if len(d.Samples) > 0 {
		path := filepath.Join(dir, FileName(KindSamples, locality))
		if err := writeFile(path, func(w io.Writer) error { return WriteSamples(w, d.Samples) }); err != nil {
			return written, err
		}
		written = append(written, path)

		raw, err := SamplesGeoJSON(d.Samples)
		if err != nil {
			return written, fmt.Errorf("error encoding sample GeoJSON: %w", err)
		}
		geoPath := filepath.Join(dir, fmt.Sprintf("%s_%s.geojson", KindSamples, locality))
		if err := os.WriteFile(geoPath, raw, 0644); err != nil {
			return written, fmt.Errorf("error writing sample GeoJSON: %w", err)
		}
		written = append(written, geoPath)
	}
	return written, nil
}

func writeFile(path string, write func(io.Writer) error) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating %s: %w", path, err)
	}
	defer func() {
		if cerr := file.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("error closing %s: %w", path, cerr)
		}
	}()
	return write(file)
}
