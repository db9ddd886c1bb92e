package analysis

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/itss-sierra/islas-calor/internal/earthengine"
	"github.com/itss-sierra/islas-calor/internal/landsat"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

const (
	graphicsSampleSize  = 1000
	graphicsSampleScale = 30
	exportSampleSize    = 500
	zonalScale          = 100
	comparisonScale     = 200
	annualScale         = 30
	sampleSeed          = 0
	seriesDateFormat    = "YYYY-MM-dd"
	dateProperty        = "date"
)

// SamplePoint is one sampled composite pixel. Lon and Lat are zero when the
// sample was taken without geometries.
type SamplePoint struct {
	Lon  float64 `json:"lon"`
	Lat  float64 `json:"lat"`
	LST  float64 `json:"lst"`
	NDVI float64 `json:"ndvi"`
}

// TimeSeriesPoint is the zonal mean LST of one scene.
type TimeSeriesPoint struct {
	Date     string  `json:"date"`
	LST      float64 `json:"lst"`
	Locality string  `json:"locality,omitempty"`
}

// ExportRow is one scene of the downloadable time series.
type ExportRow struct {
	Date    string
	LSTMean float64
	LSTMax  float64
}

// AnnualPoint is the mean LST of one calendar year.
type AnnualPoint struct {
	Year int     `json:"year"`
	LST  float64 `json:"lst"`
}

// Sample draws up to n composite pixels inside roi at scale metres. The
// seed is fixed so repeated renders show the same points.
func (p *Pipeline) Sample(ctx context.Context, composite earthengine.Image, roi earthengine.Geometry, scale float64, n int, geometries bool) ([]SamplePoint, error) {
	sample := composite.Select(BandLSTComposite, BandNDVIComposite).Sample(earthengine.SampleArgs{
		Region:     roi,
		Scale:      scale,
		NumPixels:  n,
		Seed:       sampleSeed,
		Geometries: geometries,
	})
	var fc geojson.FeatureCollection
	if err := p.ev.Compute(ctx, sample, &fc); err != nil {
		return nil, fmt.Errorf("failed to sample composite: %w", err)
	}

	points := make([]SamplePoint, 0, len(fc.Features))
	for _, f := range fc.Features {
		lst, okLST := number(f.Properties, BandLSTComposite)
		ndvi, okNDVI := number(f.Properties, BandNDVIComposite)
		if !okLST || !okNDVI {
			continue
		}
		pt := SamplePoint{LST: lst, NDVI: ndvi}
		if c, ok := f.Geometry.(orb.Point); ok {
			pt.Lon, pt.Lat = c.Lon(), c.Lat()
		}
		points = append(points, pt)
	}
	return points, nil
}

// TimeSeries computes the zonal mean LST of every scene at scale metres,
// dropping scenes with no valid pixel. Order follows the collection.
func (p *Pipeline) TimeSeries(ctx context.Context, col earthengine.ImageCollection, roi earthengine.Geometry, scale float64, locality string) ([]TimeSeriesPoint, error) {
	features := col.MapToFeatures(func(img earthengine.Image) earthengine.Feature {
		stats := img.Select(landsat.BandLST).ReduceRegion(earthengine.ReduceRegionArgs{
			Reducer:  earthengine.ReducerMean(),
			Geometry: roi,
			Scale:    scale,
		})
		props := map[string]earthengine.Computable{
			dateProperty:    img.Date().Format(seriesDateFormat),
			landsat.BandLST: stats.Get(landsat.BandLST),
		}
		if locality != "" {
			props["city"] = earthengine.StringOf(locality)
		}
		return earthengine.NewFeature(nil, props)
	}).Filter(earthengine.FilterNotNull(landsat.BandLST))

	var fc geojson.FeatureCollection
	if err := p.ev.Compute(ctx, features, &fc); err != nil {
		return nil, fmt.Errorf("failed to compute time series: %w", err)
	}
	series := make([]TimeSeriesPoint, 0, len(fc.Features))
	for _, f := range fc.Features {
		v, ok := number(f.Properties, landsat.BandLST)
		if !ok {
			continue
		}
		series = append(series, TimeSeriesPoint{
			Date:     f.Properties.MustString(dateProperty, ""),
			LST:      v,
			Locality: f.Properties.MustString("city", ""),
		})
	}
	return series, nil
}

// ExportSeries computes the per-scene mean and max LST at 100 m.
func (p *Pipeline) ExportSeries(ctx context.Context, col earthengine.ImageCollection, roi earthengine.Geometry) ([]ExportRow, error) {
	const (
		fecha    = "Fecha"
		promedio = "LST_Promedio"
		maxima   = "LST_Maxima"
	)
	features := col.MapToFeatures(func(img earthengine.Image) earthengine.Feature {
		stats := img.Select(landsat.BandLST).ReduceRegion(earthengine.ReduceRegionArgs{
			Reducer:  earthengine.ReducerMean().Combine(earthengine.ReducerMax(), true),
			Geometry: roi,
			Scale:    zonalScale,
		})
		return earthengine.NewFeature(nil, map[string]earthengine.Computable{
			fecha:    img.Date().Format(seriesDateFormat),
			promedio: stats.Get(landsat.BandLST + "_mean"),
			maxima:   stats.Get(landsat.BandLST + "_max"),
		})
	}).Filter(earthengine.FilterNotNull(promedio))

	var fc geojson.FeatureCollection
	if err := p.ev.Compute(ctx, features, &fc); err != nil {
		return nil, fmt.Errorf("failed to compute export series: %w", err)
	}
	rows := make([]ExportRow, 0, len(fc.Features))
	for _, f := range fc.Features {
		mean, ok := number(f.Properties, promedio)
		if !ok {
			continue
		}
		maxV, _ := number(f.Properties, maxima)
		rows = append(rows, ExportRow{Date: f.Properties.MustString(fecha, ""), LSTMean: mean, LSTMax: maxV})
	}
	return rows, nil
}

// AnnualSeries computes, for every calendar year of the session window from
// 2014 on, the zonal mean of that year's mean LST image. Years without
// scenes are counted first and never reduced.
func (p *Pipeline) AnnualSeries(ctx context.Context, s Session) ([]AnnualPoint, error) {
	roi, err := p.ResolveLocality(ctx, s.Locality)
	if err != nil {
		return nil, err
	}
	first := max(s.Dates.Start.Year(), MinDate.Year())
	last := s.Dates.End.Year()
	if last < first {
		return nil, nil
	}

	scenes := earthengine.LoadImageCollection(p.collectionID).
		FilterBounds(roi).
		Filter(earthengine.FilterLt(landsat.PropertyCloudCover, s.CloudCeiling))
	yearOf := func(col earthengine.ImageCollection, y int) earthengine.ImageCollection {
		start := time.Date(y, 1, 1, 0, 0, 0, 0, time.UTC)
		return col.FilterDate(start, start.AddDate(1, 0, 0))
	}

	var counts []earthengine.Feature
	for y := first; y <= last; y++ {
		counts = append(counts, earthengine.NewFeature(nil, map[string]earthengine.Computable{
			"year":  earthengine.NumberOf(float64(y)),
			"count": yearOf(scenes, y).Size(),
		}))
	}
	var countFC geojson.FeatureCollection
	if err := p.ev.Compute(ctx, earthengine.NewFeatureCollection(counts), &countFC); err != nil {
		return nil, fmt.Errorf("failed to count annual scenes: %w", err)
	}

	lst := scenes.Map(MaskClouds).Map(MaskThermal).Map(AddLST).Select(landsat.BandLST)
	var years []earthengine.Feature
	for _, f := range countFC.Features {
		if f.Properties.MustInt("count", 0) == 0 {
			continue
		}
		y := f.Properties.MustInt("year", 0)
		stats := yearOf(lst, y).Mean().ReduceRegion(earthengine.ReduceRegionArgs{
			Reducer:   earthengine.ReducerMean(),
			Geometry:  roi,
			Scale:     annualScale,
			MaxPixels: thresholdPixels,
		})
		years = append(years, earthengine.NewFeature(nil, map[string]earthengine.Computable{
			"year":  earthengine.NumberOf(float64(y)),
			"stats": stats,
		}))
	}
	if len(years) == 0 {
		p.log.WithField("locality", s.Locality).Info("no scenes in any year of the window")
		return nil, nil
	}

	var fc geojson.FeatureCollection
	if err := p.ev.Compute(ctx, earthengine.NewFeatureCollection(years), &fc); err != nil {
		return nil, fmt.Errorf("failed to compute annual series: %w", err)
	}
	var out []AnnualPoint
	for _, f := range fc.Features {
		stats, _ := f.Properties["stats"].(map[string]any)
		v, ok := number(stats, landsat.BandLST)
		if !ok {
			continue
		}
		out = append(out, AnnualPoint{Year: f.Properties.MustInt("year", 0), LST: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Year < out[j].Year })
	return out, nil
}

// Graphics bundles the statistics panel data.
type Graphics struct {
	Scenes  int               `json:"scenes"`
	Samples []SamplePoint     `json:"samples"`
	Series  []TimeSeriesPoint `json:"series"`
}

// Graphics samples the composite at 30 m and computes the per-scene series
// at 100 m.
func (p *Pipeline) Graphics(ctx context.Context, s Session) (*Graphics, error) {
	roi, err := p.ResolveLocality(ctx, s.Locality)
	if err != nil {
		return nil, err
	}
	col := p.Scenes(roi, s.Dates, s.CloudCeiling, true)
	n, err := p.CountScenes(ctx, col)
	if err != nil {
		return nil, err
	}
	composite := Composite(col, roi, landsat.BandLST, landsat.BandNDVI)
	samples, err := p.Sample(ctx, composite, roi, graphicsSampleScale, graphicsSampleSize, false)
	if err != nil {
		return nil, err
	}
	series, err := p.TimeSeries(ctx, col, roi, zonalScale, "")
	if err != nil {
		return nil, err
	}
	return &Graphics{Scenes: n, Samples: samples, Series: series}, nil
}

// Downloads bundles both exportable tables.
type Downloads struct {
	Series  []ExportRow
	Samples []SamplePoint
}

// Downloads computes the export time series and 500 sampled points with
// coordinates at 100 m.
func (p *Pipeline) Downloads(ctx context.Context, s Session) (*Downloads, error) {
	roi, err := p.ResolveLocality(ctx, s.Locality)
	if err != nil {
		return nil, err
	}
	col := p.Scenes(roi, s.Dates, s.CloudCeiling, true)
	if _, err := p.CountScenes(ctx, col); err != nil {
		return nil, err
	}
	series, err := p.ExportSeries(ctx, col, roi)
	if err != nil {
		return nil, err
	}
	composite := Composite(col, roi, landsat.BandLST, landsat.BandNDVI)
	samples, err := p.Sample(ctx, composite, roi, zonalScale, exportSampleSize, true)
	if err != nil {
		return nil, err
	}
	return &Downloads{Series: series, Samples: samples}, nil
}

func number(props map[string]any, key string) (float64, bool) {
	v, ok := props[key].(float64)
	return v, ok
}
