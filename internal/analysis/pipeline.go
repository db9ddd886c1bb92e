package analysis

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/itss-sierra/islas-calor/internal/earthengine"
	"github.com/itss-sierra/islas-calor/internal/landsat"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/sirupsen/logrus"
)

// Composite band names.
const (
	BandLSTComposite  = landsat.BandLST + "_p50"
	BandNDVIComposite = landsat.BandNDVI + "_p50"
)

const (
	LocalityField = "NOMGEO"

	hotPercentile    = 90
	refugePercentile = 95
	hotMinPatch      = 3
	hotMaxPatch      = 100
	thresholdScale   = 30
	thresholdPixels  = 1e9
)

// Visualisations shared by the map and comparison panels.
var (
	LSTVis     = earthengine.VisParams{Min: 28, Max: 45, Palette: []string{"0000FF", "00FFFF", "FFFF00", "FF0000"}}
	NDVIVis    = earthengine.VisParams{Min: 0, Max: 0.6, Palette: []string{"A52A2A", "FFFFFF", "008000"}}
	HotVis     = earthengine.VisParams{Palette: []string{"#d7301f"}}
	RefugeVis  = earthengine.VisParams{Palette: []string{"#00FF00"}}
	CompareVis = earthengine.VisParams{Min: 28, Max: 42, Palette: LSTVis.Palette}
)

// Pipeline builds the heat-island computations and pulls their results
// through an Evaluator. It holds no per-request state.
type Pipeline struct {
	ev              earthengine.Evaluator
	localitiesAsset string
	collectionID    string
	log             logrus.FieldLogger
}

func NewPipeline(ev earthengine.Evaluator, localitiesAsset string, log logrus.FieldLogger) *Pipeline {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Pipeline{
		ev:              ev,
		localitiesAsset: localitiesAsset,
		collectionID:    landsat.CollectionID,
		log:             log.WithField("backend", ev.Name()),
	}
}

// ResolveLocality looks up the urban area called name. The match count is
// evaluated once; the returned geometry stays deferred.
func (p *Pipeline) ResolveLocality(ctx context.Context, name string) (earthengine.Geometry, error) {
	matches := earthengine.LoadTable(p.localitiesAsset).Filter(earthengine.FilterEq(LocalityField, name))
	var n int
	if err := p.ev.Compute(ctx, matches.Size(), &n); err != nil {
		return earthengine.Geometry{}, fmt.Errorf("failed to look up locality %s: %w", name, err)
	}
	if n == 0 {
		return earthengine.Geometry{}, fmt.Errorf("%w (%s)", ErrLocalityNotFound, name)
	}
	return matches.Geometry(), nil
}

// Scenes returns the masked Landsat scenes over roi. The end date is
// inclusive. NDVI is left out for the comparison pipeline.
func (p *Pipeline) Scenes(roi earthengine.Geometry, dates DateRange, cloudCeiling float64, withNDVI bool) earthengine.ImageCollection {
	col := earthengine.LoadImageCollection(p.collectionID).
		FilterBounds(roi).
		FilterDate(dates.Start, dates.End.AddDate(0, 0, 1)).
		Filter(earthengine.FilterLt(landsat.PropertyCloudCover, cloudCeiling)).
		Map(MaskClouds).
		Map(MaskThermal).
		Map(AddLST)
	if withNDVI {
		col = col.Map(AddNDVI)
	}
	return col
}

// MaskClouds drops pixels whose QA_PIXEL has the cloud or cloud-shadow bit set.
func MaskClouds(img earthengine.Image) earthengine.Image {
	qa := img.Select(landsat.BandQA)
	clearSky := qa.BitwiseAnd(1 << landsat.QABitCloudShadow).Eq(0).
		And(qa.BitwiseAnd(1 << landsat.QABitCloud).Eq(0))
	return img.UpdateMask(clearSky)
}

// MaskThermal drops ST_B10 fill and zero values.
func MaskThermal(img earthengine.Image) earthengine.Image {
	st := img.Select(landsat.BandThermal)
	return img.UpdateMask(st.Gt(0).And(st.Lt(landsat.ThermalFill)))
}

func AddLST(img earthengine.Image) earthengine.Image {
	lst := img.Select(landsat.BandThermal).
		Multiply(landsat.ThermalScale).
		Add(landsat.ThermalOffset).
		Subtract(landsat.KelvinToC).
		Rename(landsat.BandLST)
	return img.AddBands(lst)
}

func AddNDVI(img earthengine.Image) earthengine.Image {
	ndvi := img.NormalizedDifference(landsat.BandNIR, landsat.BandRed).Rename(landsat.BandNDVI)
	return img.AddBands(ndvi)
}

// CountScenes evaluates the collection size. Zero is reported as
// ErrNoCleanImagery so callers never reduce an empty collection.
func (p *Pipeline) CountScenes(ctx context.Context, col earthengine.ImageCollection) (int, error) {
	var n int
	if err := p.ev.Compute(ctx, col.Size(), &n); err != nil {
		return 0, fmt.Errorf("failed to count scenes: %w", err)
	}
	if n == 0 {
		return 0, ErrNoCleanImagery
	}
	return n, nil
}

// Composite is the per-pixel median of the given bands, clipped to roi.
// Output bands carry a _p50 suffix.
func Composite(col earthengine.ImageCollection, roi earthengine.Geometry, bands ...string) earthengine.Image {
	return col.Select(bands...).Reduce(earthengine.ReducerPercentile(50)).Clip(roi)
}

// Threshold computes the given percentile of band over roi at 30 m. A nil
// result means the region had no valid pixel.
func (p *Pipeline) Threshold(ctx context.Context, composite earthengine.Image, band string, percentile int, roi earthengine.Geometry) (*float64, error) {
	stats := composite.Select(band).ReduceRegion(earthengine.ReduceRegionArgs{
		Reducer:   earthengine.ReducerPercentile(percentile),
		Geometry:  roi,
		Scale:     thresholdScale,
		MaxPixels: thresholdPixels,
	})
	var values map[string]*float64
	if err := p.ev.Compute(ctx, stats, &values); err != nil {
		return nil, fmt.Errorf("failed to compute p%d of %s: %w", percentile, band, err)
	}
	return p.pickThreshold(values, band), nil
}

// pickThreshold reads key from a reduceRegion result. Some backends name the
// output after the reducer; the first non-null value in key order is used
// then.
func (p *Pipeline) pickThreshold(values map[string]*float64, key string) *float64 {
	if v, ok := values[key]; ok {
		return v
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		if values[k] != nil {
			p.log.WithFields(logrus.Fields{"expected": key, "used": k}).Warn("threshold key missing, using fallback")
			return values[k]
		}
	}
	return nil
}

// HotMask keeps pixels at or above threshold that belong to an
// 8-connected patch of at least three pixels. Other pixels are transparent.
func HotMask(composite earthengine.Image, threshold float64) earthengine.Image {
	hot := composite.Select(BandLSTComposite).Gte(threshold)
	patches := hot.ConnectedPixelCount(hotMaxPatch, true)
	return hot.UpdateMask(patches.Gte(hotMinPatch)).SelfMask()
}

// Refuges keeps pixels whose NDVI is at or above threshold.
func Refuges(composite earthengine.Image, threshold float64) earthengine.Image {
	return composite.Select(BandNDVIComposite).Gte(threshold).SelfMask()
}

// Centroid evaluates the centre of roi as (lon, lat).
func (p *Pipeline) Centroid(ctx context.Context, roi earthengine.Geometry) (orb.Point, error) {
	var g geojson.Geometry
	if err := p.ev.Compute(ctx, roi.Centroid(), &g); err != nil {
		return orb.Point{}, fmt.Errorf("failed to compute centroid: %w", err)
	}
	pt, ok := g.Geometry().(orb.Point)
	if !ok {
		return orb.Point{}, fmt.Errorf("centroid is a %s, not a point", g.Type)
	}
	return pt, nil
}

// Boundary evaluates roi for drawing the urban limit.
func (p *Pipeline) Boundary(ctx context.Context, roi earthengine.Geometry) (orb.Geometry, error) {
	var g geojson.Geometry
	if err := p.ev.Compute(ctx, roi, &g); err != nil {
		return nil, fmt.Errorf("failed to compute boundary: %w", err)
	}
	return g.Geometry(), nil
}

// Layer is one rendered overlay.
type Layer struct {
	Name    string                `json:"name"`
	URL     string                `json:"url"`
	Vis     earthengine.VisParams `json:"vis"`
	Legend  string                `json:"legend,omitempty"`
	Visible bool                  `json:"visible"`
}

// MapResult is everything the map panel shows for a session.
type MapResult struct {
	Locality        string       `json:"locality"`
	Center          orb.Point    `json:"center"`
	Boundary        orb.Geometry `json:"-"`
	Scenes          int          `json:"scenes"`
	HotThreshold    *float64     `json:"hot_threshold"`
	RefugeThreshold *float64     `json:"refuge_threshold"`
	Layers          []Layer      `json:"layers"`
}

// MapLayers runs the full map pipeline. ErrNoCleanImagery is returned
// together with a result carrying the centre and boundary, so the caller can
// still draw the locality.
func (p *Pipeline) MapLayers(ctx context.Context, s Session) (*MapResult, error) {
	start := time.Now()
	roi, err := p.ResolveLocality(ctx, s.Locality)
	if err != nil {
		return nil, err
	}
	res := &MapResult{Locality: s.Locality}
	if res.Center, err = p.Centroid(ctx, roi); err != nil {
		return nil, err
	}
	if res.Boundary, err = p.Boundary(ctx, roi); err != nil {
		return nil, err
	}

	col := p.Scenes(roi, s.Dates, s.CloudCeiling, true)
	if res.Scenes, err = p.CountScenes(ctx, col); err != nil {
		return res, err
	}

	composite := Composite(col, roi, landsat.BandLST, landsat.BandNDVI)
	lstBand := composite.Select(BandLSTComposite)
	ndviBand := composite.Select(BandNDVIComposite)

	if err := p.addLayer(ctx, res, lstBand, Layer{Name: "1. LST (°C)", Vis: LSTVis, Legend: "Temperatura LST (°C)", Visible: true}); err != nil {
		return nil, err
	}

	if res.HotThreshold, err = p.Threshold(ctx, composite, BandLSTComposite, hotPercentile, roi); err != nil {
		return nil, err
	}
	if t := res.HotThreshold; t != nil {
		name := fmt.Sprintf("2. Hotspots (> %.1f°C)", *t)
		if err := p.addLayer(ctx, res, HotMask(composite, *t), Layer{Name: name, Vis: HotVis, Visible: true}); err != nil {
			return nil, err
		}
	}

	if err := p.addLayer(ctx, res, ndviBand, Layer{Name: "3. NDVI", Vis: NDVIVis, Visible: true}); err != nil {
		return nil, err
	}

	if res.RefugeThreshold, err = p.Threshold(ctx, composite, BandNDVIComposite, refugePercentile, roi); err != nil {
		return nil, err
	}
	if t := res.RefugeThreshold; t != nil {
		name := fmt.Sprintf("4. Refugios Verdes (> %.2f)", *t)
		if err := p.addLayer(ctx, res, Refuges(composite, *t), Layer{Name: name, Vis: RefugeVis, Visible: true}); err != nil {
			return nil, err
		}
	}

	p.log.WithFields(logrus.Fields{
		"locality": s.Locality,
		"scenes":   res.Scenes,
		"layers":   len(res.Layers),
		"duration": time.Since(start).String(),
	}).Info("map layers ready")
	return res, nil
}

func (p *Pipeline) addLayer(ctx context.Context, res *MapResult, img earthengine.Image, layer Layer) error {
	url, err := p.ev.Tiles(ctx, img, layer.Vis)
	if err != nil {
		return fmt.Errorf("failed to publish layer %q: %w", layer.Name, err)
	}
	layer.URL = url
	res.Layers = append(res.Layers, layer)
	return nil
}

// PointValues is the inspector readout. Nil means masked or outside the
// locality.
type PointValues struct {
	Lon  float64  `json:"lon"`
	Lat  float64  `json:"lat"`
	LST  *float64 `json:"lst"`
	NDVI *float64 `json:"ndvi"`
}

// Inspect reads the composite at a clicked point at 30 m.
func (p *Pipeline) Inspect(ctx context.Context, composite earthengine.Image, lon, lat float64) (*PointValues, error) {
	stats := composite.Select(BandLSTComposite, BandNDVIComposite).ReduceRegion(earthengine.ReduceRegionArgs{
		Reducer:  earthengine.ReducerFirst(),
		Geometry: earthengine.Point(lon, lat),
		Scale:    thresholdScale,
	})
	var values map[string]*float64
	if err := p.ev.Compute(ctx, stats, &values); err != nil {
		return nil, fmt.Errorf("failed to inspect %.4f, %.4f: %w", lat, lon, err)
	}
	return &PointValues{Lon: lon, Lat: lat, LST: values[BandLSTComposite], NDVI: values[BandNDVIComposite]}, nil
}

// InspectSession rebuilds the composite for s and reads it at a point.
func (p *Pipeline) InspectSession(ctx context.Context, s Session, lon, lat float64) (*PointValues, error) {
	roi, err := p.ResolveLocality(ctx, s.Locality)
	if err != nil {
		return nil, err
	}
	col := p.Scenes(roi, s.Dates, s.CloudCeiling, true)
	if _, err := p.CountScenes(ctx, col); err != nil {
		return nil, err
	}
	return p.Inspect(ctx, Composite(col, roi, landsat.BandLST, landsat.BandNDVI), lon, lat)
}

// FormatValue renders a readout the way the inspector shows it.
func FormatValue(v *float64, format string) string {
	if v == nil {
		return "N/A"
	}
	return fmt.Sprintf(format, *v)
}
