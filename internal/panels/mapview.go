package panels

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/itss-sierra/islas-calor/internal/analysis"
	"github.com/itss-sierra/islas-calor/output"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// MsgBaseMapOnly is the toast shown when the backend cannot be reached.
const MsgBaseMapOnly = "No hay conexión con Google Earth Engine, mostrando solo mapa base"

type Basemap struct {
	Name        string `json:"name"`
	URL         string `json:"url"`
	Attribution string `json:"attribution"`
}

var Basemaps = []Basemap{
	{Name: "Google Maps", URL: "https://mt1.google.com/vt/lyrs=m&x={x}&y={y}&z={z}", Attribution: "Google"},
	{Name: "Google Satellite", URL: "https://mt1.google.com/vt/lyrs=s&x={x}&y={y}&z={z}", Attribution: "Google"},
	{Name: "Google Hybrid", URL: "https://mt1.google.com/vt/lyrs=y&x={x}&y={y}&z={z}", Attribution: "Google"},
	{Name: "Esri Satellite", URL: "https://server.arcgisonline.com/ArcGIS/rest/services/World_Imagery/MapServer/tile/{z}/{y}/{x}", Attribution: "Esri"},
}

// DefaultCenter is Villahermosa, used when nothing could be resolved.
var DefaultCenter = orb.Point{-92.9303, 17.9869}

const (
	DefaultZoom  = 13
	LegendLST    = "leyenda_lst"
	LegendNDVI   = "leyenda_ndvi"
	hotLabel     = "🔥 Umbral Calor Crítico (p90)"
	refugeLabel  = "Umbral Alta Vegetación (p95)"
	inspectTitle = "📍 Inspector: Lat: %.4f, Lon: %.4f"
)

type Metric struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

type MapView struct {
	Session  analysis.Session  `json:"session"`
	Center   orb.Point         `json:"center"`
	Zoom     int               `json:"zoom"`
	Boundary *geojson.Geometry `json:"boundary,omitempty"`
	Basemaps []Basemap         `json:"basemaps"`
	Layers   []analysis.Layer  `json:"layers"`
	Metrics  []Metric          `json:"metrics"`
	Legends  map[string]string `json:"legends,omitempty"`
	Scenes   int               `json:"scenes"`
	Messages Messages          `json:"messages"`
}

// Map renders the map section. Without a backend it still returns the base
// maps with the toast.
func (d *Dashboard) Map(ctx context.Context, s analysis.Session) (view *MapView, err error) {
	if err := d.validate(s); err != nil {
		return nil, err
	}
	start := time.Now()
	view = &MapView{Session: s, Center: DefaultCenter, Zoom: DefaultZoom, Basemaps: Basemaps}
	defer func() { d.record(PanelMap, start, view.messages(), err) }()

	p := d.pipeline(ctx, &view.Messages)
	if p == nil {
		view.Messages.add(LevelToast, MsgBaseMapOnly)
		return view, nil
	}

	res, err := p.MapLayers(ctx, s)
	if res != nil {
		view.Center = res.Center
		if res.Boundary != nil {
			view.Boundary = geojson.NewGeometry(res.Boundary)
		}
	}
	if userFacing(err, &view.Messages, analysis.ErrNoCleanImagery.Error()) {
		return view, nil
	}
	if err != nil {
		return nil, err
	}

	view.Scenes = res.Scenes
	view.Layers = res.Layers
	view.Metrics = []Metric{
		{Label: hotLabel, Value: analysis.FormatValue(res.HotThreshold, "%.2f °C")},
		{Label: refugeLabel, Value: analysis.FormatValue(res.RefugeThreshold, "%.2f NDVI")},
	}
	view.Legends = d.legends(s.Locality)
	view.Messages.add(LevelSuccess, "Análisis basado en %d imágenes procesadas.", res.Scenes)
	return view, nil
}

func (v *MapView) messages() Messages {
	if v == nil {
		return nil
	}
	return v.Messages
}

func (v *InspectView) messages() Messages {
	if v == nil {
		return nil
	}
	return v.Messages
}

// legends writes the LST and NDVI colour bars. A failure only loses the
// legend.
func (d *Dashboard) legends(locality string) map[string]string {
	dir, err := d.localityDir(locality)
	if err != nil {
		d.log.WithError(err).Warn("legends skipped")
		return nil
	}
	out := map[string]string{}
	for name, l := range map[string]struct {
		title string
		lo    float64
		hi    float64
		pal   []string
	}{
		LegendLST:  {"Temperatura LST (°C)", analysis.LSTVis.Min, analysis.LSTVis.Max, analysis.LSTVis.Palette},
		LegendNDVI: {"NDVI", analysis.NDVIVis.Min, analysis.NDVIVis.Max, analysis.NDVIVis.Palette},
	} {
		path := filepath.Join(dir, name+".png")
		if err := output.RenderLegend(l.title, l.lo, l.hi, l.pal, path); err != nil {
			d.log.WithError(err).WithField("legend", name).Warn("legend not rendered")
			continue
		}
		out[name] = path
	}
	return out
}

type InspectView struct {
	Title    string                `json:"title"`
	Values   *analysis.PointValues `json:"values,omitempty"`
	Metrics  []Metric              `json:"metrics"`
	Messages Messages              `json:"messages"`
}

// Inspect reads both composites at a clicked point.
func (d *Dashboard) Inspect(ctx context.Context, s analysis.Session, lon, lat float64) (view *InspectView, err error) {
	if err := d.validate(s); err != nil {
		return nil, err
	}
	start := time.Now()
	view = &InspectView{Title: fmt.Sprintf(inspectTitle, lat, lon)}
	defer func() { d.record(PanelMap, start, view.messages(), err) }()

	p := d.pipeline(ctx, &view.Messages)
	if p == nil {
		return view, nil
	}
	values, err := p.InspectSession(ctx, s, lon, lat)
	if userFacing(err, &view.Messages, analysis.ErrNoCleanImagery.Error()) {
		values = &analysis.PointValues{Lon: lon, Lat: lat}
		err = nil
	}
	if err != nil {
		return nil, err
	}
	view.Values = values
	view.Metrics = []Metric{
		{Label: "Temperatura", Value: analysis.FormatValue(values.LST, "%.2f °C")},
		{Label: "NDVI", Value: analysis.FormatValue(values.NDVI, "%.2f")},
	}
	return view, nil
}
