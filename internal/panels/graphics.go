package panels

import (
	"context"
	"strconv"
	"time"

	"github.com/itss-sierra/islas-calor/internal/analysis"
	"github.com/itss-sierra/islas-calor/output"
)

// Chart names, also the PNG file names under the locality directory.
const (
	ChartScatter            = "dispersion"
	ChartHistogram          = "histograma"
	ChartSeries             = "serie"
	ChartAnnual             = "anual"
	ChartComparisonBars     = "comparativa_barras"
	ChartComparisonSeries   = "comparativa_serie"
	histogramBins           = 20
	msgNotEnoughData        = "No hay datos suficientes."
	msgNotEnoughTimePoints  = "No hay suficientes puntos temporales."
	msgRealData             = "✅ Datos reales obtenidos de %s."
	msgAnnualNotEnoughYears = "No hay años con datos suficientes."
)

type GraphicsView struct {
	Session  analysis.Session           `json:"session"`
	Scenes   int                        `json:"scenes"`
	Samples  []analysis.SamplePoint     `json:"samples"`
	Series   []analysis.TimeSeriesPoint `json:"series"`
	Charts   map[string]string          `json:"charts,omitempty"`
	Messages Messages                   `json:"messages"`
}

func (v *GraphicsView) messages() Messages {
	if v == nil {
		return nil
	}
	return v.Messages
}

// Graphics renders the NDVI-LST scatter, the LST histogram and the per-scene
// series.
func (d *Dashboard) Graphics(ctx context.Context, s analysis.Session) (view *GraphicsView, err error) {
	if err := d.validate(s); err != nil {
		return nil, err
	}
	start := time.Now()
	view = &GraphicsView{Session: s}
	defer func() { d.record(PanelGraphics, start, view.messages(), err) }()

	p := d.pipeline(ctx, &view.Messages)
	if p == nil {
		return view, nil
	}
	g, err := p.Graphics(ctx, s)
	if userFacing(err, &view.Messages, msgNotEnoughData) {
		return view, nil
	}
	if err != nil {
		return nil, err
	}
	view.Scenes, view.Samples, view.Series = g.Scenes, g.Samples, g.Series

	if _, err := d.localityDir(s.Locality); err != nil {
		return nil, err
	}
	view.Charts = map[string]string{}

	if len(g.Samples) > 0 {
		ndvi := make([]float64, len(g.Samples))
		lst := make([]float64, len(g.Samples))
		for i, pt := range g.Samples {
			ndvi[i], lst[i] = pt.NDVI, pt.LST
		}
		d.chart(view.Charts, s.Locality, ChartScatter, func(path string) error {
			return output.ScatterChart("Correlación Calor vs. Vegetación", "Índice de Vegetación (NDVI)", "Temperatura (°C)", ndvi, lst, path)
		})
		d.chart(view.Charts, s.Locality, ChartHistogram, func(path string) error {
			return output.Histogram("Distribución de Temperaturas", "Rango de Temperatura", lst, histogramBins, path)
		})
	}

	if len(g.Series) == 0 {
		view.Messages.add(LevelWarning, msgNotEnoughTimePoints)
	} else {
		d.chart(view.Charts, s.Locality, ChartSeries, func(path string) error {
			return output.LineChart("Tendencia Histórica (Serie de Tiempo)", "Temperatura Promedio (°C)", []output.Series{seriesOf(s.Locality, g.Series)}, path)
		})
	}

	view.Messages.add(LevelSuccess, msgRealData, s.Locality)
	return view, nil
}

func seriesOf(name string, points []analysis.TimeSeriesPoint) output.Series {
	out := output.Series{Name: name}
	for _, pt := range points {
		out.Labels = append(out.Labels, pt.Date)
		out.Values = append(out.Values, pt.LST)
	}
	return out
}

// chart renders one PNG and records its path. A rendering failure is
// logged and the chart left out.
func (d *Dashboard) chart(charts map[string]string, locality, name string, render func(path string) error) {
	path := d.ChartPath(locality, name)
	if err := render(path); err != nil {
		d.log.WithError(err).WithField("chart", name).Warn("chart not rendered")
		return
	}
	charts[name] = path
}

type AnnualView struct {
	Session  analysis.Session       `json:"session"`
	Points   []analysis.AnnualPoint `json:"points"`
	Charts   map[string]string      `json:"charts,omitempty"`
	Messages Messages               `json:"messages"`
}

func (v *AnnualView) messages() Messages {
	if v == nil {
		return nil
	}
	return v.Messages
}

// Annual renders the yearly mean LST over the session's year span.
func (d *Dashboard) Annual(ctx context.Context, s analysis.Session) (view *AnnualView, err error) {
	if err := d.validate(s); err != nil {
		return nil, err
	}
	start := time.Now()
	view = &AnnualView{Session: s}
	defer func() { d.record(PanelGraphics, start, view.messages(), err) }()

	p := d.pipeline(ctx, &view.Messages)
	if p == nil {
		return view, nil
	}
	points, err := p.AnnualSeries(ctx, s)
	if userFacing(err, &view.Messages, msgNotEnoughData) {
		return view, nil
	}
	if err != nil {
		return nil, err
	}
	view.Points = points
	if len(points) == 0 {
		view.Messages.add(LevelWarning, msgAnnualNotEnoughYears)
		return view, nil
	}

	if _, err := d.localityDir(s.Locality); err != nil {
		return nil, err
	}
	series := output.Series{Name: s.Locality}
	for _, pt := range points {
		series.Labels = append(series.Labels, strconv.Itoa(pt.Year))
		series.Values = append(series.Values, pt.LST)
	}
	view.Charts = map[string]string{}
	d.chart(view.Charts, s.Locality, ChartAnnual, func(path string) error {
		return output.LineChart("Evolución anual de la temperatura superficial promedio (°C)", "LST media (°C)", []output.Series{series}, path)
	})
	view.Messages.add(LevelSuccess, msgRealData, s.Locality)
	return view, nil
}
