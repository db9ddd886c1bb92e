package analysis

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/itss-sierra/islas-calor/internal/earthengine"
	"github.com/itss-sierra/islas-calor/internal/landsat"
	"github.com/paulmach/orb"
	"github.com/sirupsen/logrus"
)

// Comparison metric labels, in table order.
const (
	MetricMean = "LST Promedio (°C)"
	MetricMax  = "LST Máxima (°C)"
)

// Per-city messages.
const (
	MsgGeometryError = "Error cargando geometría."
	MsgNoData        = "Sin datos."
)

// ComparisonRow is one metric of one locality. Value is nil when the
// locality could not be processed or had no valid pixel.
type ComparisonRow struct {
	Locality string   `json:"locality"`
	Metric   string   `json:"metric"`
	Value    *float64 `json:"value"`
}

// CityResult is the per-locality part of a comparison.
type CityResult struct {
	Locality string    `json:"locality"`
	Scenes   int       `json:"scenes"`
	Center   orb.Point `json:"center"`
	Layer    *Layer    `json:"layer,omitempty"`
	Message  string    `json:"message,omitempty"`
}

type Comparison struct {
	Cities []CityResult      `json:"cities"`
	Rows   []ComparisonRow   `json:"rows"`
	Series []TimeSeriesPoint `json:"series"`
}

// ValidComparison reports whether names are two distinct known localities.
func ValidComparison(names []string) bool {
	if len(names) != 2 || names[0] == names[1] {
		return false
	}
	return slices.Contains(Localities, names[0]) && slices.Contains(Localities, names[1])
}

// Compare runs the LST pipeline for exactly two localities, one after the
// other. A locality that cannot be resolved or has no scenes is reported in
// its CityResult and the other one is still processed.
func (p *Pipeline) Compare(ctx context.Context, localities []string, dates DateRange, cloudCeiling float64) (*Comparison, error) {
	if !ValidComparison(localities) {
		return nil, ErrComparisonSelection
	}

	out := &Comparison{}
	for _, name := range localities {
		city, stats, series, err := p.compareCity(ctx, name, dates, cloudCeiling)
		if err != nil {
			return nil, err
		}
		out.Cities = append(out.Cities, city)
		out.Rows = append(out.Rows,
			ComparisonRow{Locality: name, Metric: MetricMean, Value: stats[BandLSTComposite+"_mean"]},
			ComparisonRow{Locality: name, Metric: MetricMax, Value: stats[BandLSTComposite+"_max"]},
		)
		out.Series = append(out.Series, series...)
	}
	return out, nil
}

func (p *Pipeline) compareCity(ctx context.Context, name string, dates DateRange, cloudCeiling float64) (CityResult, map[string]*float64, []TimeSeriesPoint, error) {
	city := CityResult{Locality: name}
	log := p.log.WithField("locality", name)

	roi, err := p.ResolveLocality(ctx, name)
	if err != nil {
		log.WithError(err).Warn("comparison locality skipped")
		city.Message = MsgGeometryError
		return city, nil, nil, nil
	}

	col := p.Scenes(roi, dates, cloudCeiling, false)
	city.Scenes, err = p.CountScenes(ctx, col)
	if errors.Is(err, ErrNoCleanImagery) {
		city.Message = MsgNoData
		return city, nil, nil, nil
	}
	if err != nil {
		return city, nil, nil, err
	}

	lst := Composite(col, roi, landsat.BandLST).Select(BandLSTComposite)
	var stats map[string]*float64
	reduction := lst.ReduceRegion(earthengine.ReduceRegionArgs{
		Reducer:    earthengine.ReducerMean().Combine(earthengine.ReducerMax(), true),
		Geometry:   roi,
		Scale:      zonalScale,
		BestEffort: true,
	})
	if err := p.ev.Compute(ctx, reduction, &stats); err != nil {
		return city, nil, nil, fmt.Errorf("failed to compute statistics of %s: %w", name, err)
	}

	if city.Center, err = p.Centroid(ctx, roi); err != nil {
		return city, nil, nil, err
	}
	url, err := p.ev.Tiles(ctx, lst, CompareVis)
	if err != nil {
		return city, nil, nil, fmt.Errorf("failed to publish LST layer of %s: %w", name, err)
	}
	city.Layer = &Layer{Name: "Temperatura", URL: url, Vis: CompareVis, Legend: "LST " + name, Visible: true}

	series, err := p.TimeSeries(ctx, col, roi, comparisonScale, name)
	if err != nil {
		return city, nil, nil, err
	}
	log.WithFields(logrus.Fields{"scenes": city.Scenes, "series": len(series)}).Info("comparison locality ready")
	return city, stats, series, nil
}
