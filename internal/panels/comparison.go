package panels

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/itss-sierra/islas-calor/internal/analysis"
	"github.com/itss-sierra/islas-calor/output"
)

type ComparisonView struct {
	Session  analysis.Session           `json:"session"`
	Cities   []analysis.CityResult      `json:"cities"`
	Rows     []analysis.ComparisonRow   `json:"rows"`
	Series   []analysis.TimeSeriesPoint `json:"series"`
	Charts   map[string]string          `json:"charts,omitempty"`
	Messages Messages                   `json:"messages"`
}

func (v *ComparisonView) messages() Messages {
	if v == nil {
		return nil
	}
	return v.Messages
}

// Comparison renders the two-city section from s.Compare.
func (d *Dashboard) Comparison(ctx context.Context, s analysis.Session) (view *ComparisonView, err error) {
	start := time.Now()
	view = &ComparisonView{Session: s}
	defer func() { d.record(PanelComparison, start, view.messages(), err) }()

	if !analysis.ValidComparison(s.Compare) {
		view.Messages.add(LevelInfo, "%s", analysis.ErrComparisonSelection.Error())
		return view, nil
	}
	if err := d.validate(s); err != nil {
		return nil, err
	}

	p := d.pipeline(ctx, &view.Messages)
	if p == nil {
		return view, nil
	}
	res, err := p.Compare(ctx, s.Compare, s.Dates, s.CloudCeiling)
	if errors.Is(err, analysis.ErrComparisonSelection) {
		view.Messages.add(LevelInfo, "%s", err.Error())
		return view, nil
	}
	if err != nil {
		return nil, err
	}
	view.Cities, view.Rows, view.Series = res.Cities, res.Rows, res.Series

	for _, c := range res.Cities {
		if c.Message != "" {
			view.Messages.add(LevelWarning, "%s: %s", c.Locality, c.Message)
		}
	}

	name := ComparisonDir(s.Compare)
	if _, err := d.localityDir(name); err != nil {
		return nil, err
	}
	view.Charts = map[string]string{}
	if names, groups := barGroups(res.Rows); len(names) > 0 {
		d.chart(view.Charts, name, ChartComparisonBars, func(path string) error {
			return output.GroupedBarChart("Promedios y Máximos", "Grados Celsius", names, groups, path)
		})
	}
	if len(res.Series) > 0 {
		d.chart(view.Charts, name, ChartComparisonSeries, func(path string) error {
			return output.LineChart("Evolución Temporal Simultánea", "LST Promedio (°C)", seriesByLocality(res.Series), path)
		})
	}
	if len(view.Charts) > 0 {
		view.Messages.add(LevelSuccess, "Comparativa %s lista.", strings.Join(s.Compare, " vs "))
	}
	return view, nil
}

// ComparisonDir is the result directory key of a comparison.
func ComparisonDir(localities []string) string {
	return strings.Join(localities, "_vs_")
}

// barGroups keeps the localities with every metric present, one bar per
// locality inside each metric group.
func barGroups(rows []analysis.ComparisonRow) ([]string, []output.BarGroup) {
	var names []string
	complete := map[string]bool{}
	for _, r := range rows {
		if _, seen := complete[r.Locality]; !seen {
			complete[r.Locality] = true
			names = append(names, r.Locality)
		}
		if r.Value == nil {
			complete[r.Locality] = false
		}
	}
	kept := names[:0]
	for _, n := range names {
		if complete[n] {
			kept = append(kept, n)
		}
	}
	if len(kept) == 0 {
		return nil, nil
	}

	var groups []output.BarGroup
	for _, metric := range []string{analysis.MetricMean, analysis.MetricMax} {
		g := output.BarGroup{Category: metric}
		for _, n := range kept {
			for _, r := range rows {
				if r.Locality == n && r.Metric == metric {
					g.Values = append(g.Values, *r.Value)
				}
			}
		}
		groups = append(groups, g)
	}
	return kept, groups
}

func seriesByLocality(points []analysis.TimeSeriesPoint) []output.Series {
	var out []output.Series
	index := map[string]int{}
	for _, pt := range points {
		i, ok := index[pt.Locality]
		if !ok {
			i = len(out)
			index[pt.Locality] = i
			out = append(out, output.Series{Name: pt.Locality})
		}
		out[i].Labels = append(out[i].Labels, pt.Date)
		out[i].Values = append(out[i].Values, pt.LST)
	}
	return out
}
