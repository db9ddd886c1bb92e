package raster

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

func (e *Engine) invoke(ctx context.Context, function string, a args) (any, error) {
	switch function {
	// collections
	case "ImageCollection.load":
		id, err := a.str("id")
		if err != nil {
			return nil, err
		}
		scenes, ok := e.catalog.Collections[id]
		if !ok {
			return nil, fmt.Errorf("image collection %q not found", id)
		}
		return imageCollection(scenes), nil
	case "Collection.loadTable":
		id, err := a.str("tableId")
		if err != nil {
			return nil, err
		}
		features, ok := e.catalog.Tables[id]
		if !ok {
			return nil, fmt.Errorf("table %q not found", id)
		}
		return featureCollection(features), nil
	case "Collection":
		list, ok := a["features"].([]any)
		if !ok {
			return nil, fmt.Errorf("argument \"features\" must be a list")
		}
		out := make(featureCollection, 0, len(list))
		for _, item := range list {
			f, ok := item.(Feature)
			if !ok {
				return nil, fmt.Errorf("collection element must be a feature, got %s", kindOf(item))
			}
			out = append(out, f)
		}
		return out, nil
	case "Collection.filter":
		f, ok := a["filter"].(filter)
		if !ok {
			return nil, fmt.Errorf("argument \"filter\" must be a filter, got %s", kindOf(a["filter"]))
		}
		return filterCollection(a["collection"], f)
	case "Collection.map":
		c, ok := a["baseAlgorithm"].(closure)
		if !ok {
			return nil, fmt.Errorf("argument \"baseAlgorithm\" must be a function")
		}
		return e.mapCollection(ctx, a["collection"], c)
	case "Collection.size":
		switch col := a["collection"].(type) {
		case imageCollection:
			return float64(len(col)), nil
		case featureCollection:
			return float64(len(col)), nil
		}
		return nil, fmt.Errorf("argument \"collection\" must be a collection, got %s", kindOf(a["collection"]))
	case "Collection.geometry":
		col, ok := a["collection"].(featureCollection)
		if !ok {
			return nil, fmt.Errorf("argument \"collection\" must be a feature collection, got %s", kindOf(a["collection"]))
		}
		return unionGeometry(col), nil
	case "ImageCollection.reduce":
		col, err := a.images("collection")
		if err != nil {
			return nil, err
		}
		r, err := a.reducer("reducer")
		if err != nil {
			return nil, err
		}
		return reduceCollection(e.catalog.Grid, col, r, true)
	case "reduce.mean":
		col, err := a.images("collection")
		if err != nil {
			return nil, err
		}
		return reduceCollection(e.catalog.Grid, col, reducer{kind: "mean"}, false)

	// filters
	case "Filter.equals":
		field, err := a.str("leftField")
		if err != nil {
			return nil, err
		}
		want := a["rightValue"]
		return filter(func(props map[string]any, _ orb.Bound) bool {
			return props[field] == want
		}), nil
	case "Filter.lessThan":
		field, err := a.str("leftField")
		if err != nil {
			return nil, err
		}
		limit, err := a.number("rightValue")
		if err != nil {
			return nil, err
		}
		return filter(func(props map[string]any, _ orb.Bound) bool {
			v, ok := normalize(props[field]).(float64)
			return ok && v < limit
		}), nil
	case "Filter.notNull":
		fields, err := a.strs("properties")
		if err != nil {
			return nil, err
		}
		return filter(func(props map[string]any, _ orb.Bound) bool {
			for _, f := range fields {
				if props[f] == nil {
					return false
				}
			}
			return true
		}), nil
	case "Filter.intersects":
		geom, err := a.geometry("rightValue")
		if err != nil {
			return nil, err
		}
		target := geom.Bound()
		return filter(func(_ map[string]any, bound orb.Bound) bool {
			return bound.Intersects(target)
		}), nil
	case "Filter.dateRangeContains":
		r, ok := a["leftValue"].(dateRange)
		if !ok {
			return nil, fmt.Errorf("argument \"leftValue\" must be a date range, got %s", kindOf(a["leftValue"]))
		}
		field, err := a.str("rightField")
		if err != nil {
			return nil, err
		}
		return filter(func(props map[string]any, _ orb.Bound) bool {
			ms, ok := normalize(props[field]).(float64)
			if !ok {
				return false
			}
			t := time.UnixMilli(int64(ms)).UTC()
			return !t.Before(r.start) && t.Before(r.end)
		}), nil

	// reducers
	case "Reducer.percentile":
		ps, err := a.nums("percentiles")
		if err != nil {
			return nil, err
		}
		return reducer{kind: "percentile", percentiles: ps}, nil
	case "Reducer.mean":
		return reducer{kind: "mean"}, nil
	case "Reducer.max":
		return reducer{kind: "max"}, nil
	case "Reducer.min":
		return reducer{kind: "min"}, nil
	case "Reducer.first":
		return reducer{kind: "first"}, nil
	case "Reducer.combine":
		left, err := a.reducer("reducer1")
		if err != nil {
			return nil, err
		}
		right, err := a.reducer("reducer2")
		if err != nil {
			return nil, err
		}
		return reducer{kind: "combine", left: &left, right: &right}, nil

	// geometry and features
	case "GeometryConstructors.Point":
		coords, err := a.nums("coordinates")
		if err != nil {
			return nil, err
		}
		if len(coords) != 2 {
			return nil, fmt.Errorf("a point needs 2 coordinates, got %d", len(coords))
		}
		return orb.Point{coords[0], coords[1]}, nil
	case "Geometry.centroid":
		geom, err := a.geometry("geometry")
		if err != nil {
			return nil, err
		}
		if p, ok := geom.(orb.Point); ok {
			return p, nil
		}
		centroid, _ := planar.CentroidArea(geom)
		return centroid, nil
	case "Feature":
		var geom orb.Geometry
		if a["geometry"] != nil {
			g, err := a.geometry("geometry")
			if err != nil {
				return nil, err
			}
			geom = g
		}
		props := map[string]any{}
		if m, ok := a["metadata"].(map[string]any); ok {
			props = m
		}
		return Feature{Geometry: geom, Properties: props}, nil

	// scalars
	case "Dictionary.get":
		dict, ok := a["dictionary"].(map[string]any)
		if !ok {
			return nil, fmt.Errorf("argument \"dictionary\" must be a dictionary, got %s", kindOf(a["dictionary"]))
		}
		key, err := a.str("key")
		if err != nil {
			return nil, err
		}
		v, ok := dict[key]
		if !ok {
			return nil, fmt.Errorf("dictionary does not contain key: %s", key)
		}
		return v, nil
	case "Date":
		return parseDate(a["value"])
	case "DateRange":
		start, err := parseDate(a["start"])
		if err != nil {
			return nil, err
		}
		end, err := parseDate(a["end"])
		if err != nil {
			return nil, err
		}
		return dateRange{start: start, end: end}, nil
	case "Date.format":
		t, err := a.date("date")
		if err != nil {
			return nil, err
		}
		pattern, err := a.str("format")
		if err != nil {
			return nil, err
		}
		return t.Format(jodaLayout(pattern)), nil
	}

	if strings.HasPrefix(function, "Image.") {
		return e.invokeImage(function, a)
	}
	return nil, fmt.Errorf("unsupported algorithm")
}

type filter func(props map[string]any, bound orb.Bound) bool

func filterCollection(col any, f filter) (any, error) {
	switch c := col.(type) {
	case imageCollection:
		out := imageCollection{}
		for _, img := range c {
			if f(img.Props, img.Grid.Bound()) {
				out = append(out, img)
			}
		}
		return out, nil
	case featureCollection:
		out := featureCollection{}
		for _, feat := range c {
			var bound orb.Bound
			if feat.Geometry != nil {
				bound = feat.Geometry.Bound()
			}
			if f(feat.Properties, bound) {
				out = append(out, feat)
			}
		}
		return out, nil
	}
	return nil, fmt.Errorf("cannot filter %s", kindOf(col))
}

func (e *Engine) mapCollection(ctx context.Context, col any, c closure) (any, error) {
	var elements []any
	switch v := col.(type) {
	case imageCollection:
		if len(v) == 0 {
			return imageCollection{}, nil
		}
		for _, img := range v {
			elements = append(elements, img)
		}
	case featureCollection:
		for _, f := range v {
			elements = append(elements, f)
		}
	default:
		return nil, fmt.Errorf("cannot map over %s", kindOf(col))
	}

	var images imageCollection
	var features featureCollection
	for _, el := range elements {
		out, err := e.apply(ctx, c, el)
		if err != nil {
			return nil, err
		}
		switch r := out.(type) {
		case *Image:
			images = append(images, r)
		case Feature:
			features = append(features, r)
		default:
			return nil, fmt.Errorf("mapped function must return an image or a feature, got %s", kindOf(out))
		}
	}
	if len(images) > 0 && len(features) > 0 {
		return nil, fmt.Errorf("mapped function returned mixed element types")
	}
	if len(images) > 0 {
		return images, nil
	}
	if features == nil {
		features = featureCollection{}
	}
	return features, nil
}

func unionGeometry(col featureCollection) orb.Geometry {
	if len(col) == 1 {
		return col[0].Geometry
	}
	var polys orb.MultiPolygon
	var rest orb.Collection
	for _, f := range col {
		switch g := f.Geometry.(type) {
		case orb.Polygon:
			polys = append(polys, g)
		case orb.MultiPolygon:
			polys = append(polys, g...)
		case nil:
		default:
			rest = append(rest, g)
		}
	}
	if len(rest) == 0 {
		return polys
	}
	if len(polys) > 0 {
		rest = append(rest, polys)
	}
	return rest
}

func parseDate(v any) (time.Time, error) {
	switch d := v.(type) {
	case time.Time:
		return d, nil
	case float64:
		return time.UnixMilli(int64(d)).UTC(), nil
	case string:
		for _, layout := range []string{"2006-01-02", time.RFC3339, "2006-01-02T15:04:05"} {
			if t, err := time.Parse(layout, d); err == nil {
				return t.UTC(), nil
			}
		}
		return time.Time{}, fmt.Errorf("cannot parse date %q", d)
	}
	return time.Time{}, fmt.Errorf("cannot convert %s to a date", kindOf(v))
}

// jodaLayout converts the subset of Joda patterns used for labels.
func jodaLayout(pattern string) string {
	r := strings.NewReplacer(
		"yyyy", "2006", "YYYY", "2006",
		"MM", "01", "dd", "02",
		"HH", "15", "mm", "04", "ss", "05",
	)
	return r.Replace(pattern)
}
