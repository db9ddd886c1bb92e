package raster

import (
	"fmt"
	"math"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// toJSON turns an evaluated value into the shape the remote service returns
// for the same expression.
func toJSON(v any) (any, error) {
	switch x := v.(type) {
	case nil, string, bool:
		return x, nil
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil, nil
		}
		return x, nil
	case time.Time:
		return map[string]any{"type": "Date", "value": x.UnixMilli()}, nil
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			j, err := toJSON(item)
			if err != nil {
				return nil, err
			}
			out[i] = j
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, item := range x {
			j, err := toJSON(item)
			if err != nil {
				return nil, err
			}
			out[k] = j
		}
		return out, nil
	case orb.Geometry:
		return geojson.NewGeometry(x), nil
	case Feature:
		return featureJSON(x)
	case featureCollection:
		features := make([]any, len(x))
		for i, f := range x {
			j, err := featureJSON(f)
			if err != nil {
				return nil, err
			}
			features[i] = j
		}
		return map[string]any{"type": "FeatureCollection", "features": features}, nil
	case imageCollection:
		if len(x) == 0 {
			return map[string]any{"type": "ImageCollection", "features": []any{}}, nil
		}
	}
	return nil, fmt.Errorf("cannot compute a value of type %s", kindOf(v))
}

func featureJSON(f Feature) (map[string]any, error) {
	props, err := toJSON(f.Properties)
	if err != nil {
		return nil, err
	}
	var geom any
	if f.Geometry != nil {
		geom = geojson.NewGeometry(f.Geometry)
	}
	out := map[string]any{"type": "Feature", "geometry": geom, "properties": props}
	if f.ID != "" {
		out["id"] = f.ID
	}
	return out, nil
}
