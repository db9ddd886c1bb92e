package raster

import (
	"fmt"
	"time"

	"github.com/paulmach/orb"
)

type imageCollection []*Image
type featureCollection []Feature

type dateRange struct {
	start, end time.Time
}

type args map[string]any

func (a args) image(key string) (*Image, error) {
	img, ok := a[key].(*Image)
	if !ok {
		return nil, fmt.Errorf("argument %q must be an image, got %s", key, kindOf(a[key]))
	}
	return img, nil
}

func (a args) images(key string) (imageCollection, error) {
	col, ok := a[key].(imageCollection)
	if !ok {
		return nil, fmt.Errorf("argument %q must be an image collection, got %s", key, kindOf(a[key]))
	}
	return col, nil
}

func (a args) number(key string) (float64, error) {
	v, ok := a[key].(float64)
	if !ok {
		return 0, fmt.Errorf("argument %q must be a number, got %s", key, kindOf(a[key]))
	}
	return v, nil
}

func (a args) optNumber(key string, def float64) (float64, error) {
	if a[key] == nil {
		return def, nil
	}
	return a.number(key)
}

func (a args) optBool(key string, def bool) bool {
	if v, ok := a[key].(bool); ok {
		return v
	}
	return def
}

func (a args) str(key string) (string, error) {
	v, ok := a[key].(string)
	if !ok {
		return "", fmt.Errorf("argument %q must be a string, got %s", key, kindOf(a[key]))
	}
	return v, nil
}

func (a args) strs(key string) ([]string, error) {
	list, ok := a[key].([]any)
	if !ok {
		return nil, fmt.Errorf("argument %q must be a list, got %s", key, kindOf(a[key]))
	}
	out := make([]string, len(list))
	for i, item := range list {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("argument %q must hold strings", key)
		}
		out[i] = s
	}
	return out, nil
}

func (a args) nums(key string) ([]float64, error) {
	list, ok := a[key].([]any)
	if !ok {
		return nil, fmt.Errorf("argument %q must be a list, got %s", key, kindOf(a[key]))
	}
	out := make([]float64, len(list))
	for i, item := range list {
		f, ok := item.(float64)
		if !ok {
			return nil, fmt.Errorf("argument %q must hold numbers", key)
		}
		out[i] = f
	}
	return out, nil
}

func (a args) geometry(key string) (orb.Geometry, error) {
	switch v := a[key].(type) {
	case orb.Geometry:
		return v, nil
	case Feature:
		return v.Geometry, nil
	case featureCollection:
		return unionGeometry(v), nil
	}
	return nil, fmt.Errorf("argument %q must be a geometry, got %s", key, kindOf(a[key]))
}

func (a args) reducer(key string) (reducer, error) {
	r, ok := a[key].(reducer)
	if !ok {
		return reducer{}, fmt.Errorf("argument %q must be a reducer, got %s", key, kindOf(a[key]))
	}
	return r, nil
}

func (a args) date(key string) (time.Time, error) {
	t, ok := a[key].(time.Time)
	if !ok {
		return time.Time{}, fmt.Errorf("argument %q must be a date, got %s", key, kindOf(a[key]))
	}
	return t, nil
}

func kindOf(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case *Image:
		return "Image"
	case imageCollection:
		return "ImageCollection"
	case featureCollection:
		return "FeatureCollection"
	case Feature:
		return "Feature"
	case orb.Geometry:
		return "Geometry"
	case reducer:
		return "Reducer"
	case filter:
		return "Filter"
	case float64:
		return "Number"
	case string:
		return "String"
	case bool:
		return "Boolean"
	case time.Time:
		return "Date"
	case dateRange:
		return "DateRange"
	case map[string]any:
		return "Dictionary"
	case []any:
		return "List"
	case closure:
		return "Function"
	}
	return fmt.Sprintf("%T", v)
}
