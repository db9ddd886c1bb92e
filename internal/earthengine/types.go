package earthengine

import (
	"time"
)

type Image struct{ node Node }
type ImageCollection struct{ node Node }
type Feature struct{ node Node }
type FeatureCollection struct{ node Node }
type Geometry struct{ node Node }
type Reducer struct{ node Node }
type Filter struct{ node Node }
type Number struct{ node Node }
type Dictionary struct{ node Node }
type Date struct{ node Node }
type String struct{ node Node }

func (i Image) Expr() Node             { return i.node }
func (c ImageCollection) Expr() Node   { return c.node }
func (f Feature) Expr() Node           { return f.node }
func (c FeatureCollection) Expr() Node { return c.node }
func (g Geometry) Expr() Node          { return g.node }
func (r Reducer) Expr() Node           { return r.node }
func (f Filter) Expr() Node            { return f.node }
func (n Number) Expr() Node            { return n.node }
func (d Dictionary) Expr() Node        { return d.node }
func (d Date) Expr() Node              { return d.node }
func (s String) Expr() Node            { return s.node }

// Value wraps an arbitrary node, for results computed directly.
type Value struct{ Node Node }

func (v Value) Expr() Node { return v.Node }

// ---- Image ----

func ImageConstant(v float64) Image {
	return Image{call("Image.constant", map[string]Node{"value": constant(v)})}
}

func (i Image) binary(function string, other Image) Image {
	return Image{call(function, map[string]Node{"image1": i.node, "image2": other.node})}
}

func (i Image) Select(bands ...string) Image {
	return Image{call("Image.select", map[string]Node{"input": i.node, "bandSelectors": stringList(bands)})}
}

func (i Image) Rename(names ...string) Image {
	return Image{call("Image.rename", map[string]Node{"input": i.node, "names": stringList(names)})}
}

func (i Image) BitwiseAnd(mask int) Image {
	return i.binary("Image.bitwiseAnd", ImageConstant(float64(mask)))
}

func (i Image) Eq(v float64) Image  { return i.binary("Image.eq", ImageConstant(v)) }
func (i Image) Gt(v float64) Image  { return i.binary("Image.gt", ImageConstant(v)) }
func (i Image) Lt(v float64) Image  { return i.binary("Image.lt", ImageConstant(v)) }
func (i Image) Gte(v float64) Image { return i.binary("Image.gte", ImageConstant(v)) }

func (i Image) GteImage(other Image) Image { return i.binary("Image.gte", other) }
func (i Image) And(other Image) Image      { return i.binary("Image.and", other) }

func (i Image) Multiply(v float64) Image { return i.binary("Image.multiply", ImageConstant(v)) }
func (i Image) Add(v float64) Image      { return i.binary("Image.add", ImageConstant(v)) }
func (i Image) Subtract(v float64) Image { return i.binary("Image.subtract", ImageConstant(v)) }

func (i Image) UpdateMask(mask Image) Image {
	return Image{call("Image.updateMask", map[string]Node{"image": i.node, "mask": mask.node})}
}

func (i Image) SelfMask() Image {
	return Image{call("Image.selfMask", map[string]Node{"image": i.node})}
}

func (i Image) NormalizedDifference(a, b string) Image {
	return Image{call("Image.normalizedDifference", map[string]Node{"input": i.node, "bandNames": stringList([]string{a, b})})}
}

func (i Image) AddBands(src Image) Image {
	return Image{call("Image.addBands", map[string]Node{"dstImg": i.node, "srcImg": src.node})}
}

func (i Image) Clip(g Geometry) Image {
	return Image{call("Image.clip", map[string]Node{"input": i.node, "geometry": g.node})}
}

func (i Image) ConnectedPixelCount(maxSize int, eightConnected bool) Image {
	return Image{call("Image.connectedPixelCount", map[string]Node{
		"input":          i.node,
		"maxSize":        constant(maxSize),
		"eightConnected": constant(eightConnected),
	})}
}

func (i Image) Date() Date {
	return Date{call("Image.date", map[string]Node{"image": i.node})}
}

type ReduceRegionArgs struct {
	Reducer    Reducer
	Geometry   Geometry
	Scale      float64
	MaxPixels  float64
	BestEffort bool
}

func (i Image) ReduceRegion(args ReduceRegionArgs) Dictionary {
	params := map[string]Node{
		"image":    i.node,
		"reducer":  args.Reducer.node,
		"geometry": args.Geometry.node,
		"scale":    constant(args.Scale),
	}
	if args.MaxPixels > 0 {
		params["maxPixels"] = constant(args.MaxPixels)
	}
	if args.BestEffort {
		params["bestEffort"] = constant(true)
	}
	return Dictionary{call("Image.reduceRegion", params)}
}

type SampleArgs struct {
	Region     Geometry
	Scale      float64
	NumPixels  int
	Seed       int
	Geometries bool
}

func (i Image) Sample(args SampleArgs) FeatureCollection {
	return FeatureCollection{call("Image.sample", map[string]Node{
		"image":      i.node,
		"region":     args.Region.node,
		"scale":      constant(args.Scale),
		"numPixels":  constant(args.NumPixels),
		"seed":       constant(args.Seed),
		"geometries": constant(args.Geometries),
	})}
}

// ---- ImageCollection ----

func LoadImageCollection(id string) ImageCollection {
	return ImageCollection{call("ImageCollection.load", map[string]Node{"id": constant(id)})}
}

func (c ImageCollection) Filter(f Filter) ImageCollection {
	return ImageCollection{call("Collection.filter", map[string]Node{"collection": c.node, "filter": f.node})}
}

func (c ImageCollection) FilterBounds(g Geometry) ImageCollection {
	return c.Filter(FilterBounds(g))
}

func (c ImageCollection) FilterDate(start, end time.Time) ImageCollection {
	return c.Filter(FilterDate(start, end))
}

func (c ImageCollection) Map(fn func(Image) Image) ImageCollection {
	def := lambda(func(arg Node) Node { return fn(Image{arg}).node })
	return ImageCollection{call("Collection.map", map[string]Node{"collection": c.node, "baseAlgorithm": def})}
}

func (c ImageCollection) Select(bands ...string) ImageCollection {
	return c.Map(func(img Image) Image { return img.Select(bands...) })
}

// MapToFeatures maps every image to a feature, e.g. one row of a time series.
func (c ImageCollection) MapToFeatures(fn func(Image) Feature) FeatureCollection {
	def := lambda(func(arg Node) Node { return fn(Image{arg}).node })
	return FeatureCollection{call("Collection.map", map[string]Node{"collection": c.node, "baseAlgorithm": def})}
}

func (c ImageCollection) Reduce(r Reducer) Image {
	return Image{call("ImageCollection.reduce", map[string]Node{"collection": c.node, "reducer": r.node})}
}

// Mean is the per-pixel mean keeping the input band names.
func (c ImageCollection) Mean() Image {
	return Image{call("reduce.mean", map[string]Node{"collection": c.node})}
}

func (c ImageCollection) Size() Number {
	return Number{call("Collection.size", map[string]Node{"collection": c.node})}
}

// ---- FeatureCollection / Feature ----

func LoadTable(id string) FeatureCollection {
	return FeatureCollection{call("Collection.loadTable", map[string]Node{"tableId": constant(id)})}
}

func NewFeatureCollection(features []Feature) FeatureCollection {
	items := make([]Node, len(features))
	for i, f := range features {
		items[i] = f.node
	}
	return FeatureCollection{call("Collection", map[string]Node{"features": Array{Items: items}})}
}

func (c FeatureCollection) Filter(f Filter) FeatureCollection {
	return FeatureCollection{call("Collection.filter", map[string]Node{"collection": c.node, "filter": f.node})}
}

func (c FeatureCollection) Size() Number {
	return Number{call("Collection.size", map[string]Node{"collection": c.node})}
}

func (c FeatureCollection) Geometry() Geometry {
	return Geometry{call("Collection.geometry", map[string]Node{"collection": c.node})}
}

// NewFeature builds a feature; a nil geometry produces a table row.
func NewFeature(geometry *Geometry, properties map[string]Computable) Feature {
	var geom Node = constant(nil)
	if geometry != nil {
		geom = geometry.node
	}
	props := make(map[string]Node, len(properties))
	for k, v := range properties {
		props[k] = v.Expr()
	}
	return Feature{call("Feature", map[string]Node{"geometry": geom, "metadata": Dict{Items: props}})}
}

// ---- Filter ----

func FilterEq(field string, value any) Filter {
	return Filter{call("Filter.equals", map[string]Node{"leftField": constant(field), "rightValue": constant(value)})}
}

func FilterLt(field string, value float64) Filter {
	return Filter{call("Filter.lessThan", map[string]Node{"leftField": constant(field), "rightValue": constant(value)})}
}

func FilterNotNull(fields ...string) Filter {
	return Filter{call("Filter.notNull", map[string]Node{"properties": stringList(fields)})}
}

func FilterBounds(g Geometry) Filter {
	return Filter{call("Filter.intersects", map[string]Node{"leftField": constant(".all"), "rightValue": g.node})}
}

// FilterDate keeps elements whose system:time_start is in [start, end).
func FilterDate(start, end time.Time) Filter {
	dateRange := call("DateRange", map[string]Node{
		"start": DateFromTime(start).node,
		"end":   DateFromTime(end).node,
	})
	return Filter{call("Filter.dateRangeContains", map[string]Node{
		"leftValue":  dateRange,
		"rightField": constant("system:time_start"),
	})}
}

// ---- Reducer ----

func ReducerPercentile(percentiles ...int) Reducer {
	return Reducer{call("Reducer.percentile", map[string]Node{"percentiles": numberList(percentiles)})}
}

func ReducerMean() Reducer  { return Reducer{call("Reducer.mean", map[string]Node{})} }
func ReducerMax() Reducer   { return Reducer{call("Reducer.max", map[string]Node{})} }
func ReducerFirst() Reducer { return Reducer{call("Reducer.first", map[string]Node{})} }

func (r Reducer) Combine(other Reducer, sharedInputs bool) Reducer {
	return Reducer{call("Reducer.combine", map[string]Node{
		"reducer1":     r.node,
		"reducer2":     other.node,
		"sharedInputs": constant(sharedInputs),
	})}
}

// ---- Geometry ----

func Point(lon, lat float64) Geometry {
	return Geometry{call("GeometryConstructors.Point", map[string]Node{"coordinates": numberList([]float64{lon, lat})})}
}

func (g Geometry) Centroid() Geometry {
	return Geometry{call("Geometry.centroid", map[string]Node{"geometry": g.node})}
}

// ---- Scalars ----

func NumberOf(v float64) Number { return Number{constant(v)} }
func StringOf(v string) String  { return String{constant(v)} }

func DateFromTime(t time.Time) Date {
	return Date{call("Date", map[string]Node{"value": constant(t.UTC().Format("2006-01-02"))})}
}

func (d Date) Format(pattern string) String {
	return String{call("Date.format", map[string]Node{"date": d.node, "format": constant(pattern)})}
}

func (d Dictionary) Get(key string) Value {
	return Value{call("Dictionary.get", map[string]Node{"dictionary": d.node, "key": constant(key)})}
}
