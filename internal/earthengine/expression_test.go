package earthengine

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func invocation(t *testing.T, expr Expression, id string) map[string]any {
	t.Helper()
	node, ok := expr.Values[id]
	require.True(t, ok, "missing value %s", id)
	inv, ok := node["functionInvocationValue"].(map[string]any)
	require.True(t, ok, "value %s is not an invocation", id)
	return inv
}

func TestEncodeDeduplicatesInvocations(t *testing.T) {
	img := ImageConstant(1)
	expr, err := Encode(img.And(img).Expr())
	require.NoError(t, err)

	assert.Len(t, expr.Values, 2)
	root := invocation(t, expr, expr.Result)
	assert.Equal(t, "Image.and", root["functionName"])

	args := root["arguments"].(map[string]ValueNode)
	assert.Equal(t, args["image1"], args["image2"])
}

func TestEncodeEqualConstantsShareNode(t *testing.T) {
	// Add(1) builds its own Image.constant(1), identical to the input.
	expr, err := Encode(ImageConstant(1).Add(1).Expr())
	require.NoError(t, err)
	assert.Len(t, expr.Values, 2)
}

func TestEncodeIsDeterministic(t *testing.T) {
	build := func() Node {
		col := LoadImageCollection("LANDSAT/LC08/C02/T1_L2").
			FilterDate(time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC)).
			Filter(FilterLt("CLOUD_COVER", 30)).
			Map(func(img Image) Image { return img.Select("ST_B10").Multiply(2) })
		return col.Reduce(ReducerPercentile(50)).Expr()
	}
	a, err := Encode(build())
	require.NoError(t, err)
	b, err := Encode(build())
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestEncodeConstants(t *testing.T) {
	expr, err := Encode(Point(-92.93, 17.99).Expr())
	require.NoError(t, err)

	root := invocation(t, expr, expr.Result)
	assert.Equal(t, "GeometryConstructors.Point", root["functionName"])
	args := root["arguments"].(map[string]ValueNode)
	coords := args["coordinates"]["arrayValue"].(map[string]any)["values"].([]ValueNode)
	require.Len(t, coords, 2)
	assert.Equal(t, -92.93, coords[0]["constantValue"])
	assert.Equal(t, 17.99, coords[1]["constantValue"])
}

func TestMapLambdaArgumentNames(t *testing.T) {
	col := LoadImageCollection("C")
	outer := col.Map(func(i Image) Image {
		inner := col.Map(func(j Image) Image { return j.AddBands(i) })
		return inner.Mean()
	})

	expr, err := Encode(outer.Expr())
	require.NoError(t, err)

	raw, err := json.Marshal(expr)
	require.NoError(t, err)
	body := string(raw)

	assert.Contains(t, body, `"_MAPPING_VAR_0_0"`)
	assert.Contains(t, body, `"_MAPPING_VAR_1_0"`)
	assert.NotContains(t, body, "__placeholder")
}

func TestLambdaDepthOfFlatBody(t *testing.T) {
	def := lambda(func(arg Node) Node {
		return Image{arg}.Select("LST").Expr()
	})
	assert.Equal(t, []string{"_MAPPING_VAR_0_0"}, def.ArgumentNames)

	inv := def.Body.(Invocation)
	assert.Equal(t, ArgumentRef{Name: "_MAPPING_VAR_0_0"}, inv.Arguments["input"])
}

func TestFeatureWithoutGeometry(t *testing.T) {
	f := NewFeature(nil, map[string]Computable{"date": StringOf("2024-04-03")})
	inv := f.Expr().(Invocation)
	assert.Equal(t, "Feature", inv.Function)
	assert.Equal(t, Constant{Value: nil}, inv.Arguments["geometry"])
	meta := inv.Arguments["metadata"].(Dict)
	assert.Equal(t, Constant{Value: "2024-04-03"}, meta.Items["date"])
}

func TestReduceRegionOptionalArguments(t *testing.T) {
	dict := ImageConstant(1).ReduceRegion(ReduceRegionArgs{
		Reducer:  ReducerMean(),
		Geometry: Point(0, 0),
		Scale:    30,
	})
	inv := dict.Expr().(Invocation)
	assert.NotContains(t, inv.Arguments, "bestEffort")
	assert.NotContains(t, inv.Arguments, "maxPixels")

	dict = ImageConstant(1).ReduceRegion(ReduceRegionArgs{
		Reducer:    ReducerMean(),
		Geometry:   Point(0, 0),
		Scale:      100,
		MaxPixels:  1e9,
		BestEffort: true,
	})
	inv = dict.Expr().(Invocation)
	assert.Equal(t, Constant{Value: true}, inv.Arguments["bestEffort"])
	assert.Equal(t, Constant{Value: 1e9}, inv.Arguments["maxPixels"])
}
