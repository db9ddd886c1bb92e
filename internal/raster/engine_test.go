package raster

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/itss-sierra/islas-calor/internal/earthengine"
	"github.com/itss-sierra/islas-calor/internal/landsat"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testWidth  = 6
	testHeight = 5
	testTable  = "areas"
)

var testArea = orb.Polygon{{{-93, 18.1}, {-92, 18.1}, {-92, 17.9}, {-93, 17.9}, {-93, 18.1}}}

func testGrid() *Grid {
	return NewAffineGrid(testWidth, testHeight, -92.95, 18.0, 0.0003, 30)
}

type pixel struct {
	st, red, nir, qa float64
}

func testScene(t *testing.T, grid *Grid, date string, cloud float64, fill func(i int) pixel) *Image {
	t.Helper()
	day, err := time.Parse("2006-01-02", date)
	require.NoError(t, err)

	img := NewImage(grid, map[string]any{
		landsat.PropertyTimeStart:  float64(day.UnixMilli()),
		landsat.PropertyCloudCover: cloud,
	})
	n := grid.Len()
	st, red, nir, qa := make([]float64, n), make([]float64, n), make([]float64, n), make([]float64, n)
	for i := 0; i < n; i++ {
		p := fill(i)
		st[i], red[i], nir[i], qa[i] = p.st, p.red, p.nir, p.qa
	}
	require.NoError(t, img.AddBand(landsat.BandRed, red, nil))
	require.NoError(t, img.AddBand(landsat.BandNIR, nir, nil))
	require.NoError(t, img.AddBand(landsat.BandThermal, st, nil))
	require.NoError(t, img.AddBand(landsat.BandQA, qa, nil))
	return img
}

func testEngine(t *testing.T, scenes ...*Image) *Engine {
	t.Helper()
	grid := testGrid()
	cat := NewCatalog(grid)
	for _, s := range scenes {
		s.Grid = grid
	}
	cat.Collections[landsat.CollectionID] = scenes
	cat.Tables[testTable] = []Feature{
		{Geometry: testArea, Properties: map[string]any{"NOMGEO": "Villahermosa"}},
		{Geometry: orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 0}}}, Properties: map[string]any{"NOMGEO": "Lejos"}},
	}
	return NewEngine(cat, WithLayers(t.TempDir(), "/layers"))
}

func uniform(dn float64) func(int) pixel {
	return func(int) pixel { return pixel{st: dn, red: 0.1, nir: 0.4, qa: 21824} }
}

func lst(img earthengine.Image) earthengine.Image {
	return img.Select(landsat.BandThermal).
		Multiply(landsat.ThermalScale).
		Add(landsat.ThermalOffset).
		Subtract(landsat.KelvinToC).
		Rename(landsat.BandLST)
}

func region() earthengine.Geometry {
	return earthengine.LoadTable(testTable).Filter(earthengine.FilterEq("NOMGEO", "Villahermosa")).Geometry()
}

func TestComputeLocalityCount(t *testing.T) {
	e := testEngine(t)
	var n int
	require.NoError(t, e.Compute(context.Background(), earthengine.LoadTable(testTable).Filter(earthengine.FilterEq("NOMGEO", "Villahermosa")).Size(), &n))
	assert.Equal(t, 1, n)

	require.NoError(t, e.Compute(context.Background(), earthengine.LoadTable(testTable).Filter(earthengine.FilterEq("NOMGEO", "Atlantis")).Size(), &n))
	assert.Equal(t, 0, n)
}

func TestComputeUnknownTable(t *testing.T) {
	e := testEngine(t)
	err := e.Compute(context.Background(), earthengine.LoadTable("missing").Size(), nil)

	var evalErr *EvalError
	require.ErrorAs(t, err, &evalErr)
	assert.Equal(t, "Collection.loadTable", evalErr.Function)
}

func TestFilterDateAndCloudCover(t *testing.T) {
	grid := testGrid()
	e := testEngine(t,
		testScene(t, grid, "2024-03-31", 5, uniform(44000)),
		testScene(t, grid, "2024-04-01", 5, uniform(44000)),
		testScene(t, grid, "2024-05-30", 29.9, uniform(44000)),
		testScene(t, grid, "2024-05-30", 30, uniform(44000)),
		testScene(t, grid, "2024-05-31", 1, uniform(44000)),
	)
	col := earthengine.LoadImageCollection(landsat.CollectionID).
		FilterBounds(region()).
		FilterDate(time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC)).
		Filter(earthengine.FilterLt(landsat.PropertyCloudCover, 30))

	var n int
	require.NoError(t, e.Compute(context.Background(), col.Size(), &n))
	assert.Equal(t, 2, n)
}

func TestPercentileCompositeAndInclusiveHotMask(t *testing.T) {
	grid := testGrid()
	e := testEngine(t,
		testScene(t, grid, "2024-04-03", 10, uniform(44000)),
		testScene(t, grid, "2024-04-19", 10, uniform(44000)),
	)
	roi := region()
	composite := earthengine.LoadImageCollection(landsat.CollectionID).
		Map(lst).
		Reduce(earthengine.ReducerPercentile(50)).
		Clip(roi)

	var stats map[string]*float64
	require.NoError(t, e.Compute(context.Background(), composite.ReduceRegion(earthengine.ReduceRegionArgs{
		Reducer:  earthengine.ReducerPercentile(90),
		Geometry: roi,
		Scale:    30,
	}), &stats))
	require.NotNil(t, stats["LST_p50"])
	p90 := *stats["LST_p50"]
	assert.InDelta(t, landsat.Celsius(44000), p90, 1e-9)

	value := composite.Select("LST_p50")
	hot := value.Gte(p90)
	clean := hot.UpdateMask(hot.ConnectedPixelCount(100, true).Gte(3)).SelfMask()

	var rows struct {
		Features []struct {
			Properties map[string]float64 `json:"properties"`
		} `json:"features"`
	}
	require.NoError(t, e.Compute(context.Background(), clean.Sample(earthengine.SampleArgs{
		Region:    roi,
		Scale:     30,
		NumPixels: 1000,
	}), &rows))
	assert.Len(t, rows.Features, testWidth*testHeight)
	for _, f := range rows.Features {
		assert.Equal(t, 1.0, f.Properties["LST_p50"])
	}
}

func TestMaskingChain(t *testing.T) {
	grid := testGrid()
	scene := testScene(t, grid, "2024-04-03", 10, func(i int) pixel {
		p := pixel{st: 44000, red: 0.1, nir: 0.4, qa: 21824}
		switch i {
		case 0:
			p.qa = 1 << landsat.QABitCloud
		case 1:
			p.qa = 1 << landsat.QABitCloudShadow
		case 2:
			p.st = 0
		case 3:
			p.st = landsat.ThermalFill
		case 4:
			p.red, p.nir = 0, 0
		}
		return p
	})
	e := testEngine(t, scene)

	masked := earthengine.LoadImageCollection(landsat.CollectionID).Map(func(img earthengine.Image) earthengine.Image {
		qa := img.Select(landsat.BandQA)
		clearSky := qa.BitwiseAnd(1 << landsat.QABitCloudShadow).Eq(0).And(qa.BitwiseAnd(1 << landsat.QABitCloud).Eq(0))
		img = img.UpdateMask(clearSky)
		thermal := img.Select(landsat.BandThermal)
		img = img.UpdateMask(thermal.Gt(0).And(thermal.Lt(landsat.ThermalFill)))
		ndvi := img.NormalizedDifference(landsat.BandNIR, landsat.BandRed).Rename(landsat.BandNDVI)
		return img.AddBands(lst(img)).AddBands(ndvi)
	}).Mean()

	inspect := func(i int) map[string]*float64 {
		t.Helper()
		p := grid.Point(i)
		var out map[string]*float64
		require.NoError(t, e.Compute(context.Background(), masked.Select(landsat.BandLST, landsat.BandNDVI).ReduceRegion(earthengine.ReduceRegionArgs{
			Reducer:  earthengine.ReducerFirst(),
			Geometry: earthengine.Point(p[0], p[1]),
			Scale:    30,
		}), &out))
		return out
	}

	for i := 0; i < 4; i++ {
		got := inspect(i)
		assert.Nil(t, got[landsat.BandLST], "pixel %d", i)
		assert.Nil(t, got[landsat.BandNDVI], "pixel %d", i)
	}

	got := inspect(4)
	require.NotNil(t, got[landsat.BandLST])
	assert.Nil(t, got[landsat.BandNDVI])

	got = inspect(5)
	require.NotNil(t, got[landsat.BandLST])
	require.NotNil(t, got[landsat.BandNDVI])
	assert.InDelta(t, landsat.Celsius(44000), *got[landsat.BandLST], 1e-9)
	assert.InDelta(t, 0.6, *got[landsat.BandNDVI], 1e-9)
}

func TestReduceRegionCombinedKeys(t *testing.T) {
	grid := testGrid()
	e := testEngine(t, testScene(t, grid, "2024-04-03", 10, func(i int) pixel {
		return pixel{st: 40000 + float64(i)*100, qa: 21824, red: 0.1, nir: 0.2}
	}))
	composite := earthengine.LoadImageCollection(landsat.CollectionID).Map(lst).Reduce(earthengine.ReducerPercentile(50))

	var stats map[string]float64
	require.NoError(t, e.Compute(context.Background(), composite.ReduceRegion(earthengine.ReduceRegionArgs{
		Reducer:    earthengine.ReducerMean().Combine(earthengine.ReducerMax(), true),
		Geometry:   region(),
		Scale:      30,
		BestEffort: true,
	}), &stats))

	assert.Contains(t, stats, "LST_p50_mean")
	assert.Contains(t, stats, "LST_p50_max")
	assert.InDelta(t, landsat.Celsius(40000+29*100), stats["LST_p50_max"], 1e-9)
	assert.InDelta(t, landsat.Celsius(40000+14.5*100), stats["LST_p50_mean"], 1e-9)
}

func TestTimeSeriesFeatures(t *testing.T) {
	grid := testGrid()
	e := testEngine(t,
		testScene(t, grid, "2024-04-03", 10, uniform(44000)),
		testScene(t, grid, "2024-04-19", 10, uniform(45000)),
		testScene(t, grid, "2024-05-05", 10, func(int) pixel { return pixel{st: 0, qa: 21824} }),
	)
	roi := region()
	series := earthengine.LoadImageCollection(landsat.CollectionID).MapToFeatures(func(img earthengine.Image) earthengine.Feature {
		thermal := img.Select(landsat.BandThermal)
		masked := img.UpdateMask(thermal.Gt(0))
		mean := lst(masked).ReduceRegion(earthengine.ReduceRegionArgs{
			Reducer:  earthengine.ReducerMean(),
			Geometry: roi,
			Scale:    100,
		}).Get(landsat.BandLST)
		return earthengine.NewFeature(nil, map[string]earthengine.Computable{
			"date": img.Date().Format("YYYY-MM-dd"),
			"LST":  mean,
		})
	}).Filter(earthengine.FilterNotNull("LST"))

	var fc struct {
		Features []struct {
			Properties struct {
				Date string  `json:"date"`
				LST  float64 `json:"LST"`
			} `json:"properties"`
		} `json:"features"`
	}
	require.NoError(t, e.Compute(context.Background(), series, &fc))
	require.Len(t, fc.Features, 2)
	assert.Equal(t, "2024-04-03", fc.Features[0].Properties.Date)
	assert.Equal(t, "2024-04-19", fc.Features[1].Properties.Date)
	assert.InDelta(t, landsat.Celsius(45000), fc.Features[1].Properties.LST, 1e-9)
}

func TestComputeImageFails(t *testing.T) {
	e := testEngine(t)
	err := e.Compute(context.Background(), earthengine.ImageConstant(1), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Image")
}

func TestSampleIsDeterministicAndBounded(t *testing.T) {
	grid := testGrid()
	e := testEngine(t, testScene(t, grid, "2024-04-03", 10, uniform(44000)))
	img := earthengine.LoadImageCollection(landsat.CollectionID).Map(lst).Reduce(earthengine.ReducerPercentile(50))
	query := img.Sample(earthengine.SampleArgs{Region: region(), Scale: 30, NumPixels: 7, Geometries: true})

	type fc struct {
		Features []struct {
			Geometry struct {
				Type        string    `json:"type"`
				Coordinates []float64 `json:"coordinates"`
			} `json:"geometry"`
		} `json:"features"`
	}
	var a, b fc
	require.NoError(t, e.Compute(context.Background(), query, &a))
	require.NoError(t, e.Compute(context.Background(), query, &b))
	require.Len(t, a.Features, 7)
	assert.Equal(t, a, b)
	assert.Equal(t, "Point", a.Features[0].Geometry.Type)
	assert.Len(t, a.Features[0].Geometry.Coordinates, 2)
}

func TestTilesWritesLayer(t *testing.T) {
	grid := testGrid()
	e := testEngine(t, testScene(t, grid, "2024-04-03", 10, uniform(44000)))
	img := earthengine.LoadImageCollection(landsat.CollectionID).Map(lst).Reduce(earthengine.ReducerPercentile(50))

	url, err := e.Tiles(context.Background(), img, earthengine.VisParams{
		Bands: []string{"LST_p50"}, Min: 28, Max: 45, Palette: []string{"0000FF", "FF0000"},
	})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(url, "/layers/"))

	_, err = os.Stat(filepath.Join(e.layersDir, strings.TrimPrefix(url, "/layers/")))
	assert.NoError(t, err)
}

func TestCancelledContext(t *testing.T) {
	e := testEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := e.Compute(ctx, earthengine.LoadTable(testTable).Size(), nil)
	assert.ErrorIs(t, err, context.Canceled)
}
