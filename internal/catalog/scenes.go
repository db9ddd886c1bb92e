// Package catalog reads a local Landsat scene directory and a locality
// vector file with GDAL and assembles them into a raster.Catalog.
package catalog

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/airbusgeo/godal"
	"github.com/gammazero/workerpool"
	"github.com/itss-sierra/islas-calor/internal/landsat"
	"github.com/itss-sierra/islas-calor/internal/raster"
	"github.com/schollz/progressbar/v3"
	"github.com/sirupsen/logrus"
)

// Band order assumed when a GeoTIFF carries no band descriptions.
var DefaultBandOrder = []string{landsat.BandRed, landsat.BandNIR, landsat.BandThermal, landsat.BandQA}

const metresPerDegree = 111320.0

type scene struct {
	path       string
	date       time.Time
	cloudCover float64
	width      int
	height     int
	geo        [6]float64
	bands      map[string][]float64
	valid      map[string][]bool
}

// ReadScenes decodes every GeoTIFF under dir with a bounded worker pool and
// returns the images sorted by acquisition date on a shared grid.
func ReadScenes(dir string, workers int, log logrus.FieldLogger) ([]*raster.Image, *raster.Grid, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.tif"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list scenes: %w", err)
	}
	more, _ := filepath.Glob(filepath.Join(dir, "*.TIF"))
	paths = append(paths, more...)
	if len(paths) == 0 {
		return nil, nil, fmt.Errorf("no GeoTIFF scenes found in %s", dir)
	}

	godal.RegisterAll()

	var (
		mu          sync.Mutex
		scenes      []*scene
		firstErr    error
		progressBar = progressbar.Default(int64(len(paths)), "Loading scenes")
	)
	wp := workerpool.New(max(1, workers))
	for _, path := range paths {
		wp.Submit(func() {
			s, err := readScene(path)
			mu.Lock()
			defer mu.Unlock()
			progressBar.Add(1)
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			scenes = append(scenes, s)
		})
	}
	wp.StopWait()
	progressBar.Finish()

	if firstErr != nil {
		return nil, nil, firstErr
	}

	sort.Slice(scenes, func(i, j int) bool { return scenes[i].date.Before(scenes[j].date) })
	for _, s := range scenes[1:] {
		if s.width != scenes[0].width || s.height != scenes[0].height {
			return nil, nil, fmt.Errorf("different image size: %s is %dx%d, %s is %dx%d",
				filepath.Base(scenes[0].path), scenes[0].width, scenes[0].height,
				filepath.Base(s.path), s.width, s.height)
		}
		if s.geo != scenes[0].geo {
			return nil, nil, fmt.Errorf("scenes %s and %s are not co-registered", filepath.Base(scenes[0].path), filepath.Base(s.path))
		}
	}

	grid, err := pixelGrid(scenes[0].path)
	if err != nil {
		return nil, nil, err
	}

	images := make([]*raster.Image, 0, len(scenes))
	for _, s := range scenes {
		img := raster.NewImage(grid, map[string]any{
			landsat.PropertyTimeStart:  float64(s.date.UnixMilli()),
			landsat.PropertyCloudCover: s.cloudCover,
			"system:index":             strings.TrimSuffix(filepath.Base(s.path), filepath.Ext(s.path)),
		})
		for _, name := range DefaultBandOrder {
			data, ok := s.bands[name]
			if !ok {
				return nil, nil, fmt.Errorf("scene %s has no %s band", filepath.Base(s.path), name)
			}
			if err := img.AddBand(name, data, s.valid[name]); err != nil {
				return nil, nil, err
			}
		}
		images = append(images, img)
	}
	log.WithFields(logrus.Fields{
		"scenes": len(images),
		"width":  grid.Width,
		"height": grid.Height,
	}).Info("local scenes loaded")
	return images, grid, nil
}

func readScene(path string) (*scene, error) {
	ds, err := godal.Open(path, godal.ErrLogger(func(ec godal.ErrorCategory, code int, msg string) error {
		if ec == godal.CE_Warning {
			return nil
		}
		return fmt.Errorf("gdal: %s", msg)
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to open scene %s: %w", path, err)
	}
	defer ds.Close()

	structure := ds.Structure()
	width, height := structure.SizeX, structure.SizeY
	geo, err := ds.GeoTransform()
	if err != nil {
		return nil, fmt.Errorf("failed to get GeoTransform of %s: %w", path, err)
	}

	date, cloud, err := sceneMetadata(path, ds.Metadatas())
	if err != nil {
		return nil, err
	}

	s := &scene{
		path:       path,
		date:       date,
		cloudCover: cloud,
		width:      width,
		height:     height,
		geo:        geo,
		bands:      map[string][]float64{},
		valid:      map[string][]bool{},
	}
	for i, band := range ds.Bands() {
		name := strings.TrimSpace(band.Description())
		if name == "" && i < len(DefaultBandOrder) {
			name = DefaultBandOrder[i]
		}
		data := make([]float64, width*height)
		if err := band.Read(0, 0, data, width, height); err != nil {
			return nil, fmt.Errorf("failed to read band %s of %s: %w", name, path, err)
		}
		valid := make([]bool, len(data))
		nodata, hasNodata := band.NoData()
		for j, v := range data {
			valid[j] = !math.IsNaN(v) && !(hasNodata && v == nodata)
		}
		s.bands[name] = data
		s.valid[name] = valid
	}
	return s, nil
}

// sceneMetadata reads DATE_ACQUIRED and CLOUD_COVER from the dataset
// metadata, falling back to the Landsat product id in the file name.
func sceneMetadata(path string, md map[string]string) (time.Time, float64, error) {
	var date time.Time
	if v, ok := md["DATE_ACQUIRED"]; ok {
		t, err := time.Parse("2006-01-02", strings.TrimSpace(v))
		if err != nil {
			return time.Time{}, 0, fmt.Errorf("invalid DATE_ACQUIRED %q in %s: %w", v, path, err)
		}
		date = t
	} else {
		t, err := DateFromProductID(filepath.Base(path))
		if err != nil {
			return time.Time{}, 0, err
		}
		date = t
	}

	cloud := 0.0
	if v, ok := md[landsat.PropertyCloudCover]; ok {
		c, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return time.Time{}, 0, fmt.Errorf("invalid %s %q in %s: %w", landsat.PropertyCloudCover, v, path, err)
		}
		cloud = c
	}
	return date, cloud, nil
}

// DateFromProductID extracts the acquisition date from names such as
// LC08_L2SP_021047_20240403_20240412_02_T1.tif.
func DateFromProductID(name string) (time.Time, error) {
	parts := strings.Split(strings.TrimSuffix(name, filepath.Ext(name)), "_")
	if len(parts) < 4 {
		return time.Time{}, fmt.Errorf("cannot read acquisition date from %s", name)
	}
	t, err := time.Parse("20060102", parts[3])
	if err != nil {
		return time.Time{}, fmt.Errorf("cannot read acquisition date from %s: %w", name, err)
	}
	return t, nil
}

// pixelGrid computes WGS84 pixel centres for the scene at path.
func pixelGrid(path string) (*raster.Grid, error) {
	ds, err := godal.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open scene %s: %w", path, err)
	}
	defer ds.Close()

	width, height := ds.Structure().SizeX, ds.Structure().SizeY
	gt, err := ds.GeoTransform()
	if err != nil {
		return nil, fmt.Errorf("failed to get GeoTransform: %w", err)
	}

	xs := make([]float64, width*height)
	ys := make([]float64, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			i := y*width + x
			xs[i] = gt[0] + gt[1]*(float64(x)+0.5) + gt[2]*(float64(y)+0.5)
			ys[i] = gt[3] + gt[4]*(float64(x)+0.5) + gt[5]*(float64(y)+0.5)
		}
	}

	pixelSize := math.Abs(gt[1])
	srcSR := ds.SpatialRef()
	if srcSR != nil {
		defer srcSR.Close()
	}
	if srcSR == nil || srcSR.Geographic() {
		pixelSize *= metresPerDegree
	} else {
		dstSR, err := godal.NewSpatialRefFromEPSG(4326)
		if err != nil {
			return nil, fmt.Errorf("failed to create WGS84 reference: %w", err)
		}
		defer dstSR.Close()
		tr, err := godal.NewTransform(srcSR, dstSR)
		if err != nil {
			return nil, fmt.Errorf("failed to create transform: %w", err)
		}
		defer tr.Close()
		if err := tr.TransformEx(xs, ys, nil, nil); err != nil {
			return nil, fmt.Errorf("transform error: %w", err)
		}
	}
	return raster.NewGrid(width, height, pixelSize, xs, ys)
}

// Exists reports whether a local catalog directory is present.
func Exists(dir string) bool {
	info, err := os.Stat(dir)
	return err == nil && info.IsDir()
}
