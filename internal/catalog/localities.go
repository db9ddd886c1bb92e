package catalog

import (
	"fmt"

	"github.com/airbusgeo/godal"
	"github.com/itss-sierra/islas-calor/internal/raster"
	"github.com/paulmach/orb/encoding/wkb"
	"github.com/sirupsen/logrus"
)

// ReadLocalities reads every feature of the first layer of a vector file
// (GeoJSON, GeoPackage, Shapefile). Geometries are expected in WGS84.
func ReadLocalities(path string) ([]raster.Feature, error) {
	godal.RegisterInternalDrivers()
	ds, err := godal.Open(path, godal.VectorOnly())
	if err != nil {
		return nil, fmt.Errorf("failed to open localities %s: %w", path, err)
	}
	defer ds.Close()

	layers := ds.Layers()
	if len(layers) == 0 {
		return nil, fmt.Errorf("localities file %s has no layers", path)
	}

	var features []raster.Feature
	layer := layers[0]
	for {
		feat := layer.NextFeature()
		if feat == nil {
			break
		}
		f, err := toFeature(feat)
		feat.Close()
		if err != nil {
			return nil, err
		}
		features = append(features, f)
	}
	if len(features) == 0 {
		return nil, fmt.Errorf("localities file %s has no features", path)
	}
	return features, nil
}

func toFeature(feat *godal.Feature) (raster.Feature, error) {
	props := map[string]any{}
	for name, field := range feat.Fields() {
		switch field.Type() {
		case godal.FTInt, godal.FTInt64:
			props[name] = float64(field.Int())
		case godal.FTReal:
			props[name] = field.Float()
		default:
			props[name] = field.String()
		}
	}

	geom := feat.Geometry()
	if geom == nil {
		return raster.Feature{Properties: props}, nil
	}
	defer geom.Close()
	raw, err := geom.WKB()
	if err != nil {
		return raster.Feature{}, fmt.Errorf("failed to export geometry: %w", err)
	}
	g, err := wkb.Unmarshal(raw)
	if err != nil {
		return raster.Feature{}, fmt.Errorf("failed to decode geometry: %w", err)
	}
	return raster.Feature{Geometry: g, Properties: props}, nil
}

// Load assembles a catalog from a scene directory and a locality file. The
// scenes are published under collectionID and the localities under tableID.
func Load(scenesDir, localitiesPath, collectionID, tableID string, log logrus.FieldLogger) (*raster.Catalog, error) {
	images, grid, err := ReadScenes(scenesDir, 4, log)
	if err != nil {
		return nil, err
	}
	localities, err := ReadLocalities(localitiesPath)
	if err != nil {
		return nil, err
	}
	cat := raster.NewCatalog(grid)
	cat.Collections[collectionID] = images
	cat.Tables[tableID] = localities
	log.WithField("localities", len(localities)).Info("local catalog ready")
	return cat, nil
}
