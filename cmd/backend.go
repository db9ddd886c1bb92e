package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/itss-sierra/islas-calor/internal/analysis"
	"github.com/itss-sierra/islas-calor/internal/catalog"
	"github.com/itss-sierra/islas-calor/internal/earthengine"
	"github.com/itss-sierra/islas-calor/internal/landsat"
	"github.com/itss-sierra/islas-calor/internal/logging"
	"github.com/itss-sierra/islas-calor/internal/metrics"
	"github.com/itss-sierra/islas-calor/internal/panels"
	"github.com/itss-sierra/islas-calor/internal/properties"
	"github.com/itss-sierra/islas-calor/internal/raster"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// connector opens the configured backend. Each call builds a fresh client
// so a reload picks up new credentials or a refreshed scene directory.
func connector(backend string, log logrus.FieldLogger, m *metrics.Collector) panels.Connector {
	switch backend {
	case properties.BackendLocal:
		return func(ctx context.Context) (earthengine.Evaluator, error) {
			cat, err := loadCatalog(log)
			if err != nil {
				return nil, err
			}
			return raster.NewEngine(cat,
				raster.WithLayers(properties.LayersPath(), "/layers"),
				raster.WithLogger(log),
				raster.WithMetrics(m),
			), nil
		}
	case properties.BackendEarthEngine:
		return func(ctx context.Context) (earthengine.Evaluator, error) {
			creds := earthengine.Credentials{
				ServiceAccount: properties.ServiceAccount(),
				PrivateKey:     properties.PrivateKey(),
			}
			// The token source outlives the panel request that triggered the connection.
			httpClient, err := creds.HTTPClient(context.Background())
			if err != nil {
				return nil, err
			}
			client := earthengine.NewClient(httpClient, properties.EarthEngineProject(),
				earthengine.WithBaseURL(properties.EarthEngineAPIURL()),
				earthengine.WithLogger(log),
				earthengine.WithMetrics(m),
			)
			if err := client.Ping(ctx); err != nil {
				return nil, err
			}
			return client, nil
		}
	default:
		return func(context.Context) (earthengine.Evaluator, error) {
			return nil, fmt.Errorf("unknown backend %q (expected %s or %s)", backend, properties.BackendEarthEngine, properties.BackendLocal)
		}
	}
}

func loadCatalog(log logrus.FieldLogger) (*raster.Catalog, error) {
	if !catalog.Exists(properties.LocalCatalogPath()) {
		return nil, fmt.Errorf("local catalog %s not found", properties.LocalCatalogPath())
	}
	return catalog.Load(properties.LocalCatalogPath(), properties.LocalLocalitiesPath(),
		landsat.CollectionID, properties.LocalitiesAsset(), log)
}

func newCatalogCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "catalog",
		Short: "Verifica las escenas y localidades del backend local",
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := loadCatalog(logging.Setup(properties.LogLevel(), os.Stderr))
			if err != nil {
				return err
			}
			scenes := cat.Collections[landsat.CollectionID]
			fmt.Printf("\033[32mEscenas: %d en %s\033[0m\n", len(scenes), properties.LocalCatalogPath())
			for _, img := range scenes {
				ms, _ := img.Props[landsat.PropertyTimeStart].(float64)
				fmt.Printf("\033[34m- %s (nubosidad %v%%)\033[0m\n",
					time.UnixMilli(int64(ms)).UTC().Format("2006-01-02"), img.Props[landsat.PropertyCloudCover])
			}

			var names []string
			for _, f := range cat.Tables[properties.LocalitiesAsset()] {
				if name, ok := f.Properties[analysis.LocalityField].(string); ok {
					names = append(names, name)
				}
			}
			sort.Strings(names)
			fmt.Printf("\033[32mLocalidades: %d\033[0m\n", len(names))
			for _, n := range names {
				fmt.Printf("\033[34m- %s\033[0m\n", n)
			}
			return nil
		},
	}
}
