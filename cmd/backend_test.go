package main

import (
	"context"
	"testing"

	"github.com/itss-sierra/islas-calor/internal/analysis"
	"github.com/itss-sierra/islas-calor/internal/properties"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectorUnknownBackend(t *testing.T) {
	log, _ := logtest.NewNullLogger()
	ev, err := connector("sentinel", log, nil)(context.Background())
	assert.Nil(t, ev)
	assert.ErrorContains(t, err, `unknown backend "sentinel"`)
}

func TestConnectorEarthEngineWithoutCredentials(t *testing.T) {
	t.Setenv("GEE_SERVICE_ACCOUNT", "dashboard@ee-cando.iam.gserviceaccount.com")
	t.Setenv("GEE_PRIVATE_KEY", "")
	log, _ := logtest.NewNullLogger()
	_, err := connector(properties.BackendEarthEngine, log, nil)(context.Background())
	assert.ErrorContains(t, err, "has no private key")
}

func TestDefaultSessionUsesConfiguredCloudCeiling(t *testing.T) {
	t.Setenv("MAX_CLOUD_COVER", "15")
	s := defaultSession()
	assert.Equal(t, 15.0, s.CloudCeiling)
	assert.Equal(t, analysis.DefaultSession().Locality, s.Locality)
}

func TestCommandsRegistered(t *testing.T) {
	root := newRootCmd()
	for _, name := range []string{"serve", "export", "catalog"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, cmd.Name())
	}
	serve, _, _ := root.Find([]string{"serve"})
	assert.NotNil(t, serve.Flags().Lookup("grpc-port"))
}

func TestConnectorLocalWithoutCatalog(t *testing.T) {
	t.Setenv("LOCAL_CATALOG_PATH", t.TempDir()+"/missing")
	log, _ := logtest.NewNullLogger()
	_, err := connector(properties.BackendLocal, log, nil)(context.Background())
	assert.ErrorContains(t, err, "not found")
}
