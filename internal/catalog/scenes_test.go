package catalog

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/itss-sierra/islas-calor/internal/landsat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDateFromProductID(t *testing.T) {
	d, err := DateFromProductID("LC08_L2SP_021047_20240403_20240412_02_T1.tif")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 4, 3, 0, 0, 0, 0, time.UTC), d)

	_, err = DateFromProductID("escena.tif")
	assert.Error(t, err)
	_, err = DateFromProductID("LC08_L2SP_021047_abril.tif")
	assert.Error(t, err)
}

func TestSceneMetadata(t *testing.T) {
	path := "LC09_L2SP_021047_20240520_20240521_02_T1.tif"

	date, cloud, err := sceneMetadata(path, map[string]string{
		"DATE_ACQUIRED":            "2024-04-19",
		landsat.PropertyCloudCover: " 12.5 ",
	})
	require.NoError(t, err)
	assert.Equal(t, "2024-04-19", date.Format("2006-01-02"))
	assert.Equal(t, 12.5, cloud)

	date, cloud, err = sceneMetadata(path, map[string]string{})
	require.NoError(t, err)
	assert.Equal(t, "2024-05-20", date.Format("2006-01-02"))
	assert.Zero(t, cloud)

	_, _, err = sceneMetadata(path, map[string]string{landsat.PropertyCloudCover: "nublado"})
	assert.ErrorContains(t, err, "invalid CLOUD_COVER")
}

func TestExists(t *testing.T) {
	dir := t.TempDir()
	assert.True(t, Exists(dir))
	assert.False(t, Exists(filepath.Join(dir, "nada")))

	file := filepath.Join(dir, "scene.tif")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	assert.False(t, Exists(file))
}

func TestReadScenesEmptyDir(t *testing.T) {
	_, _, err := ReadScenes(t.TempDir(), 2, nil)
	assert.ErrorContains(t, err, "no GeoTIFF scenes")
}
