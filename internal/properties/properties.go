package properties

import (
	"os"
	"strconv"
	"strings"
)

const (
	BackendEarthEngine = "earthengine"
	BackendLocal       = "local"
)

func RootPath() string {
	return os.Getenv("ROOT_PATH")
}

func getenv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func getenvInt(k string, def int) int {
	v, err := strconv.Atoi(getenv(k, ""))
	if err != nil {
		return def
	}
	return v
}

// Backend selects the evaluator used by every panel: the Earth Engine REST
// service or the local GeoTIFF catalog.
func Backend() string {
	return strings.ToLower(getenv("UHI_BACKEND", BackendEarthEngine))
}

func EarthEngineProject() string {
	return getenv("EE_PROJECT", "ee-cando")
}

func EarthEngineAPIURL() string {
	return strings.TrimSuffix(getenv("EE_API_URL", "https://earthengine.googleapis.com"), "/")
}

func ServiceAccount() string {
	return os.Getenv("GEE_SERVICE_ACCOUNT")
}

func PrivateKey() string {
	return os.Getenv("GEE_PRIVATE_KEY")
}

func LocalitiesAsset() string {
	return getenv("GEE_LOCALITIES_ASSET", "projects/ee-cando/assets/areas_urbanas_Tab")
}

func LocalCatalogPath() string {
	return getenv("LOCAL_CATALOG_PATH", RootPath()+"/data/catalog")
}

func LocalLocalitiesPath() string {
	return getenv("LOCAL_LOCALITIES_PATH", RootPath()+"/data/geojsons/areas_urbanas_Tab.geojson")
}

// MaxCloudCover is the default CLOUD_COVER ceiling (percent).
func MaxCloudCover() float64 {
	return float64(getenvInt("MAX_CLOUD_COVER", 30))
}

func HTTPPort() int {
	return getenvInt("HTTP_PORT", 8501)
}

func DefaultGrpcPort() int {
	return getenvInt("GRPC_PORT", 50051)
}

func LogLevel() string {
	return getenv("LOG_LEVEL", "info")
}

func ResultPath() string {
	return RootPath() + "/data/result"
}

func LayersPath() string {
	return RootPath() + "/data/layers"
}

func DiscordErrorNotificationUrl() string {
	return os.Getenv("DISCORD_ERROR_NOTIFICATION_URL")
}
func DiscordSuccessNotificationUrl() string {
	return os.Getenv("DISCORD_SUCCESS_NOTIFICATION_URL")
}
