// Package landsat holds the Landsat 8 Collection 2 Level-2 conventions the
// heat-island pipeline depends on: band names, QA_PIXEL bits and the
// surface-temperature scaling.
package landsat

import "math"

const CollectionID = "LANDSAT/LC08/C02/T1_L2"

// Band names as published in the collection.
const (
	BandRed     = "SR_B4"
	BandNIR     = "SR_B5"
	BandThermal = "ST_B10"
	BandQA      = "QA_PIXEL"
)

// Derived band names.
const (
	BandLST  = "LST"
	BandNDVI = "NDVI"
)

// Scene properties.
const (
	PropertyCloudCover = "CLOUD_COVER"
	PropertyTimeStart  = "system:time_start"
)

// QA_PIXEL bit indices.
const (
	QABitCloudShadow = 3
	QABitCloud       = 5
)

// ST_B10 scale and offset to Kelvin.
const (
	ThermalScale  = 0.00341802
	ThermalOffset = 149.0
	KelvinToC     = 273.15
)

const ThermalFill = 65535

// CloudFree reports whether neither the cloud nor the cloud-shadow bit is set.
func CloudFree(qa uint16) bool {
	return qa&(1<<QABitCloudShadow) == 0 && qa&(1<<QABitCloud) == 0
}

// ThermalValid reports whether dn is inside the open interval (0, 65535).
func ThermalValid(dn float64) bool {
	return dn > 0 && dn < ThermalFill
}

// Celsius converts a raw ST_B10 digital number to degrees Celsius.
func Celsius(dn float64) float64 {
	return dn*ThermalScale + ThermalOffset - KelvinToC
}

// NormalizedDifference returns (a-b)/(a+b); ok is false when a+b is zero.
func NormalizedDifference(a, b float64) (float64, bool) {
	den := a + b
	if den == 0 || math.IsNaN(den) {
		return 0, false
	}
	return (a - b) / den, true
}
