package landsat

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCelsius(t *testing.T) {
	for _, dn := range []float64{1, 40000, 44000, 47123, 65534} {
		want := dn*0.00341802 + 149.0 - 273.15
		assert.InDelta(t, want, Celsius(dn), 1e-12, "dn=%v", dn)
	}
	assert.InDelta(t, 26.24288, Celsius(44000), 1e-4)
}

func TestThermalValid(t *testing.T) {
	tests := []struct {
		dn   float64
		want bool
	}{
		{0, false},
		{-1, false},
		{1, true},
		{44000, true},
		{65534, true},
		{65535, false},
		{70000, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ThermalValid(tt.dn), "dn=%v", tt.dn)
	}
}

func TestCloudFree(t *testing.T) {
	tests := []struct {
		name string
		qa   uint16
		want bool
	}{
		{"clear", 21824, true},
		{"zero", 0, true},
		{"cloud bit", 1 << 5, false},
		{"shadow bit", 1 << 3, false},
		{"both bits", 1<<5 | 1<<3, false},
		{"other bits only", 1<<0 | 1<<1 | 1<<2 | 1<<4 | 1<<6 | 1<<7, true},
		{"shadow with other bits", 22280, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CloudFree(tt.qa))
		})
	}
}

func TestNormalizedDifference(t *testing.T) {
	v, ok := NormalizedDifference(0.4, 0.1)
	assert.True(t, ok)
	assert.InDelta(t, 0.6, v, 1e-12)

	_, ok = NormalizedDifference(0, 0)
	assert.False(t, ok)
}
