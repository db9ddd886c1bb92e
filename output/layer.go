package output

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fogleman/gg"
)

// Layer is a single-band raster ready to be coloured. Masked pixels are
// left transparent.
type Layer struct {
	Width   int
	Height  int
	Values  []float64
	Valid   []bool
	Min     float64
	Max     float64
	Palette []string
}

// Colorize stretches values between Min and Max over the palette.
func Colorize(layer Layer) (*image.NRGBA, error) {
	if len(layer.Values) != layer.Width*layer.Height || len(layer.Valid) != len(layer.Values) {
		return nil, fmt.Errorf("layer %dx%d has %d values and %d mask entries", layer.Width, layer.Height, len(layer.Values), len(layer.Valid))
	}
	ramp, err := parsePalette(layer.Palette)
	if err != nil {
		return nil, err
	}

	img := image.NewNRGBA(image.Rect(0, 0, layer.Width, layer.Height))
	for y := 0; y < layer.Height; y++ {
		for x := 0; x < layer.Width; x++ {
			i := y*layer.Width + x
			if !layer.Valid[i] {
				continue
			}
			t := 0.0
			if layer.Max > layer.Min {
				t = (layer.Values[i] - layer.Min) / (layer.Max - layer.Min)
			}
			img.SetNRGBA(x, y, rampAt(ramp, t))
		}
	}
	return img, nil
}

func RenderLayer(layer Layer, path string) error {
	img, err := Colorize(layer)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return fmt.Errorf("failed to create layer folder: %w", err)
	}
	if err := gg.SavePNG(path, img); err != nil {
		return fmt.Errorf("failed to save layer: %w", err)
	}
	return nil
}

// RenderLegend draws a horizontal colour bar with its bounds.
func RenderLegend(title string, lo, hi float64, palette []string, path string) error {
	ramp, err := parsePalette(palette)
	if err != nil {
		return err
	}
	const width, height, pad = 320, 70, 10.0

	dc := gg.NewContext(width, height)
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	dc.SetRGB(0, 0, 0)
	dc.DrawStringAnchored(title, width/2, pad+6, 0.5, 0.5)

	barWidth := float64(width) - 2*pad
	for x := 0; x < int(barWidth); x++ {
		c := rampAt(ramp, float64(x)/(barWidth-1))
		dc.SetColor(c)
		dc.DrawRectangle(pad+float64(x), 25, 1, 20)
		dc.Fill()
	}
	dc.SetRGB(0, 0, 0)
	dc.SetLineWidth(1)
	dc.DrawRectangle(pad, 25, barWidth, 20)
	dc.Stroke()

	dc.DrawStringAnchored(formatTick(lo), pad, 58, 0, 0.5)
	dc.DrawStringAnchored(formatTick(hi), width-pad, 58, 1, 0.5)

	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return fmt.Errorf("failed to create legend folder: %w", err)
	}
	return dc.SavePNG(path)
}

func parsePalette(palette []string) ([]color.NRGBA, error) {
	if len(palette) == 0 {
		return []color.NRGBA{{0, 0, 0, 255}, {255, 255, 255, 255}}, nil
	}
	ramp := make([]color.NRGBA, len(palette))
	for i, p := range palette {
		c, err := ParseHexColor(p)
		if err != nil {
			return nil, err
		}
		ramp[i] = c
	}
	return ramp, nil
}

// ParseHexColor accepts RRGGBB with or without a leading '#'.
func ParseHexColor(s string) (color.NRGBA, error) {
	h := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(h) == 3 {
		h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]})
	}
	if len(h) != 6 {
		return color.NRGBA{}, fmt.Errorf("invalid colour %q", s)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid colour %q: %w", s, err)
	}
	return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}, nil
}

func rampAt(ramp []color.NRGBA, t float64) color.NRGBA {
	if len(ramp) == 1 {
		return ramp[0]
	}
	t = math.Max(0, math.Min(1, t))
	pos := t * float64(len(ramp)-1)
	i := int(math.Floor(pos))
	if i >= len(ramp)-1 {
		return ramp[len(ramp)-1]
	}
	f := pos - float64(i)
	a, b := ramp[i], ramp[i+1]
	lerp := func(x, y uint8) uint8 { return uint8(math.Round(float64(x) + (float64(y)-float64(x))*f)) }
	return color.NRGBA{R: lerp(a.R, b.R), G: lerp(a.G, b.G), B: lerp(a.B, b.B), A: 255}
}

func formatTick(v float64) string {
	if math.Abs(v) >= 10 || v == math.Trunc(v) {
		return strconv.FormatFloat(v, 'f', 0, 64)
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}
