package raster

import (
	"fmt"

	"github.com/paulmach/orb"
)

// Band is one layer of an image. Valid[i] false means pixel i is masked.
type Band struct {
	Name  string
	Data  []float64
	Valid []bool
}

type Image struct {
	Grid  *Grid
	Bands []Band
	Props map[string]any
}

func NewImage(grid *Grid, props map[string]any) *Image {
	if props == nil {
		props = map[string]any{}
	}
	return &Image{Grid: grid, Props: props}
}

// AddBand appends a band. A nil valid slice marks every pixel valid.
func (img *Image) AddBand(name string, data []float64, valid []bool) error {
	if len(data) != img.Grid.Len() {
		return fmt.Errorf("band %s has %d pixels, grid has %d", name, len(data), img.Grid.Len())
	}
	if valid == nil {
		valid = make([]bool, len(data))
		for i := range valid {
			valid[i] = true
		}
	}
	if len(valid) != len(data) {
		return fmt.Errorf("band %s mask has %d pixels, want %d", name, len(valid), len(data))
	}
	if img.band(name) >= 0 {
		return fmt.Errorf("band %s already exists", name)
	}
	img.Bands = append(img.Bands, Band{Name: name, Data: data, Valid: valid})
	return nil
}

func (img *Image) band(name string) int {
	for i, b := range img.Bands {
		if b.Name == name {
			return i
		}
	}
	return -1
}

func (img *Image) BandNames() []string {
	names := make([]string, len(img.Bands))
	for i, b := range img.Bands {
		names[i] = b.Name
	}
	return names
}

// Band returns the named band, or false.
func (img *Image) Band(name string) (Band, bool) {
	i := img.band(name)
	if i < 0 {
		return Band{}, false
	}
	return img.Bands[i], true
}

// derive makes an image on the same grid, optionally keeping properties.
func (img *Image) derive(keepProps bool) *Image {
	out := &Image{Grid: img.Grid, Props: map[string]any{}}
	if keepProps {
		for k, v := range img.Props {
			out.Props[k] = v
		}
	}
	return out
}

func newBand(name string, n int) Band {
	return Band{Name: name, Data: make([]float64, n), Valid: make([]bool, n)}
}

type Feature struct {
	ID         string
	Geometry   orb.Geometry
	Properties map[string]any
}

// Catalog is everything the local evaluator can load by id.
type Catalog struct {
	Grid        *Grid
	Collections map[string][]*Image
	Tables      map[string][]Feature
}

func NewCatalog(grid *Grid) *Catalog {
	return &Catalog{
		Grid:        grid,
		Collections: map[string][]*Image{},
		Tables:      map[string][]Feature{},
	}
}
