package raster

import (
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/itss-sierra/islas-calor/internal/landsat"
	"github.com/paulmach/orb"
)

const defaultMaxPixels = 1e7

func (e *Engine) invokeImage(function string, a args) (any, error) {
	switch function {
	case "Image.constant":
		v, err := a.number("value")
		if err != nil {
			return nil, err
		}
		grid := e.catalog.Grid
		b := newBand("constant", grid.Len())
		for i := range b.Data {
			b.Data[i] = v
			b.Valid[i] = true
		}
		return &Image{Grid: grid, Bands: []Band{b}, Props: map[string]any{}}, nil
	case "Image.add":
		return binary(a, func(x, y float64) float64 { return x + y })
	case "Image.subtract":
		return binary(a, func(x, y float64) float64 { return x - y })
	case "Image.multiply":
		return binary(a, func(x, y float64) float64 { return x * y })
	case "Image.eq":
		return binary(a, func(x, y float64) float64 { return boolf(x == y) })
	case "Image.gt":
		return binary(a, func(x, y float64) float64 { return boolf(x > y) })
	case "Image.lt":
		return binary(a, func(x, y float64) float64 { return boolf(x < y) })
	case "Image.gte":
		return binary(a, func(x, y float64) float64 { return boolf(x >= y) })
	case "Image.and":
		return binary(a, func(x, y float64) float64 { return boolf(x != 0 && y != 0) })
	case "Image.bitwiseAnd":
		return binary(a, func(x, y float64) float64 { return float64(int64(x) & int64(y)) })
	case "Image.select":
		img, err := a.image("input")
		if err != nil {
			return nil, err
		}
		names, err := a.strs("bandSelectors")
		if err != nil {
			return nil, err
		}
		out := img.derive(true)
		for _, name := range names {
			b, ok := img.Band(name)
			if !ok {
				return nil, fmt.Errorf("pattern '%s' did not match any bands", name)
			}
			out.Bands = append(out.Bands, b)
		}
		return out, nil
	case "Image.rename":
		img, err := a.image("input")
		if err != nil {
			return nil, err
		}
		names, err := a.strs("names")
		if err != nil {
			return nil, err
		}
		if len(names) != len(img.Bands) {
			return nil, fmt.Errorf("can't rename %d bands to %d names", len(img.Bands), len(names))
		}
		out := img.derive(true)
		for i, b := range img.Bands {
			b.Name = names[i]
			out.Bands = append(out.Bands, b)
		}
		return out, nil
	case "Image.addBands":
		dst, err := a.image("dstImg")
		if err != nil {
			return nil, err
		}
		src, err := a.image("srcImg")
		if err != nil {
			return nil, err
		}
		if err := sameGrid(dst, src); err != nil {
			return nil, err
		}
		out := dst.derive(true)
		out.Bands = append(out.Bands, dst.Bands...)
		for _, b := range src.Bands {
			if out.band(b.Name) >= 0 {
				return nil, fmt.Errorf("band %s already exists", b.Name)
			}
			out.Bands = append(out.Bands, b)
		}
		return out, nil
	case "Image.updateMask":
		img, err := a.image("image")
		if err != nil {
			return nil, err
		}
		mask, err := a.image("mask")
		if err != nil {
			return nil, err
		}
		return updateMask(img, mask)
	case "Image.selfMask":
		img, err := a.image("image")
		if err != nil {
			return nil, err
		}
		out := img.derive(true)
		for _, b := range img.Bands {
			nb := Band{Name: b.Name, Data: b.Data, Valid: make([]bool, len(b.Valid))}
			for i := range b.Valid {
				nb.Valid[i] = b.Valid[i] && b.Data[i] != 0
			}
			out.Bands = append(out.Bands, nb)
		}
		return out, nil
	case "Image.normalizedDifference":
		img, err := a.image("input")
		if err != nil {
			return nil, err
		}
		names, err := a.strs("bandNames")
		if err != nil {
			return nil, err
		}
		if len(names) != 2 {
			return nil, fmt.Errorf("need exactly 2 band names, got %d", len(names))
		}
		first, ok := img.Band(names[0])
		if !ok {
			return nil, fmt.Errorf("band %s not found", names[0])
		}
		second, ok := img.Band(names[1])
		if !ok {
			return nil, fmt.Errorf("band %s not found", names[1])
		}
		nd := newBand("nd", img.Grid.Len())
		for i := range nd.Data {
			if !first.Valid[i] || !second.Valid[i] {
				continue
			}
			nd.Data[i], nd.Valid[i] = landsat.NormalizedDifference(first.Data[i], second.Data[i])
		}
		out := img.derive(false)
		out.Bands = []Band{nd}
		return out, nil
	case "Image.clip":
		img, err := a.image("input")
		if err != nil {
			return nil, err
		}
		geom, err := a.geometry("geometry")
		if err != nil {
			return nil, err
		}
		inside := make([]bool, img.Grid.Len())
		for _, i := range img.Grid.Region(geom, 1) {
			inside[i] = true
		}
		out := img.derive(true)
		for _, b := range img.Bands {
			nb := Band{Name: b.Name, Data: b.Data, Valid: make([]bool, len(b.Valid))}
			for i := range b.Valid {
				nb.Valid[i] = b.Valid[i] && inside[i]
			}
			out.Bands = append(out.Bands, nb)
		}
		return out, nil
	case "Image.connectedPixelCount":
		img, err := a.image("input")
		if err != nil {
			return nil, err
		}
		maxSize, err := a.optNumber("maxSize", 100)
		if err != nil {
			return nil, err
		}
		eight := a.optBool("eightConnected", true)
		out := img.derive(true)
		for _, b := range img.Bands {
			out.Bands = append(out.Bands, connectedCount(img.Grid, b, int(maxSize), eight))
		}
		return out, nil
	case "Image.reduceRegion":
		return reduceRegion(a)
	case "Image.sample":
		return sample(a)
	case "Image.date":
		img, err := a.image("image")
		if err != nil {
			return nil, err
		}
		ms, ok := normalize(img.Props[landsat.PropertyTimeStart]).(float64)
		if !ok {
			return nil, fmt.Errorf("image has no %s property", landsat.PropertyTimeStart)
		}
		return time.UnixMilli(int64(ms)).UTC(), nil
	}
	return nil, fmt.Errorf("unsupported algorithm")
}

func boolf(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func sameGrid(x, y *Image) error {
	if x.Grid != y.Grid && (x.Grid.Width != y.Grid.Width || x.Grid.Height != y.Grid.Height) {
		return fmt.Errorf("images have different grids: %dx%d and %dx%d", x.Grid.Width, x.Grid.Height, y.Grid.Width, y.Grid.Height)
	}
	return nil
}

// binary pairs bands one to one, or broadcasts a single-band operand. Band
// names come from the operand with more bands. Properties are dropped.
func binary(a args, op func(x, y float64) float64) (*Image, error) {
	x, err := a.image("image1")
	if err != nil {
		return nil, err
	}
	y, err := a.image("image2")
	if err != nil {
		return nil, err
	}
	if err := sameGrid(x, y); err != nil {
		return nil, err
	}
	nx, ny := len(x.Bands), len(y.Bands)
	if nx == 0 || ny == 0 {
		return nil, fmt.Errorf("image has no bands")
	}
	if nx != ny && nx != 1 && ny != 1 {
		return nil, fmt.Errorf("images must have the same number of bands or one band, got %d and %d", nx, ny)
	}
	names := x.BandNames()
	if ny > nx {
		names = y.BandNames()
	}

	out := x.derive(false)
	n := x.Grid.Len()
	for k, name := range names {
		bx := x.Bands[min(k, nx-1)]
		by := y.Bands[min(k, ny-1)]
		nb := newBand(name, n)
		for i := 0; i < n; i++ {
			if !bx.Valid[i] || !by.Valid[i] {
				continue
			}
			nb.Data[i] = op(bx.Data[i], by.Data[i])
			nb.Valid[i] = true
		}
		out.Bands = append(out.Bands, nb)
	}
	return out, nil
}

// updateMask keeps a pixel only where it was valid and the mask is valid and
// non-zero.
func updateMask(img, mask *Image) (*Image, error) {
	if err := sameGrid(img, mask); err != nil {
		return nil, err
	}
	if len(mask.Bands) != 1 && len(mask.Bands) != len(img.Bands) {
		return nil, fmt.Errorf("mask must have 1 or %d bands, got %d", len(img.Bands), len(mask.Bands))
	}
	out := img.derive(true)
	for k, b := range img.Bands {
		m := mask.Bands[min(k, len(mask.Bands)-1)]
		nb := Band{Name: b.Name, Data: b.Data, Valid: make([]bool, len(b.Valid))}
		for i := range b.Valid {
			nb.Valid[i] = b.Valid[i] && m.Valid[i] && m.Data[i] != 0
		}
		out.Bands = append(out.Bands, nb)
	}
	return out, nil
}

// connectedCount labels each valid pixel with the size of the component of
// equal-valued neighbours it belongs to, capped at maxSize.
func connectedCount(grid *Grid, b Band, maxSize int, eight bool) Band {
	n := grid.Len()
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	find := func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}
	union := func(i, j int) {
		ri, rj := find(i), find(j)
		if ri != rj {
			parent[ri] = rj
		}
	}

	offsets := [][2]int{{0, 1}, {1, 0}}
	if eight {
		offsets = append(offsets, [2]int{1, 1}, [2]int{1, -1})
	}
	for row := 0; row < grid.Height; row++ {
		for col := 0; col < grid.Width; col++ {
			i := row*grid.Width + col
			if !b.Valid[i] {
				continue
			}
			for _, off := range offsets {
				r, c := row+off[0], col+off[1]
				if r < 0 || r >= grid.Height || c < 0 || c >= grid.Width {
					continue
				}
				j := r*grid.Width + c
				if b.Valid[j] && b.Data[j] == b.Data[i] {
					union(i, j)
				}
			}
		}
	}

	sizes := make(map[int]int)
	for i := 0; i < n; i++ {
		if b.Valid[i] {
			sizes[find(i)]++
		}
	}
	out := newBand(b.Name, n)
	for i := 0; i < n; i++ {
		if !b.Valid[i] {
			continue
		}
		out.Data[i] = float64(min(sizes[find(i)], maxSize))
		out.Valid[i] = true
	}
	return out
}

// reduceCollection reduces every band across images pixel by pixel. With
// suffix set, output bands are named <band>_<output>.
func reduceCollection(grid *Grid, col imageCollection, r reducer, suffix bool) (*Image, error) {
	out := NewImage(grid, nil)
	if len(col) == 0 {
		return out, nil
	}
	outputs := r.outputs()
	n := grid.Len()
	for _, name := range col[0].BandNames() {
		bands := make([]Band, len(outputs))
		for k, o := range outputs {
			bandName := name
			if suffix {
				bandName = name + "_" + o
			}
			bands[k] = newBand(bandName, n)
		}
		values := make([]float64, 0, len(col))
		for i := 0; i < n; i++ {
			values = values[:0]
			for _, img := range col {
				b, ok := img.Band(name)
				if !ok {
					return nil, fmt.Errorf("band %s missing from an image of the collection", name)
				}
				if b.Valid[i] {
					values = append(values, b.Data[i])
				}
			}
			for k, v := range r.apply(values) {
				if f, ok := v.(float64); ok {
					bands[k].Data[i] = f
					bands[k].Valid[i] = true
				}
			}
		}
		out.Bands = append(out.Bands, bands...)
	}
	return out, nil
}

func reduceRegion(a args) (map[string]any, error) {
	img, err := a.image("image")
	if err != nil {
		return nil, err
	}
	r, err := a.reducer("reducer")
	if err != nil {
		return nil, err
	}
	geom, err := a.geometry("geometry")
	if err != nil {
		return nil, err
	}
	scale, err := a.optNumber("scale", img.Grid.PixelSize)
	if err != nil {
		return nil, err
	}
	maxPixels, err := a.optNumber("maxPixels", defaultMaxPixels)
	if err != nil {
		return nil, err
	}
	bestEffort := a.optBool("bestEffort", false)

	stride := img.Grid.stride(scale)
	pixels := img.Grid.Region(geom, stride)
	for float64(len(pixels)) > maxPixels {
		if !bestEffort {
			return nil, fmt.Errorf("too many pixels in the region: %d > %.0f", len(pixels), maxPixels)
		}
		stride *= 2
		pixels = img.Grid.Region(geom, stride)
	}

	outputs := r.outputs()
	result := make(map[string]any, len(img.Bands)*len(outputs))
	for _, b := range img.Bands {
		values := make([]float64, 0, len(pixels))
		for _, i := range pixels {
			if b.Valid[i] {
				values = append(values, b.Data[i])
			}
		}
		for k, v := range r.apply(values) {
			key := b.Name
			if len(outputs) > 1 {
				key = b.Name + "_" + outputs[k]
			}
			result[key] = v
		}
	}
	return result, nil
}

// sample draws up to numPixels pixels where every band is valid. The draw is
// seeded, so the same arguments always give the same rows in raster order.
func sample(a args) (featureCollection, error) {
	img, err := a.image("image")
	if err != nil {
		return nil, err
	}
	geom, err := a.geometry("region")
	if err != nil {
		return nil, err
	}
	scale, err := a.optNumber("scale", img.Grid.PixelSize)
	if err != nil {
		return nil, err
	}
	numPixels, err := a.optNumber("numPixels", 0)
	if err != nil {
		return nil, err
	}
	seed, err := a.optNumber("seed", 0)
	if err != nil {
		return nil, err
	}
	withGeometry := a.optBool("geometries", false)

	var candidates []int
	for _, i := range img.Grid.Region(geom, img.Grid.stride(scale)) {
		if allValid(img, i) {
			candidates = append(candidates, i)
		}
	}
	if numPixels > 0 && len(candidates) > int(numPixels) {
		rng := rand.New(rand.NewPCG(uint64(seed), 0x9e3779b97f4a7c15))
		rng.Shuffle(len(candidates), func(i, j int) {
			candidates[i], candidates[j] = candidates[j], candidates[i]
		})
		candidates = candidates[:int(numPixels)]
		slices.Sort(candidates)
	}

	out := make(featureCollection, 0, len(candidates))
	for _, i := range candidates {
		props := make(map[string]any, len(img.Bands))
		for _, b := range img.Bands {
			props[b.Name] = b.Data[i]
		}
		f := Feature{ID: fmt.Sprintf("%d", i), Properties: props}
		if withGeometry {
			f.Geometry = orb.Point{img.Grid.Lon[i], img.Grid.Lat[i]}
		}
		out = append(out, f)
	}
	return out, nil
}

func allValid(img *Image, i int) bool {
	if len(img.Bands) == 0 {
		return false
	}
	for _, b := range img.Bands {
		if !b.Valid[i] || math.IsNaN(b.Data[i]) {
			return false
		}
	}
	return true
}
