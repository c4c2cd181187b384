package waterfill

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Grid is a dense single-channel field with one float value per pixel.
//
// Values are addressed as (x, y) with the origin at the top-left corner.
// Accessors panic on out-of-range coordinates, like gonum's mat.Dense which
// backs the storage.
//
// Values are float64. Results track a float32 pipeline closely but are not
// bit-identical to one.
type Grid struct {
	dense *mat.Dense
}

// NewGrid returns a zero-filled grid of the given size.
func NewGrid(width, height int) (*Grid, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrEmptyImage, width, height)
	}
	return newGrid(width, height), nil
}

func newGrid(width, height int) *Grid {
	return &Grid{dense: mat.NewDense(height, width, nil)}
}

// wrapGrid shares data as a width x height grid. len(data) must equal
// width*height.
func wrapGrid(width, height int, data []float64) *Grid {
	return &Grid{dense: mat.NewDense(height, width, data)}
}

// GridFromGray converts an 8-bit grayscale image into a grid.
func GridFromGray(img *image.Gray) (*Grid, error) {
	if img == nil {
		return nil, ErrEmptyImage
	}
	b := img.Bounds()
	g, err := NewGrid(b.Dx(), b.Dy())
	if err != nil {
		return nil, err
	}
	data := g.raw()
	w := b.Dx()
	for y := 0; y < b.Dy(); y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+w]
		for x, v := range row {
			data[y*w+x] = float64(v)
		}
	}
	return g, nil
}

// Width returns the number of columns.
func (g *Grid) Width() int {
	_, c := g.dense.Dims()
	return c
}

// Height returns the number of rows.
func (g *Grid) Height() int {
	r, _ := g.dense.Dims()
	return r
}

// Size returns the grid dimensions as a point (width, height).
func (g *Grid) Size() image.Point {
	r, c := g.dense.Dims()
	return image.Pt(c, r)
}

// At returns the value at column x, row y.
func (g *Grid) At(x, y int) float64 {
	return g.dense.At(y, x)
}

// Set stores v at column x, row y.
func (g *Grid) Set(x, y int, v float64) {
	g.dense.Set(y, x, v)
}

// Clone returns a deep copy of g.
func (g *Grid) Clone() *Grid {
	return &Grid{dense: mat.DenseCopyOf(g.dense)}
}

// Extrema returns the smallest and largest values in the grid.
func (g *Grid) Extrema() (lo, hi float64) {
	data := g.raw()
	return floats.Min(data), floats.Max(data)
}

// Equal reports whether g and other have the same size and bit-identical values.
func (g *Grid) Equal(other *Grid) bool {
	if other == nil || g.Size() != other.Size() {
		return false
	}
	a, b := g.raw(), other.raw()
	for i := range a {
		if math.Float64bits(a[i]) != math.Float64bits(b[i]) {
			return false
		}
	}
	return true
}

// Quantize rounds every value to the nearest 8-bit level in place, with ties
// to even and saturation at 0 and 255. NaN becomes 0.
func (g *Grid) Quantize() {
	data := g.raw()
	for i, v := range data {
		data[i] = quantize(v)
	}
}

// Gray renders the grid as an 8-bit grayscale image using the same
// saturating conversion as Quantize.
func (g *Grid) Gray() *image.Gray {
	w, h := g.Width(), g.Height()
	img := image.NewGray(image.Rect(0, 0, w, h))
	data := g.raw()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetGray(x, y, color.Gray{Y: uint8(quantize(data[y*w+x]))})
		}
	}
	return img
}

// Values returns a row-major copy of the grid.
func (g *Grid) Values() []float64 {
	return append([]float64(nil), g.raw()...)
}

// raw exposes the row-major backing slice. The stride equals Width.
func (g *Grid) raw() []float64 {
	return g.dense.RawMatrix().Data
}

func quantize(v float64) float64 {
	switch {
	case math.IsNaN(v), v <= 0:
		return 0
	case v >= 255:
		return 255
	}
	return math.RoundToEven(v)
}
