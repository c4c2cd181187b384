package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
	"gonum.org/v1/gonum/mat"
)

// EncodedImage is an image returned inline as base64 PNG.
type EncodedImage struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
}

// EncodePNG encodes img as base64 PNG.
func EncodePNG(img image.Image) (*EncodedImage, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	b := img.Bounds()
	return &EncodedImage{
		Width:       b.Dx(),
		Height:      b.Dy(),
		ImageBase64: base64.StdEncoding.EncodeToString(buf.Bytes()),
		MimeType:    "image/png",
	}, nil
}

// CropRect extracts r from img. r is relative to the image origin and is
// clipped to the image bounds; a region that misses the image entirely is an
// error.
func CropRect(img image.Image, r Rect) (*image.NRGBA, error) {
	b := img.Bounds()
	clipped := r.Rectangle().Add(b.Min).Intersect(b)
	if clipped.Empty() {
		return nil, fmt.Errorf("%w: region (%d,%d %dx%d) lies outside the %dx%d image",
			ErrInvalidRegion, r.X, r.Y, r.Width, r.Height, b.Dx(), b.Dy())
	}
	return imaging.Crop(img, clipped), nil
}

// WarpQuad maps the quadrilateral q of img onto an upright rectangle of
// q.Size(), as when flattening a photographed page.
//
// Each output pixel is projected back into the source through the inverse
// homography and sampled bilinearly. Samples that fall outside the source
// are black.
func WarpQuad(img image.Image, q Quad) (*image.NRGBA, error) {
	size := q.Size()
	if size.X <= 0 || size.Y <= 0 {
		return nil, fmt.Errorf("%w: polygon collapses to %dx%d", ErrInvalidRegion, size.X, size.Y)
	}
	// Corner targets follow the quad's bottom-left, bottom-right, top-right,
	// top-left order and use the untruncated extent.
	p := q.Points
	wf := math.Max(p[1].sub(p[0]).norm(), p[2].sub(p[3]).norm())
	hf := math.Max(p[3].sub(p[0]).norm(), p[2].sub(p[1]).norm())
	dst := [4]PointF{{0, hf}, {wf, hf}, {wf, 0}, {0, 0}}

	inv, err := homography(dst, p)
	if err != nil {
		return nil, err
	}

	src := imaging.Clone(img)
	out := image.NewNRGBA(image.Rect(0, 0, size.X, size.Y))
	for y := 0; y < size.Y; y++ {
		for x := 0; x < size.X; x++ {
			sx, sy := inv.apply(float64(x), float64(y))
			out.SetNRGBA(x, y, bilinear(src, sx, sy))
		}
	}
	return out, nil
}

// projective is a 3x3 homography with h[8] fixed at 1.
type projective [9]float64

func (h projective) apply(x, y float64) (float64, float64) {
	d := h[6]*x + h[7]*y + h[8]
	if d == 0 {
		return math.Inf(1), math.Inf(1)
	}
	return (h[0]*x + h[1]*y + h[2]) / d, (h[3]*x + h[4]*y + h[5]) / d
}

// homography solves the 8x8 linear system for the projective map taking
// from[i] to to[i].
func homography(from, to [4]PointF) (projective, error) {
	a := mat.NewDense(8, 8, nil)
	b := mat.NewVecDense(8, nil)
	for i := 0; i < 4; i++ {
		x, y := from[i].X, from[i].Y
		u, v := to[i].X, to[i].Y
		a.SetRow(2*i, []float64{x, y, 1, 0, 0, 0, -u * x, -u * y})
		a.SetRow(2*i+1, []float64{0, 0, 0, x, y, 1, -v * x, -v * y})
		b.SetVec(2*i, u)
		b.SetVec(2*i+1, v)
	}

	var sol mat.VecDense
	if err := sol.SolveVec(a, b); err != nil {
		return projective{}, fmt.Errorf("%w: corners are degenerate: %v", ErrInvalidRegion, err)
	}
	var h projective
	for i := 0; i < 8; i++ {
		h[i] = sol.AtVec(i)
	}
	h[8] = 1
	return h, nil
}

// bilinear samples src at (x, y) in pixel-index coordinates. Neighbours
// outside the image contribute black.
func bilinear(src *image.NRGBA, x, y float64) color.NRGBA {
	if math.IsInf(x, 0) || math.IsNaN(x) || math.IsInf(y, 0) || math.IsNaN(y) {
		return color.NRGBA{A: 255}
	}
	w, h := src.Rect.Dx(), src.Rect.Dy()
	x0, y0 := math.Floor(x), math.Floor(y)
	fx, fy := x-x0, y-y0
	ix, iy := int(x0), int(y0)
	if ix < -1 || iy < -1 || ix >= w || iy >= h {
		return color.NRGBA{A: 255}
	}

	var acc [3]float64
	weights := [4]float64{(1 - fx) * (1 - fy), fx * (1 - fy), (1 - fx) * fy, fx * fy}
	for k, off := range [4]image.Point{{0, 0}, {1, 0}, {0, 1}, {1, 1}} {
		px, py := ix+off.X, iy+off.Y
		if px < 0 || py < 0 || px >= w || py >= h || weights[k] == 0 {
			continue
		}
		i := py*src.Stride + px*4
		for c := 0; c < 3; c++ {
			acc[c] += weights[k] * float64(src.Pix[i+c])
		}
	}
	return color.NRGBA{R: clampByte(acc[0]), G: clampByte(acc[1]), B: clampByte(acc[2]), A: 255}
}

func clampByte(v float64) uint8 {
	v = math.Round(v)
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v)
}
