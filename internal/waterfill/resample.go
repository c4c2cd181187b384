package waterfill

import (
	"fmt"
	"math"
)

// Downsample shrinks src by rate in both dimensions using linear
// interpolation. A rate of 1 returns an identical copy of src.
//
// The output size is src size * rate rounded to the nearest integer, and the
// sampling grid is derived from 1/rate rather than from the rounded size, so a
// rate of 0.5 samples exactly between source pixel pairs.
func Downsample(src *Grid, rate float64) (*Grid, error) {
	if src == nil {
		return nil, ErrEmptyImage
	}
	if !(rate > 0 && rate <= 1) {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidRate, rate)
	}
	if rate == 1 {
		return src.Clone(), nil
	}

	w := int(math.RoundToEven(float64(src.Width()) * rate))
	h := int(math.RoundToEven(float64(src.Height()) * rate))
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("%w: rate %v shrinks %dx%d to %dx%d",
			ErrInvalidRate, rate, src.Width(), src.Height(), w, h)
	}
	return resample(src, w, h, 1/rate, 1/rate), nil
}

// Resize resamples src to width x height using linear interpolation.
// Resizing to the current size returns a copy.
func Resize(src *Grid, width, height int) (*Grid, error) {
	if src == nil {
		return nil, ErrEmptyImage
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: target %dx%d", ErrEmptyImage, width, height)
	}
	if width == src.Width() && height == src.Height() {
		return src.Clone(), nil
	}
	sx := float64(src.Width()) / float64(width)
	sy := float64(src.Height()) / float64(height)
	return resample(src, width, height, sx, sy), nil
}

// tap holds the two source indices and the weight of the second one for a
// single destination coordinate.
type tap struct {
	i0, i1 int
	f      float64
}

// axisTaps maps n destination samples onto an axis of srcN pixels using
// half-pixel centres. Samples that fall outside the source are clamped to the
// edge pixel.
func axisTaps(n, srcN int, scale float64) []tap {
	taps := make([]tap, n)
	for d := range taps {
		pos := (float64(d)+0.5)*scale - 0.5
		i := int(math.Floor(pos))
		f := pos - float64(i)
		if i < 0 {
			i, f = 0, 0
		}
		if i >= srcN-1 {
			i, f = srcN-1, 0
		}
		taps[d] = tap{i0: i, i1: min(i+1, srcN-1), f: f}
	}
	return taps
}

func resample(src *Grid, width, height int, scaleX, scaleY float64) *Grid {
	xs := axisTaps(width, src.Width(), scaleX)
	ys := axisTaps(height, src.Height(), scaleY)

	dst := newGrid(width, height)
	in, out := src.raw(), dst.raw()
	stride := src.Width()
	for y, ty := range ys {
		r0 := in[ty.i0*stride : ty.i0*stride+stride]
		r1 := in[ty.i1*stride : ty.i1*stride+stride]
		for x, tx := range xs {
			top := r0[tx.i0]*(1-tx.f) + r0[tx.i1]*tx.f
			bottom := r1[tx.i0]*(1-tx.f) + r1[tx.i1]*tx.f
			out[y*width+x] = top*(1-ty.f) + bottom*ty.f
		}
	}
	return dst
}
