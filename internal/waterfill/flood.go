package waterfill

import (
	"fmt"
	"image"
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
)

// PouringTerm returns the water poured into a cell whose filled level is
// level at iteration t, when the highest filled level is peak. The amount
// decays as exp(-t) and is negligible after a few dozen iterations.
func PouringTerm(t int, peak, level float64) float64 {
	return math.Exp(-float64(t)) * (peak - level)
}

// downhill sums min(G(n) - G(c), 0) over the four neighbours of cell i, so
// only lower neighbours contribute.
func downhill(s []float64, i, stride int) float64 {
	g := s[i]
	return math.Min(s[i+stride]-g, 0) +
		math.Min(s[i-stride]-g, 0) +
		math.Min(s[i+1]-g, 0) +
		math.Min(s[i-1]-g, 0)
}

// floodDelta builds the flood-and-effuse update for iteration t.
func floodDelta(t int, peak float64) delta {
	weight := math.Exp(-float64(t))
	return func(s []float64, i, stride int) float64 {
		return EffuseRate*downhill(s, i, stride) + weight*(peak-s[i])
	}
}

// floodRun runs the flood-and-effuse relaxation over src without resizing
// and returns the solver state after the last iteration.
func floodRun(src *Grid, opts Options) *relaxation {
	r := newRelaxation(src, opts.Workers)
	for t := 0; t < opts.FloodIterations; t++ {
		r.floodStep(t)
		r.record(opts, StageFlood, t, opts.FloodCheckpoints)
	}
	return r
}

// floodStep snapshots the surface and applies one flood-and-effuse sweep.
func (r *relaxation) floodStep(t int) {
	r.fill()
	r.sweep(floodDelta(t, floats.Max(r.surface)))
}

// FloodFill estimates a smooth shading surface from a (possibly downsampled)
// luminance grid.
//
// Every iteration takes a snapshot G = w + src, pours exp(-t) * (max(G) - G)
// into each interior cell, drains 0.2 * sum(min(G(n) - G, 0)) towards lower
// neighbours and clamps the water level at zero. After opts.FloodIterations
// iterations the last snapshot is resized to size with linear interpolation
// and quantized to 8-bit levels.
//
// Only opts.FloodIterations, opts.FloodCheckpoints, opts.Workers, opts.Sink
// and opts.Logger are used.
func FloodFill(src *Grid, size image.Point, opts Options) (*Grid, error) {
	if src == nil {
		return nil, ErrEmptyImage
	}
	if opts.FloodIterations < 0 {
		return nil, fmt.Errorf("%w: flood iterations %d", ErrInvalidIterations, opts.FloodIterations)
	}
	if size.X <= 0 || size.Y <= 0 {
		return nil, fmt.Errorf("%w: target %dx%d", ErrEmptyImage, size.X, size.Y)
	}

	start := time.Now()
	r := floodRun(src, opts)
	out, err := Resize(r.surfaceGrid(), size.X, size.Y)
	if err != nil {
		return nil, err
	}
	out.Quantize()

	opts.Logger.Debug().
		Int("iterations", opts.FloodIterations).
		Int("width", src.Width()).
		Int("height", src.Height()).
		Dur("elapsed", time.Since(start)).
		Msg("flood fill done")
	return out, nil
}
