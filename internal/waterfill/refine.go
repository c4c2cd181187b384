package waterfill

import (
	"fmt"
	"time"
)

// Stats reports numerical events of a normalization.
type Stats struct {
	// FlooredPixels counts shading values below the floor (or NaN) that were
	// clamped before division.
	FlooredPixels int
}

// neighbourSum returns sum(G(n) - G(c)) over the four neighbours of cell i.
// Unlike downhill, higher neighbours contribute too.
func neighbourSum(s []float64, i, stride int) float64 {
	g := s[i]
	return (s[i+stride] - g) + (s[i-stride] - g) + (s[i+1] - g) + (s[i-1] - g)
}

func refineDelta(s []float64, i, stride int) float64 {
	return EffuseRate * neighbourSum(s, i, stride)
}

func refineRun(estimate *Grid, opts Options) *relaxation {
	r := newRelaxation(estimate, opts.Workers)
	for t := 0; t < opts.RefineIterations; t++ {
		r.refineStep()
		r.record(opts, StageRefine, t, opts.RefineCheckpoints)
	}
	return r
}

func (r *relaxation) refineStep() {
	r.fill()
	r.sweep(refineDelta)
}

// Refine sharpens an upscaled shading estimate at full resolution.
//
// The estimate is the driving source. Each iteration adds
// 0.2 * sum(G(n) - G) to the water level of every interior cell and clamps it
// at zero, which fills the remaining narrow basins of the estimate. The last
// snapshot of the filled surface is returned.
func Refine(estimate *Grid, opts Options) (*Grid, error) {
	if estimate == nil {
		return nil, ErrEmptyImage
	}
	if opts.RefineIterations < 0 {
		return nil, fmt.Errorf("%w: refine iterations %d", ErrInvalidIterations, opts.RefineIterations)
	}
	start := time.Now()
	r := refineRun(estimate, opts)
	opts.Logger.Debug().
		Int("iterations", opts.RefineIterations).
		Dur("elapsed", time.Since(start)).
		Msg("refinement done")
	return r.surfaceGrid(), nil
}

// Normalize divides original by the shading surface and scales the ratio to
// 8-bit levels: out = brightness * original / max(shading, floor) * 255.
//
// Shading values below floor, and NaN, are replaced by floor; their count is
// returned in Stats.
func Normalize(original, shading *Grid, brightness, floor float64) (*Grid, Stats, error) {
	var stats Stats
	if original == nil || shading == nil {
		return nil, stats, ErrEmptyImage
	}
	if original.Size() != shading.Size() {
		return nil, stats, fmt.Errorf("%w: original %v, shading %v",
			ErrSizeMismatch, original.Size(), shading.Size())
	}
	if !(floor > 0) {
		return nil, stats, fmt.Errorf("%w: floor must be positive, got %v", ErrInvalidOptions, floor)
	}

	out := newGrid(original.Width(), original.Height())
	in, sh, dst := original.raw(), shading.raw(), out.raw()
	for i, v := range in {
		g := sh[i]
		if !(g >= floor) {
			g = floor
			stats.FlooredPixels++
		}
		dst[i] = quantize(brightness * v / g * 255)
	}
	return out, stats, nil
}

// IncrementalFill runs Refine on the upscaled estimate and normalizes
// original against the refined surface.
func IncrementalFill(estimate, original *Grid, opts Options) (*Grid, Stats, error) {
	if estimate == nil || original == nil {
		return nil, Stats{}, ErrEmptyImage
	}
	if estimate.Size() != original.Size() {
		return nil, Stats{}, fmt.Errorf("%w: estimate %v, original %v",
			ErrSizeMismatch, estimate.Size(), original.Size())
	}
	shading, err := Refine(estimate, opts)
	if err != nil {
		return nil, Stats{}, err
	}
	return Normalize(original, shading, opts.Brightness, opts.MinShading)
}
