package waterfill

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"
)

// Default tuning values. They reproduce the behaviour the shadow-removal
// pipeline was calibrated with.
const (
	DefaultRate             = 1.0
	DefaultFloodIterations  = 2500
	DefaultRefineIterations = 100
	// DefaultBrightness scales the normalized luma; 0.875*255 is the output
	// level of a fully lit surface.
	DefaultBrightness = 0.875
	// DefaultMinShading is the smallest shading value used as a divisor.
	// Shading surfaces are 8-bit levels, so 1 only affects cells that are
	// black in both the source and the estimate.
	DefaultMinShading = 1.0

	// EffuseRate is the per-neighbour drainage coefficient of both relaxations.
	EffuseRate = 0.2
)

// DefaultFloodCheckpoints and DefaultRefineCheckpoints are the iterations at
// which the surface is handed to Options.Sink.
var (
	DefaultFloodCheckpoints  = []int{100, 1500}
	DefaultRefineCheckpoints = []int{10, 50}
)

// Options controls a shadow-removal run.
type Options struct {
	// Rate is the downsample factor applied before the flood stage, in (0, 1].
	Rate float64

	// FloodIterations is the iteration budget of the flood-and-effuse stage.
	FloodIterations int
	// FloodCheckpoints lists flood iterations reported to Sink.
	FloodCheckpoints []int

	// RefineIterations is the iteration budget of the incremental refinement.
	RefineIterations int
	// RefineCheckpoints lists refinement iterations reported to Sink.
	RefineCheckpoints []int

	// Brightness is the output gain applied after dividing by the shading.
	Brightness float64
	// MinShading is the floor applied to the shading surface before division.
	MinShading float64

	// Workers is the number of goroutines sharing each iteration's sweep.
	// Values below 2 run the sweep on the calling goroutine.
	Workers int

	// Sink receives diagnostic snapshots. Nil disables diagnostics.
	Sink Sink

	// Logger receives progress and warnings. The zero value discards output.
	Logger zerolog.Logger
}

// DefaultOptions returns the calibrated defaults with no downsampling and no
// diagnostics.
func DefaultOptions() Options {
	return Options{
		Rate:              DefaultRate,
		FloodIterations:   DefaultFloodIterations,
		FloodCheckpoints:  append([]int(nil), DefaultFloodCheckpoints...),
		RefineIterations:  DefaultRefineIterations,
		RefineCheckpoints: append([]int(nil), DefaultRefineCheckpoints...),
		Brightness:        DefaultBrightness,
		MinShading:        DefaultMinShading,
		Workers:           1,
	}
}

// Validate reports the first out-of-range field.
func (o Options) Validate() error {
	if !(o.Rate > 0 && o.Rate <= 1) {
		return fmt.Errorf("%w: got %v", ErrInvalidRate, o.Rate)
	}
	if o.FloodIterations < 0 {
		return fmt.Errorf("%w: flood iterations %d", ErrInvalidIterations, o.FloodIterations)
	}
	if o.RefineIterations < 0 {
		return fmt.Errorf("%w: refine iterations %d", ErrInvalidIterations, o.RefineIterations)
	}
	if !(o.Brightness > 0) || math.IsInf(o.Brightness, 0) {
		return fmt.Errorf("%w: brightness must be positive, got %v", ErrInvalidOptions, o.Brightness)
	}
	if !(o.MinShading > 0) || math.IsInf(o.MinShading, 0) {
		return fmt.Errorf("%w: min shading must be positive, got %v", ErrInvalidOptions, o.MinShading)
	}
	if o.Workers < 0 {
		return fmt.Errorf("%w: workers must not be negative, got %d", ErrInvalidOptions, o.Workers)
	}
	return nil
}

func isCheckpoint(checkpoints []int, t int) bool {
	for _, c := range checkpoints {
		if c == t {
			return true
		}
	}
	return false
}
