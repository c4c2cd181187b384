package waterfill

import (
	"math"
	"sync"
)

// Cells with y < interiorLow or y >= height-interiorHigh (and likewise for x)
// are never updated. The asymmetric high margin matches the calibrated
// pipeline, which swept [1, n-2).
const (
	interiorLow  = 1
	interiorHigh = 2
)

// hasInterior reports whether a width x height grid has any updatable cell.
func hasInterior(width, height int) bool {
	return width-interiorHigh > interiorLow && height-interiorHigh > interiorLow
}

// relaxation holds the double-buffered water level of one solver run.
//
// surface is recomputed from water and source at the top of every iteration
// and is read-only during the sweep; sweep writes next and then swaps it with
// water. Cells outside the interior are never written in either buffer.
type relaxation struct {
	width, height int
	source        []float64
	water         []float64
	next          []float64
	surface       []float64
	workers       int
}

func newRelaxation(source *Grid, workers int) *relaxation {
	n := source.Width() * source.Height()
	r := &relaxation{
		width:   source.Width(),
		height:  source.Height(),
		source:  source.raw(),
		water:   make([]float64, n),
		next:    make([]float64, n),
		surface: make([]float64, n),
		workers: workers,
	}
	r.fill()
	return r
}

// fill sets surface = water + source.
func (r *relaxation) fill() {
	for i, s := range r.source {
		r.surface[i] = r.water[i] + s
	}
}

// delta returns the water change of the cell at index i given the current
// surface snapshot s and row stride.
type delta func(s []float64, i, stride int) float64

// sweep applies next = max(0, water + d) to every interior cell and swaps the
// buffers.
func (r *relaxation) sweep(d delta) {
	lo, hi := interiorLow, r.height-interiorHigh
	if !hasInterior(r.width, r.height) {
		return
	}
	workers := r.workers
	if rows := hi - lo; workers > rows {
		workers = rows
	}
	if workers < 2 {
		r.sweepRows(d, lo, hi)
	} else {
		var wg sync.WaitGroup
		chunk := (hi - lo + workers - 1) / workers
		for start := lo; start < hi; start += chunk {
			end := min(start+chunk, hi)
			wg.Add(1)
			go func(start, end int) {
				defer wg.Done()
				r.sweepRows(d, start, end)
			}(start, end)
		}
		wg.Wait()
	}
	r.water, r.next = r.next, r.water
}

func (r *relaxation) sweepRows(d delta, y0, y1 int) {
	stride := r.width
	x0, x1 := interiorLow, r.width-interiorHigh
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			i := y*stride + x
			r.next[i] = math.Max(0, r.water[i]+d(r.surface, i, stride))
		}
	}
}

// surfaceGrid wraps the current surface snapshot without copying.
func (r *relaxation) surfaceGrid() *Grid {
	return wrapGrid(r.width, r.height, r.surface)
}

// waterGrid wraps the current water level without copying.
func (r *relaxation) waterGrid() *Grid {
	return wrapGrid(r.width, r.height, r.water)
}

// record hands the current surface to sink if t is a checkpoint.
func (r *relaxation) record(opts Options, stage Stage, t int, checkpoints []int) {
	if opts.Sink == nil || !isCheckpoint(checkpoints, t) {
		return
	}
	g := r.surfaceGrid()
	lo, hi := g.Extrema()
	err := opts.Sink.Record(Snapshot{Stage: stage, Iteration: t, Surface: g, Min: lo, Peak: hi})
	if err != nil {
		opts.Logger.Warn().Err(err).Str("stage", string(stage)).Int("iteration", t).
			Msg("diagnostic snapshot dropped")
	}
}
