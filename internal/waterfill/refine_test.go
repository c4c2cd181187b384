package waterfill

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/stat"
)

func TestRefine_BrightPixelSpreads(t *testing.T) {
	src, _ := NewGrid(10, 10)
	src.Set(5, 5, 255)
	r := newRelaxation(src, 1)

	neighbours := [][2]int{{4, 5}, {6, 5}, {5, 4}, {5, 6}}
	prev := make([]float64, len(neighbours))

	for it := 0; it < 50; it++ {
		r.refineStep()
		if g := filledAt(r, 5, 5); g != 255 {
			t.Fatalf("iteration %d: bright cell level changed to %v", it, g)
		}
		for i, n := range neighbours {
			cur := filledAt(r, n[0], n[1])
			if !(cur > prev[i]) {
				t.Fatalf("iteration %d: neighbour %v did not rise: %v -> %v", it, n, prev[i], cur)
			}
			if cur > 255 {
				t.Fatalf("iteration %d: neighbour %v overshot the source peak: %v", it, n, cur)
			}
			prev[i] = cur
		}
	}
}

func TestRefine_LinearRampUnchanged(t *testing.T) {
	src := gridOf(t, 20, 12, func(x, y int) float64 { return float64(200 - 5*x) })
	opts := DefaultOptions()

	got, err := Refine(src, opts)
	if err != nil {
		t.Fatalf("Refine failed: %v", err)
	}
	if !got.Equal(src) {
		t.Error("a harmonic surface has nothing to fill and should stay unchanged")
	}
}

func TestRefine_Checkpoints(t *testing.T) {
	src := gridOf(t, 12, 12, bumpy)
	sink := &MemorySink{}
	opts := DefaultOptions()
	opts.RefineIterations = 60
	opts.Sink = sink

	if _, err := Refine(src, opts); err != nil {
		t.Fatalf("Refine failed: %v", err)
	}
	snaps := sink.Snapshots()
	if len(snaps) != 2 {
		t.Fatalf("snapshots: got %d, want 2", len(snaps))
	}
	for i, want := range DefaultRefineCheckpoints {
		if snaps[i].Stage != StageRefine || snaps[i].Iteration != want {
			t.Errorf("snapshot %d: got %s/%d, want refine/%d", i, snaps[i].Stage, snaps[i].Iteration, want)
		}
	}
}

func TestNormalize_FlatSurface(t *testing.T) {
	orig := gridOf(t, 6, 6, constant(128))
	out, stats, err := Normalize(orig, orig, DefaultBrightness, DefaultMinShading)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if stats.FlooredPixels != 0 {
		t.Errorf("FlooredPixels: got %d, want 0", stats.FlooredPixels)
	}
	lo, hi := out.Extrema()
	if lo != 223 || hi != 223 {
		t.Errorf("output range [%v, %v], want 223 everywhere", lo, hi)
	}
}

func TestNormalize_ZeroInput(t *testing.T) {
	zero := gridOf(t, 8, 8, constant(0))
	out, stats, err := Normalize(zero, zero, DefaultBrightness, DefaultMinShading)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if stats.FlooredPixels != 64 {
		t.Errorf("FlooredPixels: got %d, want 64", stats.FlooredPixels)
	}
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			if v := out.At(x, y); v != 0 || math.IsNaN(v) {
				t.Fatalf("At(%d,%d): got %v, want 0", x, y, v)
			}
		}
	}
}

func TestNormalize_FloorsNaNAndTinyShading(t *testing.T) {
	orig := gridOf(t, 3, 1, constant(100))
	shading := gridOf(t, 3, 1, constant(100))
	shading.Set(0, 0, math.NaN())
	shading.Set(1, 0, 1e-12)

	out, stats, err := Normalize(orig, shading, DefaultBrightness, DefaultMinShading)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if stats.FlooredPixels != 2 {
		t.Errorf("FlooredPixels: got %d, want 2", stats.FlooredPixels)
	}
	for x := 0; x < 2; x++ {
		if v := out.At(x, 0); v != 255 {
			t.Errorf("floored pixel %d: got %v, want saturated 255", x, v)
		}
	}
	if v := out.At(2, 0); v != 223 {
		t.Errorf("regular pixel: got %v, want 223", v)
	}
}

func TestNormalize_Errors(t *testing.T) {
	a := gridOf(t, 4, 4, constant(1))
	b := gridOf(t, 5, 4, constant(1))

	if _, _, err := Normalize(a, b, 1, 1); !errors.Is(err, ErrSizeMismatch) {
		t.Errorf("size mismatch: got %v, want ErrSizeMismatch", err)
	}
	if _, _, err := Normalize(a, a, 1, 0); !errors.Is(err, ErrInvalidOptions) {
		t.Errorf("zero floor: got %v, want ErrInvalidOptions", err)
	}
	if _, _, err := Normalize(nil, a, 1, 1); !errors.Is(err, ErrEmptyImage) {
		t.Errorf("nil original: got %v, want ErrEmptyImage", err)
	}
}

func TestIncrementalFill_ZeroInput(t *testing.T) {
	zero := gridOf(t, 16, 16, constant(0))
	out, stats, err := IncrementalFill(zero, zero.Clone(), DefaultOptions())
	if err != nil {
		t.Fatalf("IncrementalFill failed: %v", err)
	}
	if stats.FlooredPixels != 256 {
		t.Errorf("FlooredPixels: got %d, want 256", stats.FlooredPixels)
	}
	if lo, hi := out.Extrema(); lo != 0 || hi != 0 {
		t.Errorf("output range [%v, %v], want all zero", lo, hi)
	}
}

func TestIncrementalFill_SizeMismatch(t *testing.T) {
	a := gridOf(t, 8, 8, constant(1))
	b := gridOf(t, 8, 9, constant(1))
	if _, _, err := IncrementalFill(a, b, DefaultOptions()); !errors.Is(err, ErrSizeMismatch) {
		t.Errorf("got %v, want ErrSizeMismatch", err)
	}
}

// columnMeans averages each column of g over all rows.
func columnMeans(g *Grid) []float64 {
	means := make([]float64, g.Width())
	col := make([]float64, g.Height())
	for x := range means {
		for y := range col {
			col[y] = g.At(x, y)
		}
		means[x] = stat.Mean(col, nil)
	}
	return means
}

func TestShadingGradient_IsEstimatedAndRemoved(t *testing.T) {
	const size = 64
	ramp := func(x, y int) float64 {
		return math.Round(200 - 150*float64(x)/float64(size-1))
	}
	src := gridOf(t, size, size, ramp)
	opts := DefaultOptions()

	flooded, err := FloodFill(src, src.Size(), opts)
	if err != nil {
		t.Fatalf("FloodFill failed: %v", err)
	}
	shading, err := Refine(flooded, opts)
	if err != nil {
		t.Fatalf("Refine failed: %v", err)
	}

	est := columnMeans(shading)
	for x, v := range est {
		if want := ramp(x, 0); math.Abs(v-want) > 3 {
			t.Errorf("column %d: shading %v does not track the gradient %v", x, v, want)
		}
	}

	out, _, err := Normalize(src, shading, opts.Brightness, opts.MinShading)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	before := stat.StdDev(columnMeans(src), nil)
	after := stat.StdDev(columnMeans(out), nil)
	if after > 0.3*before {
		t.Errorf("column profile std: before %.2f, after %.2f; want at least a 70%% reduction", before, after)
	}
}
