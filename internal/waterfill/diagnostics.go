package waterfill

import (
	"fmt"
	"image"
	"image/color"
	"sync"

	"github.com/anthonynsimon/bild/imgio"
	"github.com/lucasb-eyer/go-colorful"
)

// Stage identifies which relaxation produced a snapshot.
type Stage string

const (
	StageFlood  Stage = "flood"
	StageRefine Stage = "refine"
)

// filePrefix is the file name stem used by FileSink for each stage.
func (s Stage) filePrefix() string {
	if s == StageRefine {
		return "if"
	}
	return "wf"
}

// Snapshot is the filled surface read at the start of a checkpoint iteration.
type Snapshot struct {
	Stage     Stage
	Iteration int
	// Surface is only valid for the duration of Record; sinks that keep it
	// must clone it.
	Surface *Grid
	Min     float64
	Peak    float64
}

// Sink receives diagnostic snapshots. Snapshots are observational only and
// are never read back by the solvers.
type Sink interface {
	Record(snap Snapshot) error
}

// FileSink writes each snapshot to Prefix + "wf_t=<i>.jpg" (flood) or
// Prefix + "if_t=<i>.jpg" (refine).
type FileSink struct {
	// Prefix is prepended verbatim, so a directory prefix needs its trailing
	// separator.
	Prefix string
	// Heatmap renders the surface in false colour between its min and peak
	// instead of saturated grayscale.
	Heatmap bool
	// Quality is the JPEG quality. Zero means 95.
	Quality int
}

// Path returns the file a snapshot of stage at iteration would be written to.
func (s FileSink) Path(stage Stage, iteration int) string {
	return fmt.Sprintf("%s%s_t=%d.jpg", s.Prefix, stage.filePrefix(), iteration)
}

// Record encodes the snapshot as JPEG.
func (s FileSink) Record(snap Snapshot) error {
	var img image.Image
	if s.Heatmap {
		img = heatmap(snap.Surface, snap.Min, snap.Peak)
	} else {
		img = snap.Surface.Gray()
	}
	quality := s.Quality
	if quality == 0 {
		quality = 95
	}
	path := s.Path(snap.Stage, snap.Iteration)
	if err := imgio.Save(path, img, imgio.JPEGEncoder(quality)); err != nil {
		return fmt.Errorf("failed to write snapshot %s: %w", path, err)
	}
	return nil
}

var (
	heatLow  = colorful.Color{R: 0.05, G: 0.1, B: 0.6}
	heatHigh = colorful.Color{R: 1, G: 0.9, B: 0.2}
)

// heatmap maps [lo, hi] onto a blue-to-yellow ramp blended in HCL space.
func heatmap(g *Grid, lo, hi float64) *image.RGBA {
	w, h := g.Width(), g.Height()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	span := hi - lo
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			f := 0.0
			if span > 0 {
				f = (g.At(x, y) - lo) / span
			}
			c := heatLow.BlendHcl(heatHigh, clampUnit(f)).Clamped()
			r, gg, b := c.RGB255()
			img.SetRGBA(x, y, color.RGBA{R: r, G: gg, B: b, A: 255})
		}
	}
	return img
}

func clampUnit(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

// MemorySink keeps copies of every snapshot it receives. It is safe for
// concurrent use.
type MemorySink struct {
	mu        sync.Mutex
	snapshots []Snapshot
}

// Record stores a deep copy of snap.
func (m *MemorySink) Record(snap Snapshot) error {
	snap.Surface = snap.Surface.Clone()
	m.mu.Lock()
	m.snapshots = append(m.snapshots, snap)
	m.mu.Unlock()
	return nil
}

// Snapshots returns the recorded snapshots in arrival order.
func (m *MemorySink) Snapshots() []Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Snapshot(nil), m.snapshots...)
}
