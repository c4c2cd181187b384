package evaluate

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func writeGray(t *testing.T, path string, w, h int, v uint8) {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = v
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create %s: %v", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("failed to encode %s: %v", path, err)
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestReadList(t *testing.T) {
	dir := t.TempDir()
	list := filepath.Join(dir, "lists", "results.lst")
	writeFile(t, list, "a.png\n\n../out/b.png\r\n/abs/c.png\n")

	got, err := ReadList(list)
	if err != nil {
		t.Fatalf("ReadList failed: %v", err)
	}
	want := []string{
		filepath.Join(dir, "lists", "a.png"),
		filepath.Join(dir, "out", "b.png"),
		"/abs/c.png",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ReadList mismatch (-want +got):\n%s", diff)
	}

	if _, err := ReadList(filepath.Join(dir, "missing.lst")); err == nil {
		t.Error("ReadList should fail for a missing list")
	}
}

func TestLoadJob_Mismatch(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "r.lst"), "a.png\nb.png\n")
	writeFile(t, filepath.Join(dir, "g.lst"), "a.png\n")
	writeFile(t, filepath.Join(dir, "j.lst"), "a.json\nb.json\nc.json\n")

	if _, err := LoadJob(filepath.Join(dir, "r.lst"), filepath.Join(dir, "g.lst"), ""); !errors.Is(err, ErrListMismatch) {
		t.Errorf("truth mismatch: got %v, want ErrListMismatch", err)
	}
	if _, err := LoadJob(filepath.Join(dir, "r.lst"), filepath.Join(dir, "r.lst"), filepath.Join(dir, "j.lst")); !errors.Is(err, ErrListMismatch) {
		t.Errorf("region mismatch: got %v, want ErrListMismatch", err)
	}
}

// batch lays out two scored pairs and returns their lists.
func batch(t *testing.T) (results, truths, regions string) {
	t.Helper()
	dir := t.TempDir()
	writeGray(t, filepath.Join(dir, "res", "page1.png"), 8, 8, 100)
	writeGray(t, filepath.Join(dir, "res", "page2.png"), 8, 8, 110)
	writeGray(t, filepath.Join(dir, "gt", "page1.png"), 16, 16, 100)
	writeGray(t, filepath.Join(dir, "gt", "page2.png"), 16, 16, 100)
	writeFile(t, filepath.Join(dir, "roi", "page1.json"), `{"x":4,"y":4,"width":8,"height":8}`)
	writeFile(t, filepath.Join(dir, "roi", "page2.json"),
		`{"points":[{"x":0,"y":8},{"x":8,"y":8},{"x":8,"y":0},{"x":0,"y":0}]}`)

	results = filepath.Join(dir, "results.lst")
	truths = filepath.Join(dir, "gt.lst")
	regions = filepath.Join(dir, "roi.lst")
	writeFile(t, results, "res/page1.png\nres/page2.png\n")
	writeFile(t, truths, "gt/page1.png\ngt/page2.png\n")
	writeFile(t, regions, "roi/page1.json\nroi/page2.json\n")
	return results, truths, regions
}

func TestEvaluator_Run(t *testing.T) {
	job, err := LoadJob(batch(t))
	if err != nil {
		t.Fatalf("LoadJob failed: %v", err)
	}

	rows, err := (&Evaluator{}).Run(context.Background(), job)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows: got %d, want 2", len(rows))
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, rows); err != nil {
		t.Fatalf("WriteCSV failed: %v", err)
	}
	want := "filename,psnr,ssim\npage1.png,361.202,1\npage2.png,28.1308,0.995476\n"
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Errorf("CSV mismatch (-want +got):\n%s", diff)
	}
}

func TestEvaluator_RunWithoutRegions(t *testing.T) {
	results, truths, _ := batch(t)
	job, err := LoadJob(results, truths, "")
	if err != nil {
		t.Fatalf("LoadJob failed: %v", err)
	}
	rows, err := (&Evaluator{}).Run(context.Background(), job)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	// The 16x16 truth is resized to 8x8; a flat image stays flat.
	if rows[0].PSNR < 300 {
		t.Errorf("page1 PSNR: got %v, want an identical score", rows[0].PSNR)
	}
}

func TestEvaluator_Errors(t *testing.T) {
	job, err := LoadJob(batch(t))
	if err != nil {
		t.Fatalf("LoadJob failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := (&Evaluator{}).Run(ctx, job); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled: got %v, want context.Canceled", err)
	}

	job.Truths[1] = filepath.Join(t.TempDir(), "missing.png")
	rows, err := (&Evaluator{}).Run(context.Background(), job)
	if err == nil || !strings.Contains(err.Error(), "pair 1") {
		t.Errorf("missing truth: got %v", err)
	}
	if len(rows) != 1 {
		t.Errorf("rows scored before the failure: got %d, want 1", len(rows))
	}
}

func TestPlotScores(t *testing.T) {
	rows := []Row{{"a.png", 30.5, 0.91}, {"b.png", 27.2, 0.88}}
	path := filepath.Join(t.TempDir(), "scores.png")

	if err := PlotScores(rows, path); err != nil {
		t.Fatalf("PlotScores failed: %v", err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("plot missing: %v", err)
	}
	defer f.Close()
	if _, err := png.DecodeConfig(f); err != nil {
		t.Errorf("plot is not a PNG: %v", err)
	}

	if err := PlotScores(nil, path); err == nil {
		t.Error("PlotScores should reject an empty batch")
	}
}


// failingCloser accepts writes and fails on Close.
type failingCloser struct {
	bytes.Buffer
	closed bool
}

func (f *failingCloser) Close() error {
	f.closed = true
	return errors.New("disk full")
}

func TestSaveCSV(t *testing.T) {
	rows := []Row{{Filename: "page1.png", PSNR: 361.2019, SSIM: 1}}

	path := filepath.Join(t.TempDir(), "metrics.csv")
	if err := SaveCSV(path, rows); err != nil {
		t.Fatalf("SaveCSV failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff("filename,psnr,ssim\npage1.png,361.202,1\n", string(data)); diff != "" {
		t.Errorf("CSV mismatch (-want +got):\n%s", diff)
	}

	if err := SaveCSV(filepath.Join(t.TempDir(), "missing", "metrics.csv"), rows); err == nil {
		t.Error("SaveCSV into a missing directory should fail")
	}
}

func TestSaveCSV_ReportsCloseError(t *testing.T) {
	wc := &failingCloser{}
	err := writeAndClose(wc, []Row{{Filename: "a.png", PSNR: 30, SSIM: 0.9}})
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Errorf("got %v, want the close error", err)
	}
	if !wc.closed {
		t.Error("writer was not closed")
	}
	if !strings.HasPrefix(wc.String(), "filename,psnr,ssim\n") {
		t.Errorf("rows not written before close: %q", wc.String())
	}
}
