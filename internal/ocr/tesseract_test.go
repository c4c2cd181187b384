package ocr

import (
	"image"
	"image/color"
	"image/draw"
	"strings"
	"testing"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// skipWithoutTesseract skips the test when err comes from a missing engine or
// missing language data.
func skipWithoutTesseract(t *testing.T, err error) {
	t.Helper()
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "tesseract") || strings.Contains(msg, "library") ||
		strings.Contains(msg, "traineddata") || strings.Contains(msg, "language") {
		t.Skip("Tesseract not available")
	}
}

// createPage renders lines with basicfont and upscales the result by scale so
// Tesseract sees glyphs of a readable size.
func createPage(lines []string, scale int) *image.RGBA {
	maxLen := 0
	for _, l := range lines {
		maxLen = max(maxLen, len(l))
	}
	w, h := maxLen*7+40, len(lines)*16+30

	small := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(small, small.Bounds(), image.White, image.Point{}, draw.Src)
	for i, line := range lines {
		d := &font.Drawer{
			Dst:  small,
			Src:  image.NewUniform(color.Black),
			Face: basicfont.Face7x13,
			Dot:  fixed.Point26_6{X: fixed.I(20), Y: fixed.I(20 + i*16)},
		}
		d.DrawString(line)
	}

	page := image.NewRGBA(image.Rect(0, 0, w*scale, h*scale))
	for y := 0; y < h*scale; y++ {
		for x := 0; x < w*scale; x++ {
			page.Set(x, y, small.At(x/scale, y/scale))
		}
	}
	return page
}

// shade darkens the right part of img linearly, imitating a cast shadow.
func shade(img *image.RGBA) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			f := 1 - 0.7*float64(x-b.Min.X)/float64(b.Dx())
			c := img.RGBAAt(x, y)
			out.SetRGBA(x, y, color.RGBA{
				R: uint8(float64(c.R) * f), G: uint8(float64(c.G) * f), B: uint8(float64(c.B) * f), A: 255,
			})
		}
	}
	return out
}

func TestMeasure_ReadsRenderedText(t *testing.T) {
	page := createPage([]string{"HELLO WORLD", "SHADOW FREE"}, 4)

	r, err := Measure(page, Options{})
	if err != nil {
		skipWithoutTesseract(t, err)
		t.Fatalf("Measure failed: %v", err)
	}
	if r.Words == 0 {
		t.Fatal("expected at least one recognized word")
	}
	if r.MeanConfidence <= 0 || r.MeanConfidence > 1 {
		t.Errorf("MeanConfidence out of range: %v", r.MeanConfidence)
	}
	if !strings.Contains(strings.ToUpper(r.Text), "HELLO") {
		t.Logf("recognized text: %q", r.Text)
	}
	if len(r.WordList) != r.Words {
		t.Errorf("WordList has %d entries, Words is %d", len(r.WordList), r.Words)
	}
}

func TestMeasure_BlankPage(t *testing.T) {
	blank := image.NewRGBA(image.Rect(0, 0, 120, 60))
	draw.Draw(blank, blank.Bounds(), image.White, image.Point{}, draw.Src)

	r, err := Measure(blank, Options{})
	if err != nil {
		skipWithoutTesseract(t, err)
		t.Fatalf("Measure failed: %v", err)
	}
	if r.Words != 0 || r.MeanConfidence != 0 {
		t.Errorf("blank page: got %d words at %v confidence", r.Words, r.MeanConfidence)
	}
}

func TestMeasure_InvalidLanguage(t *testing.T) {
	page := createPage([]string{"TEXT"}, 3)
	if _, err := Measure(page, Options{Language: "not_a_language"}); err == nil {
		t.Error("Measure should fail for an unknown language")
	}
}

func TestCompare(t *testing.T) {
	clean := createPage([]string{"THE QUICK BROWN FOX"}, 4)
	shadowed := shade(clean)

	cmp, err := Compare(shadowed, clean, Options{})
	if err != nil {
		skipWithoutTesseract(t, err)
		t.Fatalf("Compare failed: %v", err)
	}
	if cmp.WordGain != cmp.After.Words-cmp.Before.Words {
		t.Errorf("WordGain %d inconsistent with %d -> %d", cmp.WordGain, cmp.Before.Words, cmp.After.Words)
	}
	if got := cmp.After.MeanConfidence - cmp.Before.MeanConfidence; got != cmp.ConfidenceGain {
		t.Errorf("ConfidenceGain: got %v, want %v", cmp.ConfidenceGain, got)
	}
}

func TestComparison_Improved(t *testing.T) {
	tests := []struct {
		name string
		cmp  Comparison
		want bool
	}{
		{"more words", Comparison{WordGain: 3, ConfidenceGain: 0.1}, true},
		{"unchanged", Comparison{}, true},
		{"lost confidence", Comparison{WordGain: 2, ConfidenceGain: -0.05}, false},
		{"lost words", Comparison{WordGain: -1, ConfidenceGain: 0.2}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cmp.Improved(); got != tt.want {
				t.Errorf("Improved: got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestVersion(t *testing.T) {
	if v := Version(); v == "" {
		t.Skip("Tesseract not available")
	}
}
