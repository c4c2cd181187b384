package imaging

import (
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// SSIM constants for 8-bit data: (0.01*255)^2 and (0.03*255)^2.
const (
	ssimC1     = 6.5025
	ssimC2     = 58.5225
	ssimWindow = 11
	ssimSigma  = 1.5
)

// dblEpsilon is the float64 machine epsilon.
const dblEpsilon = 2.220446049250313e-16

// QualityResult scores a shadow-removal result against its ground truth.
type QualityResult struct {
	// PSNR is the peak signal-to-noise ratio in dB over the three colour
	// channels. Identical images score about 361 dB.
	PSNR float64 `json:"psnr"`

	// SSIM is the mean structural similarity averaged over the channels.
	SSIM float64 `json:"ssim"`

	// SSIMChannels holds the per-channel SSIM in R, G, B order.
	SSIMChannels [3]float64 `json:"ssim_channels"`

	Width  int `json:"width"`
	Height int `json:"height"`

	// TruthResized is set when the ground truth was resampled to the result
	// size before scoring.
	TruthResized bool `json:"truth_resized"`
}

// Compare scores result against truth. When the sizes differ, truth is
// resized to the result size with linear filtering first.
func Compare(result, truth image.Image) (*QualityResult, error) {
	rb := result.Bounds()
	if rb.Empty() || truth.Bounds().Empty() {
		return nil, ErrEmptyImage
	}
	q := &QualityResult{Width: rb.Dx(), Height: rb.Dy()}

	a := imaging.Clone(result)
	var b *image.NRGBA
	if truth.Bounds().Size() != rb.Size() {
		b = imaging.Resize(truth, rb.Dx(), rb.Dy(), imaging.Linear)
		q.TruthResized = true
	} else {
		b = imaging.Clone(truth)
	}

	pa, pb := channelPlanes(a), channelPlanes(b)
	q.PSNR = psnr(pa, pb)
	for c := range pa {
		q.SSIMChannels[c] = ssim(pa[c], pb[c], q.Width, q.Height)
	}
	q.SSIM = stat.Mean(q.SSIMChannels[:], nil)
	return q, nil
}

// PSNR returns the peak signal-to-noise ratio between two images of the same
// size: 20*log10(255 / (sqrt(MSE) + eps)).
func PSNR(a, b image.Image) (float64, error) {
	if a.Bounds().Size() != b.Bounds().Size() {
		return 0, fmt.Errorf("%w: %v vs %v", ErrSizeMismatch, a.Bounds().Size(), b.Bounds().Size())
	}
	return psnr(channelPlanes(imaging.Clone(a)), channelPlanes(imaging.Clone(b))), nil
}

// SSIM returns the channel-averaged mean structural similarity between two
// images of the same size.
func SSIM(a, b image.Image) (float64, error) {
	if a.Bounds().Size() != b.Bounds().Size() {
		return 0, fmt.Errorf("%w: %v vs %v", ErrSizeMismatch, a.Bounds().Size(), b.Bounds().Size())
	}
	pa, pb := channelPlanes(imaging.Clone(a)), channelPlanes(imaging.Clone(b))
	w, h := a.Bounds().Dx(), a.Bounds().Dy()
	var sum float64
	for c := range pa {
		sum += ssim(pa[c], pb[c], w, h)
	}
	return sum / 3, nil
}

// channelPlanes splits the colour channels of img into float planes,
// dropping alpha.
func channelPlanes(img *image.NRGBA) [3][]float64 {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	var planes [3][]float64
	for c := range planes {
		planes[c] = make([]float64, w*h)
	}
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride:]
		for x := 0; x < w; x++ {
			for c := 0; c < 3; c++ {
				planes[c][y*w+x] = float64(row[x*4+c])
			}
		}
	}
	return planes
}

func psnr(a, b [3][]float64) float64 {
	var sq float64
	var n int
	for c := range a {
		sq += math.Pow(floats.Distance(a[c], b[c], 2), 2)
		n += len(a[c])
	}
	return 20 * math.Log10(255/(math.Sqrt(sq/float64(n))+dblEpsilon))
}

// ssim computes the mean of the SSIM map of one channel.
func ssim(x, y []float64, w, h int) float64 {
	n := len(x)
	xx := make([]float64, n)
	yy := make([]float64, n)
	xy := make([]float64, n)
	floats.MulTo(xx, x, x)
	floats.MulTo(yy, y, y)
	floats.MulTo(xy, x, y)

	kernel := gaussianKernel(ssimWindow, ssimSigma)
	muX := gaussianBlur(x, w, h, kernel)
	muY := gaussianBlur(y, w, h, kernel)
	sXX := gaussianBlur(xx, w, h, kernel)
	sYY := gaussianBlur(yy, w, h, kernel)
	sXY := gaussianBlur(xy, w, h, kernel)

	m := make([]float64, n)
	for i := range m {
		mx, my := muX[i], muY[i]
		varX := sXX[i] - mx*mx
		varY := sYY[i] - my*my
		cov := sXY[i] - mx*my
		num := (2*mx*my + ssimC1) * (2*cov + ssimC2)
		den := (mx*mx + my*my + ssimC1) * (varX + varY + ssimC2)
		m[i] = num / den
	}
	return stat.Mean(m, nil)
}

// gaussianKernel returns a normalized 1-D Gaussian of the given odd size.
func gaussianKernel(size int, sigma float64) []float64 {
	k := make([]float64, size)
	half := size / 2
	for i := range k {
		d := float64(i - half)
		k[i] = math.Exp(-d * d / (2 * sigma * sigma))
	}
	floats.Scale(1/floats.Sum(k), k)
	return k
}

// reflect101 maps i into [0, n) mirroring around the edge pixels without
// repeating them (gfedcb|abcdefgh|gfedcba).
func reflect101(i, n int) int {
	if n == 1 {
		return 0
	}
	for i < 0 || i >= n {
		if i < 0 {
			i = -i
		}
		if i >= n {
			i = 2*(n-1) - i
		}
	}
	return i
}

// gaussianBlur applies the separable kernel horizontally then vertically.
func gaussianBlur(src []float64, w, h int, kernel []float64) []float64 {
	half := len(kernel) / 2
	tmp := make([]float64, len(src))
	for y := 0; y < h; y++ {
		row := src[y*w : (y+1)*w]
		for x := 0; x < w; x++ {
			var s float64
			for k, kv := range kernel {
				s += kv * row[reflect101(x+k-half, w)]
			}
			tmp[y*w+x] = s
		}
	}
	out := make([]float64, len(src))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var s float64
			for k, kv := range kernel {
				s += kv * tmp[reflect101(y+k-half, h)*w+x]
			}
			out[y*w+x] = s
		}
	}
	return out
}
