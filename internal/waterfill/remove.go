package waterfill

import (
	"image"
	"image/color"
	"time"
)

// Result is the outcome of RemoveShadow.
type Result struct {
	// Image is the corrected image, same size as the input, fully opaque.
	Image *image.NRGBA
	// Shading is the refined shading surface at full resolution.
	Shading *Grid
	// Downsampled is the grid size the flood stage ran at.
	Downsampled image.Point
	// FlooredPixels counts shading values clamped to Options.MinShading.
	FlooredPixels int
	// Degenerate is set when the input or its downsampled grid is too small
	// to have interior cells. The water level then stays zero and the output
	// is a plain brightness rescale of the input.
	Degenerate bool
	// Duration is the wall-clock time of the whole run.
	Duration time.Duration
}

// RemoveShadow removes shading from the luma of img and recombines it with
// the untouched chroma.
func RemoveShadow(img image.Image, opts Options) (*Result, error) {
	start := time.Now()
	if err := validateImage(img); err != nil {
		return nil, err
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	ycc := splitLuma(img)
	luma := lumaGrid(ycc)

	est, err := estimate(luma, opts)
	if err != nil {
		return nil, err
	}
	out, stats, err := Normalize(luma, est.shading, opts.Brightness, opts.MinShading)
	if err != nil {
		return nil, err
	}
	if stats.FlooredPixels > 0 {
		opts.Logger.Warn().
			Int("pixels", stats.FlooredPixels).
			Float64("floor", opts.MinShading).
			Msg("shading surface clamped before division")
	}
	setLuma(ycc, out)

	res := &Result{
		Image:         mergeLuma(ycc),
		Shading:       est.shading,
		Downsampled:   est.downsampled,
		FlooredPixels: stats.FlooredPixels,
		Degenerate:    est.degenerate,
		Duration:      time.Since(start),
	}
	opts.Logger.Info().
		Int("width", luma.Width()).
		Int("height", luma.Height()).
		Float64("rate", opts.Rate).
		Dur("elapsed", res.Duration).
		Msg("shadow removed")
	return res, nil
}

// EstimateShading runs the downsample, flood and refine stages on the luma of
// img and returns the refined shading surface without normalizing.
func EstimateShading(img image.Image, opts Options) (*Grid, error) {
	if err := validateImage(img); err != nil {
		return nil, err
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	est, err := estimate(lumaGrid(splitLuma(img)), opts)
	if err != nil {
		return nil, err
	}
	return est.shading, nil
}

type estimation struct {
	shading     *Grid
	downsampled image.Point
	degenerate  bool
}

func estimate(luma *Grid, opts Options) (*estimation, error) {
	small, err := Downsample(luma, opts.Rate)
	if err != nil {
		return nil, err
	}
	degenerate := !hasInterior(small.Width(), small.Height()) || !hasInterior(luma.Width(), luma.Height())
	if degenerate {
		opts.Logger.Warn().
			Int("width", small.Width()).
			Int("height", small.Height()).
			Msg("grid has no interior cells; shading estimate is the unmodified source")
	}

	flooded, err := FloodFill(small, luma.Size(), opts)
	if err != nil {
		return nil, err
	}
	shading, err := Refine(flooded, opts)
	if err != nil {
		return nil, err
	}
	return &estimation{shading: shading, downsampled: small.Size(), degenerate: degenerate}, nil
}

func validateImage(img image.Image) error {
	if img == nil || img.Bounds().Empty() {
		return ErrEmptyImage
	}
	return nil
}

// splitLuma converts img to full-range YCbCr with one chroma sample per
// pixel, rebased to the origin.
func splitLuma(img image.Image) *image.YCbCr {
	b := img.Bounds()
	ycc := image.NewYCbCr(image.Rect(0, 0, b.Dx(), b.Dy()), image.YCbCrSubsampleRatio444)
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			c := color.NRGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			yy, cb, cr := color.RGBToYCbCr(c.R, c.G, c.B)
			i := y*ycc.YStride + x
			ycc.Y[i] = yy
			ycc.Cb[i] = cb
			ycc.Cr[i] = cr
		}
	}
	return ycc
}

func lumaGrid(ycc *image.YCbCr) *Grid {
	w, h := ycc.Rect.Dx(), ycc.Rect.Dy()
	g := newGrid(w, h)
	data := g.raw()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			data[y*w+x] = float64(ycc.Y[y*ycc.YStride+x])
		}
	}
	return g
}

// setLuma replaces the luma plane with the quantized grid values.
func setLuma(ycc *image.YCbCr, g *Grid) {
	w := g.Width()
	data := g.raw()
	for y := 0; y < g.Height(); y++ {
		for x := 0; x < w; x++ {
			ycc.Y[y*ycc.YStride+x] = uint8(quantize(data[y*w+x]))
		}
	}
}

func mergeLuma(ycc *image.YCbCr) *image.NRGBA {
	w, h := ycc.Rect.Dx(), ycc.Rect.Dy()
	out := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*ycc.YStride + x
			r, g, b := color.YCbCrToRGB(ycc.Y[i], ycc.Cb[i], ycc.Cr[i])
			out.SetNRGBA(x, y, color.NRGBA{R: r, G: g, B: b, A: 255})
		}
	}
	return out
}
