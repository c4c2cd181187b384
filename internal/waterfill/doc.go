// Package waterfill removes cast shadows from photographed planar surfaces
// such as documents and cards.
//
// The shading of the surface is estimated by treating the luminance channel
// as a height field and relaxing an auxiliary water level over it. The
// original luminance is then divided by the estimated shading surface, which
// cancels multiplicative illumination changes.
//
// # Pipeline
//
// A call to RemoveShadow runs these stages in order:
//
//  1. Luma/chroma split (full-range YCbCr, 4:4:4). Chroma is kept untouched.
//  2. Downsample: linear resampling of the luma grid by Options.Rate.
//  3. FloodFill: pouring plus downhill effusing for Options.FloodIterations,
//     then linear upscale back to the input size and 8-bit quantization.
//  4. Refine: unclamped effusing for Options.RefineIterations at full
//     resolution, driven by the upscaled estimate.
//  5. Normalize: out = Brightness * I / max(G, MinShading) * 255.
//  6. Luma/chroma merge back to RGB.
//
// # Water Level Invariants
//
// The water level is never negative. Only interior cells are updated: row and
// column 0 and the last two rows and columns keep a water level of zero for
// the whole run, so the filled surface there always equals the source.
//
// Each iteration reads a snapshot of the filled surface taken before any cell
// is updated, so the per-iteration sweep can be split across goroutines
// (Options.Workers) without changing the result.
//
// # Errors
//
// Invalid input is rejected before any grid is allocated; see ErrEmptyImage,
// ErrInvalidRate and the other sentinel errors. Images too small to have an
// interior are processed as a pass-through and flagged via Result.Degenerate.
// Shading values below Options.MinShading are clamped before division and
// counted in Result.FlooredPixels.
package waterfill
