// Package imaging provides the image plumbing around shadow removal: a
// decoded-image cache, region-of-interest files, rectangular crop and
// four-point perspective unwarp, and PSNR/SSIM scoring against ground truth.
//
// # Coordinate System
//
// Pixel coordinates are 0-based with (0,0) at the top-left corner, X growing
// rightward and Y downward. Regions are relative to the image origin even when
// the image bounds do not start at (0,0).
//
// # Region Files
//
// A rectangle is stored as {"x":..,"y":..,"width":..,"height":..}. A
// quadrilateral is stored as {"points":[{"x":..,"y":..}, ...]} with exactly
// four corners in bottom-left, bottom-right, top-right, top-left order.
//
// # Quality Metrics
//
// PSNR and SSIM use the conventional 8-bit constants. SSIM uses an 11x11
// Gaussian window with sigma 1.5, mirrored borders, and averages the red, green and blue
// channel means. When the ground truth and the result differ in size, the
// ground truth is resized to the result.
//
// # Thread Safety
//
// ImageCache is safe for concurrent use. All other functions are stateless.
package imaging
