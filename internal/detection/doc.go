// Package detection finds the outline of a photographed page so it can be
// unwarped before shadow removal.
//
// # Algorithm
//
//  1. Edge Detection: grayscale, Sobel magnitude, then a fixed threshold
//  2. Contour Finding: 8-connected components of edge pixels
//  3. Selection: the component with the largest bounding box wins
//  4. Corners: the extreme points along the two image diagonals
//
// # Coordinate System
//
// Coordinates are absolute pixel positions in the source image, origin at the
// top-left, Y increasing downward. Corners are returned in the order
// imaging.Quad expects: bottom-left, bottom-right, top-right, top-left.
//
// # Limitations
//
// The page must be a convex quadrilateral that contrasts with its
// background. Heavy clutter on the table or a page filling the whole frame
// (no visible border) yields ErrNoPage or a poor outline.
package detection
