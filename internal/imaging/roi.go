package imaging

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"math"
	"os"
)

var (
	// ErrInvalidRegion is returned for region descriptions that cannot be applied.
	ErrInvalidRegion = errors.New("invalid region")
	// ErrEmptyImage is returned when an image to score has no pixels.
	ErrEmptyImage = errors.New("empty image")
	// ErrSizeMismatch is returned when two images to compare differ in size.
	ErrSizeMismatch = errors.New("image size mismatch")
)

// Rect is an axis-aligned region of interest.
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Rectangle converts r to an image.Rectangle.
func (r Rect) Rectangle() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// PointF is a sub-pixel image coordinate.
type PointF struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (p PointF) sub(q PointF) PointF { return PointF{p.X - q.X, p.Y - q.Y} }

func (p PointF) norm() float64 { return math.Hypot(p.X, p.Y) }

// Quad is a four-point region of interest, typically a photographed page.
// The corners are ordered bottom-left, bottom-right, top-right, top-left.
type Quad struct {
	Points [4]PointF `json:"points"`
}

// Size returns the size of the upright rectangle the quad unwarps to: the
// longer of each pair of opposite edges, truncated to whole pixels.
func (q Quad) Size() image.Point {
	p := q.Points
	w := math.Max(p[1].sub(p[0]).norm(), p[2].sub(p[3]).norm())
	h := math.Max(p[3].sub(p[0]).norm(), p[2].sub(p[1]).norm())
	return image.Pt(int(w), int(h))
}

// ParseRect decodes a {"x","y","width","height"} document.
func ParseRect(data []byte) (Rect, error) {
	var raw struct {
		X      *int `json:"x"`
		Y      *int `json:"y"`
		Width  *int `json:"width"`
		Height *int `json:"height"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Rect{}, fmt.Errorf("failed to parse region: %w", err)
	}
	if raw.X == nil || raw.Y == nil || raw.Width == nil || raw.Height == nil {
		return Rect{}, fmt.Errorf("%w: x, y, width and height are required", ErrInvalidRegion)
	}
	r := Rect{X: *raw.X, Y: *raw.Y, Width: *raw.Width, Height: *raw.Height}
	if r.Width <= 0 || r.Height <= 0 {
		return Rect{}, fmt.Errorf("%w: size %dx%d", ErrInvalidRegion, r.Width, r.Height)
	}
	return r, nil
}

// ParseQuad decodes a {"points":[{"x","y"}, ...]} document with exactly four
// points.
func ParseQuad(data []byte) (Quad, error) {
	var raw struct {
		Points []PointF `json:"points"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Quad{}, fmt.Errorf("failed to parse polygon: %w", err)
	}
	return NewQuad(raw.Points)
}

// NewQuad builds a quad from exactly four corners.
func NewQuad(points []PointF) (Quad, error) {
	var q Quad
	if len(points) != 4 {
		return q, fmt.Errorf("%w: expected 4 points, got %d", ErrInvalidRegion, len(points))
	}
	copy(q.Points[:], points)
	if s := q.Size(); s.X <= 0 || s.Y <= 0 {
		return q, fmt.Errorf("%w: polygon collapses to %dx%d", ErrInvalidRegion, s.X, s.Y)
	}
	return q, nil
}

// LoadRect reads a rectangle file.
func LoadRect(path string) (Rect, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Rect{}, fmt.Errorf("failed to read region file: %w", err)
	}
	return ParseRect(data)
}

// LoadQuad reads a polygon file.
func LoadQuad(path string) (Quad, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Quad{}, fmt.Errorf("failed to read polygon file: %w", err)
	}
	return ParseQuad(data)
}

// Region is a region of interest that can be cut out of an image.
type Region interface {
	Extract(img image.Image) (*image.NRGBA, error)
}

// Extract crops r out of img.
func (r Rect) Extract(img image.Image) (*image.NRGBA, error) { return CropRect(img, r) }

// Extract unwarps q out of img.
func (q Quad) Extract(img image.Image) (*image.NRGBA, error) { return WarpQuad(img, q) }

// ParseRegion decodes either region document: a "points" key selects a quad,
// anything else is parsed as a rectangle.
func ParseRegion(data []byte) (Region, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("failed to parse region: %w", err)
	}
	if _, ok := probe["points"]; ok {
		return ParseQuad(data)
	}
	return ParseRect(data)
}

// LoadRegion reads a rectangle or polygon file.
func LoadRegion(path string) (Region, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read region file: %w", err)
	}
	return ParseRegion(data)
}
