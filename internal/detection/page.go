package detection

import (
	"errors"
	"fmt"
	"image"

	"github.com/anthonynsimon/bild/effect"
	"github.com/anthonynsimon/bild/segment"

	"github.com/ironsheep/shadow-tools-mcp/internal/imaging"
)

// ErrNoPage is returned when no plausible page outline is found.
var ErrNoPage = errors.New("no page outline found")

const (
	// DefaultEdgeThreshold is the Sobel magnitude above which a pixel is an edge.
	DefaultEdgeThreshold uint8 = 64

	// DefaultMinCoverage is the smallest fraction of the image the outline's
	// bounding box may cover.
	DefaultMinCoverage = 0.2

	// minContourPixels drops specks of noise.
	minContourPixels = 10
)

// PageOptions tunes DetectPage. Zero fields take the defaults.
type PageOptions struct {
	EdgeThreshold uint8
	MinCoverage   float64
}

// Page is a detected document outline.
type Page struct {
	// Quad holds the corners in bottom-left, bottom-right, top-right,
	// top-left order.
	Quad imaging.Quad `json:"quad"`

	// Bounds is the bounding box of the outline contour.
	Bounds image.Rectangle `json:"bounds"`

	// Coverage is the fraction of the image covered by Bounds.
	Coverage float64 `json:"coverage"`

	// EdgePixels is the size of the winning contour.
	EdgePixels int `json:"edge_pixels"`
}

type point struct{ x, y int }

// DetectPage locates the largest quadrilateral outline in img.
func DetectPage(img image.Image, opts PageOptions) (*Page, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, imaging.ErrEmptyImage
	}
	if opts.EdgeThreshold == 0 {
		opts.EdgeThreshold = DefaultEdgeThreshold
	}
	if opts.MinCoverage == 0 {
		opts.MinCoverage = DefaultMinCoverage
	}

	b := img.Bounds()
	edges := detectEdges(img, opts.EdgeThreshold)
	contours := findContours(edges)

	var best []point
	var bestBox image.Rectangle
	for _, c := range contours {
		box := boundingBox(c)
		if best == nil || area(box) > area(bestBox) {
			best, bestBox = c, box
		}
	}
	if best == nil {
		return nil, ErrNoPage
	}

	coverage := float64(area(bestBox)) / float64(b.Dx()*b.Dy())
	if coverage < opts.MinCoverage {
		return nil, fmt.Errorf("%w: largest outline covers %.1f%% of the image", ErrNoPage, coverage*100)
	}

	tl, tr, br, bl := corners(best)
	off := func(p point) imaging.PointF {
		return imaging.PointF{X: float64(p.x + b.Min.X), Y: float64(p.y + b.Min.Y)}
	}
	quad, err := imaging.NewQuad([]imaging.PointF{off(bl), off(br), off(tr), off(tl)})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoPage, err)
	}

	return &Page{
		Quad:       quad,
		Bounds:     bestBox.Add(b.Min),
		Coverage:   coverage,
		EdgePixels: len(best),
	}, nil
}

// detectEdges returns a row-major edge mask the size of img. The outermost
// rows and columns are never edges.
//
// Sobel clamps negative responses to zero, so the gradient of the inverted
// image is thresholded too and the two masks are combined.
func detectEdges(img image.Image, threshold uint8) [][]bool {
	gray := effect.Grayscale(img)
	rising := segment.Threshold(effect.Sobel(gray), threshold)
	falling := segment.Threshold(effect.Sobel(effect.Invert(gray)), threshold)

	b := rising.Bounds()
	w, h := b.Dx(), b.Dy()
	edges := make([][]bool, h)
	for y := 0; y < h; y++ {
		edges[y] = make([]bool, w)
		if y == 0 || y == h-1 {
			continue
		}
		for x := 1; x < w-1; x++ {
			px, py := x+b.Min.X, y+b.Min.Y
			edges[y][x] = rising.GrayAt(px, py).Y > 0 || falling.GrayAt(px, py).Y > 0
		}
	}
	return edges
}

// findContours groups edge pixels into 8-connected components.
func findContours(edges [][]bool) [][]point {
	h := len(edges)
	if h == 0 {
		return nil
	}
	w := len(edges[0])
	visited := make([][]bool, h)
	for y := range visited {
		visited[y] = make([]bool, w)
	}

	var contours [][]point
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if !edges[y][x] || visited[y][x] {
				continue
			}
			c := traceComponent(edges, visited, point{x, y})
			if len(c) >= minContourPixels {
				contours = append(contours, c)
			}
		}
	}
	return contours
}

func traceComponent(edges, visited [][]bool, start point) []point {
	h, w := len(edges), len(edges[0])
	var c []point
	stack := []point{start}
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if p.x < 0 || p.x >= w || p.y < 0 || p.y >= h {
			continue
		}
		if visited[p.y][p.x] || !edges[p.y][p.x] {
			continue
		}
		visited[p.y][p.x] = true
		c = append(c, p)
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				if dx != 0 || dy != 0 {
					stack = append(stack, point{p.x + dx, p.y + dy})
				}
			}
		}
	}
	return c
}

func boundingBox(c []point) image.Rectangle {
	r := image.Rect(c[0].x, c[0].y, c[0].x+1, c[0].y+1)
	for _, p := range c[1:] {
		r = r.Union(image.Rect(p.x, p.y, p.x+1, p.y+1))
	}
	return r
}

func area(r image.Rectangle) int { return r.Dx() * r.Dy() }

// corners picks the contour points extreme along x+y and x-y. Ties keep the
// first point in scan order.
func corners(c []point) (tl, tr, br, bl point) {
	tl, tr, br, bl = c[0], c[0], c[0], c[0]
	for _, p := range c[1:] {
		if p.x+p.y < tl.x+tl.y {
			tl = p
		}
		if p.x+p.y > br.x+br.y {
			br = p
		}
		if p.x-p.y > tr.x-tr.y {
			tr = p
		}
		if p.x-p.y < bl.x-bl.y {
			bl = p
		}
	}
	return tl, tr, br, bl
}
