package canvas

import (
	"image"
	"image/color"
	"image/png"
	"io"
	"math"
	"sync"
)

const (
	Size        = 200
	StrokeWidth = 5
)

// StrokeColor is the pen color, #319795.
var StrokeColor = color.RGBA{R: 0x31, G: 0x97, B: 0x95, A: 0xff}

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Surface is the fixed size drawing raster. It starts fully transparent.
type Surface struct {
	mu      sync.Mutex
	img     *image.RGBA
	drawing bool
	last    Point
	pen     *pen
}

func NewSurface() *Surface {
	return &Surface{
		img: image.NewRGBA(image.Rect(0, 0, Size, Size)),
		pen: newPen(Size, Size, StrokeWidth, StrokeColor),
	}
}

func (s *Surface) StrokeStart(p Point) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drawing = true
	s.last = finitePoint(p)
}

// StrokeMove renders a segment from the last point when a stroke is in
// progress and reports whether anything was drawn.
func (s *Surface) StrokeMove(p Point) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.drawing {
		return false
	}
	p = finitePoint(p)
	s.pen.segment(s.img, s.last, p)
	s.last = p
	return true
}

// StrokeEnd closes the current path. It returns whether a stroke was open.
func (s *Surface) StrokeEnd() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	was := s.drawing
	s.drawing = false
	return was
}

func (s *Surface) Drawing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.drawing
}

// Clear wipes every pixel back to transparent.
func (s *Surface) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.img.Pix)
}

// Snapshot returns a copy of the raster that is safe to read while drawing continues.
func (s *Surface) Snapshot() *image.RGBA {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := image.NewRGBA(s.img.Rect)
	copy(out.Pix, s.img.Pix)
	return out
}

func (s *Surface) Blank() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.img.Pix {
		if b != 0 {
			return false
		}
	}
	return true
}

func (s *Surface) WritePNG(w io.Writer) error {
	return png.Encode(w, s.Snapshot())
}

// maxCoord keeps far off-raster coordinates finite in float32 path math.
const maxCoord = 1 << 20

// finitePoint replaces NaN with 0 and bounds infinities. Off-raster points are
// kept so the rasterizer clips the segment without bending it.
func finitePoint(p Point) Point {
	finite := func(v float64) float64 {
		if math.IsNaN(v) {
			return 0
		}
		return math.Min(math.Max(v, -maxCoord), maxCoord)
	}
	return Point{X: finite(p.X), Y: finite(p.Y)}
}
