package canvas

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"golang.org/x/image/vector"
)

// kappa places cubic control points so that four curves approximate a circle.
const kappa = 0.5522847498

// pad keeps round caps of edge strokes inside the mask.
const pad = 8

// pen rasterizes round capped line segments of a fixed width.
type pen struct {
	z      *vector.Rasterizer
	mask   *image.Alpha
	src    *image.Uniform
	radius float64
}

func newPen(w, h int, width float64, c color.Color) *pen {
	return &pen{
		z:      vector.NewRasterizer(w+2*pad, h+2*pad),
		mask:   image.NewAlpha(image.Rect(0, 0, w+2*pad, h+2*pad)),
		src:    image.NewUniform(c),
		radius: width / 2,
	}
}

func (p *pen) segment(dst draw.Image, a, b Point) {
	b0 := dst.Bounds()
	p.z.Reset(b0.Dx()+2*pad, b0.Dy()+2*pad)
	clear(p.mask.Pix)

	a = Point{a.X + pad, a.Y + pad}
	b = Point{b.X + pad, b.Y + pad}
	p.capsule(a, b)

	p.z.Draw(p.mask, p.mask.Bounds(), image.Opaque, image.Point{})
	draw.DrawMask(dst, b0, p.src, image.Point{}, p.mask, image.Pt(pad, pad), draw.Over)
}

// capsule traces the outline of a segment with semicircular ends.
func (p *pen) capsule(a, b Point) {
	r := p.radius
	dx, dy := b.X-a.X, b.Y-a.Y
	length := math.Hypot(dx, dy)
	if length == 0 {
		dx, dy = 1, 0
	} else {
		dx, dy = dx/length, dy/length
	}
	// unit direction d and its normal n
	d := Point{dx, dy}
	n := Point{-dy, dx}
	neg := func(v Point) Point { return Point{-v.X, -v.Y} }

	start := offset(a, n, r)
	p.z.MoveTo(float32(start.X), float32(start.Y))
	end := offset(b, n, r)
	p.z.LineTo(float32(end.X), float32(end.Y))
	p.quarter(b, n, d)
	p.quarter(b, d, neg(n))
	back := offset(a, neg(n), r)
	p.z.LineTo(float32(back.X), float32(back.Y))
	p.quarter(a, neg(n), neg(d))
	p.quarter(a, neg(d), n)
	p.z.ClosePath()
}

// quarter appends a quarter circle around c from direction u to direction v.
func (p *pen) quarter(c, u, v Point) {
	r := p.radius
	c1 := offset(offset(c, u, r), v, kappa*r)
	c2 := offset(offset(c, v, r), u, kappa*r)
	to := offset(c, v, r)
	p.z.CubeTo(float32(c1.X), float32(c1.Y), float32(c2.X), float32(c2.Y), float32(to.X), float32(to.Y))
}

func offset(c, dir Point, k float64) Point {
	return Point{c.X + dir.X*k, c.Y + dir.Y*k}
}
