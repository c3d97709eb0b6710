// Package canvas implements the draw-to-detect region surface: a drag gesture
// over a frame image that yields a normalized bounding box.
package canvas

import (
	"math"

	"github.com/bdougie/cropcurator/internal/config"
	"github.com/bdougie/cropcurator/internal/models"
)

// Point is a position in device pixels of the drawing surface
type Point struct {
	X, Y float64
}

// Rect is an axis-aligned rectangle in device pixels
type Rect struct {
	X, Y, W, H float64
}

// Surface is the intrinsic pixel size of the frame image being drawn on
type Surface struct {
	Width, Height int
}

// Valid reports whether the surface has been sized
func (s Surface) Valid() bool {
	return s.Width > 0 && s.Height > 0
}

// Scale maps a position in display units (for example terminal cells) over a
// display area of dispW x dispH onto device pixels of the surface
func (s Surface) Scale(x, y, dispW, dispH float64) Point {
	if dispW <= 0 || dispH <= 0 {
		return Point{}
	}
	return Point{
		X: x * float64(s.Width) / dispW,
		Y: y * float64(s.Height) / dispH,
	}
}

// Canvas tracks one drag gesture at a time
type Canvas struct {
	surface  Surface
	drawing  bool
	start    Point
	current  Point
	onSelect func(models.BBox)
}

// New creates a canvas that calls onSelect with every accepted normalized box
func New(onSelect func(models.BBox)) *Canvas {
	return &Canvas{onSelect: onSelect}
}

// SetSurface resizes the surface (a new frame was loaded) and drops any gesture in progress
func (c *Canvas) SetSurface(s Surface) {
	c.surface = s
	c.reset()
}

func (c *Canvas) Surface() Surface {
	return c.surface
}

// Drawing reports whether a gesture is in progress
func (c *Canvas) Drawing() bool {
	return c.drawing
}

// Press starts a gesture at p
func (c *Canvas) Press(p Point) {
	if !c.surface.Valid() {
		return
	}
	c.drawing = true
	c.start = p
	c.current = p
}

// Move updates the gesture; ignored unless a gesture is in progress
func (c *Canvas) Move(p Point) {
	if !c.drawing {
		return
	}
	c.current = p
}

// Leave aborts the gesture without selecting anything
func (c *Canvas) Leave() {
	c.drawing = false
}

// Overlay returns the rectangle to draw over the frame while a gesture is in progress
func (c *Canvas) Overlay() (Rect, bool) {
	if !c.drawing {
		return Rect{}, false
	}
	return span(c.start, c.current), true
}

// Release finishes the gesture. The rectangle is clipped to the surface, and
// if it is then below config.MinBoxPixels in either dimension it is discarded;
// otherwise the normalized box is emitted and returned.
func (c *Canvas) Release() (models.BBox, bool) {
	if !c.drawing {
		return models.BBox{}, false
	}
	r := clip(span(c.start, c.current), c.surface)
	c.reset()

	if r.W < config.MinBoxPixels || r.H < config.MinBoxPixels {
		return models.BBox{}, false
	}
	box := Normalize(r, c.surface)
	if c.onSelect != nil {
		c.onSelect(box)
	}
	return box, true
}

func (c *Canvas) reset() {
	c.drawing = false
	c.start = Point{}
	c.current = Point{}
}

func span(a, b Point) Rect {
	return Rect{
		X: math.Min(a.X, b.X),
		Y: math.Min(a.Y, b.Y),
		W: math.Abs(b.X - a.X),
		H: math.Abs(b.Y - a.Y),
	}
}

// clip intersects r with the surface
func clip(r Rect, s Surface) Rect {
	sw, sh := float64(s.Width), float64(s.Height)
	x0 := clamp(r.X, 0, sw)
	y0 := clamp(r.Y, 0, sh)
	x1 := clamp(r.X+r.W, 0, sw)
	y1 := clamp(r.Y+r.H, 0, sh)
	return Rect{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}
}

// Normalize converts a device pixel rectangle to [x, y, w, h] in the unit square.
// The rectangle is first clipped to the surface so x+w and y+h never exceed 1.
func Normalize(r Rect, s Surface) models.BBox {
	if !s.Valid() {
		return models.BBox{}
	}
	sw, sh := float64(s.Width), float64(s.Height)
	r = clip(r, s)

	nx, ny := r.X/sw, r.Y/sh
	return models.BBox{nx, ny, math.Min(r.W/sw, 1-nx), math.Min(r.H/sh, 1-ny)}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
