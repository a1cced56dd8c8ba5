// Package geom provides the pure coordinate-space math used by the monitor:
// scaling between camera and display resolutions, letterboxed fits, and
// bounding-box queries. All functions are stateless.
package geom

import (
	"fmt"
	"math"
)

// Point is a coordinate in some named space (source image, display, or map).
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Size holds the dimensions of a coordinate space. Both components must be
// strictly positive for any transform to be valid.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// BoundingBox is an axis-aligned box in xyxy form. Corner ordering is not
// enforced; queries normalize min/max internally.
type BoundingBox struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// ErrInvalidSize reports a Size with a zero or negative dimension.
type ErrInvalidSize struct {
	Size Size
}

func (e ErrInvalidSize) Error() string {
	return fmt.Sprintf("invalid size %gx%g: dimensions must be positive", e.Size.Width, e.Size.Height)
}

// ValidPoint reports whether both components are finite.
func ValidPoint(p Point) bool {
	return isFinite(p.X) && isFinite(p.Y)
}

// ValidSize reports whether the size has finite, strictly positive dimensions.
func ValidSize(s Size) bool {
	return isFinite(s.Width) && isFinite(s.Height) && s.Width > 0 && s.Height > 0
}

// ValidBoundingBox reports whether all four coordinates are finite.
func ValidBoundingBox(b BoundingBox) bool {
	return isFinite(b.X1) && isFinite(b.Y1) && isFinite(b.X2) && isFinite(b.Y2)
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// ClampPoint clips a point into [0, bounds.Width] x [0, bounds.Height].
func ClampPoint(p Point, bounds Size) Point {
	return Point{
		X: clamp(p.X, 0, bounds.Width),
		Y: clamp(p.Y, 0, bounds.Height),
	}
}

// ClampBoundingBox clips both corners into the bounds.
func ClampBoundingBox(b BoundingBox, bounds Size) BoundingBox {
	return BoundingBox{
		X1: clamp(b.X1, 0, bounds.Width),
		Y1: clamp(b.Y1, 0, bounds.Height),
		X2: clamp(b.X2, 0, bounds.Width),
		Y2: clamp(b.Y2, 0, bounds.Height),
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// BoundingBoxToArray converts a box to the xyxy tuple form used on the wire.
func BoundingBoxToArray(b BoundingBox) [4]float64 {
	return [4]float64{b.X1, b.Y1, b.X2, b.Y2}
}

// ArrayToBoundingBox converts a wire xyxy tuple into a box.
func ArrayToBoundingBox(a [4]float64) BoundingBox {
	return BoundingBox{X1: a[0], Y1: a[1], X2: a[2], Y2: a[3]}
}

// PointToArray converts a point to the xy tuple form used on the wire.
func PointToArray(p Point) [2]float64 {
	return [2]float64{p.X, p.Y}
}

// ArrayToPoint converts a wire xy tuple into a point.
func ArrayToPoint(a [2]float64) Point {
	return Point{X: a[0], Y: a[1]}
}
