package geom

import "math"

// normalize returns the box with corners ordered so that X1<=X2 and Y1<=Y2.
func (b BoundingBox) normalize() BoundingBox {
	if b.X1 > b.X2 {
		b.X1, b.X2 = b.X2, b.X1
	}
	if b.Y1 > b.Y2 {
		b.Y1, b.Y2 = b.Y2, b.Y1
	}
	return b
}

// Center returns the midpoint of the box.
func (b BoundingBox) Center() Point {
	return Point{X: (b.X1 + b.X2) / 2, Y: (b.Y1 + b.Y2) / 2}
}

// BoxSize returns the width and height of the box.
func (b BoundingBox) BoxSize() Size {
	n := b.normalize()
	return Size{Width: n.X2 - n.X1, Height: n.Y2 - n.Y1}
}

// Area returns the area of the box.
func (b BoundingBox) Area() float64 {
	s := b.BoxSize()
	return s.Width * s.Height
}

// ContainsPoint reports whether the point lies inside the box, inclusive of
// edges. Reversed corner ordering is tolerated.
func (b BoundingBox) ContainsPoint(p Point) bool {
	n := b.normalize()
	return p.X >= n.X1 && p.X <= n.X2 && p.Y >= n.Y1 && p.Y <= n.Y2
}

// IoU returns the intersection-over-union of two boxes. Disjoint or merely
// touching boxes (zero-area intersection) yield exactly 0; identical boxes
// yield exactly 1.
func IoU(a, b BoundingBox) float64 {
	na := a.normalize()
	nb := b.normalize()

	iw := math.Min(na.X2, nb.X2) - math.Max(na.X1, nb.X1)
	ih := math.Min(na.Y2, nb.Y2) - math.Max(na.Y1, nb.Y1)
	if iw <= 0 || ih <= 0 {
		return 0
	}

	intersection := iw * ih
	union := na.Area() + nb.Area() - intersection
	if union <= 0 {
		return 0
	}
	if na == nb {
		return 1
	}
	return intersection / union
}
