package geom

import "math"

// ScaleFactors returns the independent per-axis ratios between two spaces.
func ScaleFactors(src, dst Size) (x, y float64) {
	return dst.Width / src.Width, dst.Height / src.Height
}

// UniformScale returns the single scale that fits src inside dst while
// preserving aspect, i.e. min(scaleX, scaleY).
func UniformScale(src, dst Size) float64 {
	sx, sy := ScaleFactors(src, dst)
	return math.Min(sx, sy)
}

// FitSize returns the largest size not exceeding max that preserves the
// aspect ratio of src.
func FitSize(src, max Size) (Size, error) {
	if !ValidSize(src) {
		return Size{}, ErrInvalidSize{Size: src}
	}
	if !ValidSize(max) {
		return Size{}, ErrInvalidSize{Size: max}
	}
	scale := UniformScale(src, max)
	return Size{Width: src.Width * scale, Height: src.Height * scale}, nil
}

// TransformPoint rescales a point from the src space into the dst space.
// With preserveAspect the content is letterboxed: a single uniform scale is
// applied and the result is offset by half the unused margin on the
// constrained axis, rather than stretching each axis independently.
func TransformPoint(p Point, src, dst Size, preserveAspect bool) (Point, error) {
	if !ValidSize(src) {
		return Point{}, ErrInvalidSize{Size: src}
	}
	if !ValidSize(dst) {
		return Point{}, ErrInvalidSize{Size: dst}
	}

	if !preserveAspect {
		sx, sy := ScaleFactors(src, dst)
		return Point{X: p.X * sx, Y: p.Y * sy}, nil
	}

	scale := UniformScale(src, dst)
	xPad := (dst.Width - src.Width*scale) / 2
	yPad := (dst.Height - src.Height*scale) / 2
	return Point{X: p.X*scale + xPad, Y: p.Y*scale + yPad}, nil
}

// TransformBoundingBox applies TransformPoint to both corners independently.
// Output coordinates are rounded to the nearest integer because consumers
// render on integer pixel grids.
func TransformBoundingBox(b BoundingBox, src, dst Size, preserveAspect bool) (BoundingBox, error) {
	p1, err := TransformPoint(Point{X: b.X1, Y: b.Y1}, src, dst, preserveAspect)
	if err != nil {
		return BoundingBox{}, err
	}
	p2, err := TransformPoint(Point{X: b.X2, Y: b.Y2}, src, dst, preserveAspect)
	if err != nil {
		return BoundingBox{}, err
	}
	return BoundingBox{
		X1: math.Round(p1.X),
		Y1: math.Round(p1.Y),
		X2: math.Round(p2.X),
		Y2: math.Round(p2.Y),
	}, nil
}

// TransformBoundingBoxes is the batch variant of TransformBoundingBox.
func TransformBoundingBoxes(boxes []BoundingBox, src, dst Size, preserveAspect bool) ([]BoundingBox, error) {
	out := make([]BoundingBox, len(boxes))
	for i, b := range boxes {
		tb, err := TransformBoundingBox(b, src, dst, preserveAspect)
		if err != nil {
			return nil, err
		}
		out[i] = tb
	}
	return out, nil
}
