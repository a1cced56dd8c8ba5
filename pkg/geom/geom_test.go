package geom

import (
	"math"
	"testing"
)

const tolerance = 1e-9

// almostEqual checks if two float64 values are approximately equal
func almostEqual(a, b float64) bool {
	return math.Abs(a-b) <= tolerance
}

func TestTransformPointIndependentAxes(t *testing.T) {
	src := Size{Width: 1920, Height: 1080}
	dst := Size{Width: 960, Height: 270}

	p, err := TransformPoint(Point{X: 1920, Y: 1080}, src, dst, false)
	if err != nil {
		t.Fatalf("transform failed: %v", err)
	}

	// without aspect preservation the transform is exactly the per-axis scale
	if !almostEqual(p.X, 960) || !almostEqual(p.Y, 270) {
		t.Errorf("expected (960, 270), got (%g, %g)", p.X, p.Y)
	}
}

func TestTransformPointEqualAspectMatches(t *testing.T) {
	src := Size{Width: 1920, Height: 1080}
	dst := Size{Width: 960, Height: 540}
	in := Point{X: 480, Y: 270}

	plain, err := TransformPoint(in, src, dst, false)
	if err != nil {
		t.Fatalf("transform failed: %v", err)
	}
	boxed, err := TransformPoint(in, src, dst, true)
	if err != nil {
		t.Fatalf("transform failed: %v", err)
	}

	if !almostEqual(plain.X, boxed.X) || !almostEqual(plain.Y, boxed.Y) {
		t.Errorf("equal aspect ratios must match: plain=(%g,%g) boxed=(%g,%g)",
			plain.X, plain.Y, boxed.X, boxed.Y)
	}
}

func TestTransformPointLetterbox(t *testing.T) {
	// wide source into a taller target: uniform scale is 1/2 (width bound),
	// content centered vertically with 57.5px margins.
	src := Size{Width: 1280, Height: 730}
	dst := Size{Width: 640, Height: 480}

	p, err := TransformPoint(Point{X: 0, Y: 0}, src, dst, true)
	if err != nil {
		t.Fatalf("transform failed: %v", err)
	}
	if !almostEqual(p.X, 0) {
		t.Errorf("expected x=0, got %g", p.X)
	}
	wantYPad := (480 - 730*0.5) / 2
	if !almostEqual(p.Y, wantYPad) {
		t.Errorf("expected y=%g, got %g", wantYPad, p.Y)
	}
}

func TestTransformPointInvalidSize(t *testing.T) {
	cases := []Size{
		{Width: 0, Height: 100},
		{Width: 100, Height: 0},
		{Width: -10, Height: 100},
	}

	for _, bad := range cases {
		if _, err := TransformPoint(Point{}, bad, Size{Width: 10, Height: 10}, false); err == nil {
			t.Errorf("expected error for source size %+v", bad)
		}
		if _, err := TransformPoint(Point{}, Size{Width: 10, Height: 10}, bad, false); err == nil {
			t.Errorf("expected error for target size %+v", bad)
		}
	}
}

func TestTransformBoundingBoxRounds(t *testing.T) {
	src := Size{Width: 3, Height: 3}
	dst := Size{Width: 2, Height: 2}

	b, err := TransformBoundingBox(BoundingBox{X1: 1, Y1: 1, X2: 2, Y2: 2}, src, dst, false)
	if err != nil {
		t.Fatalf("transform failed: %v", err)
	}

	// 1*(2/3)=0.667 rounds to 1, 2*(2/3)=1.333 rounds to 1 (nearest, not truncated)
	want := BoundingBox{X1: 1, Y1: 1, X2: 1, Y2: 1}
	if b != want {
		t.Errorf("expected %+v, got %+v", want, b)
	}
}

func TestUniformScale(t *testing.T) {
	src := Size{Width: 1920, Height: 1080}
	dst := Size{Width: 960, Height: 270}

	if got := UniformScale(src, dst); !almostEqual(got, 0.25) {
		t.Errorf("expected 0.25, got %g", got)
	}
}

func TestFitSize(t *testing.T) {
	src := Size{Width: 1920, Height: 1080}
	max := Size{Width: 500, Height: 500}

	fit, err := FitSize(src, max)
	if err != nil {
		t.Fatalf("fit failed: %v", err)
	}
	if !almostEqual(fit.Width, 500) || !almostEqual(fit.Height, 281.25) {
		t.Errorf("expected 500x281.25, got %gx%g", fit.Width, fit.Height)
	}
}

func TestIoUSymmetry(t *testing.T) {
	a := BoundingBox{X1: 0, Y1: 0, X2: 10, Y2: 10}
	b := BoundingBox{X1: 5, Y1: 5, X2: 15, Y2: 15}

	if IoU(a, b) != IoU(b, a) {
		t.Errorf("IoU must be symmetric: %g vs %g", IoU(a, b), IoU(b, a))
	}

	// 25 overlap, 175 union
	if got := IoU(a, b); !almostEqual(got, 25.0/175.0) {
		t.Errorf("expected %g, got %g", 25.0/175.0, got)
	}
}

func TestIoUIdentical(t *testing.T) {
	b := BoundingBox{X1: 3, Y1: 4, X2: 20, Y2: 18}
	if got := IoU(b, b); got != 1 {
		t.Errorf("identical boxes must yield exactly 1, got %g", got)
	}
}

func TestIoUDisjointAndTouching(t *testing.T) {
	a := BoundingBox{X1: 0, Y1: 0, X2: 10, Y2: 10}
	disjoint := BoundingBox{X1: 20, Y1: 20, X2: 30, Y2: 30}
	touching := BoundingBox{X1: 10, Y1: 0, X2: 20, Y2: 10}

	if got := IoU(a, disjoint); got != 0 {
		t.Errorf("disjoint boxes must yield exactly 0, got %g", got)
	}
	if got := IoU(a, touching); got != 0 {
		t.Errorf("touching boxes must yield exactly 0, got %g", got)
	}
}

func TestIoUReversedCorners(t *testing.T) {
	a := BoundingBox{X1: 0, Y1: 0, X2: 10, Y2: 10}
	reversed := BoundingBox{X1: 10, Y1: 10, X2: 0, Y2: 0}

	if got := IoU(a, reversed); got != 1 {
		t.Errorf("reversed corners normalize to the same box, expected 1, got %g", got)
	}
}

func TestContainsPointReversedCorners(t *testing.T) {
	b := BoundingBox{X1: 10, Y1: 10, X2: 0, Y2: 0}

	if !b.ContainsPoint(Point{X: 5, Y: 5}) {
		t.Error("point inside reversed box must be contained")
	}
	if b.ContainsPoint(Point{X: 11, Y: 5}) {
		t.Error("point outside box must not be contained")
	}
	if !b.ContainsPoint(Point{X: 10, Y: 10}) {
		t.Error("edge point must be contained")
	}
}

func TestBoundingBoxArrayRoundTrip(t *testing.T) {
	boxes := []BoundingBox{
		{X1: 0, Y1: 0, X2: 10, Y2: 10},
		{X1: -3.5, Y1: 12.25, X2: 99.9, Y2: 4},
	}
	for _, b := range boxes {
		if got := ArrayToBoundingBox(BoundingBoxToArray(b)); got != b {
			t.Errorf("round trip changed box: %+v -> %+v", b, got)
		}
	}
}

func TestPointArrayRoundTrip(t *testing.T) {
	p := Point{X: 1.5, Y: -2.25}
	if got := ArrayToPoint(PointToArray(p)); got != p {
		t.Errorf("round trip changed point: %+v -> %+v", p, got)
	}
}

func TestValidation(t *testing.T) {
	if ValidPoint(Point{X: math.NaN(), Y: 0}) {
		t.Error("NaN component must be rejected")
	}
	if ValidPoint(Point{X: 0, Y: math.Inf(1)}) {
		t.Error("Inf component must be rejected")
	}
	if !ValidPoint(Point{X: 1, Y: 2}) {
		t.Error("finite point must be accepted")
	}
	if ValidSize(Size{Width: 0, Height: 5}) {
		t.Error("zero width must be rejected")
	}
	if ValidBoundingBox(BoundingBox{X1: math.Inf(-1)}) {
		t.Error("Inf coordinate must be rejected")
	}
}

func TestClamp(t *testing.T) {
	bounds := Size{Width: 100, Height: 50}

	p := ClampPoint(Point{X: -10, Y: 75}, bounds)
	if p.X != 0 || p.Y != 50 {
		t.Errorf("expected (0,50), got (%g,%g)", p.X, p.Y)
	}

	b := ClampBoundingBox(BoundingBox{X1: -5, Y1: -5, X2: 200, Y2: 25}, bounds)
	want := BoundingBox{X1: 0, Y1: 0, X2: 100, Y2: 25}
	if b != want {
		t.Errorf("expected %+v, got %+v", want, b)
	}
}
