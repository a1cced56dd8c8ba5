package dashboard

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/ajisai-dev/multicam-monitor/internal/trackproc"
)

const (
	boxThickness  = 2
	labelPad      = 3
	jpegQuality   = 75
	overlayWidth  = 640
	overlayHeight = 480
)

// renderOverlay decodes a camera frame, scales it to the camera's display
// size, draws every track's bounding box and label and re-encodes it as
// JPEG. Track coordinates are already in display space.
func renderOverlay(jpegData []byte, cam trackproc.ProcessedCamera) ([]byte, error) {
	src, err := jpeg.Decode(bytes.NewReader(jpegData))
	if err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}

	target := src.Bounds()
	if w, h := int(cam.DisplaySize.Width), int(cam.DisplaySize.Height); w > 0 && h > 0 {
		target = image.Rect(0, 0, w, h)
	}

	img := image.NewRGBA(target)
	if target == src.Bounds() {
		draw.Draw(img, img.Bounds(), src, src.Bounds().Min, draw.Src)
	} else {
		xdraw.ApproxBiLinear.Scale(img, target, src, src.Bounds(), xdraw.Src, nil)
	}

	for _, track := range cam.Tracks {
		col := parseHexColor(track.Color)
		x1, y1 := int(track.BBox.X1), int(track.BBox.Y1)
		x2, y2 := int(track.BBox.X2), int(track.BBox.Y2)
		drawRect(img, x1, y1, x2, y2, col, boxThickness)

		labelY := y1 - labelPad
		if labelY < basicfont.Face7x13.Height {
			labelY = y2 + basicfont.Face7x13.Height + labelPad
		}
		drawLabel(img, x1, labelY, track.Label, col)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	return buf.Bytes(), nil
}

// drawRect draws an axis-aligned rectangle outline clipped to the image.
func drawRect(img *image.RGBA, x1, y1, x2, y2 int, col color.RGBA, thickness int) {
	bounds := img.Bounds()
	for t := 0; t < thickness; t++ {
		for x := x1; x <= x2; x++ {
			setClipped(img, bounds, x, y1+t, col)
			setClipped(img, bounds, x, y2-t, col)
		}
		for y := y1; y <= y2; y++ {
			setClipped(img, bounds, x1+t, y, col)
			setClipped(img, bounds, x2-t, y, col)
		}
	}
}

func setClipped(img *image.RGBA, bounds image.Rectangle, x, y int, col color.RGBA) {
	if image.Pt(x, y).In(bounds) {
		img.SetRGBA(x, y, col)
	}
}

// drawLabel renders text with a filled background so it stays readable over
// any frame content.
func drawLabel(img *image.RGBA, x, baselineY int, text string, col color.RGBA) {
	if text == "" {
		return
	}
	face := basicfont.Face7x13
	width := font.MeasureString(face, text).Ceil()

	bg := image.Rect(x-labelPad, baselineY-face.Ascent-labelPad,
		x+width+labelPad, baselineY+face.Descent+labelPad)
	draw.Draw(img, bg.Intersect(img.Bounds()),
		&image.Uniform{color.RGBA{A: 255}}, image.Point{}, draw.Src)

	d := font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(col),
		Face: face,
		Dot:  fixed.P(x, baselineY),
	}
	d.DrawString(text)
}

// parseHexColor parses "#RRGGBB". Malformed input yields opaque green.
func parseHexColor(s string) color.RGBA {
	var r, g, b uint8
	if _, err := fmt.Sscanf(s, "#%02x%02x%02x", &r, &g, &b); err != nil {
		return color.RGBA{G: 255, A: 255}
	}
	return color.RGBA{R: r, G: g, B: b, A: 255}
}

// blankJPEG renders the color-bar placeholder streamed while a camera has no
// frame yet.
func blankJPEG() ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, overlayWidth, overlayHeight))

	bars := []color.RGBA{
		{R: 255, G: 255, B: 255, A: 255},
		{R: 255, G: 255, B: 0, A: 255},
		{R: 0, G: 255, B: 255, A: 255},
		{R: 0, G: 255, B: 0, A: 255},
		{R: 255, G: 0, B: 255, A: 255},
		{R: 255, G: 0, B: 0, A: 255},
		{R: 0, G: 0, B: 255, A: 255},
		{R: 0, G: 0, B: 0, A: 255},
	}

	barWidth := overlayWidth / len(bars)
	for y := 0; y < overlayHeight; y++ {
		for x := 0; x < overlayWidth; x++ {
			idx := x / barWidth
			if idx >= len(bars) {
				idx = len(bars) - 1
			}
			img.Set(x, y, bars[idx])
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
