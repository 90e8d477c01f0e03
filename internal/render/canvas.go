package render

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"strings"

	"github.com/canxphung/DA_CNPM_242/farm_dashboard/internal/dashboard"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

var canvasBackground = color.NRGBA{R: 255, G: 255, B: 255, A: 255}

// ImageCanvas is an in-memory RGBA canvas
type ImageCanvas struct {
	img *image.RGBA
}

// NewImageCanvas creates a blank canvas of the given size
func NewImageCanvas(width, height int) *ImageCanvas {
	c := &ImageCanvas{img: image.NewRGBA(image.Rect(0, 0, width, height))}
	c.Reset()
	return c
}

// Size implements dashboard.Canvas
func (c *ImageCanvas) Size() (int, int) {
	b := c.img.Bounds()
	return b.Dx(), b.Dy()
}

// Reset clears the canvas to the background colour
func (c *ImageCanvas) Reset() {
	draw.Draw(c.img, c.img.Bounds(), image.NewUniform(canvasBackground), image.Point{}, draw.Src)
}

// DrawMessage writes text centred on the canvas
func (c *ImageCanvas) DrawMessage(text string, col dashboard.RGBA) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return fmt.Errorf("empty message")
	}
	face := basicfont.Face7x13
	d := &font.Drawer{Dst: c.img, Src: image.NewUniform(toNRGBA(col)), Face: face}

	w, h := c.Size()
	tw := d.MeasureString(text).Ceil()
	x := max((w-tw)/2, 0)
	y := (h + face.Metrics().Ascent.Ceil()) / 2
	d.Dot = fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)}
	d.DrawString(text)
	return nil
}

// DrawImage paints src over the whole canvas
func (c *ImageCanvas) DrawImage(src image.Image) {
	draw.Draw(c.img, c.img.Bounds(), src, src.Bounds().Min, draw.Over)
}

// Image returns the canvas image
func (c *ImageCanvas) Image() image.Image {
	return c.img
}

// PNG encodes the canvas
func (c *ImageCanvas) PNG() ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, c.img); err != nil {
		return nil, fmt.Errorf("failed to encode canvas: %w", err)
	}
	return buf.Bytes(), nil
}

func toNRGBA(c dashboard.RGBA) color.NRGBA {
	return color.NRGBA{R: c.R, G: c.G, B: c.B, A: alpha(c.A)}
}

func alpha(a float64) uint8 {
	return uint8(math.Round(math.Max(0, math.Min(1, a)) * 255))
}
