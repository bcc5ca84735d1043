// Package preview renders rough PNG approximations of widgets so a layout
// can be checked without flashing a device.
//
// Angles follow LVGL: 0 degrees points right and angles grow clockwise,
// which matches the y-down coordinate system of the canvas.
package preview

import (
	"errors"
	"fmt"
	"io"
	"math"
	"unicode/utf8"

	"github.com/gogpu/gg"
)

const (
	strokeWidth = 4
	glyphRadius = 3
	maxCanvas   = 4096
)

var (
	background = gg.RGB(0.09, 0.10, 0.12)
	accent     = gg.RGB(0.95, 0.62, 0.20)
)

// ErrCanvasSize is returned for empty or oversized canvases.
var ErrCanvasSize = errors.New("preview: invalid canvas size")

// ArcLabel describes an arc label after geometry translation. Start and End
// form a forward span in degrees (End > Start, End may exceed 360).
type ArcLabel struct {
	Text   string
	Radius int
	Start  int
	End    int
	Size   int
}

// Frame describes the placeholder for a Lottie widget.
type Frame struct {
	Width    int
	Height   int
	Embedded bool
}

func newCanvas(w, h int) (*gg.Context, error) {
	if w <= 0 || h <= 0 || w > maxCanvas || h > maxCanvas {
		return nil, fmt.Errorf("%w: %dx%d", ErrCanvasSize, w, h)
	}
	dc := gg.NewContext(w, h)
	dc.ClearWithColor(background)
	return dc, nil
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}

// RenderArcLabel draws the arc span and one marker per character of text,
// spread evenly along the span, and writes the PNG to out.
func RenderArcLabel(out io.Writer, a ArcLabel) error {
	dc, err := newCanvas(a.Size, a.Size)
	if err != nil {
		return err
	}
	defer dc.Close()

	cx, cy := float64(a.Size)/2, float64(a.Size)/2
	r := float64(a.Radius)

	dc.SetColor(accent.Color())
	dc.SetLineWidth(strokeWidth)
	dc.DrawArc(cx, cy, r, radians(float64(a.Start)), radians(float64(a.End)))
	if err := dc.Stroke(); err != nil {
		return fmt.Errorf("stroke arc: %w", err)
	}

	n := utf8.RuneCountInString(a.Text)
	if n > 0 {
		dc.SetRGB(1, 1, 1)
		span := float64(a.End - a.Start)
		for i := 0; i < n; i++ {
			// centre each glyph in its slot
			deg := float64(a.Start) + span*(float64(i)+0.5)/float64(n)
			x := cx + r*math.Cos(radians(deg))
			y := cy + r*math.Sin(radians(deg))
			dc.DrawCircle(x, y, glyphRadius)
		}
		if err := dc.Fill(); err != nil {
			return fmt.Errorf("fill glyphs: %w", err)
		}
	}

	return dc.EncodePNG(out)
}

// RenderLottieFrame draws the bounding box the animation will occupy. The
// diagonals are orange for embedded sources and blue for runtime paths.
func RenderLottieFrame(out io.Writer, f Frame) error {
	dc, err := newCanvas(f.Width, f.Height)
	if err != nil {
		return err
	}
	defer dc.Close()

	w, h := float64(f.Width), float64(f.Height)

	dc.SetRGB(0.6, 0.6, 0.6)
	dc.SetLineWidth(2)
	dc.DrawRectangle(1, 1, w-2, h-2)
	if err := dc.Stroke(); err != nil {
		return fmt.Errorf("stroke frame: %w", err)
	}

	if f.Embedded {
		dc.SetColor(accent.Color())
	} else {
		dc.SetRGB(0.25, 0.55, 0.95)
	}
	dc.DrawLine(0, 0, w, h)
	dc.DrawLine(w, 0, 0, h)
	if err := dc.Stroke(); err != nil {
		return fmt.Errorf("stroke diagonals: %w", err)
	}

	return dc.EncodePNG(out)
}
