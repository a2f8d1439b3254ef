package render

import (
	"context"

	"github.com/a3tai/mcp-pdf-stamper/internal/bitmap"
	"github.com/a3tai/mcp-pdf-stamper/internal/geometry"
)

// TextRun is a single line of text in page space. X, Y is the lower-left
// corner of the line box; Text is already clipped to its available width.
type TextRun struct {
	Text string
	X, Y float64
	Size float64
}

// Indicator is the circular selection mark of a choice field.
type Indicator struct {
	CX, CY      float64
	Radius      float64
	BorderWidth float64
	InnerRadius float64
	Filled      bool
}

// Bounds returns the square page-space box enclosing the indicator.
func (i Indicator) Bounds() geometry.Box {
	return geometry.Box{X: i.CX - i.Radius, Y: i.CY - i.Radius, Width: 2 * i.Radius, Height: 2 * i.Radius}
}

// Canvas receives draw operations for one output page, in order. Later
// operations paint over earlier ones.
type Canvas interface {
	Image(img *bitmap.Decoded, at geometry.Box) error
	Text(run TextRun) error
	Indicator(ind Indicator) error
	// Finish produces the output document bytes.
	Finish(ctx context.Context) ([]byte, error)
}

// Page describes the target page handed to a CanvasFactory.
type Page struct {
	Width, Height float64
	Base          []byte // one-page PDF to draw on; never nil
}

// CanvasFactory creates a fresh canvas for one render call.
type CanvasFactory func(page Page) (Canvas, error)

// Measurer reports the advance width of text set at size points.
type Measurer interface {
	TextWidth(text string, size float64) float64
}
