package placement

import (
	"context"

	"github.com/a3tai/mcp-pdf-stamper/internal/field"
)

// Point is a pointer position in pixels.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Size is a container size in pixels.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Rect is the container's bounding rectangle in pixels, in the same
// coordinate space as the pointer positions passed alongside it.
type Rect struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Size returns the dimensions of r.
func (r Rect) Size() Size {
	return Size{Width: r.Width, Height: r.Height}
}

// Footprint is a field size in percent of the container.
type Footprint struct {
	Width  float64
	Height float64
}

// DefaultFootprint returns the size given to a newly created field of type t.
func DefaultFootprint(t field.Type) Footprint {
	switch t {
	case field.TypeSignature:
		return Footprint{Width: 25, Height: 10}
	case field.TypeText:
		return Footprint{Width: 20, Height: 5}
	case field.TypeImage:
		return Footprint{Width: 25, Height: 20}
	case field.TypeDate:
		return Footprint{Width: 15, Height: 5}
	case field.TypeChoice:
		return Footprint{Width: 20, Height: 5}
	default:
		return Footprint{Width: 20, Height: 6}
	}
}

// DefaultChoiceOptions are the labels given to a new choice field.
var DefaultChoiceOptions = []string{"Option 1", "Option 2"}

// defaultValue returns the initial value of a new field of type t.
func defaultValue(t field.Type) *string {
	switch t {
	case field.TypeChoice:
		// Radio groups always start with a selection.
		v := field.OptionKey(0)
		return &v
	case field.TypeSignature, field.TypeText, field.TypeImage, field.TypeDate:
		return nil
	default:
		return nil
	}
}

// defaultOptions returns the option labels of a new field of type t.
func defaultOptions(t field.Type) []string {
	if t != field.TypeChoice {
		return nil
	}
	return append([]string(nil), DefaultChoiceOptions...)
}

// Bounds are the global, type-independent resize limits in percent.
type Bounds struct {
	MinWidth, MaxWidth   float64
	MinHeight, MaxHeight float64
}

// DefaultBounds keep resized fields from collapsing or swallowing the page.
var DefaultBounds = Bounds{MinWidth: 5, MaxWidth: 90, MinHeight: 3, MaxHeight: 60}

// Capturer is the external bitmap capture collaborator. Capture returns a
// completed bitmap as a data URI for the given signature field.
type Capturer interface {
	Capture(ctx context.Context, f field.Field) (string, error)
}

// CapturerFunc adapts a function to the Capturer interface.
type CapturerFunc func(ctx context.Context, f field.Field) (string, error)

// Capture calls fn.
func (fn CapturerFunc) Capture(ctx context.Context, f field.Field) (string, error) {
	return fn(ctx, f)
}

// ClickResult describes what a click on a field triggered.
type ClickResult string

const (
	ClickIgnored    ClickResult = "ignored"
	ClickSuppressed ClickResult = "suppressed"
	ClickCaptured   ClickResult = "captured"
	ClickEditing    ClickResult = "editing"
)
