// Package field defines the normalized field model shared by the placement
// engine and the render pipeline.
//
// Geometry is always expressed as percentages of the container (top-left
// origin), never in pixels or points, so the same Field is valid input for any
// target surface regardless of its actual size.
package field

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Type identifies the kind of a placed field. It never changes after creation.
type Type string

const (
	TypeSignature Type = "signature"
	TypeText      Type = "text"
	TypeImage     Type = "image"
	TypeDate      Type = "date"
	TypeChoice    Type = "choice"
)

// Types lists the known field types in declaration order.
var Types = []Type{TypeSignature, TypeText, TypeImage, TypeDate, TypeChoice}

// Known reports whether t is one of the declared field types.
func (t Type) Known() bool {
	switch t {
	case TypeSignature, TypeText, TypeImage, TypeDate, TypeChoice:
		return true
	default:
		return false
	}
}

// BitmapValued reports whether values of this type are image data URIs.
func (t Type) BitmapValued() bool {
	return t == TypeSignature || t == TypeImage
}

// ParseType converts s into a Type. Unknown names are kept verbatim so callers
// can fall back to generic handling.
func ParseType(s string) Type {
	return Type(strings.ToLower(strings.TrimSpace(s)))
}

// DateLayout is the ISO calendar date format used for date values.
const DateLayout = "2006-01-02"

// Field is the unit of placement.
type Field struct {
	ID      string   `json:"id" yaml:"id"`
	Type    Type     `json:"type" yaml:"type"`
	X       float64  `json:"x" yaml:"x"`
	Y       float64  `json:"y" yaml:"y"`
	Width   float64  `json:"width" yaml:"width"`
	Height  float64  `json:"height" yaml:"height"`
	Value   *string  `json:"value" yaml:"value"`
	Options []string `json:"options" yaml:"options"`
}

// Filled reports whether the field carries a non-empty value.
func (f *Field) Filled() bool {
	return f.Value != nil && *f.Value != ""
}

// StringValue returns the value or "" when unset.
func (f *Field) StringValue() string {
	if f.Value == nil {
		return ""
	}
	return *f.Value
}

// SetValue replaces the value; nil clears it.
func (f *Field) SetValue(v *string) {
	if v == nil {
		f.Value = nil
		return
	}
	s := *v
	f.Value = &s
}

// Clone returns a deep copy of f.
func (f *Field) Clone() *Field {
	c := *f
	if f.Value != nil {
		v := *f.Value
		c.Value = &v
	}
	if f.Options != nil {
		c.Options = append([]string(nil), f.Options...)
	}
	return &c
}

// Right returns the right edge in percent.
func (f *Field) Right() float64 { return f.X + f.Width }

// Bottom returns the bottom edge in percent.
func (f *Field) Bottom() float64 { return f.Y + f.Height }

const geometryTolerance = 1e-9

// ValidateGeometry checks the normalized-space invariants of f.
func (f *Field) ValidateGeometry() error {
	check := []struct {
		name string
		v    float64
	}{{"x", f.X}, {"y", f.Y}, {"width", f.Width}, {"height", f.Height}}
	for _, c := range check {
		if math.IsNaN(c.v) || math.IsInf(c.v, 0) {
			return fmt.Errorf("%s is not a finite number", c.name)
		}
	}

	switch {
	case f.X < 0 || f.X > 100:
		return fmt.Errorf("x %.4f outside [0, 100]", f.X)
	case f.Y < 0 || f.Y > 100:
		return fmt.Errorf("y %.4f outside [0, 100]", f.Y)
	case f.Width <= 0 || f.Width > 100:
		return fmt.Errorf("width %.4f outside (0, 100]", f.Width)
	case f.Height <= 0 || f.Height > 100:
		return fmt.Errorf("height %.4f outside (0, 100]", f.Height)
	case f.Right() > 100+geometryTolerance:
		return fmt.Errorf("x + width = %.4f exceeds 100", f.Right())
	case f.Bottom() > 100+geometryTolerance:
		return fmt.Errorf("y + height = %.4f exceeds 100", f.Bottom())
	}
	return nil
}

const optionKeyPrefix = "option-"

// OptionKey returns the stable key of the i-th option of a choice field.
func OptionKey(i int) string {
	return optionKeyPrefix + strconv.Itoa(i)
}

// OptionIndex resolves key against options. It returns -1 when key does not
// name an existing option.
func OptionIndex(key string, options []string) int {
	if !strings.HasPrefix(key, optionKeyPrefix) {
		return -1
	}
	i, err := strconv.Atoi(strings.TrimPrefix(key, optionKeyPrefix))
	if err != nil || i < 0 || i >= len(options) {
		return -1
	}
	return i
}

// SelectedOption returns the index of the currently selected option of a
// choice field, or -1 when nothing is selected.
func (f *Field) SelectedOption() int {
	if f.Value == nil {
		return -1
	}
	return OptionIndex(*f.Value, f.Options)
}

// String returns a compact description used in logs.
func (f *Field) String() string {
	return fmt.Sprintf("%s(%s @ %.2f,%.2f %.2fx%.2f)", f.Type, f.ID, f.X, f.Y, f.Width, f.Height)
}
