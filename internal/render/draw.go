package render

import (
	"strings"

	"github.com/a3tai/mcp-pdf-stamper/internal/bitmap"
	"github.com/a3tai/mcp-pdf-stamper/internal/field"
	"github.com/a3tai/mcp-pdf-stamper/internal/geometry"
	"github.com/a3tai/mcp-pdf-stamper/internal/stamperr"
)

// drawField dispatches on the field type. It reports whether anything was
// drawn; an error means the field was skipped.
func (r *Renderer) drawField(c Canvas, f *field.Field, box geometry.Box) (bool, error) {
	switch f.Type {
	case field.TypeSignature, field.TypeImage:
		return r.drawBitmap(c, f, box)
	case field.TypeText:
		text := PlaceholderText
		if f.Filled() {
			text = f.StringValue()
		}
		return r.drawLine(c, text, box, textMaxSize)
	case field.TypeDate:
		date := r.now().Format(field.DateLayout)
		if f.Filled() {
			date = f.StringValue()
		}
		return r.drawLine(c, date, box, dateMaxSize)
	case field.TypeChoice:
		return r.drawChoice(c, f, box)
	default:
		return r.drawGeneric(c, f, box)
	}
}

func (r *Renderer) drawBitmap(c Canvas, f *field.Field, box geometry.Box) (bool, error) {
	img, err := bitmap.Decode(f.StringValue())
	if err != nil {
		return false, err
	}
	if !validDimension(box.Width) || !validDimension(box.Height) {
		return false, stamperr.Newf(stamperr.KindValidation, "field box %gx%g has no area", box.Width, box.Height)
	}

	fit, err := geometry.Fit(float64(img.Width()), float64(img.Height()), box.Width, box.Height)
	if err != nil {
		return false, err
	}
	if err := c.Image(img, fit.Place(box)); err != nil {
		return false, stamperr.Wrap(stamperr.KindOutput, err, "cannot draw bitmap")
	}
	return true, nil
}

// drawLine draws text left-aligned and vertically centered in box.
func (r *Renderer) drawLine(c Canvas, text string, box geometry.Box, maxSize float64) (bool, error) {
	size := fontSize(box.Height, maxSize)
	if size < minTextSize {
		return false, nil
	}
	size = stampSize(size)
	clipped := clipText(r.measurer, singleLine(text), size, box.Width-2*textPadding)
	if clipped == "" {
		return false, nil
	}

	run := TextRun{
		Text: clipped,
		X:    box.X + textPadding,
		Y:    box.Y + (box.Height-size)/2,
		Size: size,
	}
	if err := c.Text(run); err != nil {
		return false, stamperr.Wrap(stamperr.KindOutput, err, "cannot draw text")
	}
	return true, nil
}

func (r *Renderer) drawChoice(c Canvas, f *field.Field, box geometry.Box) (bool, error) {
	selected := f.SelectedOption()

	radius := 0.35 * box.MinSide()
	if !validDimension(radius) {
		return false, nil
	}
	ind := Indicator{
		CX:          box.X + textPadding + radius,
		CY:          box.Y + box.Height/2,
		Radius:      radius,
		BorderWidth: max(0.75, 0.08*radius),
		InnerRadius: 0.5 * radius,
		Filled:      selected >= 0,
	}
	if err := c.Indicator(ind); err != nil {
		return false, stamperr.Wrap(stamperr.KindOutput, err, "cannot draw indicator")
	}

	labelIndex := selected
	if labelIndex < 0 {
		labelIndex = 0
	}
	if labelIndex >= len(f.Options) {
		return true, nil
	}

	size := fontSize(box.Height, labelMaxSize)
	if size < minTextSize {
		return true, nil
	}
	size = stampSize(size)
	labelX := ind.CX + radius + labelGap
	label := clipText(r.measurer, singleLine(f.Options[labelIndex]), size, box.Right()-labelX-textPadding)
	if label == "" {
		return true, nil
	}
	run := TextRun{Text: label, X: labelX, Y: box.Y + (box.Height-size)/2, Size: size}
	if err := c.Text(run); err != nil {
		return false, stamperr.Wrap(stamperr.KindOutput, err, "cannot draw label")
	}
	return true, nil
}

// drawGeneric renders fields of unrecognized types: bitmaps when the value
// looks like one, plain text otherwise.
func (r *Renderer) drawGeneric(c Canvas, f *field.Field, box geometry.Box) (bool, error) {
	v := f.StringValue()
	if strings.HasPrefix(v, "data:image/") {
		return r.drawBitmap(c, f, box)
	}
	return r.drawLine(c, v, box, textMaxSize)
}

// singleLine folds line breaks and tabs into spaces.
func singleLine(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '\n', '\r', '\t':
			return ' '
		}
		return r
	}, s)
}
