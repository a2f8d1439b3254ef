package render

import (
	"math"

	"github.com/pdfcpu/pdfcpu/pkg/font"
)

const (
	// FontName is the standard font used for every text stamp.
	FontName = "Helvetica"

	// PlaceholderText is drawn for text fields without a value.
	PlaceholderText = "Text"

	textSizeRatio = 0.6  // font size relative to box height
	textMaxSize   = 14.0 // cap for text fields
	dateMaxSize   = 11.0 // cap for date fields
	labelMaxSize  = 12.0 // cap for choice labels
	textPadding   = 2.0  // left inset of text inside its box, points
	labelGap      = 4.0  // space between indicator and label, points
	minTextSize   = 1.0
)

// helvetica measures text with the standard Helvetica metrics bundled in pdfcpu.
type helvetica struct{}

// pdfcpu measures at integer sizes; measure at 1000 and scale for precision.
func (helvetica) TextWidth(text string, size float64) float64 {
	return font.TextWidth(text, FontName, 1000) * size / 1000
}

// fontSize derives the font size from the box height, capped at max.
func fontSize(boxHeight, max float64) float64 {
	return math.Min(boxHeight*textSizeRatio, max)
}

// stampSize is the whole-point size a text stamp is drawn at. Layout and
// clipping use it so the drawn line never exceeds the measured one.
func stampSize(size float64) float64 {
	return math.Max(minTextSize, math.Round(size))
}

// clipText drops trailing runes until text fits maxWidth at size.
func clipText(m Measurer, text string, size, maxWidth float64) string {
	if maxWidth <= 0 {
		return ""
	}
	if m.TextWidth(text, size) <= maxWidth {
		return text
	}

	runes := []rune(text)
	lo, hi := 0, len(runes)
	// widths are monotonic in prefix length, so binary search the longest fit
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if m.TextWidth(string(runes[:mid]), size) <= maxWidth {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return string(runes[:lo])
}
