package placement

import (
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/a3tai/mcp-pdf-stamper/internal/bitmap"
	"github.com/a3tai/mcp-pdf-stamper/internal/field"
	"github.com/a3tai/mcp-pdf-stamper/internal/stamperr"
)

// MaxTextLength is the longest accepted text value in runes.
const MaxTextLength = 2000

// validateValue checks v against the payload rules of f's type. It never
// mutates f.
func validateValue(f *field.Field, v *string) error {
	switch f.Type {
	case field.TypeSignature, field.TypeImage:
		if v == nil {
			return stamperr.Validation("%s value cannot be cleared", f.Type)
		}
		if f.Filled() {
			return stamperr.Validation("%s field already holds a captured bitmap", f.Type)
		}
		if _, err := bitmap.Decode(*v); err != nil {
			return stamperr.Wrap(stamperr.KindValidation, err, "value is not a decodable bitmap")
		}
		return nil

	case field.TypeText:
		if v == nil {
			return nil
		}
		return validateText(*v)

	case field.TypeDate:
		if v == nil {
			return nil
		}
		if _, err := time.Parse(field.DateLayout, *v); err != nil {
			return stamperr.Validation("date %q is not in YYYY-MM-DD form", *v)
		}
		return nil

	case field.TypeChoice:
		if v == nil {
			return stamperr.Validation("choice fields always keep a selection")
		}
		if field.OptionIndex(*v, f.Options) < 0 {
			return stamperr.Validation("unknown option key %q", *v)
		}
		return nil

	default:
		if v == nil {
			return nil
		}
		return validateText(*v)
	}
}

func validateText(s string) error {
	if !utf8.ValidString(s) {
		return stamperr.Validation("text is not valid UTF-8")
	}
	if n := utf8.RuneCountInString(s); n > MaxTextLength {
		return stamperr.Validation("text has %d characters (max %d)", n, MaxTextLength)
	}
	for _, r := range s {
		if r != '\t' && unicode.IsControl(r) {
			return stamperr.Validation("text contains control character %U", r)
		}
	}
	return nil
}
