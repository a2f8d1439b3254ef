package render

import (
	"bytes"
	"fmt"

	"github.com/ledongthuc/pdf"
)

// Verify re-opens rendered output with an independent PDF reader and returns
// its page count.
func Verify(out []byte) (int, error) {
	if len(out) == 0 {
		return 0, fmt.Errorf("output is empty")
	}
	if !bytes.HasPrefix(out, []byte("%PDF-")) {
		return 0, fmt.Errorf("output is not a PDF document")
	}

	r, err := pdf.NewReader(bytes.NewReader(out), int64(len(out)))
	if err != nil {
		return 0, fmt.Errorf("invalid PDF output: %w", err)
	}
	pages := r.NumPage()
	if pages < 1 {
		return 0, fmt.Errorf("output has no pages")
	}
	return pages, nil
}
