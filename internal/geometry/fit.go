package geometry

import (
	"math"

	"github.com/a3tai/mcp-pdf-stamper/internal/stamperr"
)

// Fitted is the result of Fit: the scaled content size and the offsets that
// center it inside the box. Offsets are relative to the box origin.
type Fitted struct {
	Width, Height    float64
	OffsetX, OffsetY float64
}

// Fit scales content of size cw×ch to fit inside a bw×bh box without
// distortion and centers it. Non-positive or non-finite dimensions are a
// caller bug and yield a GeometryPrecondition error.
func Fit(cw, ch, bw, bh float64) (Fitted, error) {
	for _, v := range [...]float64{cw, ch, bw, bh} {
		if !(v > 0) || math.IsInf(v, 0) {
			return Fitted{}, stamperr.Newf(stamperr.KindGeometryPrecondition,
				"fit requires positive dimensions, got content %gx%g box %gx%g", cw, ch, bw, bh)
		}
	}

	contentAspect := cw / ch
	boxAspect := bw / bh

	var w, h float64
	if contentAspect > boxAspect {
		w = bw
		h = bw / contentAspect
	} else {
		h = bh
		w = bh * contentAspect
	}

	return Fitted{
		Width:   w,
		Height:  h,
		OffsetX: math.Max(0, (bw-w)/2),
		OffsetY: math.Max(0, (bh-h)/2),
	}, nil
}

// Place returns the page-space rectangle of content fitted into b.
func (f Fitted) Place(b Box) Box {
	return Box{X: b.X + f.OffsetX, Y: b.Y + f.OffsetY, Width: f.Width, Height: f.Height}
}
