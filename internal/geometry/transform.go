// Package geometry holds the pure computations that map normalized field
// geometry onto a fixed-size output page.
package geometry

// Percent is a rectangle in normalized space: percentages of the container,
// origin at the top-left corner.
type Percent struct {
	X, Y, Width, Height float64
}

// Box is a rectangle in page space: absolute units (points), origin at the
// bottom-left corner. X, Y is the lower-left corner.
type Box struct {
	X, Y, Width, Height float64
}

// Top returns the upper edge of b.
func (b Box) Top() float64 { return b.Y + b.Height }

// Right returns the right edge of b.
func (b Box) Right() float64 { return b.X + b.Width }

// MinSide returns the smaller of width and height.
func (b Box) MinSide() float64 {
	if b.Width < b.Height {
		return b.Width
	}
	return b.Height
}

// ToPageSpace converts p to page coordinates for a page of the given size.
//
// The vertical axis is flipped: the field's y is measured down from the top of
// the container, the page's y up from the bottom, and the box is anchored at
// its lower-left corner, hence the subtraction of height. No clamping is
// applied; out-of-range input yields off-page output.
func ToPageSpace(p Percent, pageWidth, pageHeight float64) Box {
	width := p.Width / 100 * pageWidth
	height := p.Height / 100 * pageHeight
	return Box{
		X:      p.X / 100 * pageWidth,
		Y:      pageHeight - (p.Y / 100 * pageHeight) - height,
		Width:  width,
		Height: height,
	}
}

// FromPageSpace is the inverse of ToPageSpace.
func FromPageSpace(b Box, pageWidth, pageHeight float64) Percent {
	return Percent{
		X:      b.X / pageWidth * 100,
		Y:      (pageHeight - b.Y - b.Height) / pageHeight * 100,
		Width:  b.Width / pageWidth * 100,
		Height: b.Height / pageHeight * 100,
	}
}
