package render

import (
	"image"
	"image/color"
	"math"

	"golang.org/x/image/vector"
)

const (
	indicatorPixelsPerPoint = 8
	indicatorMaxPixels      = 512
	circleSegments          = 96
)

// rasterizeIndicator draws the ring and, when filled, the inner disc of ind
// on a transparent square bitmap spanning its bounds.
func rasterizeIndicator(ind Indicator) *image.RGBA {
	side := int(math.Ceil(2 * ind.Radius * indicatorPixelsPerPoint))
	side = min(max(side, 8), indicatorMaxPixels)
	scale := float64(side) / (2 * ind.Radius) // pixels per point

	c := float64(side) / 2
	outer := ind.Radius * scale
	inner := math.Max(0, (ind.Radius-ind.BorderWidth)*scale)

	z := vector.NewRasterizer(side, side)
	addCircle(z, c, c, outer, false)
	if inner > 0 {
		// opposite winding cuts the hole out of the ring
		addCircle(z, c, c, inner, true)
	}
	if ind.Filled && ind.InnerRadius > 0 {
		addCircle(z, c, c, math.Min(ind.InnerRadius*scale, inner), false)
	}

	dst := image.NewRGBA(image.Rect(0, 0, side, side))
	z.Draw(dst, dst.Bounds(), image.NewUniform(color.Black), image.Point{})
	return dst
}

func addCircle(z *vector.Rasterizer, cx, cy, r float64, reverse bool) {
	if r <= 0 {
		return
	}
	z.MoveTo(float32(cx+r), float32(cy))
	for i := 1; i <= circleSegments; i++ {
		a := 2 * math.Pi * float64(i) / circleSegments
		if reverse {
			a = -a
		}
		z.LineTo(float32(cx+r*math.Cos(a)), float32(cy+r*math.Sin(a)))
	}
	z.ClosePath()
}
