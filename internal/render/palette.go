package render

import "image/color"

// Scene colours.
var (
	Background = color.RGBA{R: 0xD9, G: 0xDC, B: 0xE3, A: 0xFF}
	Skeleton   = color.RGBA{R: 0x37, G: 0x3A, B: 0x47, A: 0xFF}
	Accent     = color.RGBA{R: 0x5B, G: 0xAD, B: 0xFF, A: 0xFF}
	White      = color.RGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF}
	Black      = color.RGBA{R: 0x00, G: 0x00, B: 0x00, A: 0xFF}
)

// labelOpacity is the caption background's opacity when not pinching.
const labelOpacity = 0.7

// MarkerColor picks the thumb-tip and index-tip marker colour. A pinch
// always wins; otherwise the markers go dark while no placement is inside
// the focus zone.
func MarkerColor(pinch bool, nearest, focusRadius float64) color.RGBA {
	switch {
	case pinch:
		return Accent
	case nearest > focusRadius:
		return Skeleton
	default:
		return White
	}
}

// HaloColor is the focus ring colour.
func HaloColor(pinch bool) color.RGBA {
	if pinch {
		return Accent
	}
	return White
}

// LabelStyle returns the caption background colour, its opacity and the
// text colour.
func LabelStyle(pinch bool) (fill color.RGBA, opacity float64, text color.RGBA) {
	if pinch {
		return Accent, 1, White
	}
	return White, labelOpacity, Black
}
