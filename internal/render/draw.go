package render

import (
	"image"
	"image/color"
	"math"

	"gocv.io/x/gocv"
)

// iconRect is the square an icon of the given size occupies around (x, y).
func iconRect(x, y, size float64) image.Rectangle {
	half := size / 2
	x0 := int(math.Round(x - half))
	y0 := int(math.Round(y - half))
	side := int(math.Round(size))
	return image.Rect(x0, y0, x0+side, y0+side)
}

// pt rounds a float position to a pixel.
func pt(x, y float64) image.Point {
	return image.Pt(int(math.Round(x)), int(math.Round(y)))
}

// bounds returns the full rectangle of m.
func bounds(m *gocv.Mat) image.Rectangle {
	return image.Rect(0, 0, m.Cols(), m.Rows())
}

// fillRoundedRect fills r with corners of the given radius.
func fillRoundedRect(m *gocv.Mat, r image.Rectangle, radius int, c color.RGBA) {
	if radius*2 > r.Dx() {
		radius = r.Dx() / 2
	}
	if radius*2 > r.Dy() {
		radius = r.Dy() / 2
	}

	gocv.Rectangle(m, image.Rect(r.Min.X+radius, r.Min.Y, r.Max.X-radius, r.Max.Y), c, -1)
	gocv.Rectangle(m, image.Rect(r.Min.X, r.Min.Y+radius, r.Max.X, r.Max.Y-radius), c, -1)

	corners := []image.Point{
		{X: r.Min.X + radius, Y: r.Min.Y + radius},
		{X: r.Max.X - radius, Y: r.Min.Y + radius},
		{X: r.Min.X + radius, Y: r.Max.Y - radius},
		{X: r.Max.X - radius, Y: r.Max.Y - radius},
	}
	for _, p := range corners {
		gocv.Circle(m, p, radius, c, -1)
	}
}

// blend draws onto a copy of the area r of m with paint, then mixes the copy
// back at the given opacity. Coordinates passed to paint are relative to r.
func blend(m *gocv.Mat, r image.Rectangle, opacity float64, paint func(layer *gocv.Mat, origin image.Point)) {
	r = r.Intersect(bounds(m))
	if r.Empty() || opacity <= 0 {
		return
	}

	roi := m.Region(r)
	defer roi.Close()

	layer := roi.Clone()
	defer layer.Close()

	paint(&layer, r.Min)

	if opacity >= 1 {
		layer.CopyTo(&roi)
		return
	}
	gocv.AddWeighted(roi, 1-opacity, layer, opacity, 0, &roi)
}

// glow adds a blurred copy of whatever paint draws onto the area r of m,
// scaled by strength.
func glow(m *gocv.Mat, r image.Rectangle, strength float64, blur int, paint func(layer *gocv.Mat, origin image.Point)) {
	r = r.Intersect(bounds(m))
	if r.Empty() || strength <= 0 {
		return
	}

	roi := m.Region(r)
	defer roi.Close()

	layer := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), r.Dy(), r.Dx(), roi.Type())
	defer layer.Close()

	paint(&layer, r.Min)
	gocv.GaussianBlur(layer, &layer, image.Pt(blur, blur), 0, 0, gocv.BorderDefault)
	gocv.AddWeighted(roi, 1, layer, strength, 0, &roi)
}
