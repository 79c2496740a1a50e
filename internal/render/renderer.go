// Package render draws the carousel scene onto an OpenCV matrix: the hand
// skeleton, the fingertip markers, the icons and the focus halo with its
// caption. The scene is drawn in camera coordinates and mirrored so it reads
// like a mirror to the user.
package render

import (
	"image"
	"strings"
	"unicode"
	"unicode/utf8"

	"gocv.io/x/gocv"

	"github.com/ayusman/carousel/internal/assets"
	"github.com/ayusman/carousel/internal/carousel"
	"github.com/ayusman/carousel/internal/detector"
	"github.com/ayusman/carousel/internal/gesture"
)

// Drawing dimensions in pixels.
const (
	SkeletonWidth = 5
	JointRadius   = 4
	MarkerRadius  = 5
	HaloWidth     = 5
	HaloBlur      = 31 // odd Gaussian kernel for the ring glow
	HaloGlow      = 0.6

	LabelOffset  = 40 // caption box top below the icon's bottom edge
	LabelHeight  = 40
	LabelPadding = 40 // horizontal padding each side of the text
	LabelRadius  = 20

	PlaceholderRadius = 16
)

const (
	labelFont      = gocv.FontHersheySimplex
	labelScale     = 0.7
	labelThickness = 2
)

// ImageSource resolves icon images. assets.Loader implements it.
type ImageSource interface {
	Get(ref string) (*assets.Image, assets.Status)
}

// Scene is everything one frame draws.
type Scene struct {
	Hands      []detector.HandLandmarks
	Gesture    gesture.State
	Placements []carousel.Placement
	// Nearest is the distance of the placement closest to center.
	Nearest     float64
	FocusRadius float64
}

// Renderer owns the drawing surfaces. It is not safe for concurrent use.
type Renderer struct {
	width, height int
	images        ImageSource

	canvas gocv.Mat // camera coordinates
	frame  gocv.Mat // mirrored output
}

// New creates a Renderer for a width x height surface.
func New(width, height int, images ImageSource) *Renderer {
	r := &Renderer{images: images}
	r.Resize(width, height)
	return r
}

// Resize reallocates the surfaces.
func (r *Renderer) Resize(width, height int) {
	r.Close()
	r.width, r.height = width, height
	r.canvas = gocv.NewMatWithSize(height, width, gocv.MatTypeCV8UC3)
	r.frame = gocv.NewMatWithSize(height, width, gocv.MatTypeCV8UC3)
}

// Size returns the surface dimensions.
func (r *Renderer) Size() (width, height int) {
	return r.width, r.height
}

// Close releases the surfaces.
func (r *Renderer) Close() {
	if r.canvas.Ptr() != nil {
		r.canvas.Close()
		r.canvas = gocv.Mat{}
	}
	if r.frame.Ptr() != nil {
		r.frame.Close()
		r.frame = gocv.Mat{}
	}
}

// Frame returns the last rendered frame. It is overwritten by the next
// Render; callers that keep it must Clone it.
func (r *Renderer) Frame() *gocv.Mat {
	return &r.frame
}

// Render draws s and returns the mirrored frame.
func (r *Renderer) Render(s Scene) *gocv.Mat {
	r.canvas.SetTo(gocv.NewScalar(float64(Background.B), float64(Background.G), float64(Background.R), 0))

	for i := range s.Hands {
		r.drawHand(&s.Hands[i], s)
	}
	// A placement whose image is still loading is left out entirely.
	shown := make([]carousel.Placement, 0, len(s.Placements))
	for _, p := range s.Placements {
		img, status := r.images.Get(imageRef(p))
		if status == assets.Pending {
			continue
		}
		r.drawIcon(p, img, status)
		shown = append(shown, p)
	}
	for _, p := range shown {
		if d := distanceToCenter(p.X, r.width); d < s.FocusRadius {
			r.drawHalo(p, carousel.HaloAlpha(d, s.FocusRadius), s.Gesture.PinchActive)
		}
	}

	gocv.Flip(r.canvas, &r.frame, 1)

	// Captions go on after the flip so the text is not mirrored.
	for _, p := range shown {
		if distanceToCenter(p.X, r.width) < s.FocusRadius {
			r.drawLabel(p, s.Gesture.PinchActive)
		}
	}

	return &r.frame
}

func (r *Renderer) toPixel(p detector.Point3D) image.Point {
	return pt(p.X*float64(r.width), p.Y*float64(r.height))
}

func (r *Renderer) drawHand(h *detector.HandLandmarks, s Scene) {
	for _, c := range detector.Connections {
		gocv.Line(&r.canvas, r.toPixel(h.Points[c[0]]), r.toPixel(h.Points[c[1]]), Skeleton, SkeletonWidth)
	}
	for _, p := range h.Points {
		gocv.Circle(&r.canvas, r.toPixel(p), JointRadius, Skeleton, -1)
	}

	marker := MarkerColor(s.Gesture.PinchActive, s.Nearest, s.FocusRadius)
	gocv.Circle(&r.canvas, r.toPixel(h.ThumbTip()), MarkerRadius, marker, -1)
	gocv.Circle(&r.canvas, r.toPixel(h.IndexTip()), MarkerRadius, marker, -1)
}

func imageRef(p carousel.Placement) string {
	if p.Icon == nil {
		return ""
	}
	return p.Icon.ImageRef
}

func (r *Renderer) drawIcon(p carousel.Placement, img *assets.Image, status assets.Status) {
	dst := iconRect(p.X, p.Y, p.Size)
	if dst.Empty() {
		return
	}
	visible := dst.Intersect(bounds(&r.canvas))
	if visible.Empty() {
		return
	}

	if status == assets.Failed || img == nil {
		r.drawPlaceholder(dst, p.Caption)
		return
	}

	scaled := gocv.NewMat()
	defer scaled.Close()
	gocv.Resize(img.BGR, &scaled, dst.Size(), 0, 0, gocv.InterpolationLinear)

	src := visible.Sub(dst.Min)
	target := r.canvas.Region(visible)
	defer target.Close()
	part := scaled.Region(src)
	defer part.Close()

	if !img.HasMask() {
		part.CopyTo(&target)
		return
	}

	mask := gocv.NewMat()
	defer mask.Close()
	gocv.Resize(img.Mask, &mask, dst.Size(), 0, 0, gocv.InterpolationNearestNeighbor)
	maskPart := mask.Region(src)
	defer maskPart.Close()

	part.CopyToWithMask(&target, maskPart)
}

func (r *Renderer) drawPlaceholder(dst image.Rectangle, caption string) {
	fillRoundedRect(&r.canvas, dst, min(PlaceholderRadius, dst.Dx()/4), Skeleton)

	initial := captionInitial(caption)
	if initial == "" {
		return
	}

	scale := float64(dst.Dy()) / 60
	thickness := max(1, dst.Dy()/30)
	size := gocv.GetTextSize(initial, labelFont, scale, thickness)
	center := image.Pt((dst.Min.X+dst.Max.X)/2, (dst.Min.Y+dst.Max.Y)/2)

	// The canvas is flipped afterwards, so the glyph is drawn mirrored to
	// come out readable.
	glyph := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), size.Y*2, size.X+4, gocv.MatTypeCV8UC3)
	defer glyph.Close()
	gocv.PutTextWithParams(&glyph, initial, image.Pt(2, size.Y+size.Y/2), labelFont, scale, White, thickness, gocv.LineAA, false)
	mirrored := gocv.NewMat()
	defer mirrored.Close()
	gocv.Flip(glyph, &mirrored, 1)

	at := image.Rectangle{Min: image.Pt(center.X-mirrored.Cols()/2, center.Y-mirrored.Rows()/2)}
	at.Max = at.Min.Add(image.Pt(mirrored.Cols(), mirrored.Rows()))
	visible := at.Intersect(bounds(&r.canvas))
	if visible.Empty() {
		return
	}

	target := r.canvas.Region(visible)
	defer target.Close()
	part := mirrored.Region(visible.Sub(at.Min))
	defer part.Close()
	part.CopyToWithMask(&target, part)
}

func (r *Renderer) drawHalo(p carousel.Placement, alpha float64, pinch bool) {
	c := HaloColor(pinch)
	radius := int(p.Size / 2)
	margin := radius + HaloWidth + HaloBlur
	center := pt(p.X, p.Y)
	area := image.Rect(center.X-margin, center.Y-margin, center.X+margin, center.Y+margin)

	ring := func(layer *gocv.Mat, origin image.Point) {
		gocv.Circle(layer, center.Sub(origin), radius, c, HaloWidth)
	}

	glow(&r.canvas, area, alpha*HaloGlow, HaloBlur, ring)
	blend(&r.canvas, area, alpha, ring)
}

func (r *Renderer) drawLabel(p carousel.Placement, pinch bool) {
	fill, opacity, textColor := LabelStyle(pinch)

	text := p.Caption
	size := gocv.GetTextSize(text, labelFont, labelScale, labelThickness)

	x := MirrorX(p.X, r.width)
	top := p.Y + p.Size/2 + LabelOffset
	boxWidth := float64(size.X + 2*LabelPadding)

	box := image.Rectangle{
		Min: pt(x-boxWidth/2, top),
		Max: pt(x+boxWidth/2, top+LabelHeight),
	}

	blend(&r.frame, box, opacity, func(layer *gocv.Mat, origin image.Point) {
		fillRoundedRect(layer, box.Sub(origin), LabelRadius, fill)
	})

	baseline := pt(x-float64(size.X)/2, top+LabelHeight/2+float64(size.Y)/2)
	gocv.PutTextWithParams(&r.frame, text, baseline, labelFont, labelScale, textColor, labelThickness, gocv.LineAA, false)
}

// MirrorX maps a camera-space x to its position on the mirrored frame.
func MirrorX(x float64, width int) float64 {
	return float64(width) - x
}

func distanceToCenter(x float64, width int) float64 {
	d := float64(width)/2 - x
	if d < 0 {
		return -d
	}
	return d
}

// captionInitial returns the upper-cased first letter of caption.
func captionInitial(caption string) string {
	caption = strings.TrimSpace(caption)
	if caption == "" {
		return ""
	}
	r, _ := utf8.DecodeRuneInString(caption)
	return string(unicode.ToUpper(r))
}
