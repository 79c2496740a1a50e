package render

import (
	"image"
	"image/color"
	"math"
	"testing"

	"gocv.io/x/gocv"

	"github.com/ayusman/carousel/internal/assets"
	"github.com/ayusman/carousel/internal/carousel"
	"github.com/ayusman/carousel/internal/detector"
	"github.com/ayusman/carousel/internal/gesture"
)

type fakeEntry struct {
	img    *assets.Image
	status assets.Status
}

type fakeImages map[string]fakeEntry

func (f fakeImages) Get(ref string) (*assets.Image, assets.Status) {
	e, ok := f[ref]
	if !ok {
		return nil, assets.Pending
	}
	return e.img, e.status
}

func TestMarkerColor(t *testing.T) {
	tests := []struct {
		name    string
		pinch   bool
		nearest float64
		want    color.RGBA
	}{
		{"pinch wins near center", true, 0, Accent},
		{"pinch wins far from center", true, 500, Accent},
		{"nothing in focus", false, 101, Skeleton},
		{"no placements", false, math.Inf(1), Skeleton},
		{"on the focus radius", false, 100, White},
		{"in focus", false, 20, White},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MarkerColor(tt.pinch, tt.nearest, 100); got != tt.want {
				t.Errorf("MarkerColor() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHaloAndLabelStyle(t *testing.T) {
	if HaloColor(true) != Accent || HaloColor(false) != White {
		t.Error("halo should be accent while pinching and white otherwise")
	}

	fill, opacity, text := LabelStyle(true)
	if fill != Accent || opacity != 1 || text != White {
		t.Errorf("pinch label = (%v, %f, %v), want accent opaque with white text", fill, opacity, text)
	}

	fill, opacity, text = LabelStyle(false)
	if fill != White || opacity != 0.7 || text != Black {
		t.Errorf("idle label = (%v, %f, %v), want white at 0.7 with black text", fill, opacity, text)
	}
}

func TestMirrorX(t *testing.T) {
	if got := MirrorX(100, 640); got != 540 {
		t.Errorf("MirrorX(100, 640) = %f, want 540", got)
	}
	if got := MirrorX(320, 640); got != 320 {
		t.Errorf("center should map to itself, got %f", got)
	}
}

func TestIconRect(t *testing.T) {
	got := iconRect(150, 240, 100)
	want := image.Rect(100, 190, 200, 290)
	if got != want {
		t.Errorf("iconRect() = %v, want %v", got, want)
	}
}

func TestCaptionInitial(t *testing.T) {
	tests := map[string]string{
		"Setting":  "S",
		"  music ": "M",
		"":         "",
		"éclair":   "É",
	}
	for in, want := range tests {
		if got := captionInitial(in); got != want {
			t.Errorf("captionInitial(%q) = %q, want %q", in, got, want)
		}
	}
}

// pixel returns the BGR pixel of m at (x, y) as RGBA.
func pixel(m *gocv.Mat, x, y int) color.RGBA {
	v := m.GetVecbAt(y, x)
	return color.RGBA{R: v[2], G: v[1], B: v[0], A: 0xFF}
}

func solid(t *testing.T, c color.RGBA, w, h int) *assets.Image {
	t.Helper()
	bgr := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(float64(c.B), float64(c.G), float64(c.R), 0), h, w, gocv.MatTypeCV8UC3)
	return &assets.Image{BGR: bgr, Mask: gocv.NewMat()}
}

func placement(caption string, x, y, size float64) carousel.Placement {
	icon := &carousel.Icon{Caption: caption, ImageRef: caption + ".png"}
	return carousel.Placement{X: x, Y: y, Size: size, Icon: icon, Caption: caption}
}

func TestRenderer_Surface(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	r := New(640, 480, fakeImages{})
	defer r.Close()

	frame := r.Render(Scene{FocusRadius: 100, Nearest: math.Inf(1)})
	if frame.Cols() != 640 || frame.Rows() != 480 || frame.Channels() != 3 {
		t.Fatalf("frame = %dx%d/%d, want 640x480/3", frame.Cols(), frame.Rows(), frame.Channels())
	}
	if got := pixel(frame, 10, 10); got != Background {
		t.Errorf("empty scene pixel = %v, want background %v", got, Background)
	}

	r.Resize(320, 200)
	frame = r.Render(Scene{FocusRadius: 100})
	if frame.Cols() != 320 || frame.Rows() != 200 {
		t.Errorf("after resize frame = %dx%d, want 320x200", frame.Cols(), frame.Rows())
	}
}

func TestRenderer_MarkersAreMirrored(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	r := New(640, 480, fakeImages{})
	defer r.Close()

	hand := detector.PinchLandmarks(0.25)
	frame := r.Render(Scene{
		Hands:       []detector.HandLandmarks{hand},
		Gesture:     gesture.State{PinchActive: true, Tracking: true},
		Nearest:     math.Inf(1),
		FocusRadius: 100,
	})

	tip := hand.IndexTip()
	x := int(math.Round(tip.X * 640))
	y := int(math.Round(tip.Y * 480))

	if got := pixel(frame, 639-x, y); got != Accent {
		t.Errorf("mirrored index tip pixel = %v, want accent %v", got, Accent)
	}
	if got := pixel(frame, x, y); got == Accent {
		t.Error("marker should not appear at its unmirrored position")
	}
}

func TestRenderer_IconStates(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	red := color.RGBA{R: 0xE0, G: 0x10, B: 0x10, A: 0xFF}
	ready := solid(t, red, 10, 10)
	defer ready.Close()

	images := fakeImages{
		"Ready.png":  {img: ready, status: assets.Ready},
		"Failed.png": {status: assets.Failed},
	}

	r := New(800, 480, images)
	defer r.Close()

	// All three sit well outside the 100px focus zone around x=400.
	frame := r.Render(Scene{
		Placements: []carousel.Placement{
			placement("Ready", 100, 240, 100),
			placement("Failed", 650, 240, 100),
			placement("Pending", 240, 120, 60),
		},
		Nearest:     250,
		FocusRadius: 100,
	})

	if got := pixel(frame, 799-100, 240); got != red {
		t.Errorf("ready icon pixel = %v, want %v", got, red)
	}
	// Near the placeholder's edge, away from the glyph.
	if got := pixel(frame, 799-650, 200); got != Skeleton {
		t.Errorf("failed icon pixel = %v, want placeholder %v", got, Skeleton)
	}
	if got := pixel(frame, 799-240, 120); got != Background {
		t.Errorf("pending icon pixel = %v, want background %v", got, Background)
	}
}

func TestRenderer_AlphaMask(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	red := color.RGBA{R: 0xE0, G: 0x10, B: 0x10, A: 0xFF}
	img := solid(t, red, 20, 20)
	defer img.Close()

	// Left half transparent.
	img.Mask.Close()
	img.Mask = gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 20, 20, gocv.MatTypeCV8U)
	right := img.Mask.Region(image.Rect(10, 0, 20, 20))
	right.SetTo(gocv.NewScalar(255, 0, 0, 0))
	right.Close()

	r := New(800, 480, fakeImages{"Masked.png": {img: img, status: assets.Ready}})
	defer r.Close()

	frame := r.Render(Scene{
		Placements:  []carousel.Placement{placement("Masked", 150, 240, 100)},
		Nearest:     250,
		FocusRadius: 100,
	})

	if got := pixel(frame, 799-125, 240); got != Background {
		t.Errorf("transparent half pixel = %v, want background", got)
	}
	if got := pixel(frame, 799-175, 240); got != red {
		t.Errorf("opaque half pixel = %v, want %v", got, red)
	}
}

func TestRenderer_FocusedCaption(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	blue := color.RGBA{R: 0x10, G: 0x10, B: 0xE0, A: 0xFF}
	img := solid(t, blue, 10, 10)
	defer img.Close()

	r := New(640, 480, fakeImages{"Map.png": {img: img, status: assets.Ready}})
	defer r.Close()

	p := placement("Map", 320, 200, 100)
	textSize := gocv.GetTextSize("Map", labelFont, labelScale, labelThickness)
	top := int(p.Y + p.Size/2 + LabelOffset)
	// Inside the box, between the text and the rounded corner.
	x := 320 - textSize.X/2 - LabelPadding/2
	y := top + LabelHeight/2

	tests := []struct {
		name  string
		pinch bool
		check func(c color.RGBA) bool
	}{
		{"idle caption is translucent white", false, func(c color.RGBA) bool {
			return c != Background && c != White && c.R > Background.R
		}},
		{"pinch caption is accent", true, func(c color.RGBA) bool {
			return c == Accent
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame := r.Render(Scene{
				Placements:  []carousel.Placement{p},
				Gesture:     gesture.State{PinchActive: tt.pinch},
				Nearest:     0,
				FocusRadius: 100,
			})
			if got := pixel(frame, x, y); !tt.check(got) {
				t.Errorf("caption background pixel = %v", got)
			}
		})
	}
}

func TestRenderer_PendingPlacementIsOmitted(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	r := New(640, 480, fakeImages{})
	defer r.Close()

	// Dead center, so a drawn placement would get both halo and caption.
	p := placement("Map", 320, 200, 100)
	textSize := gocv.GetTextSize("Map", labelFont, labelScale, labelThickness)
	labelX := 320 - textSize.X/2 - LabelPadding/2
	labelY := int(p.Y+p.Size/2+LabelOffset) + LabelHeight/2

	for _, pinch := range []bool{false, true} {
		frame := r.Render(Scene{
			Placements:  []carousel.Placement{p},
			Gesture:     gesture.State{PinchActive: pinch},
			Nearest:     0,
			FocusRadius: 100,
		})

		checks := []struct {
			what string
			x, y int
		}{
			{"icon", 319, 200},
			{"halo ring", 319, 150},
			{"halo ring side", 319 - 50, 200},
			{"caption", labelX, labelY},
		}
		for _, c := range checks {
			if got := pixel(frame, c.x, c.y); got != Background {
				t.Errorf("pinch=%v: %s pixel = %v, want background", pinch, c.what, got)
			}
		}
	}
}
