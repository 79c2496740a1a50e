package assets

import (
	"errors"
	"fmt"

	"gocv.io/x/gocv"
)

// ErrEmptyImage is returned when bytes decode to nothing.
var ErrEmptyImage = errors.New("image decoded to an empty matrix")

// alphaCutoff separates transparent from opaque pixels in the mask.
const alphaCutoff = 127

// Decode turns encoded image bytes into a 3-channel BGR Mat. Images with an
// alpha channel also get a binary mask of their opaque pixels.
func Decode(data []byte) (*Image, error) {
	if len(data) == 0 {
		return nil, ErrEmptyImage
	}

	raw, err := gocv.IMDecode(data, gocv.IMReadUnchanged)
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}
	defer raw.Close()

	if raw.Empty() {
		return nil, ErrEmptyImage
	}

	img := &Image{BGR: gocv.NewMat(), Mask: gocv.NewMat()}

	switch raw.Channels() {
	case 4:
		gocv.CvtColor(raw, &img.BGR, gocv.ColorBGRAToBGR)

		planes := gocv.Split(raw)
		gocv.Threshold(planes[3], &img.Mask, alphaCutoff, 255, gocv.ThresholdBinary)
		for _, p := range planes {
			p.Close()
		}
	case 3:
		raw.CopyTo(&img.BGR)
	case 1:
		gocv.CvtColor(raw, &img.BGR, gocv.ColorGrayToBGR)
	default:
		img.Close()
		return nil, fmt.Errorf("decoding image: unsupported channel count %d", raw.Channels())
	}

	return img, nil
}
