package media

import (
	"bytes"
	"fmt"
	"image"
	"io"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

const (
	MaxPhotoDimension = 1200
	PhotoQuality      = 85
)

// NormalizePhoto decodes a JPEG, PNG, GIF or WebP photo, applies EXIF
// orientation, fits it into MaxPhotoDimension and re-encodes it as JPEG.
func NormalizePhoto(r io.Reader) ([]byte, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("unsupported or corrupt image: %w", err)
	}
	return encodeFitted(img, MaxPhotoDimension, PhotoQuality)
}

// Thumbnail shrinks encoded image bytes to fit a box x box square.
func Thumbnail(data []byte, box int) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return encodeFitted(img, box, 80)
}

func encodeFitted(img image.Image, box, quality int) ([]byte, error) {
	b := img.Bounds()
	if b.Dx() > box || b.Dy() > box {
		img = imaging.Fit(img, box, box, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}
