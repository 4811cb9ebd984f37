package imagestore

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png" // register PNG for image.Decode

	"github.com/rs/zerolog/log"
	"golang.org/x/image/draw"
)

// DefaultThumbnailMaxDimension is the maximum width or height for preview
// thumbnails stored alongside refined images.
const DefaultThumbnailMaxDimension = 512

// Thumbnail resizes JPEG/PNG image bytes down to maxDimension on the longer
// side, preserving aspect ratio, and re-encodes as JPEG. Images already
// within bounds are re-encoded without resizing.
func Thumbnail(data []byte, maxDimension int) ([]byte, string, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}

	bounds := img.Bounds()
	origWidth := bounds.Dx()
	origHeight := bounds.Dy()

	if origWidth <= maxDimension && origHeight <= maxDimension {
		out, err := encodeJPEG(img)
		if err != nil {
			return nil, "", err
		}
		return out, "image/jpeg", nil
	}

	newWidth, newHeight := scaledDimensions(origWidth, origHeight, maxDimension)
	resized := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.CatmullRom.Scale(resized, resized.Bounds(), img, bounds, draw.Over, nil)

	out, err := encodeJPEG(resized)
	if err != nil {
		return nil, "", err
	}

	log.Debug().
		Str("format", format).
		Int("origWidth", origWidth).
		Int("origHeight", origHeight).
		Int("newWidth", newWidth).
		Int("newHeight", newHeight).
		Int("outputSize", len(out)).
		Msg("Thumbnail generated")
	return out, "image/jpeg", nil
}

func encodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 80}); err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}

// scaledDimensions computes the target size preserving aspect ratio.
func scaledDimensions(width, height, maxDimension int) (int, int) {
	if width >= height {
		newHeight := height * maxDimension / width
		if newHeight < 1 {
			newHeight = 1
		}
		return maxDimension, newHeight
	}
	newWidth := width * maxDimension / height
	if newWidth < 1 {
		newWidth = 1
	}
	return newWidth, maxDimension
}
