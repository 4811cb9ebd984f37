package imagestore

import (
	"bytes"
	"fmt"
	"image"

	"github.com/evanoberholster/imagemeta"
	"github.com/rs/zerolog/log"
)

// ImageInfo holds the dimensions and format recorded into the generation
// cache for each refined image.
type ImageInfo struct {
	Width  int
	Height int
	Format string
}

// Inspect extracts dimensions and format from image bytes. EXIF metadata is
// tried first because it reads only header bytes; a full decode of the
// image config is the fallback for images without EXIF.
func Inspect(data []byte) (*ImageInfo, error) {
	if meta, err := imagemeta.Decode(bytes.NewReader(data)); err == nil {
		if meta.ImageWidth > 0 && meta.ImageHeight > 0 {
			return &ImageInfo{
				Width:  int(meta.ImageWidth),
				Height: int(meta.ImageHeight),
				Format: meta.ImageType.String(),
			}, nil
		}
	} else {
		log.Trace().Err(err).Msg("No EXIF metadata, falling back to image config decode")
	}

	config, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image config: %w", err)
	}
	return &ImageInfo{Width: config.Width, Height: config.Height, Format: format}, nil
}
