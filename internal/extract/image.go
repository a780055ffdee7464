package extract

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"

	"github.com/genbatech/chie/internal/models"
)

const (
	// optimizedMaxDim bounds both sides of the re-encoded copy.
	optimizedMaxDim = 1200
	// optimizedJPEGQuality is the quality of the re-encoded copy.
	optimizedJPEGQuality = 80
)

// extractImage decodes an image, records its dimensions and format, and
// produces a size-bounded JPEG copy for storage. No OCR is attempted; images
// carry no text content and are excluded from diffing and chunking upstream.
func extractImage(content []byte, ext string) (*models.ExtractedContent, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("decode image header: %w: %w", models.ErrMalformedInput, err)
	}

	img, err := imaging.Decode(bytes.NewReader(content), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w: %w", models.ErrMalformedInput, err)
	}

	// Fit never enlarges, so small images are re-encoded at original size.
	resized := imaging.Fit(img, optimizedMaxDim, optimizedMaxDim, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, resized, imaging.JPEG, imaging.JPEGQuality(optimizedJPEGQuality)); err != nil {
		return nil, fmt.Errorf("encode optimized image: %w", err)
	}

	return &models.ExtractedContent{
		Kind:      models.KindImage,
		Optimized: buf.Bytes(),
		Metadata: models.ExtractionMetadata{
			Image: &models.ImageInfo{
				Width:  cfg.Width,
				Height: cfg.Height,
				Format: format,
			},
		},
	}, nil
}
