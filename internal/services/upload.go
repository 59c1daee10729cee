package services

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"

	"flashback/internal/models"

	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/webp"
)

var allowedImageTypes = []string{"image/png", "image/jpeg", "image/webp"}

// ReadUpload reads an uploaded picture, checks its real content type and
// decodes its dimensions. A nil reader means nothing was uploaded.
func ReadUpload(r io.Reader, maxSize int64) (*models.Image, error) {
	if r == nil {
		return nil, models.ErrNoFile
	}
	if maxSize > 0 {
		r = io.LimitReader(r, maxSize+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if len(data) == 0 {
		return nil, models.ErrNoFile
	}
	if maxSize > 0 && int64(len(data)) > maxSize {
		return nil, fmt.Errorf("%w: limit is %d bytes", models.ErrUploadTooLarge, maxSize)
	}
	return DecodeImage(data)
}

// DecodeImage detects the format of data and fills in width and height.
func DecodeImage(data []byte) (*models.Image, error) {
	mtype := mimetype.Detect(data)
	if !mimetype.EqualsAny(mtype.String(), allowedImageTypes...) {
		return nil, fmt.Errorf("%w: got %s", models.ErrUnsupportedImage, mtype.String())
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrUnsupportedImage, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("%w: empty image", models.ErrUnsupportedImage)
	}

	return &models.Image{
		Data:     data,
		MimeType: mtype.String(),
		Width:    cfg.Width,
		Height:   cfg.Height,
	}, nil
}
