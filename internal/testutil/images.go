package testutil

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"

	"flashback/internal/models"
)

// PNGImage encodes a solid w x h PNG.
func PNGImage(w, h int) []byte {
	var buf bytes.Buffer
	_ = png.Encode(&buf, solid(w, h))
	return buf.Bytes()
}

// JPEGImage encodes a solid w x h JPEG.
func JPEGImage(w, h int) []byte {
	var buf bytes.Buffer
	_ = jpeg.Encode(&buf, solid(w, h), nil)
	return buf.Bytes()
}

// WEBPImage is a 1x1 lossless WEBP.
func WEBPImage() []byte {
	return []byte{
		'R', 'I', 'F', 'F', 0x1a, 0x00, 0x00, 0x00, 'W', 'E', 'B', 'P',
		'V', 'P', '8', 'L', 0x0d, 0x00, 0x00, 0x00,
		0x2f, 0x00, 0x00, 0x00, 0x10, 0x07, 0x10, 0x11, 0x11, 0x88, 0x88, 0xfe, 0x07, 0x00,
	}
}

func TinyPNG() []byte {
	return PNGImage(1, 1)
}

func solid(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 0xc0, G: 0x80, B: 0x40, A: 0xff})
		}
	}
	return img
}

// TinyImage is TinyPNG wrapped as a models.Image.
func TinyImage() models.Image {
	return models.Image{Data: TinyPNG(), MimeType: "image/png", Width: 1, Height: 1}
}
