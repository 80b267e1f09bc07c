package service

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/timmy/stylematch/internal/config"
)

// pngImage draws a w x h image split vertically into left and right colors.
func pngImage(t *testing.T, w, h int, left, right color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if x < w/2 {
				img.Set(x, y, left)
			} else {
				img.Set(x, y, right)
			}
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode() error = %v", err)
	}
	return buf.Bytes()
}

func toJPEG(t *testing.T, data []byte) []byte {
	t.Helper()
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("image.Decode() error = %v", err)
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95}); err != nil {
		t.Fatalf("jpeg.Encode() error = %v", err)
	}
	return buf.Bytes()
}

var (
	red   = color.RGBA{R: 220, G: 30, B: 30, A: 255}
	blue  = color.RGBA{R: 20, G: 40, B: 200, A: 255}
	white = color.RGBA{R: 250, G: 250, B: 250, A: 255}
	green = color.RGBA{R: 30, G: 180, B: 60, A: 255}
)

func localEmbeddingConfig() config.EmbeddingConfig {
	return config.EmbeddingConfig{
		Name:       "test",
		Provider:   "local",
		Model:      "grid-rgb-16",
		Dimensions: 768,
		InputSize:  64,
		Workers:    2,
	}
}
