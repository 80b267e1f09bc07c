package service

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"math"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/timmy/stylematch/internal/domain"
)

// ImageNet channel statistics used to normalize model input.
var (
	imageNetMean = [3]float32{0.485, 0.456, 0.406}
	imageNetStd  = [3]float32{0.229, 0.224, 0.225}
)

// Limits applied from the image header before any pixels are decoded.
const (
	maxInputPixels = 40_000_000
	maxAspectRatio = 50
)

// checkImage reads only the image header and rejects formats we cannot
// decode, empty images, and images too large or too elongated to embed.
func checkImage(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: empty image", domain.ErrDecode)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrDecode, err)
	}
	w, h := cfg.Width, cfg.Height
	switch {
	case w <= 0 || h <= 0:
		return fmt.Errorf("%w: zero-sized image", domain.ErrDecode)
	case int64(w)*int64(h) > maxInputPixels:
		return fmt.Errorf("%w: %dx%d exceeds %d pixels", domain.ErrDecode, w, h, maxInputPixels)
	case w > h*maxAspectRatio || h > w*maxAspectRatio:
		return fmt.Errorf("%w: %dx%d aspect ratio exceeds %d:1", domain.ErrDecode, w, h, maxAspectRatio)
	}
	return nil
}

// decodeImage decodes JPEG, PNG, GIF or WebP bytes after checkImage accepts
// the header.
func decodeImage(data []byte) (image.Image, string, error) {
	if err := checkImage(data); err != nil {
		return nil, "", err
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", domain.ErrDecode, err)
	}
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, "", fmt.Errorf("%w: zero-sized image", domain.ErrDecode)
	}
	return img, format, nil
}

// prepareInput produces the size x size RGB input that resizing the short
// edge to size*256/224 and center cropping would give. Only the source region
// that survives the crop is scaled, so the cost is bounded by size whatever
// the source shape. Alpha is composited onto white.
func prepareInput(img image.Image, size int) *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(out, out.Bounds(), image.White, image.Point{}, draw.Src)
	draw.CatmullRom.Scale(out, out.Bounds(), img, cropRect(img.Bounds(), size), draw.Over, nil)
	return out
}

// cropRect maps the centered size x size crop of the resized image back into
// source coordinates.
func cropRect(b image.Rectangle, size int) image.Rectangle {
	short := min(b.Dx(), b.Dy())
	resizeTo := size * 256 / 224
	side := max(1, int(math.Round(float64(size)*float64(short)/float64(resizeTo))))

	w, h := min(side, b.Dx()), min(side, b.Dy())
	x0 := b.Min.X + (b.Dx()-w)/2
	y0 := b.Min.Y + (b.Dy()-h)/2
	return image.Rect(x0, y0, x0+w, y0+h)
}

// normalizedPixel returns the ImageNet-normalized RGB values at (x, y).
func normalizedPixel(img *image.RGBA, x, y int) [3]float32 {
	i := img.PixOffset(x, y)
	var px [3]float32
	for c := 0; c < 3; c++ {
		v := float32(img.Pix[i+c]) / 255
		px[c] = (v - imageNetMean[c]) / imageNetStd[c]
	}
	return px
}

// encodeJPEG re-encodes a prepared input for remote models.
func encodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func calculateMD5(data []byte) string {
	hash := md5.Sum(data)
	return hex.EncodeToString(hash[:])
}
