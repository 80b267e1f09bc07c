package service

import (
	"bytes"
	"context"
	"encoding/binary"
	"hash/crc32"
	"image"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timmy/stylematch/internal/domain"
)

// withPNGSize rewrites the IHDR dimensions of a PNG and fixes its checksum,
// producing a header that claims any size without the pixels behind it.
func withPNGSize(t *testing.T, data []byte, w, h uint32) []byte {
	t.Helper()
	out := bytes.Clone(data)
	require.Equal(t, "IHDR", string(out[12:16]))
	binary.BigEndian.PutUint32(out[16:20], w)
	binary.BigEndian.PutUint32(out[20:24], h)
	binary.BigEndian.PutUint32(out[29:33], crc32.ChecksumIEEE(out[12:29]))
	return out
}

func TestCropRect(t *testing.T) {
	tests := []struct {
		name   string
		bounds image.Rectangle
		size   int
		want   image.Rectangle
	}{
		{"square", image.Rect(0, 0, 292, 292), 256, image.Rect(18, 18, 274, 274)},
		{"landscape", image.Rect(0, 0, 146, 73), 64, image.Rect(41, 4, 105, 68)},
		{"tall strip", image.Rect(0, 0, 20, 800), 64, image.Rect(1, 391, 19, 409)},
		{"offset bounds", image.Rect(10, 10, 83, 83), 64, image.Rect(14, 14, 78, 78)},
		{"single pixel", image.Rect(0, 0, 1, 1), 64, image.Rect(0, 0, 1, 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cropRect(tt.bounds, tt.size)
			assert.Equal(t, tt.want, got)
			assert.True(t, got.In(tt.bounds))
		})
	}
}

func TestPrepareInputElongatedImage(t *testing.T) {
	img, _, err := decodeImage(pngImage(t, 20, 800, red, blue))
	require.NoError(t, err)

	out := prepareInput(img, 64)
	assert.Equal(t, image.Rect(0, 0, 64, 64), out.Bounds())
	assert.Len(t, out.Pix, 64*64*4)
}

func TestLocalEmbedderRejectsDegenerateImages(t *testing.T) {
	e, err := NewLocalEmbedder(localEmbeddingConfig(), nil)
	require.NoError(t, err)

	tests := map[string][]byte{
		"one pixel wide strip":        pngImage(t, 1, 4000, red, red),
		"header claims 10 gigapixels": withPNGSize(t, pngImage(t, 2, 2, red, blue), 100_000, 100_000),
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			start := time.Now()
			_, err := e.Embed(context.Background(), domain.Image{Data: data})
			assert.ErrorIs(t, err, domain.ErrDecode)
			assert.Less(t, time.Since(start), 2*time.Second)
		})
	}
}

func TestLocalEmbedderElongatedImage(t *testing.T) {
	e, err := NewLocalEmbedder(localEmbeddingConfig(), nil)
	require.NoError(t, err)

	v, err := e.Embed(context.Background(), domain.Image{Data: pngImage(t, 20, 800, red, blue)})
	require.NoError(t, err)
	assert.Equal(t, 768, v.Dim())
}
