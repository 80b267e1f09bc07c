package storage

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timmy/stylematch/internal/config"
)

func TestLocalStorageRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStorage(t.TempDir(), "")
	require.NoError(t, err)

	key := "results/req-1/amazon_results.json"
	body := `[{"name":"shirt"}]`
	require.NoError(t, s.Upload(ctx, key, strings.NewReader(body), int64(len(body)), "application/json"))

	ok, err := s.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)

	rc, err := s.Download(ctx, key)
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	rc.Close()
	require.NoError(t, err)
	assert.Equal(t, body, string(got))

	require.NoError(t, s.Delete(ctx, key))
	require.NoError(t, s.Delete(ctx, key))
	ok, err = s.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLocalStorageRejectsEscapingKeys(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir(), "")
	require.NoError(t, err)
	err = s.Upload(context.Background(), "../outside.json", strings.NewReader("x"), 1, "")
	assert.Error(t, err)
}

func TestLocalStorageGetURL(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir(), "https://cdn.example/")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/a/b.json", s.GetURL("a/b.json"))
}

func TestDetectStorageType(t *testing.T) {
	tests := []struct {
		endpoint string
		want     StorageType
	}{
		{"https://abc.r2.cloudflarestorage.com", StorageTypeR2},
		{"s3.us-east-1.amazonaws.com", StorageTypeS3},
		{"localhost:9000", StorageTypeS3Compatible},
	}
	for _, tt := range tests {
		if got := detectStorageType(tt.endpoint); got != tt.want {
			t.Errorf("detectStorageType(%q) = %v, want %v", tt.endpoint, got, tt.want)
		}
	}
}

func TestNormalizeEndpoint(t *testing.T) {
	assert.Equal(t, "minio:9000", normalizeEndpoint("http://minio:9000/bucket/"))
	assert.Equal(t, "x.r2.cloudflarestorage.com", normalizeEndpoint("https://x.r2.cloudflarestorage.com"))
}

func TestNewStorageLocal(t *testing.T) {
	s, err := NewStorage(context.Background(), config.StorageConfig{Type: "local", LocalDir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &LocalStorage{}, s)

	_, err = NewStorage(context.Background(), config.StorageConfig{Type: "ftp"})
	assert.Error(t, err)
}
