package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"github.com/timmy/stylematch/internal/config"
	"github.com/timmy/stylematch/internal/domain"
	"github.com/timmy/stylematch/internal/logger"
)

const defaultMaxImageBytes = 10 << 20

var errTooLarge = errors.New("image exceeds size limit")

// ImageFetcher downloads candidate images into a workspace directory.
type ImageFetcher struct {
	client   *resty.Client
	retries  uint64
	maxBytes int64
}

// NewImageFetcher creates a fetcher. Transient failures (network errors,
// 429 and 5xx) are retried up to cfg.Retries times with exponential backoff.
func NewImageFetcher(cfg config.FetchConfig, userAgent string) *ImageFetcher {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	maxBytes := cfg.MaxBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxImageBytes
	}

	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Accept", "image/*")
	if userAgent != "" {
		client.SetHeader("User-Agent", userAgent)
	}

	return &ImageFetcher{
		client:   client,
		retries:  cfg.Retries,
		maxBytes: maxBytes,
	}
}

// Fetch downloads rawURL and saves the bytes as <dir>/<uuid>.jpg. Inline
// data: URLs are decoded instead of fetched. Every failure is a
// *domain.FetchError.
func (f *ImageFetcher) Fetch(ctx context.Context, rawURL, dir string) (domain.Image, error) {
	var (
		data []byte
		err  error
	)
	if strings.HasPrefix(rawURL, "data:") {
		data, err = decodeDataURL(rawURL)
	} else {
		data, err = f.download(ctx, rawURL)
	}
	if err != nil {
		return domain.Image{}, &domain.FetchError{URL: shortURL(rawURL), Err: err}
	}
	if int64(len(data)) > f.maxBytes {
		return domain.Image{}, &domain.FetchError{URL: shortURL(rawURL), Err: errTooLarge}
	}

	path := filepath.Join(dir, uuid.New().String()+".jpg")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return domain.Image{}, &domain.FetchError{URL: shortURL(rawURL), Err: err}
	}

	return domain.Image{
		Data:        data,
		ContentType: http.DetectContentType(data),
		Path:        path,
	}, nil
}

func (f *ImageFetcher) download(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, errors.New("unsupported image url")
	}

	var data []byte
	operation := func() error {
		resp, err := f.client.R().
			SetContext(ctx).
			SetDoNotParseResponse(true).
			Get(rawURL)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return err
		}
		body := resp.RawBody()
		defer body.Close()

		status := resp.StatusCode()
		if status != http.StatusOK {
			err := fmt.Errorf("unexpected status %d", status)
			if status == http.StatusTooManyRequests || status >= 500 {
				return err
			}
			return backoff.Permanent(err)
		}

		buf, err := io.ReadAll(io.LimitReader(body, f.maxBytes+1))
		if err != nil {
			return err
		}
		if int64(len(buf)) > f.maxBytes {
			return backoff.Permanent(errTooLarge)
		}
		data = buf
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	policy := backoff.WithContext(backoff.WithMaxRetries(b, f.retries), ctx)

	attempt := 0
	err = backoff.RetryNotify(operation, policy, func(err error, wait time.Duration) {
		attempt++
		logger.CtxDebug(ctx, "Retrying image fetch (attempt %d) in %s: %v", attempt, wait, err)
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

// decodeDataURL decodes a base64 data: URL, as used for inline thumbnails.
func decodeDataURL(raw string) ([]byte, error) {
	comma := strings.IndexByte(raw, ',')
	if comma < 0 {
		return nil, errors.New("malformed data url")
	}
	meta, payload := raw[len("data:"):comma], raw[comma+1:]
	if !strings.HasSuffix(meta, ";base64") {
		return nil, errors.New("only base64 data urls are supported")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("decode data url: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("empty data url")
	}
	return data, nil
}

// shortURL keeps data: URLs out of logs and errors.
func shortURL(raw string) string {
	if strings.HasPrefix(raw, "data:") {
		if i := strings.IndexByte(raw, ','); i > 0 {
			return raw[:i] + ",..."
		}
		return "data:..."
	}
	return raw
}
