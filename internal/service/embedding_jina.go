package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/timmy/stylematch/internal/config"
	"github.com/timmy/stylematch/internal/domain"
	"github.com/timmy/stylematch/internal/metrics"
)

// JinaImageEmbedder calls a Jina multimodal embedding model (jina-clip-v2 by
// default) with the preprocessed image as base64 JPEG.
type JinaImageEmbedder struct {
	client     *resty.Client
	endpoint   string
	model      string
	dimensions int
	inputSize  int
	metrics    *metrics.Metrics
}

// NewJinaImageEmbedder creates the HTTP client. It does not contact the API.
func NewJinaImageEmbedder(cfg config.EmbeddingConfig, m *metrics.Metrics) *JinaImageEmbedder {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Authorization", "Bearer "+cfg.APIKey).
		SetHeader("Content-Type", "application/json")

	return &JinaImageEmbedder{
		client:     client,
		endpoint:   strings.TrimSuffix(cfg.BaseURL, "/") + "/embeddings",
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		inputSize:  cfg.InputSize,
		metrics:    m,
	}
}

func (e *JinaImageEmbedder) Model() string { return e.model }

type jinaImageInput struct {
	Image string `json:"image"`
}

type jinaImageRequest struct {
	Model         string           `json:"model"`
	Dimensions    int              `json:"dimensions,omitempty"`
	Normalized    bool             `json:"normalized"`
	EmbeddingType string           `json:"embedding_type,omitempty"`
	Input         []jinaImageInput `json:"input"`
}

type jinaResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
	Detail string `json:"detail,omitempty"`
}

// Embed preprocesses img locally so every candidate reaches the model at the
// same resolution, then requests a single embedding.
func (e *JinaImageEmbedder) Embed(ctx context.Context, img domain.Image) (domain.EmbeddingVector, error) {
	decoded, _, err := decodeImage(img.Data)
	if err != nil {
		return domain.EmbeddingVector{}, decodeFailed(img.Path, err)
	}
	payload, err := encodeJPEG(prepareInput(decoded, e.inputSize))
	if err != nil {
		return domain.EmbeddingVector{}, decodeFailed(img.Path, fmt.Errorf("%w: re-encode: %v", domain.ErrDecode, err))
	}

	req := jinaImageRequest{
		Model:         e.model,
		Dimensions:    e.dimensions,
		Normalized:    true,
		EmbeddingType: "float",
		Input:         []jinaImageInput{{Image: base64.StdEncoding.EncodeToString(payload)}},
	}

	start := time.Now()
	var resp jinaResponse
	httpResp, err := e.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&resp).
		SetError(&resp).
		Post(e.endpoint)
	if e.metrics != nil {
		e.metrics.EmbeddingDuration.Observe(time.Since(start).Seconds())
	}

	if err != nil {
		return domain.EmbeddingVector{}, modelUnavailable(img.Path, fmt.Errorf("failed to call Jina API: %w", err))
	}
	if httpResp.StatusCode() != http.StatusOK {
		if resp.Detail != "" {
			return domain.EmbeddingVector{}, modelUnavailable(img.Path, fmt.Errorf("Jina API error: %s", resp.Detail))
		}
		return domain.EmbeddingVector{}, modelUnavailable(img.Path, fmt.Errorf("Jina API error: status %d", httpResp.StatusCode()))
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return domain.EmbeddingVector{}, modelUnavailable(img.Path, fmt.Errorf("no embedding returned"))
	}

	return domain.EmbeddingVector{Model: e.model, Values: resp.Data[0].Embedding}, nil
}
