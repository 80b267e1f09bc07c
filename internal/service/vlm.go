package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/timmy/stylematch/internal/config"
	"github.com/timmy/stylematch/internal/domain"
	"github.com/timmy/stylematch/internal/logger"
	"github.com/timmy/stylematch/internal/prompts"
)

// Describer turns a garment photo into a shopping search query.
type Describer interface {
	Describe(ctx context.Context, img domain.Image, garmentType, garmentLayer string) (domain.Query, error)
}

// VLMService generates garment descriptions with an OpenAI-compatible
// vision language model.
type VLMService struct {
	client   *resty.Client
	model    string
	endpoint string
}

// NewVLMService creates a new VLM service.
func NewVLMService(cfg config.VLMConfig) *VLMService {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	client := resty.New().
		SetHeader("Authorization", "Bearer "+cfg.APIKey).
		SetHeader("Content-Type", "application/json").
		SetTimeout(timeout)

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}

	return &VLMService{
		client:   client,
		model:    cfg.Model,
		endpoint: strings.TrimSuffix(baseURL, "/") + "/chat/completions",
	}
}

// GetModel returns the model name being used.
func (s *VLMService) GetModel() string {
	return s.model
}

// OpenAI-compatible Chat Completion API request/response structures
type openAIRequest struct {
	Model     string          `json:"model"`
	Messages  []openAIMessage `json:"messages"`
	MaxTokens int             `json:"max_tokens"`
}

type openAIMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"` // string for system, []interface{} for user with images
}

type openAITextContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type openAIImageContent struct {
	Type     string         `json:"type"`
	ImageURL openAIImageURL `json:"image_url"`
}

type openAIImageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Describe asks the model for a comma-separated attribute list describing
// the garment. Any failure is returned as *domain.DescriptionError.
func (s *VLMService) Describe(ctx context.Context, img domain.Image, garmentType, garmentLayer string) (domain.Query, error) {
	start := time.Now()
	text, err := s.complete(ctx, img, prompts.BuildGarmentPrompt(garmentType, garmentLayer))
	if err != nil {
		return "", &domain.DescriptionError{Err: err}
	}

	query := cleanDescription(text)
	if query == "" {
		return "", &domain.DescriptionError{Err: errors.New("model returned an empty description")}
	}

	logger.With(logger.Fields{logger.FieldDurationMs: time.Since(start).Milliseconds()}).
		Info(ctx, "Generated garment description: %s", query)
	return domain.Query(query), nil
}

func (s *VLMService) complete(ctx context.Context, img domain.Image, userPrompt string) (string, error) {
	mimeType := img.ContentType
	if !strings.HasPrefix(mimeType, "image/") {
		mimeType = "image/jpeg"
	}
	dataURL := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(img.Data))

	req := openAIRequest{
		Model: s.model,
		Messages: []openAIMessage{
			{
				Role:    "system",
				Content: prompts.GarmentSystemPrompt,
			},
			{
				Role: "user",
				Content: []interface{}{
					openAITextContent{Type: "text", Text: userPrompt},
					openAIImageContent{
						Type:     "image_url",
						ImageURL: openAIImageURL{URL: dataURL, Detail: "auto"},
					},
				},
			},
		},
		MaxTokens: 300,
	}

	var resp openAIResponse
	httpResp, err := s.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&resp).
		SetError(&resp).
		Post(s.endpoint)
	if err != nil {
		return "", fmt.Errorf("failed to call VLM API: %w", err)
	}

	if httpResp.StatusCode() < http.StatusOK || httpResp.StatusCode() >= http.StatusMultipleChoices {
		if resp.Error != nil {
			return "", fmt.Errorf("VLM API returned error: HTTP %d: %s", httpResp.StatusCode(), resp.Error.Message)
		}
		return "", fmt.Errorf("VLM API returned error: HTTP %d: %s", httpResp.StatusCode(), string(httpResp.Body()))
	}
	if resp.Error != nil {
		return "", fmt.Errorf("VLM API error: %s", resp.Error.Message)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in VLM response (status: %d)", httpResp.StatusCode())
	}

	return resp.Choices[0].Message.Content, nil
}

var lineBreaks = regexp.MustCompile(`\s*\n\s*`)

// cleanDescription joins a multi-line answer into one comma-separated query.
func cleanDescription(text string) string {
	text = strings.TrimSpace(text)
	text = lineBreaks.ReplaceAllString(text, ", ")
	text = strings.ReplaceAll(text, ",,", ",")
	return strings.Trim(text, " ,")
}
