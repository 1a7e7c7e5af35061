package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"google.golang.org/genai"

	"ragqa/internal/domain"
	"ragqa/internal/generator"
)

// Config configures the Gemini API generator.
type Config struct {
	APIKeyEnv string
	Model     string
	// BaseURL overrides the API endpoint; empty uses the public one.
	BaseURL string
}

// Client generates completions with the Gemini API.
type Client struct {
	model  string
	client *genai.Client
}

// NewClient reads the API key from cfg.APIKeyEnv and creates the genai client once.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, domain.Unavailable("gemini", fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv))
	}
	return NewClientWithKey(ctx, cfg, key)
}

func NewClientWithKey(ctx context.Context, cfg Config, key string) (*Client, error) {
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}
	cc := &genai.ClientConfig{
		APIKey:  key,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, domain.Unavailable("gemini", err)
	}
	return &Client{model: cfg.Model, client: client}, nil
}

func (c *Client) Name() string { return "gemini" }

func (c *Client) Complete(ctx context.Context, prompt string, cfg generator.Config) (string, error) {
	resp, err := c.client.Models.GenerateContent(
		ctx,
		c.model,
		[]*genai.Content{{Parts: []*genai.Part{{Text: prompt}}}},
		contentConfig(cfg),
	)
	if err != nil {
		if code, ok := apiErrorCode(err); ok && code < 500 && code != http.StatusTooManyRequests {
			return "", fmt.Errorf("gemini: %w", err)
		}
		return "", domain.Unavailable(c.Name(), err)
	}
	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", errors.New("gemini: empty response")
	}
	return text, nil
}

func apiErrorCode(err error) (int, bool) {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code, true
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return apiErrPtr.Code, true
	}
	return 0, false
}

func contentConfig(cfg generator.Config) *genai.GenerateContentConfig {
	out := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(cfg.EffectiveTemperature())),
	}
	if cfg.MaxNewTokens > 0 {
		out.MaxOutputTokens = int32(cfg.MaxNewTokens)
	}
	if cfg.TopK > 0 {
		out.TopK = genai.Ptr(float32(cfg.TopK))
	}
	if cfg.TopP > 0 {
		out.TopP = genai.Ptr(float32(cfg.TopP))
	}
	if cfg.NumReturnSequences > 0 {
		out.CandidateCount = int32(cfg.NumReturnSequences)
	}
	return out
}
