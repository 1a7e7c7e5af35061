package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"ragqa/internal/domain"
	"ragqa/internal/generator"
)

const (
	defaultBase  = "http://localhost:11434"
	defaultModel = "llama3.2:1b"
)

// Client generates completions with a local Ollama server.
type Client struct {
	baseURL string
	model   string
	client  *http.Client
	logger  *slog.Logger
}

// Config contains connection details for the Ollama server.
type Config struct {
	BaseURL string
	Model   string
	Timeout time.Duration
	Logger  *slog.Logger
}

// NewClient creates a client; a nil httpClient gets one with cfg.Timeout.
func NewClient(cfg Config, httpClient *http.Client) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBase
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		baseURL: cfg.BaseURL,
		model:   cfg.Model,
		client:  httpClient,
		logger:  cfg.Logger,
	}
}

func (c *Client) Name() string { return "ollama" }

// Healthy checks that the server answers /api/tags.
func (c *Client) Healthy(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return domain.Unavailable(c.Name(), fmt.Errorf("not reachable: %w", err))
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return domain.Unavailable(c.Name(), fmt.Errorf("returned status %d", resp.StatusCode))
	}
	return nil
}

type generateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Raw     bool           `json:"raw"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

type generateResponse struct {
	Response   string `json:"response"`
	Done       bool   `json:"done"`
	DoneReason string `json:"done_reason"`
	Error      string `json:"error"`
}

// Complete sends the prompt verbatim (no chat template) and returns the
// generated continuation.
func (c *Client) Complete(ctx context.Context, prompt string, cfg generator.Config) (string, error) {
	body := generateRequest{
		Model:   c.model,
		Prompt:  prompt,
		Raw:     true,
		Options: options(cfg),
	}
	data, err := json.Marshal(body)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return "", domain.Unavailable(c.Name(), err)
	}
	defer resp.Body.Close()

	var out generateResponse
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		_ = json.Unmarshal(raw, &out)
		if out.Error == "" {
			out.Error = string(bytes.TrimSpace(raw))
		}
		if resp.StatusCode == http.StatusNotFound || resp.StatusCode >= 500 {
			return "", domain.Unavailable(c.Name(), fmt.Errorf("status %d: %s", resp.StatusCode, out.Error))
		}
		return "", fmt.Errorf("ollama status %d: %s", resp.StatusCode, out.Error)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("ollama: %s", out.Error)
	}
	c.logger.Debug("ollama completion",
		"model", c.model,
		"done_reason", out.DoneReason,
		"elapsed", time.Since(start).String())
	return out.Response, nil
}

func options(cfg generator.Config) map[string]any {
	opts := map[string]any{
		"temperature": cfg.EffectiveTemperature(),
	}
	if cfg.MaxNewTokens > 0 {
		opts["num_predict"] = cfg.MaxNewTokens
	}
	if cfg.TopK > 0 {
		opts["top_k"] = cfg.TopK
	}
	if cfg.TopP > 0 {
		opts["top_p"] = cfg.TopP
	}
	return opts
}
