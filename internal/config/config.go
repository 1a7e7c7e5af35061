package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"ragqa/internal/generator"
)

// CorpusConfig points at the tabular knowledge base.
type CorpusConfig struct {
	Path      string `yaml:"path"`
	Sheet     string `yaml:"sheet,omitempty"`
	HasHeader *bool  `yaml:"has_header,omitempty"`
}

// HugotEmbedderConfig configures the local sentence-transformer pipeline.
type HugotEmbedderConfig struct {
	Model    string `yaml:"model"`
	ModelDir string `yaml:"model_dir"`
	OnnxFile string `yaml:"onnx_file"`
}

// OpenAIEmbedderConfig holds configuration for the OpenAI-compatible embedder.
type OpenAIEmbedderConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// CacheConfig bounds the embedding LRU. Size 0 disables it.
type CacheConfig struct {
	Size    int `yaml:"size"`
	TTLSecs int `yaml:"ttl_secs"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type      string                `yaml:"type"`
	BatchSize int                   `yaml:"batch_size"`
	Hugot     *HugotEmbedderConfig  `yaml:"hugot,omitempty"`
	OpenAI    *OpenAIEmbedderConfig `yaml:"openai,omitempty"`
	Cache     CacheConfig           `yaml:"cache"`
}

// RetrieverConfig sets how many neighbours are fetched and how many of them
// end up in the prompt.
type RetrieverConfig struct {
	TopK        int `yaml:"top_k"`
	ContextDocs int `yaml:"context_docs"`
}

// OllamaConfig contains connection details for a local Ollama server.
type OllamaConfig struct {
	BaseURL     string `yaml:"base_url"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// GeminiConfig configures the Gemini API generator.
type GeminiConfig struct {
	APIKeyEnv string `yaml:"api_key_env"`
	Model     string `yaml:"model"`
}

// SamplingConfig mirrors generator.Config in YAML form.
type SamplingConfig struct {
	MaxNewTokens       int     `yaml:"max_new_tokens"`
	MinNewTokens       int     `yaml:"min_new_tokens"`
	DoSample           *bool   `yaml:"do_sample,omitempty"`
	Temperature        float64 `yaml:"temperature"`
	TopK               int     `yaml:"top_k"`
	TopP               float64 `yaml:"top_p"`
	RenormalizeLogits  *bool   `yaml:"renormalize_logits,omitempty"`
	NumReturnSequences int     `yaml:"num_return_sequences"`
	DoLaLayers         string  `yaml:"dola_layers"`
	GuidanceScale      float64 `yaml:"guidance_scale"`
	LowMemory          *bool   `yaml:"low_memory,omitempty"`
}

// Generation converts the YAML form into the sampling configuration sent to
// the generator. Call after defaults have been applied.
func (s SamplingConfig) Generation() generator.Config {
	return generator.Config{
		MaxNewTokens:       s.MaxNewTokens,
		MinNewTokens:       s.MinNewTokens,
		DoSample:           s.DoSample == nil || *s.DoSample,
		Temperature:        s.Temperature,
		TopK:               s.TopK,
		TopP:               s.TopP,
		RenormalizeLogits:  s.RenormalizeLogits == nil || *s.RenormalizeLogits,
		NumReturnSequences: s.NumReturnSequences,
		DoLaLayers:         s.DoLaLayers,
		GuidanceScale:      s.GuidanceScale,
		LowMemory:          s.LowMemory == nil || *s.LowMemory,
	}
}

// GeneratorConfig selects and configures the language model backend.
type GeneratorConfig struct {
	Type     string         `yaml:"type"`
	Ollama   *OllamaConfig  `yaml:"ollama,omitempty"`
	Gemini   *GeminiConfig  `yaml:"gemini,omitempty"`
	Sampling SamplingConfig `yaml:"sampling"`
}

// ComposerConfig controls prompt post-processing and console previews.
type ComposerConfig struct {
	AnswerMarker string `yaml:"answer_marker"`
	PreviewChars int    `yaml:"preview_chars"`
}

// LogConfig sets the log level and an optional log file. The TUI logs to a
// temporary file when File is empty.
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file,omitempty"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Corpus    CorpusConfig    `yaml:"corpus"`
	Embedder  EmbedderConfig  `yaml:"embedder"`
	Retriever RetrieverConfig `yaml:"retriever"`
	Generator GeneratorConfig `yaml:"generator"`
	Composer  ComposerConfig  `yaml:"composer"`
	Log       LogConfig       `yaml:"log"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	applyConfigDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/ragqa/config.yaml.
// If neither exists, it writes defaults to ~/.config/ragqa/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := Default()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate rejects settings the pipeline cannot run with.
func (c *AppConfig) Validate() error {
	if c.Retriever.TopK <= 0 {
		return fmt.Errorf("retriever.top_k must be positive, got %d", c.Retriever.TopK)
	}
	if c.Retriever.ContextDocs <= 0 {
		return fmt.Errorf("retriever.context_docs must be positive, got %d", c.Retriever.ContextDocs)
	}
	switch c.Embedder.Type {
	case "hugot", "openai", "tfidf":
	default:
		return fmt.Errorf("unknown embedder: %s", c.Embedder.Type)
	}
	switch c.Generator.Type {
	case "ollama", "gemini":
	default:
		return fmt.Errorf("unknown generator: %s", c.Generator.Type)
	}
	return nil
}

// HeaderRow reports whether the first corpus row is a header.
func (c CorpusConfig) HeaderRow() bool {
	return c.HasHeader == nil || *c.HasHeader
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "ragqa", "config.yaml"), nil
}

// Default returns the built-in configuration.
func Default() *AppConfig {
	cfg := &AppConfig{
		Corpus:    CorpusConfig{Path: "data/corpus.xlsx"},
		Embedder:  EmbedderConfig{Type: "hugot"},
		Generator: GeneratorConfig{Type: "ollama"},
	}
	applyConfigDefaults(cfg)
	return cfg
}

func boolPtr(v bool) *bool { return &v }

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Embedder.Type == "" {
		cfg.Embedder.Type = "hugot"
	}
	if cfg.Embedder.BatchSize == 0 {
		cfg.Embedder.BatchSize = 32
	}
	if cfg.Embedder.Type == "hugot" {
		if cfg.Embedder.Hugot == nil {
			cfg.Embedder.Hugot = &HugotEmbedderConfig{}
		}
		if cfg.Embedder.Hugot.Model == "" {
			cfg.Embedder.Hugot.Model = "sentence-transformers/all-MiniLM-L6-v2"
		}
		if cfg.Embedder.Hugot.ModelDir == "" {
			cfg.Embedder.Hugot.ModelDir = "./models"
		}
		if cfg.Embedder.Hugot.OnnxFile == "" {
			cfg.Embedder.Hugot.OnnxFile = "onnx/model.onnx"
		}
	}
	if cfg.Embedder.Type == "openai" {
		if cfg.Embedder.OpenAI == nil {
			cfg.Embedder.OpenAI = &OpenAIEmbedderConfig{}
		}
		if cfg.Embedder.OpenAI.BaseURL == "" {
			cfg.Embedder.OpenAI.BaseURL = "https://api.openai.com/v1"
		}
		if cfg.Embedder.OpenAI.APIKeyEnv == "" {
			cfg.Embedder.OpenAI.APIKeyEnv = "OPENAI_API_KEY"
		}
		if cfg.Embedder.OpenAI.Model == "" {
			cfg.Embedder.OpenAI.Model = "text-embedding-3-small"
		}
		if cfg.Embedder.OpenAI.TimeoutSecs == 0 {
			cfg.Embedder.OpenAI.TimeoutSecs = 30
		}
	}
	if cfg.Embedder.Cache.TTLSecs == 0 {
		cfg.Embedder.Cache.TTLSecs = 600
	}

	if cfg.Retriever.TopK == 0 {
		cfg.Retriever.TopK = 3
	}
	if cfg.Retriever.ContextDocs == 0 {
		cfg.Retriever.ContextDocs = 1
	}

	if cfg.Generator.Type == "" {
		cfg.Generator.Type = "ollama"
	}
	if cfg.Generator.Type == "ollama" {
		if cfg.Generator.Ollama == nil {
			cfg.Generator.Ollama = &OllamaConfig{}
		}
		if cfg.Generator.Ollama.BaseURL == "" {
			cfg.Generator.Ollama.BaseURL = "http://localhost:11434"
		}
		if cfg.Generator.Ollama.Model == "" {
			cfg.Generator.Ollama.Model = "llama3.2:1b"
		}
		if cfg.Generator.Ollama.TimeoutSecs == 0 {
			cfg.Generator.Ollama.TimeoutSecs = 300
		}
	}
	if cfg.Generator.Type == "gemini" {
		if cfg.Generator.Gemini == nil {
			cfg.Generator.Gemini = &GeminiConfig{}
		}
		if cfg.Generator.Gemini.APIKeyEnv == "" {
			cfg.Generator.Gemini.APIKeyEnv = "GEMINI_API_KEY"
		}
		if cfg.Generator.Gemini.Model == "" {
			cfg.Generator.Gemini.Model = "gemini-2.0-flash"
		}
	}
	applySamplingDefaults(&cfg.Generator.Sampling)

	if cfg.Composer.AnswerMarker == "" {
		cfg.Composer.AnswerMarker = "Answer:"
	}
	if cfg.Composer.PreviewChars == 0 {
		cfg.Composer.PreviewChars = 100
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

func applySamplingDefaults(s *SamplingConfig) {
	if s.MaxNewTokens == 0 {
		s.MaxNewTokens = 512
	}
	if s.MinNewTokens == 0 {
		s.MinNewTokens = 10
	}
	if s.DoSample == nil {
		s.DoSample = boolPtr(true)
	}
	if s.Temperature == 0 {
		s.Temperature = 0.7
	}
	if s.TopK == 0 {
		s.TopK = 50
	}
	if s.TopP == 0 {
		s.TopP = 0.90
	}
	if s.RenormalizeLogits == nil {
		s.RenormalizeLogits = boolPtr(true)
	}
	if s.NumReturnSequences == 0 {
		s.NumReturnSequences = 1
	}
	if s.DoLaLayers == "" {
		s.DoLaLayers = "high"
	}
	if s.GuidanceScale == 0 {
		s.GuidanceScale = 7.5
	}
	if s.LowMemory == nil {
		s.LowMemory = boolPtr(true)
	}
}
