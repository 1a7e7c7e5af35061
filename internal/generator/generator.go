package generator

import (
	"context"
)

// Config is the fixed sampling configuration sent with every completion.
type Config struct {
	MaxNewTokens       int
	MinNewTokens       int
	DoSample           bool
	Temperature        float64
	TopK               int
	TopP               float64
	RenormalizeLogits  bool
	NumReturnSequences int
	DoLaLayers         string
	GuidanceScale      float64
	LowMemory          bool
}

// DefaultConfig returns the sampling settings the assistant ships with.
func DefaultConfig() Config {
	return Config{
		MaxNewTokens:       512,
		MinNewTokens:       10,
		DoSample:           true,
		Temperature:        0.7,
		TopK:               50,
		TopP:               0.90,
		RenormalizeLogits:  true,
		NumReturnSequences: 1,
		DoLaLayers:         "high",
		GuidanceScale:      7.5,
		LowMemory:          true,
	}
}

// Generator turns a prompt into generated text.
type Generator interface {
	Name() string
	Complete(ctx context.Context, prompt string, cfg Config) (string, error)
}

// Unsupported lists the options the named backend has no equivalent for and
// silently ignores.
func (c Config) Unsupported(backend string) []string {
	var out []string
	if c.MinNewTokens > 0 {
		out = append(out, "min_new_tokens")
	}
	if c.RenormalizeLogits {
		out = append(out, "renormalize_logits")
	}
	if c.DoLaLayers != "" {
		out = append(out, "dola_layers")
	}
	if c.GuidanceScale != 0 {
		out = append(out, "guidance_scale")
	}
	if c.LowMemory {
		out = append(out, "low_memory")
	}
	if backend == "ollama" && c.NumReturnSequences > 1 {
		out = append(out, "num_return_sequences")
	}
	return out
}

// EffectiveTemperature is the temperature a backend should use; greedy
// decoding is temperature 0.
func (c Config) EffectiveTemperature() float64 {
	if !c.DoSample {
		return 0
	}
	return c.Temperature
}
