package gemini

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragqa/internal/domain"
	"ragqa/internal/generator"
)

func TestNewClientRequiresKey(t *testing.T) {
	t.Setenv("RAGQA_TEST_GEMINI_KEY", "")

	_, err := NewClient(context.Background(), Config{APIKeyEnv: "RAGQA_TEST_GEMINI_KEY"})

	assert.ErrorIs(t, err, domain.ErrProviderUnavailable)
}

func TestContentConfig(t *testing.T) {
	got := contentConfig(generator.DefaultConfig())

	assert.Equal(t, int32(512), got.MaxOutputTokens)
	assert.Equal(t, int32(1), got.CandidateCount)
	require.NotNil(t, got.Temperature)
	assert.InDelta(t, 0.7, *got.Temperature, 1e-6)
	require.NotNil(t, got.TopK)
	assert.Equal(t, float32(50), *got.TopK)
	require.NotNil(t, got.TopP)
	assert.InDelta(t, 0.9, *got.TopP, 1e-6)
}

func TestComplete(t *testing.T) {
	ctx := context.Background()

	t.Run("Returns candidate text", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"Answer: Trail A"}]}}]}`))
		}))
		defer srv.Close()
		c, err := NewClientWithKey(ctx, Config{BaseURL: srv.URL}, "k")
		require.NoError(t, err)

		text, err := c.Complete(ctx, "User query: q\nAnswer:", generator.DefaultConfig())

		require.NoError(t, err)
		assert.Equal(t, "Answer: Trail A", text)
	})

	t.Run("Server errors are provider failures", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":{"code":503,"message":"overloaded","status":"UNAVAILABLE"}}`))
		}))
		defer srv.Close()
		c, err := NewClientWithKey(ctx, Config{BaseURL: srv.URL}, "k")
		require.NoError(t, err)

		_, err = c.Complete(ctx, "p", generator.DefaultConfig())

		assert.ErrorIs(t, err, domain.ErrProviderUnavailable)
	})
}
