package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"ragqa/internal/domain"
	"ragqa/internal/generator"
)

// DefaultAnswerMarker separates the prompt echo from the model's answer.
const DefaultAnswerMarker = "Answer:"

// Answer is the outcome of one question.
type Answer struct {
	Query   string
	Results []domain.RetrievalResult
	Prompt  string
	// Raw is the generator output before extraction.
	Raw  string
	Text string
}

// ComposerOptions tunes how many documents are fetched and used.
type ComposerOptions struct {
	TopK         int
	ContextDocs  int
	AnswerMarker string
	Sampling     generator.Config
	Logger       *slog.Logger
}

// Composer builds the prompt from retrieved context and extracts the answer
// from the generated text.
type Composer struct {
	retriever domain.Retriever
	generator generator.Generator
	opts      ComposerOptions
}

func NewComposer(retriever domain.Retriever, gen generator.Generator, opts ComposerOptions) *Composer {
	if opts.TopK <= 0 {
		opts.TopK = 3
	}
	if opts.ContextDocs <= 0 {
		opts.ContextDocs = 1
	}
	if opts.AnswerMarker == "" {
		opts.AnswerMarker = DefaultAnswerMarker
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Composer{retriever: retriever, generator: gen, opts: opts}
}

// Retrieve fetches the configured top-k documents for query.
func (c *Composer) Retrieve(ctx context.Context, query string) ([]domain.RetrievalResult, error) {
	return c.retriever.Retrieve(ctx, query, c.opts.TopK)
}

// Compose prompts the generator with the leading context documents from
// results and extracts the answer.
func (c *Composer) Compose(ctx context.Context, query string, results []domain.RetrievalResult) (*Answer, error) {
	n := min(c.opts.ContextDocs, len(results))
	docs := make([]domain.Document, n)
	for i := range docs {
		docs[i] = results[i].Document
	}
	prompt := BuildPrompt(query, docs)

	start := time.Now()
	raw, err := c.generator.Complete(ctx, prompt, c.opts.Sampling)
	if err != nil {
		if errors.Is(err, domain.ErrProviderUnavailable) {
			return nil, err
		}
		return nil, &domain.GenerationError{PromptLen: len(prompt), Err: err}
	}
	c.opts.Logger.Debug("answer generated",
		"generator", c.generator.Name(),
		"context_docs", n,
		"prompt_len", len(prompt),
		"elapsed", time.Since(start).String())
	return &Answer{
		Query:   query,
		Results: results,
		Prompt:  prompt,
		Raw:     raw,
		Text:    ExtractAnswer(raw, c.opts.AnswerMarker),
	}, nil
}

// Answer runs retrieval and composition for a single query.
func (c *Composer) Answer(ctx context.Context, query string) (*Answer, error) {
	results, err := c.Retrieve(ctx, query)
	if err != nil {
		return nil, err
	}
	return c.Compose(ctx, query, results)
}

// BuildPrompt renders the query and the context documents, one per line.
func BuildPrompt(query string, docs []domain.Document) string {
	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Text
	}
	var b strings.Builder
	b.WriteString("User query: ")
	b.WriteString(query)
	b.WriteString("\nDocument context: ")
	b.WriteString(strings.Join(texts, "\n"))
	b.WriteString("\nAnswer:")
	return b.String()
}

// ExtractAnswer returns the text after the last marker, trimmed, or the whole
// trimmed text when the marker is absent.
func ExtractAnswer(generated, marker string) string {
	if marker == "" {
		return strings.TrimSpace(generated)
	}
	if i := strings.LastIndex(generated, marker); i >= 0 {
		return strings.TrimSpace(generated[i+len(marker):])
	}
	return strings.TrimSpace(generated)
}
