package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"ragqa/internal/config"
	"ragqa/internal/corpus"
	"ragqa/internal/embedding"
	"ragqa/internal/embedding/hugot"
	"ragqa/internal/embedding/openai"
	"ragqa/internal/embedding/tfidf"
	"ragqa/internal/generator"
	"ragqa/internal/generator/gemini"
	"ragqa/internal/generator/ollama"
	"ragqa/internal/normalize"
	"ragqa/internal/service"
	"ragqa/internal/summarizer"
	"ragqa/internal/vectorstore"
)

// app holds the assembled pipeline.
type app struct {
	service  *service.RAGService
	composer *service.Composer
	summary  string
	closers  []func() error
}

func (a *app) Close() {
	for _, c := range a.closers {
		_ = c()
	}
}

// newApp loads the corpus, builds the index and, when withGenerator is set,
// connects the language model. Any failure here is a startup failure.
func newApp(ctx context.Context, cfg *config.AppConfig, logger *slog.Logger, withGenerator bool) (*app, error) {
	a := &app{}

	norm, err := normalize.NewEnglish()
	if err != nil {
		return nil, err
	}
	emb, closeEmb, err := newEmbedder(cfg.Embedder)
	if err != nil {
		return nil, err
	}
	if closeEmb != nil {
		a.closers = append(a.closers, closeEmb)
	}
	emb = embedding.WithCache(emb, cfg.Embedder.Cache.Size, time.Duration(cfg.Embedder.Cache.TTLSecs)*time.Second)

	index, err := vectorstore.New("memory")
	if err != nil {
		return nil, err
	}
	store, err := corpus.Load(cfg.Corpus.Path, corpus.LoadOptions{
		Sheet:     cfg.Corpus.Sheet,
		HasHeader: cfg.Corpus.HeaderRow(),
		Logger:    logger,
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	a.service = service.NewRAGService(norm, emb, index, summarizer.NewFrequencySummarizer(), logger, cfg.Embedder.BatchSize)
	if a.summary, err = a.service.Ingest(ctx, store); err != nil {
		a.Close()
		return nil, fmt.Errorf("ingest failed: %w", err)
	}
	if !withGenerator {
		return a, nil
	}

	gen, err := newGenerator(ctx, cfg.Generator, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	sampling := cfg.Generator.Sampling.Generation()
	if ignored := sampling.Unsupported(gen.Name()); len(ignored) > 0 {
		logger.Debug("sampling options not supported by generator", "generator", gen.Name(), "options", ignored)
	}
	a.composer = service.NewComposer(a.service, gen, service.ComposerOptions{
		TopK:         cfg.Retriever.TopK,
		ContextDocs:  cfg.Retriever.ContextDocs,
		AnswerMarker: cfg.Composer.AnswerMarker,
		Sampling:     sampling,
		Logger:       logger,
	})
	return a, nil
}

func newEmbedder(cfg config.EmbedderConfig) (embedding.Embedder, func() error, error) {
	switch cfg.Type {
	case "tfidf":
		return tfidf.NewEmbedder(), nil, nil
	case "openai":
		if cfg.OpenAI == nil {
			return nil, nil, fmt.Errorf("openai embedder config missing")
		}
		client, err := openai.NewClient(openai.Config{
			BaseURL:   cfg.OpenAI.BaseURL,
			APIKeyEnv: cfg.OpenAI.APIKeyEnv,
			Model:     cfg.OpenAI.Model,
			Timeout:   time.Duration(cfg.OpenAI.TimeoutSecs) * time.Second,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("openai embedder init failed: %w", err)
		}
		return client, nil, nil
	case "hugot", "":
		hc := config.HugotEmbedderConfig{}
		if cfg.Hugot != nil {
			hc = *cfg.Hugot
		}
		e := hugot.NewEmbedder(hugot.Config{Model: hc.Model, ModelDir: hc.ModelDir, OnnxFile: hc.OnnxFile})
		return e, e.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown embedder: %s", cfg.Type)
	}
}

func newGenerator(ctx context.Context, cfg config.GeneratorConfig, logger *slog.Logger) (generator.Generator, error) {
	switch cfg.Type {
	case "ollama", "":
		oc := config.OllamaConfig{}
		if cfg.Ollama != nil {
			oc = *cfg.Ollama
		}
		client := ollama.NewClient(ollama.Config{
			BaseURL: oc.BaseURL,
			Model:   oc.Model,
			Timeout: time.Duration(oc.TimeoutSecs) * time.Second,
			Logger:  logger,
		}, nil)
		hctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Healthy(hctx); err != nil {
			return nil, err
		}
		return client, nil
	case "gemini":
		if cfg.Gemini == nil {
			return nil, fmt.Errorf("gemini generator config missing")
		}
		return gemini.NewClient(ctx, gemini.Config{
			APIKeyEnv: cfg.Gemini.APIKeyEnv,
			Model:     cfg.Gemini.Model,
		})
	default:
		return nil, fmt.Errorf("unknown generator: %s", cfg.Type)
	}
}
