package hugot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/knights-analytics/hugot"
	"github.com/knights-analytics/hugot/pipelines"

	"ragqa/internal/domain"
)

// Config selects the sentence-transformer model and where it is cached.
type Config struct {
	Model    string
	ModelDir string
	OnnxFile string
}

// Embedder produces sentence embeddings with a local ONNX model run by the
// pure-Go hugot backend. The model is downloaded and loaded on first use.
type Embedder struct {
	cfg Config

	once    sync.Once
	loadErr error
	run     func([]string) ([][]float32, error)
	destroy func() error

	mu        sync.Mutex
	dimension int
}

// NewEmbedder creates an embedder; nothing is loaded until Prepare or Embed.
func NewEmbedder(cfg Config) *Embedder {
	if cfg.Model == "" {
		cfg.Model = "sentence-transformers/all-MiniLM-L6-v2"
	}
	if cfg.ModelDir == "" {
		cfg.ModelDir = "./models"
	}
	if cfg.OnnxFile == "" {
		cfg.OnnxFile = "onnx/model.onnx"
	}
	return &Embedder{cfg: cfg}
}

func (e *Embedder) Name() string { return "hugot" }

// Prepare loads the model. The corpus is not needed by a pretrained model.
func (e *Embedder) Prepare(corpus []string) error {
	return e.load()
}

// Dimension is known after the first successful Embed.
func (e *Embedder) Dimension() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dimension
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	if err := e.load(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	vecs, err := e.run(texts)
	if err != nil {
		return nil, domain.Unavailable(e.Name(), fmt.Errorf("failed to generate embeddings: %w", err))
	}
	if len(vecs) != len(texts) {
		return nil, domain.Unavailable(e.Name(), fmt.Errorf("embedding count mismatch: got %d embeddings for %d texts", len(vecs), len(texts)))
	}
	if e.dimension == 0 && len(vecs[0]) > 0 {
		e.dimension = len(vecs[0])
	}
	return vecs, nil
}

// Close releases the hugot session.
func (e *Embedder) Close() error {
	if e.destroy == nil {
		return nil
	}
	return e.destroy()
}

func (e *Embedder) load() error {
	e.once.Do(func() {
		modelPath, err := PrepareModel(e.cfg)
		if err != nil {
			e.loadErr = domain.Unavailable(e.Name(), err)
			return
		}
		session, err := hugot.NewGoSession()
		if err != nil {
			e.loadErr = domain.Unavailable(e.Name(), fmt.Errorf("failed to create hugot session: %w", err))
			return
		}
		config := hugot.FeatureExtractionConfig{
			ModelPath: modelPath,
			Name:      "ragqa-embedder",
			Options:   []hugot.FeatureExtractionOption{pipelines.WithNormalization()},
		}
		pipeline, err := hugot.NewPipeline(session, config)
		if err != nil {
			if destroyErr := session.Destroy(); destroyErr != nil {
				err = fmt.Errorf("%w (cleanup error: %v)", err, destroyErr)
			}
			e.loadErr = domain.Unavailable(e.Name(), fmt.Errorf("failed to create sentence pipeline: %w", err))
			return
		}
		e.run = func(texts []string) ([][]float32, error) {
			result, err := pipeline.RunPipeline(texts)
			if err != nil {
				return nil, err
			}
			return result.Embeddings, nil
		}
		e.destroy = session.Destroy
	})
	return e.loadErr
}

// PrepareModel downloads the model into cfg.ModelDir unless it is already
// there, and returns the local model path.
func PrepareModel(cfg Config) (string, error) {
	modelPath := localModelPath(cfg.ModelDir, cfg.Model)
	if _, err := os.Stat(modelPath); err == nil {
		return modelPath, nil
	} else if !os.IsNotExist(err) {
		return "", err
	}
	if err := os.MkdirAll(cfg.ModelDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create model directory: %w", err)
	}
	downloadOptions := hugot.NewDownloadOptions()
	downloadOptions.OnnxFilePath = cfg.OnnxFile
	downloadedPath, err := hugot.DownloadModel(cfg.Model, cfg.ModelDir, downloadOptions)
	if err != nil {
		return "", fmt.Errorf("failed to download model: %w", err)
	}
	return downloadedPath, nil
}

// localModelPath mirrors the directory name hugot.DownloadModel writes to.
func localModelPath(dir, model string) string {
	return filepath.Join(dir, strings.ReplaceAll(model, "/", "_"))
}
