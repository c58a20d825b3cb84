package provider

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/knights-analytics/hugot"
	"github.com/knights-analytics/hugot/pipelines"
)

const (
	// LocalModelRepository is the Hugging Face repository of the built-in model.
	LocalModelRepository = "Supabase/gte-small"
	// LocalModelDimension is the vector length the built-in model produces.
	LocalModelDimension = 384

	hugotBatchMax = 16
	tokenizerFile = "tokenizer.json"
)

// session holds the process-wide ONNX session and pipeline. ONNX Runtime
// allows one active session per process and is not safe for concurrent
// inference, so mu guards both setup and every pipeline run.
var session struct {
	mu       sync.Mutex
	hugot    *hugot.Session
	pipeline *pipelines.FeatureExtractionPipeline
	ready    bool
}

// LocalEmbedding generates gte-small embeddings in process. Token vectors
// are mean pooled and L2 normalised, giving 384-dimensional unit vectors.
//
// Model files are taken from the first subdirectory of modelDir holding a
// tokenizer.json, or, in binaries built with the embed_model tag, extracted
// from the binary into modelDir on first use.
type LocalEmbedding struct {
	modelDir string
}

// NewLocalEmbedding creates a LocalEmbedding that looks for model files in modelDir.
func NewLocalEmbedding(modelDir string) *LocalEmbedding {
	return &LocalEmbedding{modelDir: modelDir}
}

// Available reports whether a usable model is compiled in or on disk.
func (h *LocalEmbedding) Available() bool {
	if hasEmbeddedModel {
		return true
	}
	_, err := h.diskModelPath()
	return err == nil
}

func (h *LocalEmbedding) initialize() error {
	session.mu.Lock()
	defer session.mu.Unlock()

	if session.ready {
		return nil
	}

	modelPath, err := h.resolveModelPath()
	if err != nil {
		return err
	}

	s, err := newHugotSession()
	if err != nil {
		return fmt.Errorf("create hugot session: %w", err)
	}

	pipeline, err := hugot.NewPipeline(s, hugot.FeatureExtractionConfig{
		ModelPath: modelPath,
		Name:      "title-embeddings",
		Options: []hugot.FeatureExtractionOption{
			pipelines.WithNormalization(),
		},
	})
	if err != nil {
		_ = s.Destroy()
		return fmt.Errorf("create feature extraction pipeline: %w", err)
	}

	session.hugot = s
	session.pipeline = pipeline
	session.ready = true
	return nil
}

func (h *LocalEmbedding) resolveModelPath() (string, error) {
	if diskPath, err := h.diskModelPath(); err == nil {
		return diskPath, nil
	}

	if !hasEmbeddedModel {
		return "", fmt.Errorf("%w: nothing in %s (run download-model or build with -tags embed_model)", ErrModelUnavailable, h.modelDir)
	}

	if err := os.MkdirAll(h.modelDir, 0o755); err != nil {
		return "", fmt.Errorf("create model directory: %w", err)
	}
	return extractEmbeddedModel(embeddedModelFS, h.modelDir)
}

func (h *LocalEmbedding) diskModelPath() (string, error) {
	entries, err := os.ReadDir(h.modelDir)
	if err != nil {
		return "", fmt.Errorf("read model directory %s: %w", h.modelDir, err)
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		candidate := filepath.Join(h.modelDir, entry.Name())
		if _, statErr := os.Stat(filepath.Join(candidate, tokenizerFile)); statErr == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: no subdirectory with %s in %s", ErrModelUnavailable, tokenizerFile, h.modelDir)
}

// extractEmbeddedModel copies the first model directory under models/ in
// embedded to targetDir and returns its path.
func extractEmbeddedModel(embedded fs.FS, targetDir string) (string, error) {
	modelsFS, err := fs.Sub(embedded, "models")
	if err != nil {
		return "", fmt.Errorf("access embedded models: %w", err)
	}

	entries, err := fs.ReadDir(modelsFS, ".")
	if err != nil {
		return "", fmt.Errorf("read embedded models: %w", err)
	}

	var modelSubdir string
	for _, entry := range entries {
		if entry.IsDir() {
			modelSubdir = entry.Name()
			break
		}
	}
	if modelSubdir == "" {
		return "", fmt.Errorf("%w: no model directory in embedded models", ErrModelUnavailable)
	}

	modelPath := filepath.Join(targetDir, modelSubdir)
	if _, statErr := os.Stat(filepath.Join(modelPath, tokenizerFile)); statErr == nil {
		return modelPath, nil
	}

	modelFS, err := fs.Sub(modelsFS, modelSubdir)
	if err != nil {
		return "", fmt.Errorf("access model subdirectory: %w", err)
	}

	err = fs.WalkDir(modelFS, ".", func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		target := filepath.Join(modelPath, path)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		data, readErr := fs.ReadFile(modelFS, path)
		if readErr != nil {
			return fmt.Errorf("read embedded file %s: %w", path, readErr)
		}
		return os.WriteFile(target, data, 0o644)
	})
	if err != nil {
		return "", fmt.Errorf("extract embedded model: %w", err)
	}

	return modelPath, nil
}

// Embed generates embeddings for the given texts with the local model.
// Large requests are run through the pipeline in chunks.
func (h *LocalEmbedding) Embed(ctx context.Context, req EmbeddingRequest) (EmbeddingResponse, error) {
	texts := req.Texts()
	if len(texts) == 0 {
		return NewEmbeddingResponse([][]float64{}, NewUsage(0, 0)), nil
	}

	if err := ctx.Err(); err != nil {
		return EmbeddingResponse{}, err
	}

	if err := h.initialize(); err != nil {
		return EmbeddingResponse{}, NewProviderError("embedding", 0, "initialize local model", err)
	}

	embeddings := make([][]float64, 0, len(texts))
	for start := 0; start < len(texts); start += hugotBatchMax {
		if err := ctx.Err(); err != nil {
			return EmbeddingResponse{}, err
		}
		end := min(start+hugotBatchMax, len(texts))

		vectors, err := runPipeline(texts[start:end])
		if err != nil {
			return EmbeddingResponse{}, NewProviderError("embedding", 0, "run embedding pipeline", err)
		}
		embeddings = append(embeddings, vectors...)
	}

	return NewEmbeddingResponse(embeddings, NewUsage(0, 0)), nil
}

func runPipeline(texts []string) ([][]float64, error) {
	session.mu.Lock()
	defer session.mu.Unlock()

	result, err := session.pipeline.RunPipeline(texts)
	if err != nil {
		return nil, err
	}

	vectors := make([][]float64, len(result.Embeddings))
	for i, vec32 := range result.Embeddings {
		vec := make([]float64, len(vec32))
		for j, v := range vec32 {
			vec[j] = float64(v)
		}
		vectors[i] = vec
	}
	return vectors, nil
}

// Close is a no-op. The ONNX session is process-global and lives until exit.
func (h *LocalEmbedding) Close() error {
	return nil
}

// DownloadModel fetches the built-in model from Hugging Face into dest and
// returns the model directory. An existing download is reused.
func DownloadModel(dest string) (string, error) {
	existing := NewLocalEmbedding(dest)
	if path, err := existing.diskModelPath(); err == nil {
		return path, nil
	}

	if err := os.MkdirAll(dest, 0o755); err != nil {
		return "", fmt.Errorf("create directory: %w", err)
	}

	opts := hugot.NewDownloadOptions()
	opts.OnnxFilePath = "onnx/model.onnx"
	path, err := hugot.DownloadModel(LocalModelRepository, dest, opts)
	if err != nil {
		return "", fmt.Errorf("download %s: %w", LocalModelRepository, err)
	}
	return path, nil
}

var _ Provider = (*LocalEmbedding)(nil)
