package provider

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"
)

func TestLocalEmbedding_Embed(t *testing.T) {
	if !hasEmbeddedModel {
		t.Skip("skipping: requires -tags embed_model")
	}

	emb := NewLocalEmbedding(t.TempDir())
	defer func() { require.NoError(t, emb.Close()) }()

	texts := make([]string, 20)
	for i := range texts {
		texts[i] = "Hey Jude"
	}
	resp, err := emb.Embed(context.Background(), NewEmbeddingRequest(texts))
	require.NoError(t, err)

	embeddings := resp.Embeddings()
	require.Len(t, embeddings, 20)
	for _, vec := range embeddings {
		require.Len(t, vec, LocalModelDimension)
		var norm float64
		for _, v := range vec {
			norm += v * v
		}
		require.InDelta(t, 1.0, math.Sqrt(norm), 1e-3, "vectors are L2 normalised")
	}
}

func TestLocalEmbedding_EmbedEmpty(t *testing.T) {
	emb := NewLocalEmbedding(t.TempDir())

	resp, err := emb.Embed(context.Background(), NewEmbeddingRequest(nil))
	require.NoError(t, err)
	require.Empty(t, resp.Embeddings())
}

func TestLocalEmbedding_MissingModel(t *testing.T) {
	if hasEmbeddedModel {
		t.Skip("embedded model is always available")
	}

	emb := NewLocalEmbedding(t.TempDir())
	require.False(t, emb.Available())

	_, err := emb.Embed(context.Background(), NewEmbeddingRequest([]string{"Help!"}))
	require.ErrorIs(t, err, ErrModelUnavailable)
}

func TestLocalEmbedding_CancelledContext(t *testing.T) {
	emb := NewLocalEmbedding(t.TempDir())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := emb.Embed(ctx, NewEmbeddingRequest([]string{"Help!"}))
	require.ErrorIs(t, err, context.Canceled)
}

func TestExtractEmbeddedModel(t *testing.T) {
	fakeFS := fstest.MapFS{
		"models/Supabase_gte-small/tokenizer.json":  {Data: []byte(`{"test": true}`)},
		"models/Supabase_gte-small/config.json":     {Data: []byte(`{"hidden_size": 384}`)},
		"models/Supabase_gte-small/onnx/model.onnx": {Data: []byte("fake-onnx-data")},
	}

	targetDir := t.TempDir()
	modelPath, err := extractEmbeddedModel(fakeFS, targetDir)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(targetDir, "Supabase_gte-small"), modelPath)

	data, err := os.ReadFile(filepath.Join(modelPath, "onnx", "model.onnx"))
	require.NoError(t, err)
	require.Equal(t, "fake-onnx-data", string(data))

	again, err := extractEmbeddedModel(fakeFS, targetDir)
	require.NoError(t, err)
	require.Equal(t, modelPath, again)
}

func TestExtractEmbeddedModel_NoModelDir(t *testing.T) {
	emptyFS := fstest.MapFS{
		"models/.gitkeep": {Data: []byte("")},
	}

	_, err := extractEmbeddedModel(emptyFS, t.TempDir())
	require.ErrorIs(t, err, ErrModelUnavailable)
}

func TestLocalEmbedding_DiskModelPath(t *testing.T) {
	modelDir := t.TempDir()
	emb := NewLocalEmbedding(modelDir)

	_, err := emb.diskModelPath()
	require.Error(t, err)

	// files and directories without a tokenizer are skipped
	require.NoError(t, os.WriteFile(filepath.Join(modelDir, "README.md"), []byte("readme"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(modelDir, "partial"), 0o755))
	_, err = emb.diskModelPath()
	require.Error(t, err)

	subdir := filepath.Join(modelDir, "gte-small")
	require.NoError(t, os.MkdirAll(subdir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(subdir, tokenizerFile), []byte(`{}`), 0o644))

	got, err := emb.diskModelPath()
	require.NoError(t, err)
	require.Equal(t, subdir, got)
	require.True(t, emb.Available())
}

func TestDownloadModel_ReusesExisting(t *testing.T) {
	dest := t.TempDir()
	subdir := filepath.Join(dest, "Supabase_gte-small")
	require.NoError(t, os.MkdirAll(subdir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(subdir, tokenizerFile), []byte(`{}`), 0o644))

	got, err := DownloadModel(dest)
	require.NoError(t, err)
	require.Equal(t, subdir, got)
}
