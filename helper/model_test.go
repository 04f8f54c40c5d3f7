package helper

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func useTestModelDir(t *testing.T) {
	original := ModelDir
	ModelDir = filepath.Join(t.TempDir(), "models")
	t.Cleanup(func() { ModelDir = original })
}

func TestPrepareModel(t *testing.T) {
	t.Run("Valid call PrepareModel returns a cached model", func(t *testing.T) {
		useTestModelDir(t)
		cached := filepath.Join(ModelDir, "acme_tiny-embedder")
		require.NoError(t, os.MkdirAll(cached, 0750), "Expected cache directory to be created")

		path, err := PrepareModel("acme/tiny-embedder", "onnx/model.onnx")
		assert.NoError(t, err, "Expected PrepareModel to not return an error for a cached model")
		assert.Equal(t, cached, path, "Expected the cached path with the slash replaced")
	})

	t.Run("Valid call PrepareModel with a name without owner", func(t *testing.T) {
		useTestModelDir(t)
		cached := filepath.Join(ModelDir, "embedder")
		require.NoError(t, os.MkdirAll(cached, 0750), "Expected cache directory to be created")

		path, err := PrepareModel("embedder", "")
		assert.NoError(t, err, "Expected PrepareModel to not return an error for a cached model")
		assert.Equal(t, cached, path, "Expected the model name as directory")
	})

	t.Run("Invalid call PrepareModel with a file blocking the model directory", func(t *testing.T) {
		useTestModelDir(t)
		require.NoError(t, os.WriteFile(filepath.Dir(ModelDir)+"/models", []byte("x"), 0600), "Expected blocking file to be written")

		_, err := PrepareModel("acme/missing", "")
		assert.Error(t, err, "Expected PrepareModel to fail when the model directory cannot be created")
	})

	t.Run("Valid call PrepareModel downloads a missing model", func(t *testing.T) {
		if testing.Short() {
			t.Skip("skipping model download in short mode")
		}
		useTestModelDir(t)

		path, err := PrepareModel("sentence-transformers/all-MiniLM-L6-v2", "onnx/model.onnx")
		if err != nil {
			// Download depends on network access
			assert.Contains(t, err.Error(), "failed to download model", "Expected a download error")
			return
		}
		assert.DirExists(t, path, "Expected the downloaded model directory")
	})
}
