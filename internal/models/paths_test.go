package models

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetModelsDir(t *testing.T) {
	t.Setenv(EnvModelsDir, "/env/path")
	assert.Equal(t, "/explicit/path", GetModelsDir("/explicit/path"))
	assert.Equal(t, "/env/path", GetModelsDir(""))

	t.Setenv(EnvModelsDir, "")
	root, err := findProjectRoot()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, DefaultModelsDir), GetModelsDir(""))
}

func TestFindProjectRoot(t *testing.T) {
	root, err := findProjectRoot()
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(root, "go.mod"))
	assert.NoError(t, err)
}

func writeModel(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("onnx"), 0o600))
}

func TestResolveModelPath(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(EnvModelsDir, dir)

	t.Run("existing path is kept", func(t *testing.T) {
		p := filepath.Join(t.TempDir(), "mine.onnx")
		writeModel(t, p)
		assert.Equal(t, p, ResolveModelPath(p))
	})

	t.Run("flat layout", func(t *testing.T) {
		writeModel(t, filepath.Join(dir, "flat.onnx"))
		assert.Equal(t, filepath.Join(dir, "flat.onnx"), ResolveModelPath("models/flat.onnx"))
	})

	t.Run("detection subdirectory wins", func(t *testing.T) {
		writeModel(t, filepath.Join(dir, DetectionModel))
		writeModel(t, filepath.Join(dir, TypeDetection, DetectionModel))
		assert.Equal(t, filepath.Join(dir, TypeDetection, DetectionModel), ResolveModelPath("models/"+DetectionModel))
	})

	t.Run("unknown stays unchanged", func(t *testing.T) {
		assert.Equal(t, "models/missing.onnx", ResolveModelPath("models/missing.onnx"))
		assert.Equal(t, "/abs/missing.onnx", ResolveModelPath("/abs/missing.onnx"))
		assert.Empty(t, ResolveModelPath(""))
	})
}

func TestValidateModelExists(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "m.onnx")
	writeModel(t, p)

	assert.NoError(t, ValidateModelExists(p))

	err := ValidateModelExists(filepath.Join(dir, "none.onnx"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model file not found")

	err = ValidateModelExists(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "directory")
}
