package textdetect

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RequiresModel(t *testing.T) {
	_, err := New(Config{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "path is empty")

	cfg := DefaultConfig()
	cfg.ModelPath = filepath.Join(t.TempDir(), "det.onnx")
	_, err = New(cfg, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model file not found")
}
