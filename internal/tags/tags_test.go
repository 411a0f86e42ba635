package tags

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRange(t *testing.T) {
	r := NewRange(DefaultMin, DefaultMax)
	tests := []struct {
		n    int
		want bool
	}{
		{0, false},
		{1, true},
		{518, true},
		{998, true},
		{999, false},
		{-5, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, r.Known(tt.n), "n=%d", tt.n)
	}
	assert.Equal(t, 998, r.Len())
}

func writeRegistry(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "tags.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoadFile(t *testing.T) {
	p := writeRegistry(t, "tags: [7, 42, 150]\nranges:\n  - {from: 100, to: 199}\n")
	r, err := LoadFile(p)
	require.NoError(t, err)

	assert.True(t, r.Known(7))
	assert.True(t, r.Known(42))
	assert.True(t, r.Known(100))
	assert.True(t, r.Known(199))
	assert.False(t, r.Known(8))
	assert.False(t, r.Known(200))
	// 150 is listed and inside the range; counted once.
	assert.Equal(t, 102, r.Len())
}

func TestLoadFile_Errors(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = LoadFile(writeRegistry(t, "tags: []\n"))
	assert.ErrorIs(t, err, ErrEmptyRegistry)

	_, err = LoadFile(writeRegistry(t, "ranges:\n  - {from: 10, to: 1}\n"))
	assert.ErrorContains(t, err, "invalid range")

	_, err = LoadFile(writeRegistry(t, "tags: [1, -2]\n"))
	assert.ErrorContains(t, err, "negative")

	_, err = LoadFile(writeRegistry(t, "tags: {oops\n"))
	assert.ErrorContains(t, err, "parse tag registry")
}
