package utils

import (
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsSupportedImage(t *testing.T) {
	for _, p := range []string{"a.jpg", "a.JPEG", "b.png", "c.tif", "c.TIFF", "d.bmp", "e.dib", "f.webp"} {
		assert.True(t, IsSupportedImage(p), p)
	}
	for _, p := range []string{"a.gif", "notes.txt", "noext", "a.jpg.part"} {
		assert.False(t, IsSupportedImage(p), p)
	}
}

func writePNG(t *testing.T, path string) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 3))
	img.Set(1, 1, color.White)
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
}

func TestLoadImage(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "ok.png")
	writePNG(t, good)

	img, err := LoadImage(good)
	require.NoError(t, err)
	assert.Equal(t, 4, img.Bounds().Dx())

	_, err = LoadImage(filepath.Join(dir, "anim.gif"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	broken := filepath.Join(dir, "broken.jpg")
	require.NoError(t, os.WriteFile(broken, []byte("not a jpeg"), 0o600))
	_, err = LoadImage(broken)
	var ipe *ImageProcessingError
	require.True(t, errors.As(err, &ipe))
	assert.Equal(t, "decode", ipe.Operation)
	assert.NotErrorIs(t, err, ErrUnsupportedFormat)
}

func TestListImages(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "b.png"))
	writePNG(t, filepath.Join(dir, "a.png"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.txt"), nil, 0o600))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.png"), 0o755))

	got, err := ListImages(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.png"), filepath.Join(dir, "b.png")}, got)
}
