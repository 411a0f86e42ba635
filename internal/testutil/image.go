// Package testutil builds synthetic race photos for tests.
package testutil

import (
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// BibConfig describes a synthetic photo with one number card on it.
type BibConfig struct {
	Number     string
	Width      int
	Height     int
	Card       image.Rectangle
	Background color.Color
	CardColor  color.Color
	Ink        color.Color
	// Rotation tilts the whole photo in degrees, counter-clockwise.
	Rotation float64
}

// DefaultBibConfig returns a 320x240 photo with a white card in the middle.
func DefaultBibConfig(number string) BibConfig {
	return BibConfig{
		Number:     number,
		Width:      320,
		Height:     240,
		Card:       image.Rect(100, 90, 220, 150),
		Background: color.RGBA{R: 40, G: 90, B: 40, A: 255},
		CardColor:  color.White,
		Ink:        color.Black,
	}
}

// BibImage renders cfg.
func BibImage(cfg BibConfig) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, cfg.Width, cfg.Height))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: cfg.Background}, image.Point{}, draw.Src)
	draw.Draw(img, cfg.Card, &image.Uniform{C: cfg.CardColor}, image.Point{}, draw.Src)

	face := basicfont.Face7x13
	d := &font.Drawer{Dst: img, Src: &image.Uniform{C: cfg.Ink}, Face: face}
	tw := font.MeasureString(face, cfg.Number).Ceil()
	th := face.Metrics().Height.Ceil()
	x := cfg.Card.Min.X + (cfg.Card.Dx()-tw)/2
	y := cfg.Card.Min.Y + (cfg.Card.Dy()+th)/2
	d.Dot = fixed.P(x, y)
	d.DrawString(cfg.Number)

	if cfg.Rotation != 0 {
		return imaging.Rotate(img, cfg.Rotation, cfg.Background)
	}
	return img
}

// WriteImage encodes img to path, choosing JPEG or PNG from the extension.
func WriteImage(t *testing.T, img image.Image, path string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	f, err := os.Create(path) //nolint:gosec // G304: test output path
	require.NoError(t, err)
	defer func() { require.NoError(t, f.Close()) }()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		require.NoError(t, jpeg.Encode(f, img, &jpeg.Options{Quality: 90}))
	default:
		require.NoError(t, png.Encode(f, img))
	}
	return path
}

// WriteBibPhoto renders a default photo for number into dir/name.
func WriteBibPhoto(t *testing.T, dir, name, number string) string {
	t.Helper()
	return WriteImage(t, BibImage(DefaultBibConfig(number)), filepath.Join(dir, name))
}

// Solid returns a uniformly coloured image.
func Solid(w, h int, c color.Color) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: c}, image.Point{}, draw.Src)
	return img
}
