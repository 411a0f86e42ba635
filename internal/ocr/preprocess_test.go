package ocr

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/MeKo-Tech/bibwatch/internal/testutil"
)

func TestPreprocess_DarkTextOnLight(t *testing.T) {
	cfg := testutil.DefaultBibConfig("518")
	img := testutil.BibImage(cfg).SubImage(cfg.Card).(*image.NRGBA)

	out := Preprocess(img, DefaultPreprocessConfig())
	assert.GreaterOrEqual(t, out.Bounds().Dy(), 64)

	// Corners of the card are background and must be white.
	assert.Equal(t, uint8(255), out.GrayAt(out.Bounds().Min.X, out.Bounds().Min.Y).Y)
	dark := 0
	for _, v := range out.Pix {
		if v == 0 {
			dark++
		}
	}
	assert.Positive(t, dark)
}

func TestPreprocess_InvertsLightTextOnDark(t *testing.T) {
	cfg := testutil.DefaultBibConfig("7")
	cfg.CardColor = color.Black
	cfg.Ink = color.White
	img := testutil.BibImage(cfg).SubImage(cfg.Card)

	out := Preprocess(img, PreprocessConfig{Binarize: true})
	b := out.Bounds()
	assert.Equal(t, uint8(255), out.GrayAt(b.Min.X, b.Min.Y).Y)
}

func TestOtsuLevel(t *testing.T) {
	g := image.NewGray(image.Rect(0, 0, 10, 1))
	for i := range 5 {
		g.Pix[i] = 20
	}
	for i := 5; i < 10; i++ {
		g.Pix[i] = 220
	}
	lvl := otsuLevel(g)
	assert.Greater(t, lvl, uint8(20))
	assert.LessOrEqual(t, lvl, uint8(220))
}

func TestMeanLightness(t *testing.T) {
	assert.Greater(t, meanLightness(testutil.Solid(8, 8, color.White)), 0.9)
	assert.Less(t, meanLightness(testutil.Solid(8, 8, color.Black)), 0.1)
}
