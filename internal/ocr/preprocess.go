// Package ocr reads the digits on a rectified number card.
package ocr

import (
	"image"

	"github.com/anthonynsimon/bild/effect"
	"github.com/anthonynsimon/bild/segment"
	"github.com/disintegration/imaging"
	colorful "github.com/lucasb-eyer/go-colorful"
)

// PreprocessConfig controls how a region is prepared for recognition.
type PreprocessConfig struct {
	// MinHeight upscales short crops; Tesseract prefers glyphs of ~30px.
	MinHeight int
	// Binarize applies an Otsu threshold after grayscale conversion.
	Binarize bool
}

// DefaultPreprocessConfig returns the settings used by the reader.
func DefaultPreprocessConfig() PreprocessConfig {
	return PreprocessConfig{MinHeight: 64, Binarize: true}
}

// Preprocess converts img to dark text on a light background.
func Preprocess(img image.Image, cfg PreprocessConfig) *image.Gray {
	if cfg.MinHeight > 0 && img.Bounds().Dy() < cfg.MinHeight {
		img = imaging.Resize(img, 0, cfg.MinHeight, imaging.Lanczos)
	}
	if meanLightness(img) < 0.5 {
		img = imaging.Invert(img)
	}
	gray := effect.Grayscale(img)
	if !cfg.Binarize {
		return gray
	}
	return segment.Threshold(gray, otsuLevel(gray))
}

// meanLightness returns the average CIE L* of img scaled to 0..1, sampling
// on a coarse grid.
func meanLightness(img image.Image) float64 {
	b := img.Bounds()
	step := max(1, min(b.Dx(), b.Dy())/32)
	var sum float64
	n := 0
	for y := b.Min.Y; y < b.Max.Y; y += step {
		for x := b.Min.X; x < b.Max.X; x += step {
			c, ok := colorful.MakeColor(img.At(x, y))
			if !ok {
				continue
			}
			l, _, _ := c.Lab()
			sum += l
			n++
		}
	}
	if n == 0 {
		return 1
	}
	return sum / float64(n)
}

// otsuLevel picks the threshold that maximises between-class variance.
func otsuLevel(g *image.Gray) uint8 {
	var hist [256]int
	for _, v := range g.Pix {
		hist[v]++
	}
	total := len(g.Pix)
	if total == 0 {
		return 128
	}
	var sumAll float64
	for i, c := range hist {
		sumAll += float64(i * c)
	}

	var (
		sumB    float64
		wB      int
		best    float64
		bestLvl uint8 = 128
	)
	for t := range 256 {
		wB += hist[t]
		if wB == 0 {
			continue
		}
		wF := total - wB
		if wF == 0 {
			break
		}
		sumB += float64(t * hist[t])
		mB := sumB / float64(wB)
		mF := (sumAll - sumB) / float64(wF)
		between := float64(wB) * float64(wF) * (mB - mF) * (mB - mF)
		if between > best {
			best = between
			bestLvl = uint8(t + 1)
		}
	}
	return bestLvl
}
