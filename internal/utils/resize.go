package utils

import (
	"errors"
	"image"
	"math"

	"github.com/disintegration/imaging"
)

// FitMultipleOf32 scales img down so its longer side is at most maxSide and
// both dimensions are multiples of 32, as the detection model requires.
// It returns the resized image and the factors that map resized coordinates
// back to the original.
func FitMultipleOf32(img image.Image, maxSide int) (image.Image, float64, float64, error) {
	if img == nil {
		return nil, 0, 0, &ImageProcessingError{Operation: "resize", Err: errors.New("nil image")}
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return nil, 0, 0, &ImageProcessingError{Operation: "resize", Err: errors.New("empty image")}
	}

	scale := 1.0
	if maxSide > 0 && max(w, h) > maxSide {
		scale = float64(maxSide) / float64(max(w, h))
	}
	nw := max(32, int(math.Round(float64(w)*scale/32))*32)
	nh := max(32, int(math.Round(float64(h)*scale/32))*32)

	resized := imaging.Resize(img, nw, nh, imaging.Linear)
	return resized, float64(w) / float64(nw), float64(h) / float64(nh), nil
}

// ImageNet mean and standard deviation used by DB-style text detectors.
var (
	normMean = [3]float32{0.485, 0.456, 0.406}
	normStd  = [3]float32{0.229, 0.224, 0.225}
)

// NormalizeCHW converts img to a float32 tensor laid out channel-first
// (RGB planes) with mean/std normalisation.
func NormalizeCHW(img image.Image) ([]float32, int, int) {
	return NormalizeCHWInto(img, nil)
}

// NormalizeCHWInto is NormalizeCHW writing into dst when it is large enough.
func NormalizeCHWInto(img image.Image, dst []float32) ([]float32, int, int) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	plane := w * h
	out := dst
	if cap(out) < 3*plane {
		out = make([]float32, 3*plane)
	}
	out = out[:3*plane]
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			i := y*w + x
			out[i] = (float32(r>>8)/255 - normMean[0]) / normStd[0]
			out[plane+i] = (float32(g>>8)/255 - normMean[1]) / normStd[1]
			out[2*plane+i] = (float32(bl>>8)/255 - normMean[2]) / normStd[2]
		}
	}
	return out, w, h
}
