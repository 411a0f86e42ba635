// Package rectify turns a detected quadrilateral into an upright image the
// text reader can consume.
package rectify

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/MeKo-Tech/bibwatch/internal/utils"
)

var (
	// ErrDegenerateQuad is returned for regions that do not span an area.
	ErrDegenerateQuad = errors.New("degenerate region")
	// ErrCVUnavailable is returned when the binary was built without OpenCV.
	ErrCVUnavailable = errors.New("rectify: built without gocv support (use -tags gocv)")
)

// Config controls the output of a Rectifier.
type Config struct {
	// Padding grows the region around its centre before warping (1 = none).
	Padding float64
	// MinHeight upscales short regions so glyphs stay legible.
	MinHeight int
	// MaxHeight caps tall regions.
	MaxHeight int
}

// DefaultConfig returns settings tuned for number cards.
func DefaultConfig() Config {
	return Config{Padding: 1.1, MinHeight: 48, MaxHeight: 256}
}

// Rectifier warps quadrilaterals with a perspective transform and bilinear
// sampling. It is safe for concurrent use.
type Rectifier struct {
	cfg Config
}

// New creates a Rectifier. Zero fields take their defaults.
func New(cfg Config) *Rectifier {
	def := DefaultConfig()
	if cfg.Padding <= 0 {
		cfg.Padding = def.Padding
	}
	if cfg.MinHeight <= 0 {
		cfg.MinHeight = def.MinHeight
	}
	if cfg.MaxHeight < cfg.MinHeight {
		cfg.MaxHeight = max(def.MaxHeight, cfg.MinHeight)
	}
	return &Rectifier{cfg: cfg}
}

// OutputSize returns the raster size a quad is warped to.
func (r *Rectifier) OutputSize(q utils.Quad) (int, int, error) {
	w, h := q.Size()
	if w < 2 || h < 2 {
		return 0, 0, fmt.Errorf("%w: %dx%d", ErrDegenerateQuad, w, h)
	}
	target := min(max(h, r.cfg.MinHeight), r.cfg.MaxHeight)
	scale := float64(target) / float64(h)
	return max(1, int(math.Round(float64(w)*scale))), target, nil
}

// Rectify maps q inside img onto an upright rectangle.
func (r *Rectifier) Rectify(img image.Image, q utils.Quad) (image.Image, error) {
	q = q.Expand(r.cfg.Padding)
	w, h, err := r.OutputSize(q)
	if err != nil {
		return nil, err
	}
	dst := utils.Quad{{X: 0, Y: 0}, {X: float64(w - 1), Y: 0}, {X: float64(w - 1), Y: float64(h - 1)}, {X: 0, Y: float64(h - 1)}}
	// Inverse mapping: every output pixel looks up its source position.
	hm, ok := solveHomography(dst, q)
	if !ok {
		return nil, fmt.Errorf("%w: no perspective transform", ErrDegenerateQuad)
	}
	return warp(img, hm, w, h), nil
}

func warp(src image.Image, hm homography, w, h int) *image.NRGBA {
	out := image.NewNRGBA(image.Rect(0, 0, w, h))
	b := src.Bounds()
	for y := range h {
		for x := range w {
			sx, sy, ok := hm.apply(float64(x), float64(y))
			if !ok {
				continue
			}
			out.SetNRGBA(x, y, sample(src, b, sx+float64(b.Min.X), sy+float64(b.Min.Y)))
		}
	}
	return out
}

// sample reads src at a fractional position. Outside the image it clamps to
// the nearest edge pixel.
func sample(src image.Image, b image.Rectangle, x, y float64) color.NRGBA {
	x = math.Min(math.Max(x, float64(b.Min.X)), float64(b.Max.X-1))
	y = math.Min(math.Max(y, float64(b.Min.Y)), float64(b.Max.Y-1))
	x0, y0 := int(x), int(y)
	x1, y1 := min(x0+1, b.Max.X-1), min(y0+1, b.Max.Y-1)
	fx, fy := x-float64(x0), y-float64(y0)

	c00 := channels(src.At(x0, y0))
	c10 := channels(src.At(x1, y0))
	c01 := channels(src.At(x0, y1))
	c11 := channels(src.At(x1, y1))
	var px [4]uint8
	for i := range px {
		top := c00[i] + (c10[i]-c00[i])*fx
		bot := c01[i] + (c11[i]-c01[i])*fx
		px[i] = uint8(math.Round(top + (bot-top)*fy))
	}
	return color.NRGBA{R: px[0], G: px[1], B: px[2], A: px[3]}
}

func channels(c color.Color) [4]float64 {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	return [4]float64{float64(n.R), float64(n.G), float64(n.B), float64(n.A)}
}
