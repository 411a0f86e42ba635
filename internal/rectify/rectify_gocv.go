//go:build gocv

package rectify

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/MeKo-Tech/bibwatch/internal/utils"
)

// CVRectifier warps regions with OpenCV. Output sizes match Rectifier.
type CVRectifier struct {
	sizer *Rectifier
}

// NewCV creates an OpenCV-backed rectifier.
func NewCV(cfg Config) (*CVRectifier, error) {
	return &CVRectifier{sizer: New(cfg)}, nil
}

// Rectify maps q inside img onto an upright rectangle.
func (r *CVRectifier) Rectify(img image.Image, q utils.Quad) (image.Image, error) {
	q = q.Expand(r.sizer.cfg.Padding)
	w, h, err := r.sizer.OutputSize(q)
	if err != nil {
		return nil, err
	}

	src, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, fmt.Errorf("convert image: %w", err)
	}
	defer src.Close()

	from := gocv.NewPoint2fVectorFromPoints([]gocv.Point2f{
		{X: float32(q[0].X), Y: float32(q[0].Y)},
		{X: float32(q[1].X), Y: float32(q[1].Y)},
		{X: float32(q[2].X), Y: float32(q[2].Y)},
		{X: float32(q[3].X), Y: float32(q[3].Y)},
	})
	defer from.Close()
	to := gocv.NewPoint2fVectorFromPoints([]gocv.Point2f{
		{X: 0, Y: 0},
		{X: float32(w - 1), Y: 0},
		{X: float32(w - 1), Y: float32(h - 1)},
		{X: 0, Y: float32(h - 1)},
	})
	defer to.Close()

	m := gocv.GetPerspectiveTransform2f(from, to)
	defer m.Close()

	out := gocv.NewMat()
	defer out.Close()
	gocv.WarpPerspective(src, &out, m, image.Pt(w, h))

	res, err := out.ToImage()
	if err != nil {
		return nil, fmt.Errorf("convert warped region: %w", err)
	}
	return res, nil
}

// Close is a no-op.
func (r *CVRectifier) Close() error { return nil }
