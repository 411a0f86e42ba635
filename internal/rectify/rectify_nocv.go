//go:build !gocv

package rectify

import (
	"image"

	"github.com/MeKo-Tech/bibwatch/internal/utils"
)

// CVRectifier is unavailable in this build.
type CVRectifier struct{}

// NewCV always fails without the gocv build tag.
func NewCV(Config) (*CVRectifier, error) { return nil, ErrCVUnavailable }

func (r *CVRectifier) Rectify(image.Image, utils.Quad) (image.Image, error) {
	return nil, ErrCVUnavailable
}

func (r *CVRectifier) Close() error { return nil }
