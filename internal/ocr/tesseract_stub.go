//go:build !tesseract

package ocr

import (
	"context"
	"image"
)

// Reader is unavailable without the tesseract build tag.
type Reader struct{}

// NewReader always fails in this build.
func NewReader(Config) (*Reader, error) { return nil, ErrUnavailable }

func (r *Reader) ReadText(context.Context, image.Image) (string, error) {
	return "", ErrUnavailable
}

func (r *Reader) Close() error { return nil }
