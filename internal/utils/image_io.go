package utils

import (
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"slices"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// SupportedImageExtensions lists the file extensions the detector accepts.
var SupportedImageExtensions = []string{".jpg", ".jpeg", ".png", ".tif", ".tiff", ".bmp", ".dib", ".webp"}

// ErrUnsupportedFormat is returned for paths outside the allow-list.
var ErrUnsupportedFormat = errors.New("unsupported image format")

// ImageProcessingError records which step failed for an image.
type ImageProcessingError struct {
	Operation string
	Path      string
	Err       error
}

func (e *ImageProcessingError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("image %s: %v", e.Operation, e.Err)
	}
	return fmt.Sprintf("image %s %s: %v", e.Operation, e.Path, e.Err)
}

func (e *ImageProcessingError) Unwrap() error { return e.Err }

// IsSupportedImage reports whether the path has an allowed extension.
func IsSupportedImage(path string) bool {
	return slices.Contains(SupportedImageExtensions, strings.ToLower(filepath.Ext(path)))
}

// LoadImage opens and decodes an image file.
func LoadImage(path string) (image.Image, error) {
	if !IsSupportedImage(path) {
		return nil, &ImageProcessingError{Operation: "load", Path: path,
			Err: fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))}
	}
	f, err := os.Open(path) //nolint:gosec // G304: image paths come from the watched directory
	if err != nil {
		return nil, &ImageProcessingError{Operation: "load", Path: path, Err: err}
	}
	defer func() { _ = f.Close() }()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, &ImageProcessingError{Operation: "decode", Path: path, Err: err}
	}
	return img, nil
}

// ListImages returns the supported images directly inside dir, sorted by name.
func ListImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		p := filepath.Join(dir, e.Name())
		if IsSupportedImage(p) {
			out = append(out, p)
		}
	}
	return out, nil
}
