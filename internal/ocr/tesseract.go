//go:build tesseract

package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"

	"github.com/otiai10/gosseract/v2"
)

// Reader recognises text with Tesseract. A client is created per call
// because gosseract clients are not safe for concurrent use.
type Reader struct {
	cfg Config
}

// NewReader validates cfg by opening one client.
func NewReader(cfg Config) (*Reader, error) {
	r := &Reader{cfg: cfg}
	client, err := r.client()
	if err != nil {
		return nil, err
	}
	_ = client.Close()
	return r, nil
}

func (r *Reader) client() (*gosseract.Client, error) {
	client := gosseract.NewClient()
	if r.cfg.TessdataPrefix != "" {
		if err := client.SetTessdataPrefix(r.cfg.TessdataPrefix); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("set tessdata path: %w", err)
		}
	}
	if err := client.SetLanguage(r.cfg.Language); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("set language: %w", err)
	}
	if r.cfg.PageSegMode > 0 {
		if err := client.SetPageSegMode(gosseract.PageSegMode(r.cfg.PageSegMode)); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("set page segmentation mode: %w", err)
		}
	}
	if r.cfg.Whitelist != "" {
		if err := client.SetWhitelist(r.cfg.Whitelist); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("set whitelist: %w", err)
		}
	}
	return client, nil
}

// ReadText returns the raw text Tesseract finds in img.
func (r *Reader) ReadText(ctx context.Context, img image.Image) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, Preprocess(img, r.cfg.Preprocess)); err != nil {
		return "", fmt.Errorf("encode region: %w", err)
	}

	client, err := r.client()
	if err != nil {
		return "", err
	}
	defer func() { _ = client.Close() }()

	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return "", fmt.Errorf("set image: %w", err)
	}
	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("recognise text: %w", err)
	}
	return text, nil
}

// Close is a no-op; clients are released per call.
func (r *Reader) Close() error { return nil }
