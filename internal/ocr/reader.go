package ocr

import (
	"errors"
)

// ErrUnavailable is returned when the binary has no OCR engine.
var ErrUnavailable = errors.New("ocr: built without tesseract support (use -tags tesseract)")

// Config configures the Tesseract reader.
type Config struct {
	Language       string
	TessdataPrefix string
	// PageSegMode is a Tesseract PSM value; 7 treats the crop as one line.
	PageSegMode int
	Whitelist   string
	Preprocess  PreprocessConfig
}

// DefaultConfig reads a single line of digits.
func DefaultConfig() Config {
	return Config{
		Language:    "eng",
		PageSegMode: 7,
		Whitelist:   "0123456789",
		Preprocess:  DefaultPreprocessConfig(),
	}
}
