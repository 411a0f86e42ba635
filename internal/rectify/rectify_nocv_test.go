//go:build !gocv

package rectify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewCV_Unavailable(t *testing.T) {
	_, err := NewCV(DefaultConfig())
	assert.ErrorIs(t, err, ErrCVUnavailable)
}
