package rectify

import (
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/bibwatch/internal/utils"
)

func TestSolveHomography_Identity(t *testing.T) {
	q := utils.Quad{{X: 0, Y: 0}, {X: 100, Y: 0}, {X: 100, Y: 50}, {X: 0, Y: 50}}
	h, ok := solveHomography(q, q)
	require.True(t, ok)
	for i, want := range []float64{1, 0, 0, 0, 1, 0, 0, 0, 1} {
		assert.InDelta(t, want, h[i], 1e-9, "h[%d]", i)
	}
}

func TestSolveHomography_MapsCorners(t *testing.T) {
	src := utils.Quad{{X: 0, Y: 0}, {X: 99, Y: 0}, {X: 99, Y: 49}, {X: 0, Y: 49}}
	dst := utils.Quad{{X: 10, Y: 20}, {X: 120, Y: 15}, {X: 130, Y: 80}, {X: 5, Y: 70}}
	h, ok := solveHomography(src, dst)
	require.True(t, ok)
	for i := range src {
		x, y, ok := h.apply(src[i].X, src[i].Y)
		require.True(t, ok)
		assert.InDelta(t, dst[i].X, x, 1e-6)
		assert.InDelta(t, dst[i].Y, y, 1e-6)
	}
}

func TestSolveHomography_Degenerate(t *testing.T) {
	src := utils.Quad{{X: 0, Y: 0}, {X: 1, Y: 1}, {X: 2, Y: 2}, {X: 3, Y: 3}}
	_, ok := solveHomography(src, src)
	assert.False(t, ok)
}

func TestOutputSize(t *testing.T) {
	r := New(Config{Padding: 1, MinHeight: 48, MaxHeight: 96})

	w, h, err := r.OutputSize(utils.Quad{{X: 0, Y: 0}, {X: 120, Y: 0}, {X: 120, Y: 24}, {X: 0, Y: 24}})
	require.NoError(t, err)
	assert.Equal(t, 48, h)
	assert.Equal(t, 240, w)

	w, h, err = r.OutputSize(utils.Quad{{X: 0, Y: 0}, {X: 400, Y: 0}, {X: 400, Y: 200}, {X: 0, Y: 200}})
	require.NoError(t, err)
	assert.Equal(t, 96, h)
	assert.Equal(t, 192, w)

	_, _, err = r.OutputSize(utils.Quad{})
	assert.ErrorIs(t, err, ErrDegenerateQuad)
}

func TestRectify_AxisAlignedCrop(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 200, 100))
	for y := range 100 {
		for x := range 200 {
			c := color.NRGBA{A: 255}
			if x >= 50 && x < 150 && y >= 25 && y < 75 {
				c = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
			}
			src.SetNRGBA(x, y, c)
		}
	}

	r := New(Config{Padding: 1, MinHeight: 10, MaxHeight: 100})
	q := utils.Quad{{X: 50, Y: 25}, {X: 149, Y: 25}, {X: 149, Y: 74}, {X: 50, Y: 74}}
	out, err := r.Rectify(src, q)
	require.NoError(t, err)

	b := out.Bounds()
	assert.Equal(t, 99, b.Dx())
	assert.Equal(t, 49, b.Dy())
	for _, p := range []image.Point{{0, 0}, {b.Dx() / 2, b.Dy() / 2}, {b.Dx() - 1, b.Dy() - 1}} {
		r, _, _, _ := out.At(p.X, p.Y).RGBA()
		assert.Equal(t, uint32(0xffff), r, "pixel %v", p)
	}
}

func TestRectify_RotatedRegionIsUpright(t *testing.T) {
	// A 60x20 white bar rotated by 90 degrees: tall in the source.
	src := image.NewNRGBA(image.Rect(0, 0, 100, 100))
	for y := 20; y < 80; y++ {
		for x := 40; x < 60; x++ {
			src.SetNRGBA(x, y, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
		}
	}
	// Corners listed so that the long side becomes the top edge.
	q := utils.Quad{{X: 40, Y: 79}, {X: 40, Y: 20}, {X: 59, Y: 20}, {X: 59, Y: 79}}
	out, err := New(Config{Padding: 1, MinHeight: 10, MaxHeight: 100}).Rectify(src, q)
	require.NoError(t, err)
	assert.Greater(t, out.Bounds().Dx(), out.Bounds().Dy())
	assert.Less(t, math.Abs(float64(out.Bounds().Dy()-19)), 1.0)
}
