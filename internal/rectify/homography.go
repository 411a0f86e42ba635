package rectify

import (
	"math"

	"github.com/MeKo-Tech/bibwatch/internal/utils"
)

// homography is a row-major 3x3 projective transform with h[8] fixed at 1.
type homography [9]float64

// solveHomography returns the transform mapping src[i] onto dst[i]. ok is
// false for degenerate point sets.
func solveHomography(src, dst utils.Quad) (homography, bool) {
	// Eight equations in the unknowns h0..h7, augmented with the right-hand side.
	var m [8][9]float64
	for i := range 4 {
		X, Y := src[i].X, src[i].Y
		x, y := dst[i].X, dst[i].Y
		m[2*i] = [9]float64{X, Y, 1, 0, 0, 0, -X * x, -Y * x, x}
		m[2*i+1] = [9]float64{0, 0, 0, X, Y, 1, -X * y, -Y * y, y}
	}

	for col := range 8 {
		pivot := col
		for r := col + 1; r < 8; r++ {
			if math.Abs(m[r][col]) > math.Abs(m[pivot][col]) {
				pivot = r
			}
		}
		if math.Abs(m[pivot][col]) < 1e-12 {
			return homography{}, false
		}
		m[col], m[pivot] = m[pivot], m[col]

		div := m[col][col]
		for c := col; c < 9; c++ {
			m[col][c] /= div
		}
		for r := range 8 {
			if r == col || m[r][col] == 0 {
				continue
			}
			f := m[r][col]
			for c := col; c < 9; c++ {
				m[r][c] -= f * m[col][c]
			}
		}
	}

	var h homography
	for i := range 8 {
		h[i] = m[i][8]
	}
	h[8] = 1
	return h, true
}

// apply maps (x, y). ok is false when the point maps to infinity.
func (h homography) apply(x, y float64) (float64, float64, bool) {
	w := h[6]*x + h[7]*y + h[8]
	if w == 0 {
		return 0, 0, false
	}
	return (h[0]*x + h[1]*y + h[2]) / w, (h[3]*x + h[4]*y + h[5]) / w, true
}
