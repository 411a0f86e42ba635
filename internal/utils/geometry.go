package utils

import (
	"math"
	"sort"
)

// Point is a 2D coordinate in pixel space.
type Point struct {
	X float64
	Y float64
}

// Quad is a quadrilateral ordered top-left, top-right, bottom-right,
// bottom-left.
type Quad [4]Point

// Dist returns the Euclidean distance between a and b.
func Dist(a, b Point) float64 { return math.Hypot(a.X-b.X, a.Y-b.Y) }

// Size returns the width and height of the upright rectangle q maps to,
// taking the longer of each pair of opposite edges.
func (q Quad) Size() (int, int) {
	w := math.Max(Dist(q[0], q[1]), Dist(q[3], q[2]))
	h := math.Max(Dist(q[0], q[3]), Dist(q[1], q[2]))
	return int(math.Round(w)), int(math.Round(h))
}

// Scale multiplies every corner by sx, sy.
func (q Quad) Scale(sx, sy float64) Quad {
	for i := range q {
		q[i] = Point{X: q[i].X * sx, Y: q[i].Y * sy}
	}
	return q
}

// Expand grows q away from its centre by factor (>1 grows).
func (q Quad) Expand(factor float64) Quad {
	if factor <= 0 || factor == 1 {
		return q
	}
	var cx, cy float64
	for _, p := range q {
		cx += p.X
		cy += p.Y
	}
	cx /= 4
	cy /= 4
	for i, p := range q {
		q[i] = Point{X: cx + (p.X-cx)*factor, Y: cy + (p.Y-cy)*factor}
	}
	return q
}

// OrderCorners arranges four points as top-left, top-right, bottom-right,
// bottom-left using coordinate sums and differences.
func OrderCorners(pts [4]Point) Quad {
	var q Quad
	sums := func(p Point) float64 { return p.X + p.Y }
	diffs := func(p Point) float64 { return p.Y - p.X }
	tl, br, tr, bl := 0, 0, 0, 0
	for i, p := range pts {
		if sums(p) < sums(pts[tl]) {
			tl = i
		}
		if sums(p) > sums(pts[br]) {
			br = i
		}
		if diffs(p) < diffs(pts[tr]) {
			tr = i
		}
		if diffs(p) > diffs(pts[bl]) {
			bl = i
		}
	}
	q[0], q[1], q[2], q[3] = pts[tl], pts[tr], pts[br], pts[bl]
	return q
}

// ConvexHull returns the hull of pts in counter-clockwise order using the
// monotone chain algorithm.
func ConvexHull(pts []Point) []Point {
	p := append([]Point(nil), pts...)
	sort.Slice(p, func(i, j int) bool {
		if p[i].X != p[j].X {
			return p[i].X < p[j].X
		}
		return p[i].Y < p[j].Y
	})
	uniq := p[:0]
	for i, pt := range p {
		if i == 0 || pt != p[i-1] {
			uniq = append(uniq, pt)
		}
	}
	p = uniq
	if len(p) < 3 {
		return p
	}

	hull := make([]Point, 0, 2*len(p))
	for _, pt := range p {
		for len(hull) >= 2 && cross(hull[len(hull)-2], hull[len(hull)-1], pt) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, pt)
	}
	lower := len(hull) + 1
	for i := len(p) - 2; i >= 0; i-- {
		for len(hull) >= lower && cross(hull[len(hull)-2], hull[len(hull)-1], p[i]) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p[i])
	}
	return hull[:len(hull)-1]
}

func cross(o, a, b Point) float64 {
	return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
}

// MinAreaQuad returns the minimum-area rectangle enclosing pts with ordered
// corners. ok is false when pts has fewer than three distinct points or the
// points are collinear.
func MinAreaQuad(pts []Point) (Quad, bool) {
	hull := ConvexHull(pts)
	if len(hull) < 3 {
		return Quad{}, false
	}

	best := math.Inf(1)
	var rect [4]Point
	for i := range hull {
		a, b := hull[i], hull[(i+1)%len(hull)]
		l := Dist(a, b)
		if l == 0 {
			continue
		}
		u := Point{X: (b.X - a.X) / l, Y: (b.Y - a.Y) / l}
		v := Point{X: -u.Y, Y: u.X}

		minS, maxS := math.Inf(1), math.Inf(-1)
		minT, maxT := math.Inf(1), math.Inf(-1)
		for _, p := range hull {
			s := p.X*u.X + p.Y*u.Y
			t := p.X*v.X + p.Y*v.Y
			minS, maxS = math.Min(minS, s), math.Max(maxS, s)
			minT, maxT = math.Min(minT, t), math.Max(maxT, t)
		}
		area := (maxS - minS) * (maxT - minT)
		if area >= best {
			continue
		}
		best = area
		corner := func(s, t float64) Point {
			return Point{X: u.X*s + v.X*t, Y: u.Y*s + v.Y*t}
		}
		rect = [4]Point{corner(minS, minT), corner(maxS, minT), corner(maxS, maxT), corner(minS, maxT)}
	}
	if best == 0 || math.IsInf(best, 1) {
		return Quad{}, false
	}
	return OrderCorners(rect), true
}
