package textdetect

import (
	"github.com/MeKo-Tech/bibwatch/internal/mempool"
	"github.com/MeKo-Tech/bibwatch/internal/utils"
)

type component struct {
	pixels []utils.Point
	sum    float64
}

func (c component) score() float64 {
	if len(c.pixels) == 0 {
		return 0
	}
	return c.sum / float64(len(c.pixels))
}

// components labels 4-connected pixels at or above threshold.
func components(prob []float32, w, h int, threshold float32) []component {
	visited := mempool.Bool.GetZeroed(w * h)
	defer mempool.Bool.Put(visited)
	var out []component
	queue := make([]int, 0, 64)

	for start := range prob {
		if visited[start] || prob[start] < threshold {
			continue
		}
		var c component
		visited[start] = true
		queue = append(queue[:0], start)
		for len(queue) > 0 {
			i := queue[0]
			queue = queue[1:]
			x, y := i%w, i/w
			c.pixels = append(c.pixels, utils.Point{X: float64(x), Y: float64(y)})
			c.sum += float64(prob[i])

			for _, n := range [4][2]int{{x + 1, y}, {x - 1, y}, {x, y + 1}, {x, y - 1}} {
				nx, ny := n[0], n[1]
				if nx < 0 || ny < 0 || nx >= w || ny >= h {
					continue
				}
				ni := ny*w + nx
				if !visited[ni] && prob[ni] >= threshold {
					visited[ni] = true
					queue = append(queue, ni)
				}
			}
		}
		out = append(out, c)
	}
	return out
}

// Regions turns a w x h probability map into ordered quadrilaterals in map
// coordinates.
func Regions(prob []float32, w, h int, cfg Config) []utils.Quad {
	if len(prob) < w*h || w == 0 || h == 0 {
		return nil
	}
	var quads []utils.Quad
	for _, c := range components(prob[:w*h], w, h, cfg.Threshold) {
		if len(c.pixels) < cfg.MinArea || c.score() < cfg.BoxThreshold {
			continue
		}
		q, ok := utils.MinAreaQuad(c.pixels)
		if !ok {
			continue
		}
		quads = append(quads, q.Expand(cfg.Unclip))
	}
	return quads
}
