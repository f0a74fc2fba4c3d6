package heatmap

import (
	"math"
	"sort"
)

type triangle struct {
	a, b, c int
	// circumcircle
	cx, cy, r2 float64
}

type edge struct{ a, b int }

func (e edge) key() edge {
	if e.a > e.b {
		return edge{e.b, e.a}
	}
	return e
}

// triangulate builds a Delaunay triangulation of the samples with the
// Bowyer-Watson algorithm. Collinear input yields no triangles.
func triangulate(samples []sample) []triangle {
	n := len(samples)
	if n < 3 {
		return nil
	}

	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, s := range samples {
		minX, maxX = math.Min(minX, s.x), math.Max(maxX, s.x)
		minY, maxY = math.Min(minY, s.y), math.Max(maxY, s.y)
	}
	span := math.Max(maxX-minX, maxY-minY)
	if span == 0 {
		return nil
	}
	midX, midY := (minX+maxX)/2, (minY+maxY)/2

	// Vertices n..n+2 form a super-triangle enclosing every sample.
	pts := make([]sample, n, n+3)
	copy(pts, samples)
	pts = append(pts,
		sample{x: midX - 20*span, y: midY - span},
		sample{x: midX, y: midY + 20*span},
		sample{x: midX + 20*span, y: midY - span},
	)

	tris := []triangle{newTriangle(pts, n, n+1, n+2)}
	for i := 0; i < n; i++ {
		p := pts[i]

		var bad []triangle
		keep := tris[:0:0]
		for _, t := range tris {
			dx, dy := p.x-t.cx, p.y-t.cy
			if dx*dx+dy*dy <= t.r2 {
				bad = append(bad, t)
			} else {
				keep = append(keep, t)
			}
		}

		count := make(map[edge]int, len(bad)*3)
		var order []edge
		for _, t := range bad {
			for _, e := range []edge{{t.a, t.b}, {t.b, t.c}, {t.c, t.a}} {
				k := e.key()
				if count[k] == 0 {
					order = append(order, k)
				}
				count[k]++
			}
		}
		for _, e := range order {
			if count[e] == 1 {
				keep = append(keep, newTriangle(pts, e.a, e.b, i))
			}
		}
		tris = keep
	}

	out := tris[:0]
	for _, t := range tris {
		if t.a >= n || t.b >= n || t.c >= n {
			continue
		}
		if math.Abs(area2(pts[t.a], pts[t.b], pts[t.c])) < 1e-9 {
			continue
		}
		out = append(out, t)
	}
	return out
}

func newTriangle(pts []sample, a, b, c int) triangle {
	pa, pb, pc := pts[a], pts[b], pts[c]
	d := 2 * (pa.x*(pb.y-pc.y) + pb.x*(pc.y-pa.y) + pc.x*(pa.y-pb.y))
	if math.Abs(d) < 1e-12 {
		// Degenerate: make it swallow the next insertion so it gets replaced.
		return triangle{a: a, b: b, c: c, r2: math.Inf(1)}
	}
	aa := pa.x*pa.x + pa.y*pa.y
	bb := pb.x*pb.x + pb.y*pb.y
	cc := pc.x*pc.x + pc.y*pc.y
	cx := (aa*(pb.y-pc.y) + bb*(pc.y-pa.y) + cc*(pa.y-pb.y)) / d
	cy := (aa*(pc.x-pb.x) + bb*(pa.x-pc.x) + cc*(pb.x-pa.x)) / d
	dx, dy := pa.x-cx, pa.y-cy
	return triangle{a: a, b: b, c: c, cx: cx, cy: cy, r2: dx*dx + dy*dy}
}

// area2 is twice the signed area of triangle abc.
func area2(a, b, c sample) float64 {
	return (b.x-a.x)*(c.y-a.y) - (b.y-a.y)*(c.x-a.x)
}

// convexHull returns the hull vertices in counter-clockwise order
// (Andrew's monotone chain).
func convexHull(samples []sample) []sample {
	pts := make([]sample, len(samples))
	copy(pts, samples)
	sort.Slice(pts, func(i, j int) bool {
		if pts[i].x != pts[j].x {
			return pts[i].x < pts[j].x
		}
		return pts[i].y < pts[j].y
	})
	if len(pts) < 3 {
		return pts
	}

	hull := make([]sample, 0, 2*len(pts))
	for _, p := range pts {
		for len(hull) >= 2 && area2(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	lower := len(hull) + 1
	for i := len(pts) - 2; i >= 0; i-- {
		p := pts[i]
		for len(hull) >= lower && area2(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	return hull[:len(hull)-1]
}

func insideHull(hull []sample, x, y float64) bool {
	q := sample{x: x, y: y}
	for i := range hull {
		if area2(hull[i], hull[(i+1)%len(hull)], q) < -1e-9 {
			return false
		}
	}
	return true
}
