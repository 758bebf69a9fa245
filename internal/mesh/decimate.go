package mesh

import (
	"container/heap"
	"math"
)

// quadric is a symmetric 4x4 error matrix stored as its upper triangle:
// [a11 a12 a13 a14 a22 a23 a24 a33 a34 a44].
type quadric [10]float64

func (q *quadric) add(o *quadric) {
	for i := range q {
		q[i] += o[i]
	}
}

// planeQuadric builds the fundamental error quadric of plane ax+by+cz+d=0.
func planeQuadric(a, b, c, d float64) quadric {
	return quadric{
		a * a, a * b, a * c, a * d,
		b * b, b * c, b * d,
		c * c, c * d,
		d * d,
	}
}

// eval computes v^T Q v for v=(x,y,z,1).
func (q *quadric) eval(x, y, z float64) float64 {
	return q[0]*x*x + 2*q[1]*x*y + 2*q[2]*x*z + 2*q[3]*x +
		q[4]*y*y + 2*q[5]*y*z + 2*q[6]*y +
		q[7]*z*z + 2*q[8]*z +
		q[9]
}

type collapse struct {
	v1, v2     int
	cost       float64
	ver1, ver2 int
	tx, ty, tz float64
}

type collapseHeap []collapse

func (h collapseHeap) Len() int            { return len(h) }
func (h collapseHeap) Less(i, j int) bool  { return h[i].cost < h[j].cost }
func (h collapseHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *collapseHeap) Push(x interface{}) { *h = append(*h, x.(collapse)) }
func (h *collapseHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Decimate reduces p by iterative quadric edge collapse until roughly
// targetReduction of the triangles are removed. The input is not modified.
// Meshes too small to decimate meaningfully are returned cleaned but intact.
func Decimate(p *PolyData, targetReduction float64) *PolyData {
	p = p.Clean()
	if targetReduction <= 0 || p.FaceCount() <= 16 {
		return p
	}
	if targetReduction >= 1 {
		targetReduction = DefaultReduction
	}
	targetFaces := int(math.Ceil(float64(p.FaceCount()) * (1 - targetReduction)))
	if targetFaces < 4 {
		targetFaces = 4
	}

	nv := p.VertexCount()
	pos := make([]float64, len(p.Verts))
	copy(pos, p.Verts)
	quadrics := make([]quadric, nv)
	version := make([]int, nv)
	parent := make([]int, nv) // union-find over collapsed vertices
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(v int) int {
		for parent[v] != v {
			parent[v] = parent[parent[v]]
			v = parent[v]
		}
		return v
	}

	faces := make([][3]int, 0, p.FaceCount())
	for t := 0; t < p.FaceCount(); t++ {
		faces = append(faces, [3]int{int(p.Faces[t*3]), int(p.Faces[t*3+1]), int(p.Faces[t*3+2])})
	}

	// Accumulate fundamental quadrics from face planes.
	for _, f := range faces {
		ax, ay, az := pos[f[0]*3], pos[f[0]*3+1], pos[f[0]*3+2]
		bx, by, bz := pos[f[1]*3], pos[f[1]*3+1], pos[f[1]*3+2]
		cx, cy, cz := pos[f[2]*3], pos[f[2]*3+1], pos[f[2]*3+2]
		nx := (by-ay)*(cz-az) - (bz-az)*(cy-ay)
		ny := (bz-az)*(cx-ax) - (bx-ax)*(cz-az)
		nz := (bx-ax)*(cy-ay) - (by-ay)*(cx-ax)
		l := math.Sqrt(nx*nx + ny*ny + nz*nz)
		if l == 0 {
			continue
		}
		nx, ny, nz = nx/l, ny/l, nz/l
		d := -(nx*ax + ny*ay + nz*az)
		q := planeQuadric(nx, ny, nz, d)
		for _, v := range f {
			quadrics[v].add(&q)
		}
	}

	neighbors := make([]map[int]bool, nv)
	addEdge := func(a, b int) {
		if neighbors[a] == nil {
			neighbors[a] = make(map[int]bool)
		}
		neighbors[a][b] = true
	}
	for _, f := range faces {
		addEdge(f[0], f[1])
		addEdge(f[1], f[0])
		addEdge(f[1], f[2])
		addEdge(f[2], f[1])
		addEdge(f[0], f[2])
		addEdge(f[2], f[0])
	}

	h := &collapseHeap{}
	pushEdge := func(a, b int) {
		if a > b {
			a, b = b, a
		}
		// Midpoint placement keeps the solver-free cost stable and cheap.
		mx := (pos[a*3] + pos[b*3]) / 2
		my := (pos[a*3+1] + pos[b*3+1]) / 2
		mz := (pos[a*3+2] + pos[b*3+2]) / 2
		var q quadric
		q = quadrics[a]
		q.add(&quadrics[b])
		heap.Push(h, collapse{
			v1: a, v2: b,
			cost: q.eval(mx, my, mz),
			ver1: version[a], ver2: version[b],
			tx: mx, ty: my, tz: mz,
		})
	}
	for a := 0; a < nv; a++ {
		for b := range neighbors[a] {
			if a < b {
				pushEdge(a, b)
			}
		}
	}

	liveFaces := len(faces)
	for liveFaces > targetFaces && h.Len() > 0 {
		c := heap.Pop(h).(collapse)
		v1, v2 := find(c.v1), find(c.v2)
		if v1 == v2 || c.ver1 != version[c.v1] || c.ver2 != version[c.v2] {
			continue
		}
		// Collapse v2 into v1 at the cached midpoint.
		pos[v1*3], pos[v1*3+1], pos[v1*3+2] = c.tx, c.ty, c.tz
		quadrics[v1].add(&quadrics[v2])
		parent[v2] = v1
		version[v1]++
		version[v2]++

		// The faces spanning the collapsed edge become degenerate.
		for n := range neighbors[v2] {
			nr := find(n)
			if nr == v1 {
				continue
			}
			if neighbors[v1][nr] || neighbors[nr][v1] {
				liveFaces-- // shared neighbor: the triangle (v1, v2, nr) vanishes
			}
			addEdge(v1, nr)
			addEdge(nr, v1)
			delete(neighbors[nr], v2)
		}
		neighbors[v2] = nil

		for n := range neighbors[v1] {
			nr := find(n)
			if nr != v1 {
				pushEdge(v1, nr)
			}
		}
	}

	// Rebuild the surviving surface through the union-find mapping.
	out := &PolyData{}
	remap := make(map[int]uint32)
	for _, f := range faces {
		a, b, c := find(f[0]), find(f[1]), find(f[2])
		if a == b || b == c || a == c {
			continue
		}
		for _, v := range []int{a, b, c} {
			if _, ok := remap[v]; !ok {
				remap[v] = uint32(out.VertexCount())
				out.Verts = append(out.Verts, pos[v*3], pos[v*3+1], pos[v*3+2])
			}
		}
		out.Faces = append(out.Faces, remap[a], remap[b], remap[c])
	}
	return out.Clean()
}
