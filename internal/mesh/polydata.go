// Package mesh implements the geometry side of the pipeline: STL/PLY input
// and output, quadric decimation, mesh merging and cleanup, the cross-arch
// contact surface, and the compact binary encoding embedded into the viewer.
//
// Geometry is kept in flat buffers: vertices as packed xyz float64 triples,
// faces as packed index triples. All loops are deterministic row-major walks.
package mesh

import (
	"fmt"
	"math"

	"github.com/dlaslab/htmlviewer-engine/internal/geom"
)

// PolyData is a triangle soup with shared vertices.
type PolyData struct {
	Verts []float64 // packed x,y,z per vertex
	Faces []uint32  // packed vertex indices, 3 per triangle
}

// VertexCount returns the number of vertices.
func (p *PolyData) VertexCount() int { return len(p.Verts) / 3 }

// FaceCount returns the number of triangles.
func (p *PolyData) FaceCount() int { return len(p.Faces) / 3 }

// Vertex returns vertex i.
func (p *PolyData) Vertex(i int) (float64, float64, float64) {
	return p.Verts[i*3], p.Verts[i*3+1], p.Verts[i*3+2]
}

// Transform applies m to every vertex in place.
func (p *PolyData) Transform(m geom.Mat4) {
	if m.IsIdentity(0) {
		return
	}
	for i := 0; i < len(p.Verts); i += 3 {
		p.Verts[i], p.Verts[i+1], p.Verts[i+2] = m.Apply(p.Verts[i], p.Verts[i+1], p.Verts[i+2])
	}
}

// Bounds returns the axis-aligned bounding box. Degenerate for empty meshes.
func (p *PolyData) Bounds() (min, max [3]float64) {
	if p.VertexCount() == 0 {
		return
	}
	min = [3]float64{p.Verts[0], p.Verts[1], p.Verts[2]}
	max = min
	for i := 3; i < len(p.Verts); i += 3 {
		for k := 0; k < 3; k++ {
			v := p.Verts[i+k]
			if v < min[k] {
				min[k] = v
			}
			if v > max[k] {
				max[k] = v
			}
		}
	}
	return
}

// Merge concatenates multiple meshes and removes coincident points. Returns
// nil when the inputs hold no geometry.
func Merge(parts ...*PolyData) *PolyData {
	total := &PolyData{}
	for _, part := range parts {
		if part == nil || part.VertexCount() == 0 {
			continue
		}
		base := uint32(total.VertexCount())
		total.Verts = append(total.Verts, part.Verts...)
		for _, idx := range part.Faces {
			total.Faces = append(total.Faces, base+idx)
		}
	}
	if total.VertexCount() == 0 {
		return nil
	}
	return total.Clean()
}

// Clean welds coincident vertices (exact grid snap at weldEps resolution) and
// drops degenerate triangles. Returns a new PolyData.
const weldEps = 1e-7

func (p *PolyData) Clean() *PolyData {
	type key [3]int64
	remap := make([]uint32, p.VertexCount())
	index := make(map[key]uint32, p.VertexCount())
	out := &PolyData{Verts: make([]float64, 0, len(p.Verts))}
	inv := 1.0 / weldEps
	for i := 0; i < p.VertexCount(); i++ {
		x, y, z := p.Vertex(i)
		k := key{int64(math.Round(x * inv)), int64(math.Round(y * inv)), int64(math.Round(z * inv))}
		if existing, ok := index[k]; ok {
			remap[i] = existing
			continue
		}
		id := uint32(out.VertexCount())
		index[k] = id
		remap[i] = id
		out.Verts = append(out.Verts, x, y, z)
	}
	for i := 0; i+2 < len(p.Faces); i += 3 {
		a, b, c := remap[p.Faces[i]], remap[p.Faces[i+1]], remap[p.Faces[i+2]]
		if a == b || b == c || a == c {
			continue
		}
		out.Faces = append(out.Faces, a, b, c)
	}
	return out
}

// faceNormal returns the (unnormalized) normal of triangle f.
func (p *PolyData) faceNormal(f int) (float64, float64, float64) {
	a, b, c := p.Faces[f*3], p.Faces[f*3+1], p.Faces[f*3+2]
	ax, ay, az := p.Vertex(int(a))
	bx, by, bz := p.Vertex(int(b))
	cx, cy, cz := p.Vertex(int(c))
	ux, uy, uz := bx-ax, by-ay, bz-az
	vx, vy, vz := cx-ax, cy-ay, cz-az
	return uy*vz - uz*vy, uz*vx - ux*vz, ux*vy - uy*vx
}

// validate reports a descriptive error for out-of-range indices. Malformed
// files surface here instead of panicking deep in the pipeline.
func (p *PolyData) validate() error {
	n := uint32(p.VertexCount())
	for i, idx := range p.Faces {
		if idx >= n {
			return fmt.Errorf("face index %d at position %d exceeds vertex count %d", idx, i, n)
		}
	}
	return nil
}
