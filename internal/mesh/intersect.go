package mesh

import (
	"fmt"
	"log"
	"math"
	"path/filepath"
)

// BiteFileName is the basename of the synthesized contact surface. It carries
// the _reduced suffix because downstream maps key on simplified filenames.
const BiteFileName = "BITE_reduced.stl"

// DefaultBiteTolerance is the contact distance in mesh units (mm).
const DefaultBiteTolerance = 0.01

// Intersect merges and cleans the two mesh sets and extracts their surface
// intersection: the band of triangles lying within tolerance of the opposing
// surface. An empty result, or inputs that cannot be loaded, yield ("", nil) —
// a missing bite is a legitimate outcome, not an error. Only a failure to
// write the bite file is returned as an error.
func Intersect(setA, setB []string, outDir string, tolerance float64) (string, error) {
	sideA := loadAndMerge(setA)
	sideB := loadAndMerge(setB)
	if sideA == nil || sideB == nil {
		return "", nil
	}
	if tolerance <= 0 {
		tolerance = DefaultBiteTolerance
	}
	contact := contactSurface(sideA, sideB, tolerance)
	if contact == nil || contact.VertexCount() == 0 {
		return "", nil
	}
	outPath := filepath.Join(outDir, BiteFileName)
	if err := WriteSTL(outPath, contact); err != nil {
		return "", fmt.Errorf("writing bite surface: %v", err)
	}
	return outPath, nil
}

func loadAndMerge(paths []string) *PolyData {
	var parts []*PolyData
	for _, path := range paths {
		p, err := Load(path)
		if err != nil {
			log.Printf("[Intersect] Skipping %s: %v", filepath.Base(path), err)
			continue
		}
		parts = append(parts, p)
	}
	return Merge(parts...)
}

// triGrid is a spatial hash of triangle indices by cell.
type triGrid struct {
	cell float64
	bins map[[3]int][]int
	p    *PolyData
}

func buildGrid(p *PolyData, cell float64) *triGrid {
	g := &triGrid{cell: cell, bins: make(map[[3]int][]int), p: p}
	for t := 0; t < p.FaceCount(); t++ {
		min, max := triBounds(p, t)
		g.eachCell(min, max, func(k [3]int) {
			g.bins[k] = append(g.bins[k], t)
		})
	}
	return g
}

func (g *triGrid) eachCell(min, max [3]float64, fn func([3]int)) {
	var lo, hi [3]int
	for k := 0; k < 3; k++ {
		lo[k] = int(math.Floor(min[k] / g.cell))
		hi[k] = int(math.Floor(max[k] / g.cell))
	}
	for x := lo[0]; x <= hi[0]; x++ {
		for y := lo[1]; y <= hi[1]; y++ {
			for z := lo[2]; z <= hi[2]; z++ {
				fn([3]int{x, y, z})
			}
		}
	}
}

func triBounds(p *PolyData, t int) (min, max [3]float64) {
	for v := 0; v < 3; v++ {
		x, y, z := p.Vertex(int(p.Faces[t*3+v]))
		c := [3]float64{x, y, z}
		if v == 0 {
			min, max = c, c
			continue
		}
		for k := 0; k < 3; k++ {
			if c[k] < min[k] {
				min[k] = c[k]
			}
			if c[k] > max[k] {
				max[k] = c[k]
			}
		}
	}
	return
}

// contactSurface collects the triangles of a whose vertices all lie within
// tol of b's surface, and symmetrically b's triangles against a. The merged
// band approximates the polyhedral intersection region between the arches.
func contactSurface(a, b *PolyData, tol float64) *PolyData {
	bandA := nearTriangles(a, b, tol)
	bandB := nearTriangles(b, a, tol)
	return Merge(bandA, bandB)
}

func nearTriangles(src, against *PolyData, tol float64) *PolyData {
	if against.FaceCount() == 0 {
		return nil
	}
	// Cell size follows the query radius; at least 1/256 of the opposing
	// mesh's bounding-box diagonal so the grid stays coarse for large meshes.
	cell := tol * 4
	bmin, bmax := against.Bounds()
	diag := math.Sqrt(sq(bmax[0]-bmin[0]) + sq(bmax[1]-bmin[1]) + sq(bmax[2]-bmin[2]))
	if minCell := diag / 256; cell < minCell {
		cell = minCell
	}
	grid := buildGrid(against, cell)

	out := &PolyData{}
	for t := 0; t < src.FaceCount(); t++ {
		inside := true
		for v := 0; v < 3; v++ {
			x, y, z := src.Vertex(int(src.Faces[t*3+v]))
			if !grid.withinTol(x, y, z, tol) {
				inside = false
				break
			}
		}
		if !inside {
			continue
		}
		base := uint32(out.VertexCount())
		for v := 0; v < 3; v++ {
			x, y, z := src.Vertex(int(src.Faces[t*3+v]))
			out.Verts = append(out.Verts, x, y, z)
		}
		out.Faces = append(out.Faces, base, base+1, base+2)
	}
	if out.VertexCount() == 0 {
		return nil
	}
	return out
}

func (g *triGrid) withinTol(x, y, z, tol float64) bool {
	r := tol
	min := [3]float64{x - r, y - r, z - r}
	max := [3]float64{x + r, y + r, z + r}
	found := false
	g.eachCell(min, max, func(k [3]int) {
		if found {
			return
		}
		for _, t := range g.bins[k] {
			if pointTriDistance(g.p, t, x, y, z) <= tol {
				found = true
				return
			}
		}
	})
	return found
}

func sq(v float64) float64 { return v * v }

// pointTriDistance returns the distance from (px,py,pz) to triangle t using
// the standard region classification over the triangle's parameter space.
func pointTriDistance(p *PolyData, t int, px, py, pz float64) float64 {
	ax, ay, az := p.Vertex(int(p.Faces[t*3]))
	bx, by, bz := p.Vertex(int(p.Faces[t*3+1]))
	cx, cy, cz := p.Vertex(int(p.Faces[t*3+2]))

	abx, aby, abz := bx-ax, by-ay, bz-az
	acx, acy, acz := cx-ax, cy-ay, cz-az
	apx, apy, apz := px-ax, py-ay, pz-az

	d1 := abx*apx + aby*apy + abz*apz
	d2 := acx*apx + acy*apy + acz*apz
	if d1 <= 0 && d2 <= 0 {
		return math.Sqrt(sq(apx) + sq(apy) + sq(apz))
	}

	bpx, bpy, bpz := px-bx, py-by, pz-bz
	d3 := abx*bpx + aby*bpy + abz*bpz
	d4 := acx*bpx + acy*bpy + acz*bpz
	if d3 >= 0 && d4 <= d3 {
		return math.Sqrt(sq(bpx) + sq(bpy) + sq(bpz))
	}

	vc := d1*d4 - d3*d2
	if vc <= 0 && d1 >= 0 && d3 <= 0 {
		v := d1 / (d1 - d3)
		return math.Sqrt(sq(apx-v*abx) + sq(apy-v*aby) + sq(apz-v*abz))
	}

	cpx, cpy, cpz := px-cx, py-cy, pz-cz
	d5 := abx*cpx + aby*cpy + abz*cpz
	d6 := acx*cpx + acy*cpy + acz*cpz
	if d6 >= 0 && d5 <= d6 {
		return math.Sqrt(sq(cpx) + sq(cpy) + sq(cpz))
	}

	vb := d5*d2 - d1*d6
	if vb <= 0 && d2 >= 0 && d6 <= 0 {
		w := d2 / (d2 - d6)
		return math.Sqrt(sq(apx-w*acx) + sq(apy-w*acy) + sq(apz-w*acz))
	}

	va := d3*d6 - d5*d4
	if va <= 0 && (d4-d3) >= 0 && (d5-d6) >= 0 {
		w := (d4 - d3) / ((d4 - d3) + (d5 - d6))
		return math.Sqrt(sq(px-(bx+w*(cx-bx))) + sq(py-(by+w*(cy-by))) + sq(pz-(bz+w*(cz-bz))))
	}

	denom := 1.0 / (va + vb + vc)
	v := vb * denom
	w := vc * denom
	qx := ax + abx*v + acx*w
	qy := ay + aby*v + acy*w
	qz := az + abz*v + acz*w
	return math.Sqrt(sq(px-qx) + sq(py-qy) + sq(pz-qz))
}
