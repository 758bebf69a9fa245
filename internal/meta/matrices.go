package meta

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/dlaslab/htmlviewer-engine/internal/geom"
)

var floatRe = regexp.MustCompile(`[-+]?\d*\.?\d+(?:[eE][-+]?\d+)?`)

func textFloats(s string, max int) []float64 {
	var out []float64
	for _, m := range floatRe.FindAllString(s, max) {
		v, err := strconv.ParseFloat(m, 64)
		if err != nil {
			continue
		}
		out = append(out, v)
	}
	return out
}

// ParseMat4 extracts a 4x4 matrix from a vendor element. Three encodings are
// accepted, tried in order:
//  1. sixteen child tags _i_j (i,j 0..3) holding column-major floats,
//  2. the same with an m_i_j prefix,
//  3. at least 16 floats in the element's concatenated text, taken row-major.
//
// Tag-encoded matrices are column-major on the wire and transposed into the
// internal row-major form.
func ParseMat4(n *Node) (geom.Mat4, bool) {
	for _, prefix := range []string{"_", "m_"} {
		var cm geom.Mat4
		found := 0
		for i := 0; i < 4; i++ {
			for j := 0; j < 4; j++ {
				tag := fmt.Sprintf("%s%d_%d", prefix, i, j)
				txt := n.ChildText(tag)
				if txt == "" {
					continue
				}
				v, err := strconv.ParseFloat(txt, 64)
				if err != nil {
					continue
				}
				cm[i*4+j] = v
				found++
			}
		}
		if found == 16 {
			return cm.Transpose(), true
		}
	}
	if vals := textFloats(n.DeepText(), 16); len(vals) >= 16 {
		var m geom.Mat4
		copy(m[:], vals[:16])
		return m, true
	}
	return geom.Identity(), false
}

// ParseRot3 extracts a 3x3 rotation following the same encoding patterns as
// ParseMat4. Returned row-major.
func ParseRot3(n *Node) ([9]float64, bool) {
	for _, prefix := range []string{"_", "m_"} {
		var cm [9]float64
		found := 0
		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				txt := n.ChildText(fmt.Sprintf("%s%d_%d", prefix, i, j))
				if txt == "" {
					continue
				}
				v, err := strconv.ParseFloat(txt, 64)
				if err != nil {
					continue
				}
				cm[i*3+j] = v
				found++
			}
		}
		if found == 9 {
			// Transpose column-major wire order into row-major.
			return [9]float64{
				cm[0], cm[3], cm[6],
				cm[1], cm[4], cm[7],
				cm[2], cm[5], cm[8],
			}, true
		}
	}
	if vals := textFloats(n.DeepText(), 9); len(vals) >= 9 {
		var r [9]float64
		copy(r[:], vals[:9])
		return r, true
	}
	return [9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1}, false
}

// ParseVec3 extracts a 3-vector from child tags _0.._2, x/y/z children, or
// free text with at least 3 floats.
func ParseVec3(n *Node) ([3]float64, bool) {
	var v [3]float64
	found := 0
	for i := 0; i < 3; i++ {
		if txt := n.ChildText(fmt.Sprintf("_%d", i)); txt != "" {
			if f, err := strconv.ParseFloat(txt, 64); err == nil {
				v[i] = f
				found++
			}
		}
	}
	if found == 3 {
		return v, true
	}
	found = 0
	for i, name := range []string{"x", "y", "z"} {
		if txt := n.ChildText(name); txt != "" {
			if f, err := strconv.ParseFloat(txt, 64); err == nil {
				v[i] = f
				found++
			}
		}
	}
	if found == 3 {
		return v, true
	}
	if vals := textFloats(n.DeepText(), 3); len(vals) >= 3 {
		copy(v[:], vals[:3])
		return v, true
	}
	return [3]float64{}, false
}
