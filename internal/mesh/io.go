package mesh

import (
	"fmt"
	"path/filepath"
	"strings"
)

// DefaultReduction is the decimation target used by the pipeline: keep one
// triangle in eight.
const DefaultReduction = 0.875

// Load reads an STL or PLY file chosen by extension (case-insensitive).
func Load(path string) (*PolyData, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".stl":
		return ReadSTL(path)
	case ".ply":
		return ReadPLY(path)
	default:
		return nil, fmt.Errorf("unsupported mesh extension %q", filepath.Ext(path))
	}
}

// Save writes p in the format implied by the path extension.
func Save(path string, p *PolyData) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".stl":
		return WriteSTL(path, p)
	case ".ply":
		return WritePLY(path, p)
	default:
		return fmt.Errorf("unsupported mesh extension %q", filepath.Ext(path))
	}
}

// Reduce loads a mesh, applies quadric decimation targeting the given
// reduction ratio, and writes the result into outDir under the same basename
// and format. The reduction target is a hint, not a guarantee.
func Reduce(path, outDir string, targetReduction float64) (string, error) {
	p, err := Load(path)
	if err != nil {
		return "", err
	}
	reduced := Decimate(p, targetReduction)
	outPath := filepath.Join(outDir, filepath.Base(path))
	if err := Save(outPath, reduced); err != nil {
		return "", err
	}
	return outPath, nil
}
