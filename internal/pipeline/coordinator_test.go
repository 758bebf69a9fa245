package pipeline

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dlaslab/htmlviewer-engine/internal/mesh"
	"github.com/dlaslab/htmlviewer-engine/pkg/models"
)

// slabMesh writes a 20x20x5 box slab, two triangles per face, to path.
func slabMesh(t *testing.T, path string, z0 float64) {
	t.Helper()
	p := &mesh.PolyData{}
	// Reuse the STL/PLY writers with a simple two-triangle-per-face box.
	box := buildBox(0, 0, z0, 20, 20, 5)
	p.Verts, p.Faces = box.Verts, box.Faces
	if err := mesh.Save(path, p); err != nil {
		t.Fatal(err)
	}
}

func buildBox(ox, oy, oz, sx, sy, sz float64) *mesh.PolyData {
	p := &mesh.PolyData{}
	addTri := func(a, b, c [3]float64) {
		base := uint32(p.VertexCount())
		for _, v := range [][3]float64{a, b, c} {
			p.Verts = append(p.Verts, v[0], v[1], v[2])
		}
		p.Faces = append(p.Faces, base, base+1, base+2)
	}
	v := func(x, y, z float64) [3]float64 { return [3]float64{ox + x*sx, oy + y*sy, oz + z*sz} }
	quads := [][4][3]float64{
		{v(0, 0, 0), v(1, 0, 0), v(1, 1, 0), v(0, 1, 0)},
		{v(0, 0, 1), v(1, 0, 1), v(1, 1, 1), v(0, 1, 1)},
		{v(0, 0, 0), v(1, 0, 0), v(1, 0, 1), v(0, 0, 1)},
		{v(0, 1, 0), v(1, 1, 0), v(1, 1, 1), v(0, 1, 1)},
		{v(0, 0, 0), v(0, 1, 0), v(0, 1, 1), v(0, 0, 1)},
		{v(1, 0, 0), v(1, 1, 0), v(1, 1, 1), v(1, 0, 1)},
	}
	for _, q := range quads {
		addTri(q[0], q[1], q[2])
		addTri(q[0], q[2], q[3])
	}
	return p
}

func TestConvert_ExoScansWithBite(t *testing.T) {
	dir := t.TempDir()
	upper := filepath.Join(dir, "2025-07-24-upperjaw.ply")
	lower := filepath.Join(dir, "2025-07-24-lowerjaw.ply")
	slabMesh(t, upper, 5) // upper slab sits on z=5..10
	slabMesh(t, lower, 0) // lower slab z=0..5: shared plane at z=5
	ci := `<DentalProject>
  <MatrixToScanDataFiles>1 0 0 0  0 1 0 0  0 0 1 0  0 0 0 1</MatrixToScanDataFiles>
</DentalProject>`
	os.WriteFile(filepath.Join(dir, "case.constructionInfo"), []byte(ci), 0o644)

	out := filepath.Join(dir, "case.html")
	var lastPercent float64
	err := Convert(Options{
		MeshPaths: []string{upper, lower},
		OutHTML:   out,
		Folder:    dir,
		Mode:      models.ModeExo,
		Progress: func(ev models.ProgressEvent) {
			if ev.Percent < lastPercent {
				t.Errorf("Progress went backwards: %v after %v (%s)", ev.Percent, lastPercent, ev.Message)
			}
			if ev.CasePath != dir {
				t.Errorf("Expected CasePath %q, got %q", dir, ev.CasePath)
			}
			lastPercent = ev.Percent
		},
	})
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}

	raw, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("Expected HTML output: %v", err)
	}
	doc := string(raw)
	for _, want := range []string{"upper_scan", "lower_scan", "group:'bite'", "BITE"} {
		if !strings.Contains(doc, want) {
			t.Errorf("Expected document to contain %q", want)
		}
	}
	if !HasMarker(dir) {
		t.Error("Expected the marker after a successful conversion")
	}
	if lastPercent != 100 {
		t.Errorf("Expected final progress 100, got %v", lastPercent)
	}
}

func TestConvert_ShapeCrownNoBite(t *testing.T) {
	dir := t.TempDir()
	stl := filepath.Join(dir, "ORD1_1.stl")
	slabMesh(t, stl, 0)
	order := `<?xml version="1.0"?>
<TDM xmlns="http://www.3shape.com/tdm">
  <ThreeShapeOrderNo>ORD1</ThreeShapeOrderNo>
  <ModelElement displayName="크라운 11-13">
    <ModelElementIndex>1</ModelElementIndex>
  </ModelElement>
</TDM>`
	os.WriteFile(filepath.Join(dir, "order.3ox"), []byte(order), 0o644)

	out := filepath.Join(dir, "case.html")
	err := Convert(Options{
		MeshPaths: []string{stl},
		OutHTML:   out,
		Folder:    dir,
		Mode:      models.ModeShape,
	})
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	raw, _ := os.ReadFile(out)
	doc := string(raw)
	if !strings.Contains(doc, "group:'upper_crownbridge'") {
		t.Error("Expected upper_crownbridge entry")
	}
	if !strings.Contains(doc, "크라운 11-13") {
		t.Error("Expected the order display name")
	}
	if strings.Contains(doc, "group:'bite'") {
		t.Error("Expected no bite for a single-arch case")
	}
}

func TestConvert_GroupOverride(t *testing.T) {
	dir := t.TempDir()
	stl := filepath.Join(dir, "thing.stl")
	slabMesh(t, stl, 0)

	out := filepath.Join(dir, "case.html")
	err := Convert(Options{
		MeshPaths:     []string{stl},
		OutHTML:       out,
		Folder:        dir,
		Mode:          models.ModeNone,
		GroupOverride: map[string]models.Group{"thing.stl": models.GroupLowerAbutment},
	})
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	raw, _ := os.ReadFile(out)
	if !strings.Contains(string(raw), "group:'lower_abutment'") {
		t.Error("Expected the manual override group")
	}
}

func TestConvert_UnreadableMeshSkipped(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "ok.stl")
	slabMesh(t, good, 0)
	bad := filepath.Join(dir, "broken.stl")
	os.WriteFile(bad, []byte("garbage"), 0o644)

	out := filepath.Join(dir, "case.html")
	err := Convert(Options{
		MeshPaths: []string{bad, good},
		OutHTML:   out,
		Folder:    dir,
		Mode:      models.ModeNone,
		GroupOverride: map[string]models.Group{
			"ok.stl": models.GroupEtc, "broken.stl": models.GroupEtc,
		},
	})
	if err != nil {
		t.Fatalf("Expected the case to survive a broken mesh: %v", err)
	}
	raw, _ := os.ReadFile(out)
	doc := string(raw)
	if !strings.Contains(doc, "ok") {
		t.Error("Expected the good mesh in the output")
	}
	if strings.Contains(doc, "broken.stl") {
		t.Error("Expected the broken mesh to be omitted")
	}
}
