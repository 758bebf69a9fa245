package detect

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/dlaslab/htmlviewer-engine/pkg/models"
)

func TestMode(t *testing.T) {
	shape := t.TempDir()
	os.WriteFile(filepath.Join(shape, "order.3ox"), []byte("<x/>"), 0o644)
	exo := t.TempDir()
	os.WriteFile(filepath.Join(exo, "case.constructionInfo"), []byte("<x/>"), 0o644)
	none := t.TempDir()
	os.WriteFile(filepath.Join(none, "mesh.stl"), nil, 0o644)

	if got := Mode(shape); got != models.ModeShape {
		t.Errorf("Expected shape, got %s", got)
	}
	if got := Mode(exo); got != models.ModeExo {
		t.Errorf("Expected exo, got %s", got)
	}
	if got := Mode(none); got != models.ModeNone {
		t.Errorf("Expected none, got %s", got)
	}
}

func TestMode_ShapeBeatsExo(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "order.3ox"), []byte("<x/>"), 0o644)
	os.WriteFile(filepath.Join(dir, "case.modelInfo"), []byte("<x/>"), 0o644)
	if got := Mode(dir); got != models.ModeShape {
		t.Errorf("Expected 3ox to win, got %s", got)
	}
}

func makeZIP(t *testing.T, path string, entries map[string]string) {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range entries {
		f, err := w.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		f.Write([]byte(content))
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestExpandZIPs(t *testing.T) {
	folder := t.TempDir()
	scratch := t.TempDir()
	makeZIP(t, filepath.Join(folder, "case.zip"), map[string]string{
		"case.constructionInfo": "<x/>",
		"crown_11.stl":          "",
	})

	candidates := ExpandZIPs(folder, scratch)
	if len(candidates) != 2 {
		t.Fatalf("Expected original + 1 expansion, got %d candidates", len(candidates))
	}
	if candidates[0] != folder {
		t.Errorf("Expected the original folder first, got %s", candidates[0])
	}
	root := candidates[1]
	if filepath.Base(root) != "case" {
		t.Errorf("Expected expansion root named after the ZIP, got %s", filepath.Base(root))
	}
	if _, err := os.Stat(filepath.Join(root, "crown_11.stl")); err != nil {
		t.Errorf("Expected extracted mesh: %v", err)
	}
	if got := Mode(root); got != models.ModeExo {
		t.Errorf("Expected expansion root detected as exo, got %s", got)
	}
}

func TestExpandZIPs_BadArchiveSkipped(t *testing.T) {
	folder := t.TempDir()
	scratch := t.TempDir()
	os.WriteFile(filepath.Join(folder, "broken.zip"), []byte("not a zip"), 0o644)

	candidates := ExpandZIPs(folder, scratch)
	if len(candidates) != 1 || candidates[0] != folder {
		t.Errorf("Expected only the original folder to survive, got %v", candidates)
	}
}
