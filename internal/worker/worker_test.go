package worker

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/dlaslab/htmlviewer-engine/internal/mesh"
	"github.com/dlaslab/htmlviewer-engine/internal/pipeline"
	"github.com/dlaslab/htmlviewer-engine/pkg/models"
)

func TestRun_ConvertsJobAndWritesMarker(t *testing.T) {
	dir := t.TempDir()
	stl := filepath.Join(dir, "crown_11.stl")
	p := &mesh.PolyData{
		Verts: []float64{0, 0, 0, 10, 0, 0, 10, 10, 0, 0, 10, 0},
		Faces: []uint32{0, 1, 2, 0, 2, 3},
	}
	if err := mesh.WriteSTL(stl, p); err != nil {
		t.Fatal(err)
	}

	job := models.WorkerJob{
		MeshPaths: []string{stl},
		OutHTML:   filepath.Join(dir, "case.html"),
		Folder:    dir,
		Mode:      models.ModeNone,
		GroupOverride: map[string]models.Group{
			"crown_11.stl": models.GroupUpperCrownBridge,
		},
	}
	raw, _ := json.Marshal(job)
	jobPath := filepath.Join(t.TempDir(), "job.json")
	if err := os.WriteFile(jobPath, raw, 0o644); err != nil {
		t.Fatal(err)
	}

	if code := Run(jobPath); code != 0 {
		t.Errorf("Expected exit code 0, got %d", code)
	}
	if _, err := os.Stat(job.OutHTML); err != nil {
		t.Errorf("Expected HTML output: %v", err)
	}
	if !pipeline.HasMarker(dir) {
		t.Error("Expected the marker after a successful worker run")
	}
}

func TestRun_MalformedJobStillReports(t *testing.T) {
	jobPath := filepath.Join(t.TempDir(), "job.json")
	os.WriteFile(jobPath, []byte("{not json"), 0o644)
	if code := Run(jobPath); code != 0 {
		t.Errorf("Expected exit code 0 with an error result, got %d", code)
	}
}
