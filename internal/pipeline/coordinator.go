// Package pipeline drives one case from mesh files to the emitted viewer
// document: alignment, simplification, classification, bite synthesis, HTML.
package pipeline

import (
	"encoding/base64"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/dlaslab/htmlviewer-engine/internal/html"
	"github.com/dlaslab/htmlviewer-engine/internal/mesh"
	"github.com/dlaslab/htmlviewer-engine/internal/meta"
	"github.com/dlaslab/htmlviewer-engine/pkg/models"
)

// MarkerName is the idempotence marker written next to a processed case.
const MarkerName = "folder.processed_html_converter"

// ProgressFunc receives one typed progress tick, scoped to the case folder
// being converted.
type ProgressFunc func(event models.ProgressEvent)

// Options configures one conversion.
type Options struct {
	JobID         string // batch correlation id; empty outside batch mode
	MeshPaths     []string
	OutHTML       string
	Folder        string // folder the maps are built from
	Mode          models.VendorMode
	UserLogoB64   string
	GroupOverride map[string]models.Group // manual mode: bypasses the providers
	Progress      ProgressFunc
}

// biteBuckets partitions simplified meshes into the sets the bite synthesis
// draws from.
type biteBuckets struct {
	uCrown, lCrown []string
	uPrep, lPrep   []string
	uAnt, lAnt     []string
	uScan, lScan   []string // exo only: non-prep/non-ant scans
}

// Convert runs the full per-case pipeline. Per-mesh failures are logged and
// skipped; only HTML emission failure aborts the case. The marker is written
// only after the HTML file exists.
func Convert(opts Options) error {
	if opts.Progress == nil {
		opts.Progress = func(models.ProgressEvent) {}
	}
	report := func(pct float64, msg string) {
		opts.Progress(models.ProgressEvent{
			JobID:    opts.JobID,
			CasePath: opts.Folder,
			Percent:  pct,
			Message:  msg,
		})
	}
	reduceDir, err := os.MkdirTemp("", "reduce_"+uuid.New().String()[:8]+"_")
	if err != nil {
		return err
	}
	defer os.RemoveAll(reduceDir)
	xfmDir, err := os.MkdirTemp("", "xfm_"+uuid.New().String()[:8]+"_")
	if err != nil {
		return err
	}
	defer os.RemoveAll(xfmDir)

	groups, display, provider := buildMaps(opts)

	var entries []models.ModelEntry
	var buckets biteBuckets
	total := float64(len(opts.MeshPaths) + 2) // meshes + bite + emit

	for i, meshPath := range opts.MeshPaths {
		base := filepath.Base(meshPath)
		aligned := meshPath
		if provider != nil && opts.Mode == models.ModeExo {
			if out, err := alignMesh(meshPath, xfmDir, provider); err != nil {
				log.Printf("[Coordinator] Alignment failed for %s: %v", base, err)
			} else {
				aligned = out
			}
		}

		reduced, err := mesh.Reduce(aligned, reduceDir, mesh.DefaultReduction)
		if err != nil {
			log.Printf("[Coordinator] Skipping %s: %v", base, err)
			report(float64(i+1)/total*100, fmt.Sprintf("Skipped %s", base))
			continue
		}

		key := strings.ToLower(filepath.Base(reduced))
		group, ok := groups[key]
		if !ok {
			group = models.GroupEtc
		}
		label, ok := display[key]
		if !ok {
			label = strings.TrimSuffix(base, filepath.Ext(base))
		}

		buckets.add(reduced, group, opts.Mode)

		glb, err := mesh.EncodeCompact(reduced)
		if err != nil {
			log.Printf("[Coordinator] Encoding failed for %s: %v", base, err)
			report(float64(i+1)/total*100, fmt.Sprintf("Skipped %s", base))
			continue
		}
		entries = append(entries, models.ModelEntry{
			Name:        filepath.Base(reduced),
			B64:         base64.StdEncoding.EncodeToString(glb),
			Group:       group,
			DisplayName: label,
		})
		report(float64(i+1)/total*100, fmt.Sprintf("Processed %s", base))
	}

	if bitePath := synthesizeBite(buckets, reduceDir, opts.Mode); bitePath != "" {
		if glb, err := mesh.EncodeCompact(bitePath); err != nil {
			log.Printf("[Coordinator] Bite encoding failed: %v", err)
		} else {
			entries = append(entries, models.ModelEntry{
				Name:        filepath.Base(bitePath),
				B64:         base64.StdEncoding.EncodeToString(glb),
				Group:       models.GroupBite,
				DisplayName: "BITE",
			})
		}
	}
	report((total-1)/total*100, "Bite synthesis done")

	if err := html.Emit(opts.OutHTML, entries, opts.UserLogoB64); err != nil {
		return fmt.Errorf("emitting HTML: %v", err)
	}
	if err := WriteMarker(opts.Folder); err != nil {
		log.Printf("[Coordinator] Marker write failed in %s: %v", opts.Folder, err)
	}
	report(100, fmt.Sprintf("Wrote %s", filepath.Base(opts.OutHTML)))
	return nil
}

// buildMaps resolves the group/display maps and the transform provider.
// A manual override bypasses the vendor providers entirely; provider errors
// degrade to filename-default maps.
func buildMaps(opts Options) (map[string]models.Group, map[string]string, meta.Provider) {
	if opts.GroupOverride != nil {
		groups := make(map[string]models.Group, len(opts.GroupOverride)*2)
		for base, g := range opts.GroupOverride {
			low := strings.ToLower(base)
			groups[low] = g
			ext := filepath.Ext(low)
			groups[strings.TrimSuffix(low, ext)+"_reduced"+ext] = g
		}
		return groups, map[string]string{}, nil
	}
	provider, err := meta.NewProvider(opts.Folder, opts.Mode)
	if err != nil {
		log.Printf("[Coordinator] No metadata provider: %v", err)
		return map[string]models.Group{}, map[string]string{}, nil
	}
	groups, display, err := provider.Maps()
	if err != nil {
		log.Printf("[Coordinator] Metadata maps incomplete: %v", err)
	}
	return groups, display, provider
}

// alignMesh writes a transformed copy of the mesh into xfmDir under the same
// basename. The identity transform is a plain pass-through.
func alignMesh(path, xfmDir string, provider meta.Provider) (string, error) {
	m := provider.Transform(filepath.Base(path))
	if m.IsIdentity(1e-12) {
		return path, nil
	}
	p, err := mesh.Load(path)
	if err != nil {
		return "", err
	}
	p.Transform(m)
	out := filepath.Join(xfmDir, filepath.Base(path))
	if err := mesh.Save(out, p); err != nil {
		return "", err
	}
	return out, nil
}

// add routes a simplified mesh into its bite-candidate bucket.
func (b *biteBuckets) add(path string, group models.Group, mode models.VendorMode) {
	base := filepath.Base(path)
	switch group {
	case models.GroupUpperCrownBridge:
		b.uCrown = append(b.uCrown, path)
	case models.GroupLowerCrownBridge:
		b.lCrown = append(b.lCrown, path)
	case models.GroupUpperScan:
		switch {
		case meta.IsPrepName(base):
			b.uPrep = append(b.uPrep, path)
		case meta.IsAntName(base):
			b.uAnt = append(b.uAnt, path)
		case mode == models.ModeExo:
			b.uScan = append(b.uScan, path)
		}
	case models.GroupLowerScan:
		switch {
		case meta.IsPrepName(base):
			b.lPrep = append(b.lPrep, path)
		case meta.IsAntName(base):
			b.lAnt = append(b.lAnt, path)
		case mode == models.ModeExo:
			b.lScan = append(b.lScan, path)
		}
	}
}

// synthesizeBite intersects the opposing arch sets per the bite rules. An
// empty result is a legitimate outcome.
func synthesizeBite(b biteBuckets, outDir string, mode models.VendorMode) string {
	upper := append(append([]string{}, b.uCrown...), b.uPrep...)
	lower := append(append([]string{}, b.lCrown...), b.lPrep...)
	if mode == models.ModeExo {
		upper = append(upper, b.uScan...)
		lower = append(lower, b.lScan...)
	}

	var setA, setB []string
	switch {
	case len(upper) > 0 && len(lower) > 0:
		setA, setB = upper, lower
	case len(upper) > 0 && len(b.lAnt) > 0:
		setA, setB = upper, b.lAnt
	case len(lower) > 0 && len(b.uAnt) > 0:
		setA, setB = lower, b.uAnt
	default:
		return ""
	}

	out, err := mesh.Intersect(setA, setB, outDir, mesh.DefaultBiteTolerance)
	if err != nil {
		log.Printf("[Coordinator] Bite intersection failed: %v", err)
		return ""
	}
	return out
}

// WriteMarker stamps a case folder as processed.
func WriteMarker(folder string) error {
	return os.WriteFile(filepath.Join(folder, MarkerName),
		[]byte("processed by htmlviewer-engine\n"), 0o644)
}

// HasMarker reports whether folder was already processed.
func HasMarker(folder string) bool {
	_, err := os.Stat(filepath.Join(folder, MarkerName))
	return err == nil
}
