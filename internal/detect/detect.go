// Package detect classifies case folders by vendor ecosystem and expands
// ZIP archives into scratch candidates.
package detect

import (
	"archive/zip"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/dlaslab/htmlviewer-engine/internal/meta"
	"github.com/dlaslab/htmlviewer-engine/pkg/models"
)

// Mode classifies a folder: any *.3ox makes it a Shape case, otherwise any
// constructionInfo/modelInfo makes it an Exo case.
func Mode(folder string) models.VendorMode {
	if meta.FindOrderFile(folder) != "" {
		return models.ModeShape
	}
	if ci, mi := meta.FindExoFiles(folder); ci != "" || mi != "" {
		return models.ModeExo
	}
	return models.ModeNone
}

// ExpandZIPs extracts every *.zip directly inside folder into a uniquely
// named subdirectory of scratchRoot and returns the candidate set: the
// original folder plus each extraction root. Individual ZIP failures are
// logged and skipped. The expansion root mirrors the ZIP basename so output
// names derive from it.
func ExpandZIPs(folder, scratchRoot string) []string {
	candidates := []string{folder}
	entries, err := os.ReadDir(folder)
	if err != nil {
		log.Printf("[Detect] Cannot read %s: %v", folder, err)
		return candidates
	}
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".zip") {
			continue
		}
		zipPath := filepath.Join(folder, e.Name())
		name := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		dest := filepath.Join(scratchRoot, uuid.New().String(), name)
		if err := extractZIP(zipPath, dest); err != nil {
			log.Printf("[Detect] Skipping %s: %v", e.Name(), err)
			continue
		}
		candidates = append(candidates, dest)
	}
	return candidates
}

// extractZIP unpacks archive into dest, refusing entries that escape it.
func extractZIP(archive, dest string) error {
	r, err := zip.OpenReader(archive)
	if err != nil {
		return err
	}
	defer r.Close()

	if err := os.MkdirAll(dest, 0o755); err != nil {
		return err
	}
	for _, f := range r.File {
		target := filepath.Join(dest, filepath.FromSlash(f.Name))
		rel, err := filepath.Rel(dest, target)
		if err != nil || strings.HasPrefix(rel, "..") {
			return fmt.Errorf("entry %q escapes the extraction root", f.Name)
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		if err := copyZIPEntry(f, target); err != nil {
			return err
		}
	}
	return nil
}

func copyZIPEntry(f *zip.File, target string) error {
	src, err := f.Open()
	if err != nil {
		return err
	}
	defer src.Close()
	dst, err := os.Create(target)
	if err != nil {
		return err
	}
	defer dst.Close()
	_, err = io.Copy(dst, src)
	return err
}
