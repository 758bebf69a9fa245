package scanner

import (
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dlaslab/htmlviewer-engine/internal/meta"
)

// maxSearchDepth bounds the recursive lookup for scan files referenced by
// metadata but missing from the case folder.
const maxSearchDepth = 4

// searchExcludes are directory basenames never descended into during the
// missing-scan search.
var searchExcludes = map[string]bool{
	"Windows":                   true,
	"Program Files":             true,
	"Program Files (x86)":       true,
	"$Recycle.Bin":              true,
	"System Volume Information": true,
	"ProgramData":               true,
	"node_modules":              true,
	".git":                      true,
	"__pycache__":               true,
}

// wellKnownRoots returns the bounded set of directories consulted when a
// referenced scan file is absent from the case folder.
func wellKnownRoots() []string {
	var roots []string
	if home, err := os.UserHomeDir(); err == nil {
		roots = append(roots,
			filepath.Join(home, "Documents"),
			filepath.Join(home, "Desktop"),
		)
	}
	roots = append(roots,
		`C:\exocad`,
		`C:\3Shape`,
	)
	return roots
}

// DiscoverMeshes collects every *.stl / *.ply under folder recursively, plus
// any scan files the constructionInfo references. References that resolve
// nowhere are logged and omitted; they never fail the case.
func DiscoverMeshes(folder string) []string {
	found := make(map[string]string) // lowercase basename → path
	var order []string
	filepath.WalkDir(folder, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(d.Name()))
		if ext != ".stl" && ext != ".ply" {
			return nil
		}
		low := strings.ToLower(d.Name())
		if _, ok := found[low]; !ok {
			found[low] = path
			order = append(order, low)
		}
		return nil
	})

	for _, ref := range scanFileRefs(folder) {
		low := strings.ToLower(ref)
		if _, ok := found[low]; ok {
			continue
		}
		if path := searchWellKnown(ref); path != "" {
			found[low] = path
			order = append(order, low)
		} else {
			log.Printf("[CaseScanner] Referenced scan %s not found anywhere, omitting", ref)
		}
	}

	paths := make([]string, 0, len(order))
	for _, low := range order {
		paths = append(paths, found[low])
	}
	sort.Strings(paths)
	return paths
}

// scanFileRefs reads scan-file hints from the folder's constructionInfo:
// both ScanFiles/ScanFile/FileName and Tooth/ToothScanFileName spellings.
// The schema is unpublished, so these are hints only.
func scanFileRefs(folder string) []string {
	ciPath, _ := meta.FindExoFiles(folder)
	if ciPath == "" {
		return nil
	}
	root, err := meta.ParseXMLFile(ciPath)
	if err != nil {
		return nil
	}
	var refs []string
	seen := make(map[string]bool)
	add := func(raw string) {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			return
		}
		base := filepath.Base(strings.ReplaceAll(raw, `\`, "/"))
		low := strings.ToLower(base)
		if !seen[low] {
			seen[low] = true
			refs = append(refs, base)
		}
	}
	for _, sf := range root.FindAll("ScanFile") {
		add(sf.ChildText("FileName"))
	}
	for _, tooth := range root.FindAll("Tooth") {
		add(tooth.ChildText("ToothScanFileName"))
	}
	return refs
}

// searchWellKnown looks for basename under the well-known roots, bounded by
// depth and the exclude list. PLY lookups are case-insensitive.
func searchWellKnown(basename string) string {
	lowWant := strings.ToLower(basename)
	caseInsensitive := strings.HasSuffix(lowWant, ".ply")
	for _, root := range wellKnownRoots() {
		if hit := searchDir(root, basename, lowWant, caseInsensitive, 0); hit != "" {
			return hit
		}
	}
	return ""
}

func searchDir(dir, want, lowWant string, caseInsensitive bool, depth int) string {
	if depth > maxSearchDepth {
		return ""
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	for _, e := range entries {
		if e.IsDir() {
			if searchExcludes[e.Name()] {
				continue
			}
			if hit := searchDir(filepath.Join(dir, e.Name()), want, lowWant, caseInsensitive, depth+1); hit != "" {
				return hit
			}
			continue
		}
		if e.Name() == want || (caseInsensitive && strings.ToLower(e.Name()) == lowWant) {
			return filepath.Join(dir, e.Name())
		}
	}
	return ""
}
