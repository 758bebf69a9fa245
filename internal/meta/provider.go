package meta

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dlaslab/htmlviewer-engine/internal/geom"
	"github.com/dlaslab/htmlviewer-engine/pkg/models"
)

// Provider turns a case folder into the group map and display map, and
// resolves the effective transform for a mesh. Two variants exist: the
// Shape order-file provider and the Exo constructionInfo/modelInfo provider.
// The coordinator consumes only this interface.
type Provider interface {
	// Maps classifies every mesh under the folder. Keys are lowercase
	// basenames; every <base>.<ext> entry has a matching
	// <base>_reduced.<ext> alias because downstream keys use the simplified
	// filename.
	Maps() (map[string]models.Group, map[string]string, error)

	// Transform returns the effective alignment matrix for the given mesh
	// basename; identity when the vendor supplies none.
	Transform(basename string) geom.Mat4
}

// NewProvider builds the provider variant for the detected vendor mode.
func NewProvider(folder string, mode models.VendorMode) (Provider, error) {
	switch mode {
	case models.ModeShape:
		return NewShapeProvider(folder)
	case models.ModeExo:
		return NewExoProvider(folder), nil
	default:
		return nil, fmt.Errorf("no metadata provider for mode %q", mode)
	}
}

// vendorBase reduces a vendor-supplied path to its basename. Vendor XML
// carries Windows-style paths, so both separators are honored regardless of
// the host platform.
func vendorBase(p string) string {
	p = strings.ReplaceAll(p, `\`, "/")
	return filepath.Base(p)
}

// reducedAlias derives the simplified-filename alias for a mesh basename:
// "case.stl" → "case_reduced.stl".
func reducedAlias(base string) string {
	ext := filepath.Ext(base)
	return strings.TrimSuffix(base, ext) + "_reduced" + ext
}

// putWithAlias stores a group entry under both the basename and its
// _reduced alias, lowercased.
func putWithAlias(m map[string]models.Group, base string, g models.Group) {
	low := strings.ToLower(base)
	m[low] = g
	m[strings.ToLower(reducedAlias(base))] = g
}

func putDisplayWithAlias(m map[string]string, base, label string) {
	low := strings.ToLower(base)
	m[low] = label
	m[strings.ToLower(reducedAlias(base))] = label
}

// IsPrepName reports whether a scan-file name denotes a preparation scan.
// "prepreparation" is an Exo pre-op model, not a prep scan.
func IsPrepName(name string) bool {
	low := strings.ToLower(name)
	if strings.Contains(low, "prepreparation") {
		return false
	}
	return strings.Contains(low, "prep") || strings.Contains(low, "preparation")
}

// IsAntName reports whether a scan-file name denotes an antagonist scan.
func IsAntName(name string) bool {
	low := strings.ToLower(name)
	return strings.Contains(low, "antagonist") || strings.HasPrefix(low, "ant")
}
