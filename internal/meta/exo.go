package meta

import (
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/dlaslab/htmlviewer-engine/internal/fdi"
	"github.com/dlaslab/htmlviewer-engine/internal/geom"
	"github.com/dlaslab/htmlviewer-engine/pkg/models"
)

// ExoProvider reads the Exo-Vendor constructionInfo and modelInfo XML files.
// Either file may be absent or malformed; classification then degrades to
// filename heuristics and transforms to identity.
type ExoProvider struct {
	folder string
	ci     *Node // constructionInfo root, nil when absent/unparsable
	mi     *Node // modelInfo root
	jawMap map[string]models.Jaw
}

// FindExoFiles locates the constructionInfo and modelInfo files in folder.
// Either result may be empty.
func FindExoFiles(folder string) (ciPath, miPath string) {
	entries, err := os.ReadDir(folder)
	if err != nil {
		return "", ""
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		low := strings.ToLower(e.Name())
		switch {
		case strings.HasSuffix(low, ".constructioninfo"),
			strings.HasSuffix(low, ".xml") && strings.Contains(low, "constructioninfo"):
			if ciPath == "" {
				ciPath = filepath.Join(folder, e.Name())
			}
		case strings.HasSuffix(low, ".modelinfo"),
			strings.HasSuffix(low, ".xml") && strings.Contains(low, "modelinfo"):
			if miPath == "" {
				miPath = filepath.Join(folder, e.Name())
			}
		}
	}
	return ciPath, miPath
}

// NewExoProvider parses whatever vendor XML the folder offers. Parse
// failures are logged and leave the corresponding root nil.
func NewExoProvider(folder string) *ExoProvider {
	p := &ExoProvider{folder: folder}
	ciPath, miPath := FindExoFiles(folder)
	if ciPath != "" {
		root, err := ParseXMLFile(ciPath)
		if err != nil {
			log.Printf("[Exo] Failed to parse %s: %v", filepath.Base(ciPath), err)
		} else {
			p.ci = root
		}
	}
	if miPath != "" {
		root, err := ParseXMLFile(miPath)
		if err != nil {
			log.Printf("[Exo] Failed to parse %s: %v", filepath.Base(miPath), err)
		} else {
			p.mi = root
		}
	}
	p.jawMap = buildModelInfoJawMap(p.mi)
	return p
}

// Roots exposes the parsed XML roots for the coordinator (parsed once per
// case). Either may be nil.
func (p *ExoProvider) Roots() (ci, mi *Node) { return p.ci, p.mi }

// ── Group classification ──────────────────────────────────────────

// exoCategory decides the category by keyword on the lowercase basename,
// first match wins.
func exoCategory(low string) string {
	if strings.Contains(low, "occlusion") {
		return "etc"
	}
	scanKeys := []string{"upperjaw", "lowerjaw", "modelgingiva", "modelbase", "gingiva", "model", "base", "marker", "preparation", "prep", "antagonist", "oppos"}
	for _, k := range scanKeys {
		if strings.Contains(low, k) {
			return "scan"
		}
	}
	if strings.HasPrefix(low, "ant") {
		return "scan"
	}
	for _, k := range []string{"abut", "scanbody", "tibase", "ti-base"} {
		if strings.Contains(low, k) {
			return "abutment"
		}
	}
	for _, k := range []string{"crown", "bridge", "pontic", "coping", "framework", "veneer"} {
		if strings.Contains(low, k) {
			return "crownbridge"
		}
	}
	return "etc"
}

// looksLikeModelComponent reports whether a filename denotes a model/base/
// gingiva/jaw-scan component. Used for owner arbitration (construction vs.
// model ownership): any of these keywords means modelInfo owns the file.
func looksLikeModelComponent(low string) bool {
	for _, k := range []string{"modelgingiva", "gingiva", "modelbase", "base", "upperjaw", "lowerjaw", "_jaw", "jaw_"} {
		if strings.Contains(low, k) {
			return true
		}
	}
	return false
}

// isModelBaseOrGingivaName is the narrower keyword set consulted for the
// jaw-map, distinct from looksLikeModelComponent's owner-arbitration set:
// jaw-scan filenames (upperjaw/lowerjaw) are not in this set; they reach the
// jaw map through their scan category instead.
func isModelBaseOrGingivaName(low string) bool {
	for _, k := range []string{"modelgingiva", "gingiva", "modelbase", "base"} {
		if strings.Contains(low, k) {
			return true
		}
	}
	return false
}

// jawFor resolves the arch for one mesh basename with the strict priority:
// filename FDI teeth, then the modelInfo jaw map for scan-category meshes and
// model/gingiva/base components, then keyword/FDI inference, then upper.
func (p *ExoProvider) jawFor(base string, category string) models.Jaw {
	low := strings.ToLower(base)

	if jaw := fdi.DetermineJaw(fdi.Extract(base)); jaw == models.JawUpper || jaw == models.JawLower {
		return jaw
	}
	if category == "scan" || isModelBaseOrGingivaName(low) {
		if jaw, ok := p.jawMap[low]; ok && jaw != models.JawMixed {
			return jaw
		}
	}
	if jaw := fdi.InferJawFromString(base); jaw == models.JawUpper || jaw == models.JawLower {
		return jaw
	}
	return models.JawUpper
}

// GroupForMesh classifies a single mesh basename.
func (p *ExoProvider) GroupForMesh(base string) models.Group {
	low := strings.ToLower(base)
	category := exoCategory(strings.TrimSuffix(low, filepath.Ext(low)))
	if category == "etc" {
		return models.GroupEtc
	}
	return models.GroupFor(p.jawFor(base, category), category)
}

// Maps classifies every *.stl / *.ply directly under the folder.
func (p *ExoProvider) Maps() (map[string]models.Group, map[string]string, error) {
	groups := make(map[string]models.Group)
	display := make(map[string]string)
	labels := constructionLabels(p.ci)

	entries, err := os.ReadDir(p.folder)
	if err != nil {
		return groups, display, err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext != ".stl" && ext != ".ply" {
			continue
		}
		base := e.Name()
		putWithAlias(groups, base, p.GroupForMesh(base))

		label := strings.TrimSuffix(base, filepath.Ext(base))
		if override, ok := labels[strings.ToLower(base)]; ok {
			label = override
		}
		putDisplayWithAlias(display, base, label)
	}
	return groups, display, nil
}

// constructionLabels collects Label/Name overrides from
// ConstructionFileList/ConstructionFile entries, keyed by lowercase filename.
func constructionLabels(ci *Node) map[string]string {
	labels := make(map[string]string)
	if ci == nil {
		return labels
	}
	for _, list := range ci.FindAll("ConstructionFileList") {
		for _, cf := range list.FindAll("ConstructionFile") {
			fname := cf.ChildText("Filename")
			if fname == "" {
				continue
			}
			label := cf.ChildText("Label")
			if label == "" {
				label = cf.ChildText("Name")
			}
			if label == "" {
				continue
			}
			labels[strings.ToLower(vendorBase(fname))] = label
		}
	}
	return labels
}

// ── modelInfo jaw map ─────────────────────────────────────────────

// jawDescriptorTags is the fixed set of descriptor children consulted for
// jaw evidence on each modelInfo element.
var jawDescriptorTags = []string{
	"Jaw", "JawType", "UpperLower", "JawPosition", "Type", "Category",
	"ComponentType", "Label", "Name", "DisplayName", "ModelType",
	"BaseType", "GingivaType",
}

// buildModelInfoJawMap walks every modelInfo element carrying a Filename
// child and infers the jaw from its descriptor tags, all descendant text and
// tag names, falling back to the filename itself. Keys are the lowercase
// basename and its _reduced alias.
func buildModelInfoJawMap(mi *Node) map[string]models.Jaw {
	out := make(map[string]models.Jaw)
	if mi == nil {
		return out
	}
	mi.walk(func(n *Node) {
		fname := n.ChildText("Filename")
		if fname == "" {
			return
		}
		base := vendorBase(fname)

		var evidence []string
		for _, tag := range jawDescriptorTags {
			if t := n.ChildText(tag); t != "" {
				evidence = append(evidence, t)
			}
		}
		evidence = append(evidence, n.DeepText(), n.DeepTags())

		jaw := fdi.InferJawFromString(strings.Join(evidence, " "))
		if jaw == "" {
			jaw = fdi.InferJawFromString(base)
		}
		if jaw == "" {
			return
		}
		low := strings.ToLower(base)
		out[low] = jaw
		out[strings.ToLower(reducedAlias(base))] = jaw
	})
	return out
}

// JawMap exposes the modelInfo-derived jaw map.
func (p *ExoProvider) JawMap() map[string]models.Jaw { return p.jawMap }

// ── Transforms ────────────────────────────────────────────────────

// matchesFilename reports whether an element's Filename child names base.
func matchesFilename(n *Node, base string) bool {
	fname := n.ChildText("Filename")
	if fname == "" {
		return false
	}
	return strings.EqualFold(vendorBase(fname), base)
}

// ciFileTransform extracts the per-file matrix from a constructionInfo
// ConstructionFile element: ZRotationMatrix preferred, else a composed
// RotationMatrix + Translation/Offset.
func ciFileTransform(cf *Node) (geom.Mat4, bool) {
	if z := cf.Child("ZRotationMatrix"); z != nil {
		if m, ok := ParseMat4(z); ok {
			return m, true
		}
	}
	return composedTransform(cf, []string{"RotationMatrix"}, []string{"Translation", "Offset"})
}

// miMatrixTags is the fixed candidate priority for modelInfo matrices.
var miMatrixTags = []string{
	"TransformationMatrix", "ZRotationMatrix", "Matrix",
	"ModelMatrix", "MeshMatrix", "LocalMatrix",
}

// miFileTransform extracts the per-file matrix from a modelInfo element.
func miFileTransform(el *Node) (geom.Mat4, bool) {
	for _, tag := range miMatrixTags {
		if c := el.Child(tag); c != nil {
			if m, ok := ParseMat4(c); ok {
				return m, true
			}
		}
	}
	return composedTransform(el, []string{"RotationMatrix", "Rotation"},
		[]string{"Translation", "TranslationVector", "Offset", "T"})
}

func composedTransform(el *Node, rotTags, transTags []string) (geom.Mat4, bool) {
	rot := [9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1}
	var trans [3]float64
	haveRot, haveTrans := false, false
	for _, tag := range rotTags {
		if c := el.Child(tag); c != nil {
			if r, ok := ParseRot3(c); ok {
				rot = r
				haveRot = true
				break
			}
		}
	}
	for _, tag := range transTags {
		if c := el.Child(tag); c != nil {
			if t, ok := ParseVec3(c); ok {
				trans = t
				haveTrans = true
				break
			}
		}
	}
	if !haveRot && !haveTrans {
		return geom.Identity(), false
	}
	return geom.FromRotationTranslation(rot, trans), true
}

// PerFileTransform finds the raw (uninverted) per-file matrix for base in
// the given source root.
func PerFileTransform(root *Node, source string, base string) (geom.Mat4, bool) {
	if root == nil {
		return geom.Identity(), false
	}
	if source == "ci" {
		for _, list := range root.FindAll("ConstructionFileList") {
			for _, cf := range list.FindAll("ConstructionFile") {
				if matchesFilename(cf, base) {
					return ciFileTransform(cf)
				}
			}
		}
		return geom.Identity(), false
	}
	var m geom.Mat4
	found := false
	root.walk(func(n *Node) {
		if found || !matchesFilename(n, base) {
			return
		}
		if mm, ok := miFileTransform(n); ok {
			m = mm
			found = true
		}
	})
	if !found {
		return geom.Identity(), false
	}
	return m, true
}

// GlobalTransform finds the raw global matrix of a source root.
func GlobalTransform(root *Node, source string) (geom.Mat4, bool) {
	if root == nil {
		return geom.Identity(), false
	}
	tags := []string{"MatrixToScanDataFiles"}
	if source == "mi" {
		tags = []string{"MatrixToScanDataFiles", "GlobalMatrix", "MainMatrix", "ModelMatrix", "WorldMatrix"}
	}
	for _, tag := range tags {
		for _, n := range root.FindAll(tag) {
			if m, ok := ParseMat4(n); ok {
				return m, true
			}
		}
	}
	return geom.Identity(), false
}

// hasFileMatch reports whether a source references base at all (used by
// owner arbitration, independent of whether a matrix parses).
func hasFileMatch(root *Node, source string, base string) bool {
	if root == nil {
		return false
	}
	if source == "ci" {
		for _, list := range root.FindAll("ConstructionFileList") {
			for _, cf := range list.FindAll("ConstructionFile") {
				if matchesFilename(cf, base) {
					return true
				}
			}
		}
		return false
	}
	found := false
	root.walk(func(n *Node) {
		if !found && matchesFilename(n, base) {
			found = true
		}
	})
	return found
}

// Transform implements Provider: the owner-arbitrated effective transform
// for a mesh basename, `inv(Global) · inv(PerFile)` over whichever matrices
// the owning source supplies.
func (p *ExoProvider) Transform(basename string) geom.Mat4 {
	return EffectiveTransform(p.ci, p.mi, basename)
}

// EffectiveTransform is the pure arbitration function over the two parsed
// roots. Exactly one source ever contributes, preventing the
// double-transformation regression.
func EffectiveTransform(ci, mi *Node, basename string) geom.Mat4 {
	owner := ArbitrateOwner(
		hasFileMatch(ci, "ci", basename),
		hasFileMatch(mi, "mi", basename),
		basename,
	)
	var root *Node
	var source string
	switch owner {
	case OwnerConstruction:
		root, source = ci, "ci"
	case OwnerModel:
		root, source = mi, "mi"
	default:
		return geom.Identity()
	}

	eff := geom.Identity()
	if g, ok := GlobalTransform(root, source); ok {
		inv, invertible := g.Invert()
		if !invertible {
			log.Printf("[Exo] Singular global matrix in %s source, ignoring", source)
		}
		eff = inv
	}
	if pf, ok := PerFileTransform(root, source, basename); ok {
		inv, invertible := pf.Invert()
		if !invertible {
			log.Printf("[Exo] Singular per-file matrix for %s, ignoring", basename)
		} else {
			eff = eff.Mul(inv)
		}
	}
	return eff
}
