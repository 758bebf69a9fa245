package meta

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/dlaslab/htmlviewer-engine/internal/fdi"
	"github.com/dlaslab/htmlviewer-engine/internal/geom"
	"github.com/dlaslab/htmlviewer-engine/pkg/models"
)

// ShapeProvider reads the Shape-Vendor order file (*.3ox) and derives the
// group and display maps from its model elements. Shape cases carry no
// per-mesh transforms; everything is already in one coordinate system.
type ShapeProvider struct {
	folder  string
	orderNo string
	root    *Node
}

// FindOrderFile locates the first *.3ox in folder, or "".
func FindOrderFile(folder string) string {
	entries, err := os.ReadDir(folder)
	if err != nil {
		return ""
	}
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".3ox") {
			return filepath.Join(folder, e.Name())
		}
	}
	return ""
}

// NewShapeProvider parses the folder's order file. A missing or malformed
// order file is an error; the caller falls back to filename heuristics.
func NewShapeProvider(folder string) (*ShapeProvider, error) {
	orderPath := FindOrderFile(folder)
	if orderPath == "" {
		return nil, fmt.Errorf("no *.3ox order file in %s", folder)
	}
	root, err := ParseXMLFile(orderPath)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %v", filepath.Base(orderPath), err)
	}
	p := &ShapeProvider{folder: folder, root: root}
	if nodes := root.FindAll("ThreeShapeOrderNo"); len(nodes) > 0 {
		p.orderNo = strings.TrimSpace(nodes[0].Text)
	}
	return p, nil
}

// Transform always returns identity for Shape cases.
func (p *ShapeProvider) Transform(string) geom.Mat4 { return geom.Identity() }

// elementCategory classifies a model element by its display name.
func elementCategory(displayName string) string {
	low := strings.ToLower(displayName)
	switch {
	case strings.Contains(displayName, "어버트먼트") || strings.Contains(low, "abutment"):
		return "abutment"
	case strings.Contains(displayName, "브릿지") || strings.Contains(low, "bridge") ||
		strings.Contains(displayName, "크라운") || strings.Contains(low, "crown"):
		return "crownbridge"
	default:
		return "etc"
	}
}

// stlNameFor resolves the mesh filename for a model element: an explicit
// ModelFileName wins, otherwise <OrderNo>_<Index>.stl is synthesized.
func (p *ShapeProvider) stlNameFor(el *Node) string {
	if name := el.ChildText("ModelFileName"); name != "" {
		return vendorBase(name)
	}
	index := el.ChildText("ModelElementIndex")
	if index == "" {
		return ""
	}
	return fmt.Sprintf("%s_%s.stl", p.orderNo, index)
}

// Maps walks every ModelElement and its scan files.
func (p *ShapeProvider) Maps() (map[string]models.Group, map[string]string, error) {
	groups := make(map[string]models.Group)
	display := make(map[string]string)

	type scanRef struct{ name string }
	var scans []scanRef
	hasUpper, hasLower := false, false

	for _, el := range p.root.FindAll("ModelElement") {
		displayName := el.Attr("displayName")
		stlName := p.stlNameFor(el)
		if stlName == "" {
			log.Printf("[Shape] Element %q has neither ModelFileName nor index, skipping", displayName)
			continue
		}

		jaw := fdi.DetermineJaw(fdi.Extract(displayName))
		category := elementCategory(displayName)
		group := models.GroupEtc
		if jaw != models.JawMixed && category != "etc" {
			group = models.GroupFor(jaw, category)
		}
		putWithAlias(groups, stlName, group)
		label := displayName
		if label == "" {
			label = strings.TrimSuffix(stlName, filepath.Ext(stlName))
		}
		putDisplayWithAlias(display, stlName, label)

		switch jaw {
		case models.JawUpper:
			hasUpper = true
		case models.JawLower:
			hasLower = true
		}

		for _, sf := range el.FindAll("ScanFile") {
			path := sf.Attr("path")
			if path == "" {
				path = strings.TrimSpace(sf.Text)
			}
			if path == "" {
				continue
			}
			scans = append(scans, scanRef{name: vendorBase(path)})
		}
	}

	workingJaw := models.JawUpper
	if hasLower && !hasUpper {
		workingJaw = models.JawLower
	}
	opposing := models.JawLower
	if workingJaw == models.JawLower {
		opposing = models.JawUpper
	}

	for _, s := range scans {
		var group models.Group
		switch {
		case hasUpper && hasLower:
			// Dual-arch orders: scan_1 is the upper model scan.
			if strings.Contains(strings.ToLower(s.name), "scan_1") {
				group = models.GroupUpperScan
			} else {
				group = models.GroupLowerScan
			}
		case IsAntName(s.name):
			group = models.GroupFor(opposing, "scan")
		default:
			// Preps and unlabeled scans belong to the working jaw.
			group = models.GroupFor(workingJaw, "scan")
		}
		putWithAlias(groups, s.name, group)
		putDisplayWithAlias(display, s.name, strings.TrimSuffix(s.name, filepath.Ext(s.name)))
	}

	return groups, display, nil
}
