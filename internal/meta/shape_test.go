package meta

import (
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/dlaslab/htmlviewer-engine/pkg/models"
)

const orderXML = `<?xml version="1.0" encoding="utf-8"?>
<TDM xmlns="http://www.3shape.com/tdm">
  <ThreeShapeOrderNo>ORD1</ThreeShapeOrderNo>
  <ModelElements>
    <ModelElement displayName="크라운 11-13">
      <ModelElementIndex>1</ModelElementIndex>
    </ModelElement>
    <ModelElement displayName="어버트먼트 36">
      <ModelElementIndex>2</ModelElementIndex>
      <ModelFileName>C:\cases\custom_abut.stl</ModelFileName>
      <ScanFiles>
        <ScanFile path="scans\PrepScan.stl"/>
        <ScanFile path="scans\AntagonistScan.stl"/>
      </ScanFiles>
    </ModelElement>
  </ModelElements>
</TDM>
`

func writeOrderFile(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, "order.3ox"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestShapeProvider_CrownRange(t *testing.T) {
	dir := t.TempDir()
	writeOrderFile(t, dir, orderXML)
	p, err := NewShapeProvider(dir)
	if err != nil {
		t.Fatalf("NewShapeProvider failed: %v", err)
	}
	groups, display, err := p.Maps()
	if err != nil {
		t.Fatalf("Maps failed: %v", err)
	}

	if got := groups["ord1_1.stl"]; got != models.GroupUpperCrownBridge {
		t.Errorf("Expected upper_crownbridge for ord1_1.stl, got %s", got)
	}
	if got := groups["ord1_1_reduced.stl"]; got != models.GroupUpperCrownBridge {
		t.Errorf("Expected _reduced alias to share the group, got %s", got)
	}
	if got := display["ord1_1.stl"]; got != "크라운 11-13" {
		t.Errorf("Expected Korean display label, got %q", got)
	}
}

func TestShapeProvider_ModelFileNameWins(t *testing.T) {
	dir := t.TempDir()
	writeOrderFile(t, dir, orderXML)
	p, err := NewShapeProvider(dir)
	if err != nil {
		t.Fatal(err)
	}
	groups, _, err := p.Maps()
	if err != nil {
		t.Fatal(err)
	}
	if got := groups["custom_abut.stl"]; got != models.GroupLowerAbutment {
		t.Errorf("Expected lower_abutment for custom_abut.stl (tooth 36), got %s", got)
	}
	if _, ok := groups["ord1_2.stl"]; ok {
		t.Error("Expected no synthesized name when ModelFileName is present")
	}
}

func TestShapeProvider_ScanClassification(t *testing.T) {
	dir := t.TempDir()
	writeOrderFile(t, dir, orderXML)
	p, err := NewShapeProvider(dir)
	if err != nil {
		t.Fatal(err)
	}
	groups, _, err := p.Maps()
	if err != nil {
		t.Fatal(err)
	}
	// The order has both an upper element (crown 11-13) and a lower one
	// (abutment 36), so the scan_1 convention applies; neither scan name
	// carries scan_1, so both land on the lower arch.
	if got := groups["prepscan.stl"]; got != models.GroupLowerScan {
		t.Errorf("Expected lower_scan for prep scan, got %s", got)
	}
	if got := groups["antagonistscan.stl"]; got != models.GroupLowerScan {
		t.Errorf("Expected lower_scan for antagonist scan, got %s", got)
	}
}

func TestShapeProvider_SingleJawScans(t *testing.T) {
	dir := t.TempDir()
	writeOrderFile(t, dir, `<?xml version="1.0"?>
<TDM xmlns="http://www.3shape.com/tdm">
  <ThreeShapeOrderNo>ORD2</ThreeShapeOrderNo>
  <ModelElement displayName="crown 36-37">
    <ModelElementIndex>1</ModelElementIndex>
    <ScanFiles>
      <ScanFile path="PrepScan.stl"/>
      <ScanFile path="AntagonistScan.stl"/>
    </ScanFiles>
  </ModelElement>
</TDM>
`)
	p, err := NewShapeProvider(dir)
	if err != nil {
		t.Fatal(err)
	}
	groups, _, err := p.Maps()
	if err != nil {
		t.Fatal(err)
	}
	if got := groups["prepscan.stl"]; got != models.GroupLowerScan {
		t.Errorf("Expected prep on the working (lower) jaw, got %s", got)
	}
	if got := groups["antagonistscan.stl"]; got != models.GroupUpperScan {
		t.Errorf("Expected antagonist on the opposing (upper) jaw, got %s", got)
	}
}

func TestShapeProvider_UTF16OrderFile(t *testing.T) {
	dir := t.TempDir()
	enc := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder()
	utf16Bytes, _, err := transform.Bytes(enc, []byte(orderXML))
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "order.3ox"), utf16Bytes, 0o644); err != nil {
		t.Fatal(err)
	}
	p, err := NewShapeProvider(dir)
	if err != nil {
		t.Fatalf("Expected UTF-16 order file to parse: %v", err)
	}
	groups, _, err := p.Maps()
	if err != nil {
		t.Fatal(err)
	}
	if got := groups["ord1_1.stl"]; got != models.GroupUpperCrownBridge {
		t.Errorf("Expected upper_crownbridge from UTF-16 order, got %s", got)
	}
}

func TestShapeProvider_MissingOrderFile(t *testing.T) {
	if _, err := NewShapeProvider(t.TempDir()); err == nil {
		t.Error("Expected an error for a folder without *.3ox")
	}
}
