package html

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	xhtml "golang.org/x/net/html"

	"github.com/dlaslab/htmlviewer-engine/pkg/models"
)

func TestEmit_SubstitutesAllPlaceholders(t *testing.T) {
	path := filepath.Join(t.TempDir(), "case.html")
	entries := []models.ModelEntry{
		{Name: "crown_11.stl", B64: "QUJD", Group: models.GroupUpperCrownBridge, DisplayName: "크라운 11-13"},
		{Name: "BITE_reduced.stl", B64: "REVG", Group: models.GroupBite, DisplayName: "BITE"},
	}
	if err := Emit(path, entries, "TE9HTw=="); err != nil {
		t.Fatalf("Emit failed: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	doc := string(raw)

	if strings.Contains(doc, "{{.") {
		t.Error("Expected every template placeholder to be substituted")
	}
	for _, want := range []string{
		"크라운 11-13",
		`"bite":16711680`,
		`"upper_crownbridge":16777200`,
		"TE9HTw==", // user logo
		dlasLogoB64[:24],
	} {
		if !strings.Contains(doc, want) {
			t.Errorf("Expected document to contain %q", want)
		}
	}

	// The document must parse as HTML.
	if _, err := xhtml.Parse(strings.NewReader(doc)); err != nil {
		t.Errorf("Expected emitted document to parse as HTML: %v", err)
	}
}

func TestEmit_PreservesModelOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "case.html")
	entries := []models.ModelEntry{
		{Name: "b.stl", B64: "Yg==", Group: models.GroupEtc, DisplayName: "b"},
		{Name: "a.stl", B64: "YQ==", Group: models.GroupEtc, DisplayName: "a"},
	}
	if err := Emit(path, entries, ""); err != nil {
		t.Fatal(err)
	}
	raw, _ := os.ReadFile(path)
	doc := string(raw)
	if strings.Index(doc, "name:'b.stl'") > strings.Index(doc, "name:'a.stl'") {
		t.Error("Expected enumeration order preserved in the model list")
	}
}

func TestEmit_RejectsInvalidGroup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "case.html")
	entries := []models.ModelEntry{{Name: "x.stl", Group: models.Group("bogus")}}
	if err := Emit(path, entries, ""); err == nil {
		t.Error("Expected an error for a group outside the closed set")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("Expected no file left behind on failure")
	}
}

func TestEscapeJS(t *testing.T) {
	cases := []struct{ in, want string }{
		{`back\slash`, `back\\slash`},
		{"it's", `it\'s`},
		{"</script>", `<\/script>`},
		{"line\r\nbreak", `line\r\nbreak`},
	}
	for _, c := range cases {
		if got := escapeJS(c.in); got != c.want {
			t.Errorf("escapeJS(%q): Expected %q, got %q", c.in, c.want, got)
		}
	}
}
