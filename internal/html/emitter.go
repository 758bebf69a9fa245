// Package html renders the self-contained viewer document. The viewer
// template is an opaque collaborator: the emitter's contract is only that
// every placeholder is substituted and the output is valid UTF-8.
package html

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/template"

	"github.com/dlaslab/htmlviewer-engine/pkg/models"
)

// escapeJS makes a string safe inside a single-quoted JS literal embedded in
// HTML: backslash, quote, the </ sequence, and raw line breaks.
func escapeJS(s string) string {
	r := strings.NewReplacer(
		`\`, `\\`,
		`'`, `\'`,
		"</", `<\/`,
		"\r", `\r`,
		"\n", `\n`,
	)
	return r.Replace(s)
}

// modelsLiteral renders the model list as a JS array literal, preserving
// enumeration order.
func modelsLiteral(entries []models.ModelEntry) string {
	var b strings.Builder
	b.WriteString("[")
	for i, e := range entries {
		if i > 0 {
			b.WriteString(",")
		}
		fmt.Fprintf(&b, "{name:'%s',b64:'%s',group:'%s',displayName:'%s'}",
			escapeJS(e.Name), escapeJS(e.B64), escapeJS(string(e.Group)), escapeJS(e.DisplayName))
	}
	b.WriteString("]")
	return b.String()
}

// colormapJSON renders the fixed group → RGB table in stable order.
func colormapJSON() string {
	var b strings.Builder
	b.WriteString("{")
	for i, g := range models.AllGroups {
		if i > 0 {
			b.WriteString(",")
		}
		fmt.Fprintf(&b, "%q:%d", string(g), models.GroupColors[g])
	}
	b.WriteString("}")
	return b.String()
}

func logoImg(b64 string) string {
	if b64 == "" {
		return ""
	}
	return `<img src="data:image/png;base64,` + b64 + `" alt="logo"/>`
}

type templateData struct {
	JSModels  string
	AnnosJSON string
	Colormap  string
	TopLogo   string
	UserLogo  string
}

var viewerTemplate = template.Must(template.New("viewer").Parse(viewerHTML))

// Emit writes the viewer document for the given model list. userLogoB64 may
// be empty; annotations start as an empty array and the viewer persists its
// edits back into the file.
func Emit(path string, entries []models.ModelEntry, userLogoB64 string) error {
	for _, e := range entries {
		if !e.Group.Valid() {
			return fmt.Errorf("model %q carries invalid group %q", e.Name, e.Group)
		}
	}
	annos, _ := json.Marshal([]string{})
	data := templateData{
		JSModels:  modelsLiteral(entries),
		AnnosJSON: string(annos),
		Colormap:  colormapJSON(),
		TopLogo:   logoImg(dlasLogoB64),
		UserLogo:  logoImg(userLogoB64),
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := viewerTemplate.Execute(f, data); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}
