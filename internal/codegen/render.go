package codegen

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// Output file names.
const (
	HeaderFile = "lvgl_widgets.h"
	SourceFile = "lvgl_widgets.cpp"
)

// File is one rendered artifact.
type File struct {
	Name    string
	Content []byte
}

var templates = template.Must(template.New("").Funcs(template.FuncMap{
	"hex":    hexBlock,
	"indent": indent,
	"join":   strings.Join,
}).ParseFS(templateFS, "templates/*.tmpl"))

type renderData struct {
	Uses       []string
	Components []string
	Progmem    []ProgmemArray
	Globals    []string
	Setup      []string
	Actions    []Action
}

// Render produces the header and source files for the session.
func (s *Session) Render() ([]File, error) {
	data := renderData{
		Uses:       s.Uses(),
		Components: s.Components(),
		Progmem:    s.progmem,
		Globals:    s.globals,
		Setup:      s.setup,
		Actions:    s.actions,
	}

	files := make([]File, 0, 2)
	for _, name := range []string{HeaderFile, SourceFile} {
		var buf bytes.Buffer
		if err := templates.ExecuteTemplate(&buf, name+".tmpl", data); err != nil {
			return nil, fmt.Errorf("failed to render %s: %w", name, err)
		}
		files = append(files, File{Name: name, Content: buf.Bytes()})
	}
	return files, nil
}

const bytesPerLine = 16

// hexBlock formats data as comma separated hex bytes, sixteen per line.
func hexBlock(data []byte) string {
	var b strings.Builder
	for i, c := range data {
		if i%bytesPerLine == 0 {
			if i > 0 {
				b.WriteString(",\n")
			}
			b.WriteString("  ")
		} else {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "0x%02X", c)
	}
	return b.String()
}

// indent prefixes every non-empty line of s.
func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		if l != "" {
			lines[i] = prefix + l
		}
	}
	return strings.Join(lines, "\n")
}
