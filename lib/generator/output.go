package generator

import (
	"bytes"
	"fmt"
	"go/format"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/pkg/errors"
)

// generateFile writes the *_ctl.go file for the widgets of one source
// file.
func (g *Generator) generateFile(pkgPath, pkgName, source string, widgets []*WidgetInfo) error {
	baseName := strings.TrimSuffix(filepath.Base(source), ".go")
	outputFile := filepath.Join(pkgPath, baseName+generatedSuffix)

	g.log.Info("generating", "file", outputFile, "widgets", len(widgets))
	if g.opts.DryRun {
		return nil
	}

	code, err := g.renderTemplate(pkgName, source, widgets)
	if err != nil {
		return errors.Wrap(err, "render template")
	}

	formatted, err := format.Source(code)
	if err != nil {
		// Keep the unformatted output around for debugging.
		if writeErr := g.writeFile(outputFile+".unformatted", code); writeErr == nil {
			g.log.Info("wrote unformatted code", "file", outputFile+".unformatted")
		}
		return errors.Wrap(err, "format source")
	}

	return g.writeFile(outputFile, formatted)
}

func (g *Generator) writeFile(path string, data []byte) error {
	f, err := g.fs.Create(path)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// renderTemplate renders the generated code template.
func (g *Generator) renderTemplate(pkgName, source string, widgets []*WidgetInfo) ([]byte, error) {
	tmpl, err := template.New("ctl").Funcs(template.FuncMap{
		"getter": getterCode,
		"setter": setterCode,
	}).Parse(ctlTemplate)
	if err != nil {
		return nil, err
	}

	data := struct {
		Package   string
		Source    string
		Widgets   []*WidgetInfo
		NeedsTime bool
	}{
		Package:   pkgName,
		Source:    filepath.Base(source),
		Widgets:   widgets,
		NeedsTime: needsTime(widgets),
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// needsTime reports whether any field is a time.Time, which the generated
// getters and setters format through the time package.
func needsTime(widgets []*WidgetInfo) bool {
	for _, w := range widgets {
		for _, f := range w.Fields {
			if f.Type == "time.Time" {
				return true
			}
		}
	}
	return false
}

// getterCode generates the body of a field getter.
func getterCode(f Field) string {
	get := fmt.Sprintf(`c.Field(%q)`, f.Key)
	switch f.Type {
	case "string", "bool":
		return fmt.Sprintf("v, _ := %s.(%s)\nreturn v", get, f.Type)
	case "int64":
		return fmt.Sprintf("return hxctl.ToInt64(%s)", get)
	case "int", "int8", "int16", "int32",
		"uint", "uint8", "uint16", "uint32", "uint64":
		return fmt.Sprintf("return %s(hxctl.ToInt64(%s))", f.Type, get)
	case "float64":
		return fmt.Sprintf("return hxctl.ToFloat64(%s)", get)
	case "float32":
		return fmt.Sprintf("return float32(hxctl.ToFloat64(%s))", get)
	case "time.Time":
		return fmt.Sprintf("s, _ := %s.(string)\nt, _ := time.Parse(time.RFC3339Nano, s)\nreturn t", get)
	default:
		return fmt.Sprintf("var zero %s\nreturn zero", f.Type)
	}
}

// setterCode generates the body of a field setter.
func setterCode(f Field) string {
	value := "v"
	if f.Type == "time.Time" {
		value = "v.Format(time.RFC3339Nano)"
	}
	if !f.OmitEmpty {
		return fmt.Sprintf("return c.SetField(%q, %s)", f.Key, value)
	}

	var nonZero string
	switch f.Type {
	case "string":
		nonZero = `v != ""`
	case "bool":
		nonZero = "v"
	case "time.Time":
		nonZero = "!v.IsZero()"
	default:
		nonZero = "v != 0"
	}
	return fmt.Sprintf("if %s {\nc.Persist(%q)\n}\nreturn c.Data().Set(%q, %s)", nonZero, f.Key, f.Key, value)
}

const ctlTemplate = `// Code generated by hxctl generate. DO NOT EDIT.
// Source: {{.Source}}

package {{.Package}}

import (
{{if .NeedsTime}}	"time"

{{end}}	"github.com/pthm/hxctl"
)
{{range .Widgets}}{{$w := .}}
// {{.TypeName}}Type is the type tag {{.TypeName}} renders and registers under.
const {{.TypeName}}Type = "{{.TypeTag}}"

var _ hxctl.Control = (*{{.TypeName}})(nil)
{{if .Constructor}}
// Register{{.TypeName}} registers {{.Constructor}} under {{.TypeName}}Type.
func Register{{.TypeName}}(p *hxctl.Page) {
	p.Register({{.TypeName}}Type, {{.Constructor}})
}
{{end}}{{range .Fields}}
// {{.Name}} returns the "{{.Key}}" field.
func (c *{{$w.TypeName}}) {{.Name}}() {{.Type}} {
	{{getter .}}
}

// Set{{.Name}} writes the "{{.Key}}" field.
func (c *{{$w.TypeName}}) Set{{.Name}}(v {{.Type}}) error {
	{{setter .}}
}
{{end}}{{if .FieldsType}}
// State returns every field of {{.TypeName}}.
func (c *{{.TypeName}}) State() {{.FieldsType}} {
	return {{.FieldsType}}{
	{{- range .Fields}}
		{{.Name}}: c.{{.Name}}(),
	{{- end}}
	}
}

// SetState writes every field of {{.TypeName}}.
func (c *{{.TypeName}}) SetState(s {{.FieldsType}}) error {
	{{- range .Fields}}
	if err := c.Set{{.Name}}(s.{{.Name}}); err != nil {
		return err
	}
	{{- end}}
	return nil
}
{{end}}{{end}}`
