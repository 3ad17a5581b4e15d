// Package generator writes typed field accessors for widgets.
//
// A widget is a struct embedding *hxctl.Base. When the same file declares
// a struct named after the widget with a Fields suffix, every field of it
// becomes a persisted data property with a getter, a setter and whole
// struct State/SetState methods:
//
//	type Counter struct {
//	    *hxctl.Base
//	}
//
//	type CounterFields struct {
//	    Count int    `ctl:"count"`
//	    Label string `ctl:"label,omitempty"`
//	    Cache []byte `ctl:"-"`
//	}
//
// Output goes to a *_ctl.go file next to the source.
package generator

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-logr/logr"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

const generatedSuffix = "_ctl.go"

// Options configures the generator.
type Options struct {
	DryRun bool
	// Fs defaults to the OS filesystem.
	Fs  afero.Fs
	Log logr.Logger
}

// Generator generates hxctl code.
type Generator struct {
	opts Options
	fs   afero.Fs
	log  logr.Logger
	fset *token.FileSet
}

// New creates a new generator.
func New(opts Options) *Generator {
	g := &Generator{
		opts: opts,
		fs:   opts.Fs,
		log:  opts.Log,
		fset: token.NewFileSet(),
	}
	if g.fs == nil {
		g.fs = afero.NewOsFs()
	}
	if g.log.GetSink() == nil {
		g.log = logr.Discard()
	}
	return g
}

// Generate generates code for the given package patterns.
func (g *Generator) Generate(patterns ...string) error {
	packages, err := g.findPackages(patterns)
	if err != nil {
		return err
	}

	for _, pkg := range packages {
		if err := g.generatePackage(pkg); err != nil {
			return errors.Wrapf(err, "package %s", pkg)
		}
	}

	return nil
}

// Clean removes generated files for the given package patterns.
func (g *Generator) Clean(patterns ...string) error {
	packages, err := g.findPackages(patterns)
	if err != nil {
		return err
	}

	for _, pkg := range packages {
		if err := g.cleanPackage(pkg); err != nil {
			return errors.Wrapf(err, "package %s", pkg)
		}
	}

	return nil
}

// findPackages resolves package patterns to directory paths.
func (g *Generator) findPackages(patterns []string) ([]string, error) {
	var packages []string

	for _, pattern := range patterns {
		if !strings.HasSuffix(pattern, "/...") {
			packages = append(packages, pattern)
			continue
		}

		root := strings.TrimSuffix(pattern, "/...")
		if root == "" {
			root = "."
		}
		err := afero.Walk(g.fs, root, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if !info.IsDir() {
				return nil
			}
			base := filepath.Base(path)
			if path != root && (strings.HasPrefix(base, ".") || strings.HasPrefix(base, "_") || base == "vendor" || base == "testdata") {
				return filepath.SkipDir
			}

			entries, err := afero.ReadDir(g.fs, path)
			if err != nil {
				return nil
			}
			for _, entry := range entries {
				if isSource(entry) {
					packages = append(packages, path)
					break
				}
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	return packages, nil
}

func isSource(info os.FileInfo) bool {
	name := info.Name()
	return !info.IsDir() && strings.HasSuffix(name, ".go") &&
		!strings.HasSuffix(name, "_test.go") && !strings.HasSuffix(name, generatedSuffix)
}

// generatePackage generates code for a single package.
func (g *Generator) generatePackage(pkgPath string) error {
	entries, err := afero.ReadDir(g.fs, pkgPath)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if !isSource(entry) {
			continue
		}
		filename := filepath.Join(pkgPath, entry.Name())
		src, err := afero.ReadFile(g.fs, filename)
		if err != nil {
			return err
		}
		file, err := parser.ParseFile(g.fset, filename, src, parser.ParseComments)
		if err != nil {
			return err
		}

		widgets := g.findWidgets(filename, file)
		if len(widgets) == 0 {
			continue
		}
		if err := g.generateFile(pkgPath, file.Name.Name, filename, widgets); err != nil {
			return err
		}
	}

	return nil
}

// cleanPackage removes generated files from a package.
func (g *Generator) cleanPackage(pkgPath string) error {
	entries, err := afero.ReadDir(g.fs, pkgPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), generatedSuffix) {
			continue
		}
		path := filepath.Join(pkgPath, entry.Name())
		g.log.Info("removing", "file", path)
		if g.opts.DryRun {
			continue
		}
		if err := g.fs.Remove(path); err != nil {
			return err
		}
	}

	return nil
}

// WidgetInfo holds information about a discovered widget.
type WidgetInfo struct {
	SourceFile  string
	TypeName    string // e.g. "Counter"
	TypeTag     string // e.g. "counter", from hxctl.Embed
	FieldsType  string // e.g. "CounterFields", empty when absent
	Fields      []Field
	Constructor string // e.g. "NewCounter", empty when absent
}

// Field is one persisted property.
type Field struct {
	Name      string
	Type      string
	Key       string
	OmitEmpty bool
}

// findWidgets finds all widget types in a file.
func (g *Generator) findWidgets(filename string, file *ast.File) []*WidgetInfo {
	structs := make(map[string]*ast.StructType)
	var order []string
	for _, decl := range file.Decls {
		genDecl, ok := decl.(*ast.GenDecl)
		if !ok || genDecl.Tok != token.TYPE {
			continue
		}
		for _, spec := range genDecl.Specs {
			typeSpec, ok := spec.(*ast.TypeSpec)
			if !ok {
				continue
			}
			if st, ok := typeSpec.Type.(*ast.StructType); ok {
				structs[typeSpec.Name.Name] = st
				order = append(order, typeSpec.Name.Name)
			}
		}
	}

	var widgets []*WidgetInfo
	for _, name := range order {
		if !embedsBase(structs[name]) {
			continue
		}
		w := &WidgetInfo{
			SourceFile: filename,
			TypeName:   name,
			TypeTag:    strings.ToLower(name),
		}
		if fields, ok := structs[name+"Fields"]; ok {
			w.FieldsType = name + "Fields"
			w.Fields = g.findFields(fields)
		}
		g.findConstructor(file, w)
		widgets = append(widgets, w)
	}
	return widgets
}

// embedsBase checks if a struct embeds *hxctl.Base.
func embedsBase(st *ast.StructType) bool {
	for _, field := range st.Fields.List {
		if len(field.Names) != 0 {
			continue
		}
		star, ok := field.Type.(*ast.StarExpr)
		if !ok {
			continue
		}
		switch x := star.X.(type) {
		case *ast.SelectorExpr:
			if ident, ok := x.X.(*ast.Ident); ok && ident.Name == "hxctl" && x.Sel.Name == "Base" {
				return true
			}
		case *ast.Ident:
			if x.Name == "Base" {
				return true
			}
		}
	}
	return false
}

// findFields parses the fields struct.
func (g *Generator) findFields(st *ast.StructType) []Field {
	var fields []Field
	for _, field := range st.Fields.List {
		if len(field.Names) == 0 {
			continue
		}
		typ := g.typeToString(field.Type)
		for _, name := range field.Names {
			if !name.IsExported() {
				continue
			}
			f := Field{Name: name.Name, Type: typ}
			var exclude bool
			if field.Tag != nil {
				f.Key, f.OmitEmpty, exclude = parseTag(strings.Trim(field.Tag.Value, "`"))
			}
			if exclude || !isScalarType(typ) {
				continue
			}
			if reserved[name.Name] {
				g.log.Info("skipping field that shadows a Base method", "field", name.Name)
				continue
			}
			if f.Key == "" {
				f.Key = strings.ToLower(name.Name)
			}
			fields = append(fields, f)
		}
	}
	return fields
}

// findConstructor looks for func New<TypeName>(spec hxctl.Spec) and the
// type tag passed to hxctl.Embed inside it.
func (g *Generator) findConstructor(file *ast.File, w *WidgetInfo) {
	for _, decl := range file.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if !ok || fn.Recv != nil || fn.Body == nil {
			continue
		}
		if fn.Name.Name == "New"+w.TypeName && fn.Type.Params.NumFields() == 1 {
			w.Constructor = fn.Name.Name
		}
		ast.Inspect(fn.Body, func(n ast.Node) bool {
			call, ok := n.(*ast.CallExpr)
			if !ok || len(call.Args) != 3 {
				return true
			}
			sel, ok := call.Fun.(*ast.SelectorExpr)
			if !ok || sel.Sel.Name != "Embed" {
				return true
			}
			if !refersTo(call.Args[0], w.TypeName, fn) {
				return true
			}
			if lit, ok := call.Args[2].(*ast.BasicLit); ok && lit.Kind == token.STRING {
				w.TypeTag = strings.Trim(lit.Value, "`\"")
			}
			return true
		})
	}
}

// refersTo reports whether expr is a variable of type *typeName in fn,
// following `c := &TypeName{}` style declarations.
func refersTo(expr ast.Expr, typeName string, fn *ast.FuncDecl) bool {
	ident, ok := expr.(*ast.Ident)
	if !ok {
		return false
	}
	found := false
	ast.Inspect(fn.Body, func(n ast.Node) bool {
		assign, ok := n.(*ast.AssignStmt)
		if !ok || found {
			return !found
		}
		for i, lhs := range assign.Lhs {
			l, ok := lhs.(*ast.Ident)
			if !ok || l.Name != ident.Name || i >= len(assign.Rhs) {
				continue
			}
			if u, ok := assign.Rhs[i].(*ast.UnaryExpr); ok && u.Op == token.AND {
				if cl, ok := u.X.(*ast.CompositeLit); ok {
					if t, ok := cl.Type.(*ast.Ident); ok && t.Name == typeName {
						found = true
					}
				}
			}
		}
		return true
	})
	return found
}

// typeToString converts an AST type to a string representation.
func (g *Generator) typeToString(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.Ident:
		return t.Name
	case *ast.StarExpr:
		return "*" + g.typeToString(t.X)
	case *ast.SelectorExpr:
		return g.typeToString(t.X) + "." + t.Sel.Name
	case *ast.ArrayType:
		if t.Len == nil {
			return "[]" + g.typeToString(t.Elt)
		}
		return "[...]" + g.typeToString(t.Elt)
	case *ast.MapType:
		return "map[" + g.typeToString(t.Key) + "]" + g.typeToString(t.Value)
	case *ast.IndexExpr:
		return g.typeToString(t.X) + "[" + g.typeToString(t.Index) + "]"
	default:
		return fmt.Sprintf("%T", expr)
	}
}

// parseTag parses a ctl struct tag.
func parseTag(tagStr string) (key string, omitEmpty bool, exclude bool) {
	for _, part := range strings.Split(tagStr, " ") {
		if !strings.HasPrefix(part, `ctl:"`) {
			continue
		}
		value := strings.TrimSuffix(strings.TrimPrefix(part, `ctl:"`), `"`)
		if value == "-" {
			return "", false, true
		}

		parts := strings.Split(value, ",")
		key = parts[0]
		for _, p := range parts[1:] {
			if p == "omitempty" {
				omitEmpty = true
			}
		}
		return key, omitEmpty, false
	}
	return "", false, false
}

// reserved holds Base method names a generated accessor would shadow.
var reserved = map[string]bool{
	"Activate": true, "Active": true, "Add": true, "Bind": true,
	"Children": true, "Clear": true, "Computed": true, "Controls": true,
	"Core": true, "DOM": true, "Data": true, "Element": true,
	"Field": true, "Fields": true, "ID": true, "Name": true,
	"Named": true, "On": true, "Page": true, "Parent": true,
	"Persist": true, "Remove": true, "Render": true, "Self": true,
	"State": true, "Type": true, "View": true, "Watch": true,
}

// isScalarType checks if a type can be persisted in the fields attribute.
func isScalarType(typeName string) bool {
	switch typeName {
	case "bool",
		"int", "int8", "int16", "int32", "int64",
		"uint", "uint8", "uint16", "uint32", "uint64",
		"float32", "float64",
		"string",
		"time.Time":
		return true
	default:
		return false
	}
}
