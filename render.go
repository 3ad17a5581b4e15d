package hxctl

import (
	"context"
	"io"
	"sort"
	"strings"

	"github.com/a-h/templ"
	"github.com/pkg/errors"
)

// Render writes the control as HTML: the opening tag with the id and type
// attributes, the remaining attributes in name order, class, style, the
// encoded fields and named attributes, then the children and the closing
// tag. Void elements have neither children nor a closing tag.
func (b *Base) Render(ctx context.Context, w io.Writer) error {
	attrs := b.page.attrs
	var sb strings.Builder
	sb.WriteString("<")
	sb.WriteString(b.dom.Tag)
	writeAttr(&sb, attrs.ID, b.id)
	writeAttr(&sb, attrs.Type, b.typ)
	for _, name := range sortedKeys(b.dom.Attrs) {
		switch name {
		case attrs.ID, attrs.Type, attrs.Fields, attrs.Named, "class", "style":
			continue
		}
		writeAttr(&sb, name, b.dom.Attrs[name])
	}
	if len(b.dom.Classes) > 0 {
		writeAttr(&sb, "class", strings.Join(b.dom.Classes, " "))
	}
	if len(b.dom.Style) > 0 {
		writeAttr(&sb, "style", b.dom.styleString())
	}

	fields, err := b.page.codec.Encode(b.Fields())
	if err != nil {
		return errors.Wrapf(err, "cannot encode fields for %s", b.id)
	}
	if fields != "" {
		writeAttr(&sb, attrs.Fields, fields)
	}
	if len(b.named) > 0 {
		named := make(map[string]any, len(b.named))
		for k, v := range b.named {
			named[k] = v
		}
		encoded, err := b.page.codec.Encode(named)
		if err != nil {
			return errors.Wrapf(err, "cannot encode named controls for %s", b.id)
		}
		writeAttr(&sb, attrs.Named, encoded)
	}
	sb.WriteString(">")

	if _, err := io.WriteString(w, sb.String()); err != nil {
		return err
	}
	if b.dom.Void() {
		return nil
	}
	for _, c := range b.children {
		if err := c.Render(ctx, w); err != nil {
			return err
		}
	}
	_, err = io.WriteString(w, "</"+b.dom.Tag+">")
	return err
}

// RenderString renders c to a string.
func RenderString(c templ.Component) (string, error) {
	var sb strings.Builder
	if err := c.Render(context.Background(), &sb); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// Text returns a component rendering s as escaped text.
func Text(s string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := io.WriteString(w, templ.EscapeString(s))
		return err
	})
}

func writeAttr(sb *strings.Builder, name, value string) {
	sb.WriteString(" ")
	sb.WriteString(name)
	sb.WriteString(`="`)
	sb.WriteString(templ.EscapeString(value))
	sb.WriteString(`"`)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
