package hxctl

import (
	"slices"
	"sort"
	"strings"

	"github.com/pthm/hxctl/lib/dom"
)

// DOM describes the element a control renders as. Attributes, classes and
// style are kept separately so rendering can emit them in a stable order.
type DOM struct {
	Tag     string
	Attrs   map[string]string
	Classes []string
	Style   map[string]string
}

// Void reports whether Tag is a void element.
func (d *DOM) Void() bool {
	return dom.IsVoid(d.Tag)
}

// SetAttr sets an attribute. The class and style attributes are routed to
// AddClass and SetStyle.
func (d *DOM) SetAttr(name, value string) {
	switch name {
	case "class":
		d.Classes = nil
		d.AddClass(strings.Fields(value)...)
	case "style":
		d.Style = nil
		for name, value := range parseStyle(value) {
			d.SetStyle(name, value)
		}
	default:
		if d.Attrs == nil {
			d.Attrs = make(map[string]string)
		}
		d.Attrs[name] = value
	}
}

// AddClass adds classes that are not already present.
func (d *DOM) AddClass(classes ...string) {
	for _, c := range classes {
		if c != "" && !d.HasClass(c) {
			d.Classes = append(d.Classes, c)
		}
	}
}

// RemoveClass removes a class.
func (d *DOM) RemoveClass(class string) {
	d.Classes = slices.DeleteFunc(d.Classes, func(c string) bool { return c == class })
}

// HasClass reports whether class is present.
func (d *DOM) HasClass(class string) bool {
	return slices.Contains(d.Classes, class)
}

// SetStyle sets a style property. An empty value removes it.
func (d *DOM) SetStyle(name, value string) {
	if value == "" {
		delete(d.Style, name)
		return
	}
	if d.Style == nil {
		d.Style = make(map[string]string)
	}
	d.Style[name] = value
}

func (d *DOM) styleString() string {
	names := make([]string, 0, len(d.Style))
	for n := range d.Style {
		names = append(names, n)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, n := range names {
		parts = append(parts, n+": "+d.Style[n])
	}
	return strings.Join(parts, "; ")
}

func parseStyle(s string) map[string]string {
	out := make(map[string]string)
	for _, decl := range strings.Split(s, ";") {
		name, value, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		name, value = strings.TrimSpace(name), strings.TrimSpace(value)
		if name != "" && value != "" {
			out[name] = value
		}
	}
	return out
}

// describe builds a descriptor from a realized element, skipping the
// attributes activation owns.
func describe(n dom.Node, reserved ...string) DOM {
	d := DOM{Tag: n.Tag()}
	el, ok := n.(*dom.Element)
	if !ok {
		return d
	}
	for _, a := range el.HTML().Attr {
		if a.Namespace != "" || slices.Contains(reserved, a.Key) {
			continue
		}
		d.SetAttr(a.Key, a.Val)
	}
	return d
}
