package dom

import (
	"io"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/net/html"
)

// Document wraps a parsed HTML tree. Wrapper nodes are cached, so the same
// *html.Node always yields the same *Element and listeners survive
// repeated traversals.
type Document struct {
	root  *html.Node
	nodes map[*html.Node]*Element
}

// Parse parses a full HTML document. Fragments are accepted; the parser
// supplies the html/head/body scaffolding around them.
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, errors.Wrap(err, "cannot parse document")
	}
	return NewDocument(root), nil
}

// ParseString is Parse over a string.
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

// NewDocument wraps an existing tree.
func NewDocument(root *html.Node) *Document {
	return &Document{
		root:  root,
		nodes: make(map[*html.Node]*Element),
	}
}

// Root returns the document node.
func (d *Document) Root() Node {
	return d.wrap(d.root)
}

// Body returns the body element, or the root when there is none.
func (d *Document) Body() Node {
	if body := Find(d.Root(), func(n Node) bool { return n.Tag() == "body" }); body != nil {
		return body
	}
	return d.Root()
}

// Render writes the current tree as HTML.
func (d *Document) Render(w io.Writer) error {
	return html.Render(w, d.root)
}

func (d *Document) wrap(n *html.Node) *Element {
	if n == nil {
		return nil
	}
	if e, ok := d.nodes[n]; ok {
		return e
	}
	e := &Element{doc: d, n: n}
	d.nodes[n] = e
	return e
}

// Element is a Node backed by *html.Node.
type Element struct {
	doc       *Document
	n         *html.Node
	listeners map[string][]*listener
}

type listener struct {
	fn      Handler
	removed bool
}

// HTML returns the underlying parser node.
func (e *Element) HTML() *html.Node {
	return e.n
}

func (e *Element) Type() NodeType {
	switch e.n.Type {
	case html.ElementNode:
		return ElementNode
	case html.TextNode:
		return TextNode
	case html.DocumentNode:
		return DocumentNode
	case html.CommentNode:
		return CommentNode
	default:
		return OtherNode
	}
}

func (e *Element) Tag() string {
	if e.n.Type != html.ElementNode {
		return ""
	}
	return e.n.Data
}

func (e *Element) Attr(name string) (string, bool) {
	for _, a := range e.n.Attr {
		if a.Namespace == "" && a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

func (e *Element) SetAttr(name, value string) {
	for i, a := range e.n.Attr {
		if a.Namespace == "" && a.Key == name {
			e.n.Attr[i].Val = value
			return
		}
	}
	e.n.Attr = append(e.n.Attr, html.Attribute{Key: name, Val: value})
}

func (e *Element) Children() []Node {
	var out []Node
	for c := e.n.FirstChild; c != nil; c = c.NextSibling {
		out = append(out, e.doc.wrap(c))
	}
	return out
}

func (e *Element) Parent() Node {
	if e.n.Parent == nil {
		return nil
	}
	return e.doc.wrap(e.n.Parent)
}

// Text returns the concatenated text content of the subtree.
func (e *Element) Text() string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(e.n)
	return sb.String()
}

// AddEventListener registers fn for event.
func (e *Element) AddEventListener(event string, fn Handler) func() {
	if e.listeners == nil {
		e.listeners = make(map[string][]*listener)
	}
	l := &listener{fn: fn}
	e.listeners[event] = append(e.listeners[event], l)
	return func() {
		if l.removed {
			return
		}
		l.removed = true
		ls := e.listeners[event]
		for i, x := range ls {
			if x == l {
				e.listeners[event] = append(ls[:i], ls[i+1:]...)
				break
			}
		}
	}
}

// Listeners returns the number of handlers registered for event.
func (e *Element) Listeners(event string) int {
	return len(e.listeners[event])
}

// Dispatch delivers an event to this element's handlers and returns how
// many ran. Events do not bubble.
func (e *Element) Dispatch(event string, detail any) int {
	ls := make([]*listener, len(e.listeners[event]))
	copy(ls, e.listeners[event])
	n := 0
	for _, l := range ls {
		if l.removed {
			continue
		}
		l.fn(Event{Type: event, Target: e, Detail: detail})
		n++
	}
	return n
}
