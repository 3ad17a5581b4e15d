// Package dom is the document-host boundary used by activation.
//
// Activation only needs a tree exposing node types, children, attribute
// lookup and parent references (Node). Any document-like structure can
// satisfy it; this package ships one backed by golang.org/x/net/html that
// also acts as a server-side event target shim (EventTarget, Dispatch).
package dom

// NodeType classifies nodes. Only elements can carry control ids.
type NodeType int

const (
	OtherNode NodeType = iota
	ElementNode
	TextNode
	DocumentNode
	CommentNode
)

// Node is the read side of a realized document tree.
type Node interface {
	Type() NodeType
	// Tag returns the lower-case tag name of an element, or "".
	Tag() string
	Attr(name string) (string, bool)
	SetAttr(name, value string)
	Children() []Node
	// Parent returns nil for the root.
	Parent() Node
}

// Event is delivered to handlers registered on an EventTarget.
type Event struct {
	Type   string
	Target Node
	Detail any
}

// Handler handles a dispatched event.
type Handler func(Event)

// EventTarget is implemented by nodes that accept listeners.
type EventTarget interface {
	AddEventListener(event string, fn Handler) (remove func())
}

var voidElements = map[string]bool{
	"area":   true,
	"base":   true,
	"br":     true,
	"col":    true,
	"embed":  true,
	"hr":     true,
	"img":    true,
	"input":  true,
	"link":   true,
	"meta":   true,
	"param":  true,
	"source": true,
	"track":  true,
	"wbr":    true,
}

// IsVoid reports whether tag is a void element (no closing tag, no
// children).
func IsVoid(tag string) bool {
	return voidElements[tag]
}

// Walk visits root and its descendants in document order. Returning false
// from fn skips the node's subtree.
func Walk(root Node, fn func(Node) bool) {
	if root == nil {
		return
	}
	stack := []Node{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !fn(n) {
			continue
		}
		children := n.Children()
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, children[i])
		}
	}
}

// Find returns the first node in document order matching fn, or nil.
func Find(root Node, fn func(Node) bool) Node {
	var found Node
	Walk(root, func(n Node) bool {
		if found != nil {
			return false
		}
		if fn(n) {
			found = n
			return false
		}
		return true
	})
	return found
}

// FindAttr returns the first element whose attribute name equals value.
func FindAttr(root Node, name, value string) Node {
	return Find(root, func(n Node) bool {
		v, ok := n.Attr(name)
		return ok && v == value
	})
}
