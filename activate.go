package hxctl

import (
	"time"

	"github.com/pkg/errors"

	"github.com/pthm/hxctl/lib/dom"
	"github.com/pthm/hxctl/lib/ids"
)

// Report summarizes an activation run.
type Report struct {
	// Discovered counts identified elements, including duplicates skipped.
	Discovered int
	Created    int
	Rebound    int
	Fallbacks  int
	Activated  int
	MaxIDs     map[string]int
}

// Found is an identified element seen by discovery.
type Found struct {
	ID   string
	Type string
	// Parent is the id of the nearest identified ancestor, or "".
	Parent string
	Node   dom.Node
}

// Discover scans root without creating controls. It returns identified
// elements in document order and the highest id suffix per type.
func (p *Page) Discover(root dom.Node) ([]Found, map[string]int) {
	if root == nil {
		return nil, map[string]int{}
	}
	nodes, max, _ := p.discover(root)
	return nodes, max
}

// Activate binds live controls to already-rendered markup under root.
func Activate(p *Page, root dom.Node) (*Report, error) {
	if p == nil {
		return nil, ErrNoPage
	}
	return p.Activate(root)
}

// Activate discovers every element carrying an id attribute under root,
// creates or rebinds a control for each, links them into a tree and runs
// the activation lifecycle. Running it again over the same markup only
// rebinds.
//
// Unknown types fall back to a generic control and undecodable fields to
// empty ones; both are logged rather than returned.
func (p *Page) Activate(root dom.Node) (*Report, error) {
	if root == nil {
		return nil, ErrNoDocument
	}
	start := time.Now()

	nodes, max, skipped := p.discover(root)
	p.ids.SetMax(max)
	report := &Report{Discovered: len(nodes) + skipped, MaxIDs: max}

	created := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		if c, ok := p.controls[n.ID]; ok {
			c.Core().rebind(n.Node)
			report.Rebound++
			continue
		}
		if p.instantiate(n) {
			report.Fallbacks++
		}
		created[n.ID] = true
		report.Created++
	}

	for _, n := range nodes {
		if !created[n.ID] || n.Parent == "" {
			continue
		}
		parent, ok := p.controls[n.Parent]
		if !ok {
			continue
		}
		parent.Core().adopt(p.controls[n.ID])
	}

	for i := len(nodes) - 1; i >= 0; i-- {
		c := p.controls[nodes[i].ID]
		if pa, ok := c.(PreActivator); ok && !c.Core().Active() {
			pa.PreActivate()
		}
	}
	for _, n := range nodes {
		c, ok := p.controls[n.ID]
		if !ok || c.Core().Active() {
			continue
		}
		if a, ok := c.(Activator); ok {
			a.Activate()
		}
		c.Core().Activate()
		report.Activated++
	}

	p.metrics.observe(report, time.Since(start))
	p.log.V(1).Info("activated", "discovered", report.Discovered, "created", report.Created,
		"rebound", report.Rebound, "fallbacks", report.Fallbacks)
	return report, nil
}

// discover walks root in document order and records each identified
// element with its nearest identified ancestor. It also returns the
// highest numeric id suffix per type.
func (p *Page) discover(root dom.Node) ([]Found, map[string]int, int) {
	type frame struct {
		node   dom.Node
		parent string
	}
	var (
		out     []Found
		skipped int
		seen    = make(map[string]bool)
		max     = make(map[string]int)
		stack   = []frame{{node: root}}
	)
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		parent := f.parent
		if f.node.Type() == dom.ElementNode {
			if id, ok := f.node.Attr(p.attrs.ID); ok && id != "" {
				if seen[id] {
					p.log.Info("duplicate control id in markup, keeping first", "id", id)
					skipped++
				} else {
					seen[id] = true
					typ, _ := f.node.Attr(p.attrs.Type)
					prefix, n, parsed := ids.Parse(id)
					if typ == "" {
						typ = prefix
						if !parsed {
							typ = "control"
						}
					}
					if parsed {
						if cur, ok := max[prefix]; !ok || n > cur {
							max[prefix] = n
						}
					}
					out = append(out, Found{ID: id, Type: typ, Parent: f.parent, Node: f.node})
					parent = id
				}
			}
		}

		children := f.node.Children()
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, frame{node: children[i], parent: parent})
		}
	}
	return out, max, skipped
}

// instantiate creates the control for a newly discovered element. It
// reports whether the generic fallback was used.
func (p *Page) instantiate(n Found) bool {
	spec := Spec{Page: p, ID: n.ID, Element: n.Node}
	if raw, ok := n.Node.Attr(p.attrs.Fields); ok {
		fields, err := p.codec.Decode(raw)
		if err != nil {
			p.log.Error(errors.Wrap(ErrDecodeFields, err.Error()), "using empty fields", "id", n.ID, "type", n.Type)
		} else {
			spec.Fields = fields
		}
	}
	if raw, ok := n.Node.Attr(p.attrs.Named); ok {
		named, err := p.codec.Decode(raw)
		if err != nil {
			p.log.Error(err, "cannot decode named controls", "id", n.ID, "type", n.Type)
		} else {
			spec.Named = make(map[string]string, len(named))
			for k, v := range named {
				if s, ok := v.(string); ok {
					spec.Named[k] = s
				}
			}
		}
	}

	if ctor, ok := p.types[n.Type]; ok {
		if c := ctor(spec); c != nil {
			if c.Core().ID() != n.ID {
				p.log.Info("constructor ignored the discovered id", "id", n.ID, "got", c.Core().ID(), "type", n.Type)
				p.register(n.ID, c)
			}
			return false
		}
		p.log.Info("constructor returned nil, using generic control", "id", n.ID, "type", n.Type)
	} else {
		p.log.Info("no constructor registered, using generic control", "id", n.ID, "type", n.Type)
	}
	if c, ok := p.controls[n.ID]; ok {
		// A constructor that registered itself and then returned nil.
		c.Core().rebind(n.Node)
		return true
	}
	NewBase(spec, n.Type)
	return true
}
