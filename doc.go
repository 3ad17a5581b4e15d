// Package hxctl is a control runtime for server-rendered HTML that can be
// brought back to life over the markup it produced.
//
// A control tree is composed and rendered on the server. Every control
// carries its id and type in attributes, plus whatever state it chose to
// persist. On the other side, activation walks the realized document,
// finds every identified element and rebuilds a live control for it
// without re-rendering anything.
//
// # Pages
//
// All state lives in a Page: id counters, the type registry, the id to
// control map and the binding manager. There are no globals.
//
//	page := hxctl.NewPage(hxctl.WithLogger(log))
//	page.Register("counter", NewCounter)
//
// # Controls
//
// Widgets embed *Base and implement Control through it:
//
//	type Counter struct {
//	    *hxctl.Base
//	}
//
//	func NewCounter(spec hxctl.Spec) hxctl.Control {
//	    c := &Counter{}
//	    c.Base = hxctl.Embed(c, spec, "counter")
//	    if !spec.Activating() {
//	        c.SetField("count", 0)
//	        c.Add(hxctl.Text("0"))
//	    }
//	    return c
//	}
//
// A constructor called with spec.Element set is activating markup that
// already exists. It must not compose children; the element is
// authoritative and the persisted fields arrive in spec.Fields.
//
// Rendering follows the templ.Component contract, so controls can be
// mixed freely with templ templates.
//
// # Ids
//
// Ids have the form "{type}_{n}". Activation reads them from markup and
// raises the page counters past the highest suffix it saw, so controls
// created afterwards never collide with rendered ones.
//
// # Activation
//
//	doc, _ := dom.ParseString(html)
//	report, err := hxctl.Activate(page, doc.Root())
//
// Activation runs in three passes: discovery, instantiation and linking,
// then the lifecycle (PreActivate children first, Activate parents first).
// Controls that are already live are only rebound, so activating the same
// document twice is harmless. A type with no registered constructor gets
// a generic control; that is logged, not returned as an error.
//
// # Reactivity
//
// Each control has lazily created data and view objects (lib/reactive).
// Properties are connected with the page's binding manager (lib/binding):
// Bind, Computed and Watch. Bindings created through a control are closed
// when the control is removed.
package hxctl
