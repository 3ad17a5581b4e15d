package hxctl

import (
	"slices"

	"github.com/a-h/templ"

	"github.com/pthm/hxctl/lib/binding"
	"github.com/pthm/hxctl/lib/dom"
	"github.com/pthm/hxctl/lib/reactive"
)

// Control is a renderable node with a stable id inside a Page.
//
// Widgets embed *Base and set it with Embed:
//
//	type Counter struct {
//		*hxctl.Base
//	}
//
//	func NewCounter(spec hxctl.Spec) hxctl.Control {
//		c := &Counter{}
//		c.Base = hxctl.Embed(c, spec, "counter")
//		if !spec.Activating() {
//			c.Add(hxctl.Text("0"))
//		}
//		return c
//	}
type Control interface {
	templ.Component
	Core() *Base
}

// PreActivator is implemented by controls that need a pass before any
// control in the tree activates. PreActivate runs children first.
type PreActivator interface {
	PreActivate()
}

// Activator is implemented by controls that attach behavior once their
// element is bound. Activate runs parents first. *Base implements it;
// widgets that override it should return early when Active() and call
// Base.Activate().
type Activator interface {
	Activate()
}

// Spec carries the construction parameters of a control.
type Spec struct {
	Page *Page
	// ID is allocated from the page when empty.
	ID string
	// Tag defaults to "div".
	Tag string
	// Element is the realized node when activating existing markup.
	Element dom.Node
	// Fields seed the data object and are persisted on render.
	Fields map[string]any
	// Named maps names to sub-control ids.
	Named map[string]string
}

// Activating reports whether the control is being built over existing
// markup. Constructors must not compose children in that case.
func (s Spec) Activating() bool {
	return s.Element != nil
}

// Base holds the state shared by every control.
type Base struct {
	page     *Page
	self     Control
	id       string
	typ      string
	parent   string
	children []templ.Component
	dom      DOM
	element  dom.Node

	data    *reactive.Object
	view    *reactive.Object
	persist []string
	named   map[string]string

	listeners []*listener
	owned     []*binding.Binding
	active    bool
}

type listener struct {
	event  string
	fn     dom.Handler
	remove func()
}

// NewBase creates a generic control of type typ.
func NewBase(spec Spec, typ string) *Base {
	return Embed(nil, spec, typ)
}

// Embed creates the Base of a widget. self is the widget and is what the
// page registers under the control's id; nil registers the Base itself.
// It panics when spec.Page is nil.
func Embed(self Control, spec Spec, typ string) *Base {
	if spec.Page == nil {
		panic("hxctl: control " + typ + " created without a page")
	}
	p := spec.Page
	b := &Base{page: p, id: spec.ID, typ: typ}
	if self == nil {
		self = b
	}
	b.self = self

	if b.id == "" {
		b.id = p.NewID(typ)
	} else {
		p.ids.Observe(b.id)
	}

	if spec.Element != nil {
		b.element = spec.Element
		b.dom = describe(spec.Element, p.attrs.ID, p.attrs.Type, p.attrs.Fields, p.attrs.Named)
	} else {
		b.dom = DOM{Tag: spec.Tag}
	}
	if b.dom.Tag == "" {
		b.dom.Tag = "div"
	}

	if len(spec.Fields) > 0 {
		data := b.Data()
		for _, k := range sortedKeys(spec.Fields) {
			_ = data.SetSilent(k, spec.Fields[k])
			b.Persist(k)
		}
	}
	for name, id := range spec.Named {
		if b.named == nil {
			b.named = make(map[string]string)
		}
		b.named[name] = id
	}

	p.register(b.id, self)
	return b
}

// Core returns b. It lets *Base satisfy Control and gives widgets access
// to their embedded Base through the interface.
func (b *Base) Core() *Base {
	return b
}

// Self returns the control registered for this Base.
func (b *Base) Self() Control {
	return b.self
}

func (b *Base) ID() string { return b.id }
func (b *Base) Type() string { return b.typ }
func (b *Base) Page() *Page { return b.page }
func (b *Base) DOM() *DOM { return &b.dom }
func (b *Base) Active() bool { return b.active }
func (b *Base) Element() dom.Node { return b.element }

// Parent returns the parent control, or nil for roots and detached
// controls.
func (b *Base) Parent() Control {
	if b.parent == "" {
		return nil
	}
	c, _ := b.page.Lookup(b.parent)
	return c
}

// Add appends children. A control already attached elsewhere is moved.
// Children added to a void element are dropped.
func (b *Base) Add(children ...templ.Component) {
	if b.dom.Void() {
		b.page.log.Info("ignoring children of void element", "id", b.id, "tag", b.dom.Tag, "count", len(children))
		return
	}
	for _, c := range children {
		if c == nil {
			continue
		}
		if ctl, ok := c.(Control); ok {
			cb := ctl.Core()
			if cb == b {
				continue
			}
			if old := cb.Parent(); old != nil {
				old.Core().unlink(cb)
			}
			cb.parent = b.id
		}
		b.children = append(b.children, c)
	}
}

// Remove detaches child and destroys it and its subtree: ids are released
// from the page, owned bindings closed and listeners removed. It reports
// whether child was a child of b.
func (b *Base) Remove(child Control) bool {
	cb := child.Core()
	if !b.unlink(cb) {
		return false
	}
	cb.dispose()
	return true
}

// Clear removes every child.
func (b *Base) Clear() {
	for _, c := range b.Controls() {
		b.Remove(c)
	}
	b.children = nil
}

// Children returns a copy of the child list.
func (b *Base) Children() []templ.Component {
	return slices.Clone(b.children)
}

// Controls returns the children that are controls, in order.
func (b *Base) Controls() []Control {
	var out []Control
	for _, c := range b.children {
		if ctl, ok := c.(Control); ok {
			out = append(out, ctl)
		}
	}
	return out
}

func (b *Base) unlink(cb *Base) bool {
	for i, c := range b.children {
		if ctl, ok := c.(Control); ok && ctl.Core() == cb {
			b.children = slices.Delete(b.children, i, i+1)
			cb.parent = ""
			return true
		}
	}
	return false
}

// adopt links a control found during activation without the checks Add
// applies to composed trees.
func (b *Base) adopt(child Control) {
	child.Core().parent = b.id
	b.children = append(b.children, child)
}

func (b *Base) dispose() {
	for _, c := range b.Controls() {
		c.Core().dispose()
	}
	for _, h := range b.owned {
		h.Close()
	}
	b.owned = nil
	for _, l := range b.listeners {
		if l.remove != nil {
			l.remove()
			l.remove = nil
		}
	}
	b.active = false
	b.page.unregister(b.id)
}

// Data returns the control's model object, built by the page's
// ObjectFunc on first use.
func (b *Base) Data() *reactive.Object {
	if b.data == nil {
		b.data = b.page.objects(nil)
	}
	return b.data
}

// View returns the control's presentation object.
func (b *Base) View() *reactive.Object {
	if b.view == nil {
		b.view = b.page.objects(nil)
	}
	return b.view
}

// Persist marks data properties to encode in the fields attribute.
func (b *Base) Persist(names ...string) {
	for _, n := range names {
		if !slices.Contains(b.persist, n) {
			b.persist = append(b.persist, n)
		}
	}
}

// Field returns a data property.
func (b *Base) Field(name string) any {
	return b.Data().Get(name)
}

// SetField writes a data property and persists it.
func (b *Base) SetField(name string, value any) error {
	b.Persist(name)
	return b.Data().Set(name, value)
}

// Fields returns the persisted data properties.
func (b *Base) Fields() map[string]any {
	if len(b.persist) == 0 {
		return nil
	}
	out := make(map[string]any, len(b.persist))
	data := b.Data()
	for _, n := range b.persist {
		if v, ok := data.Lookup(n); ok {
			out[n] = v
		}
	}
	return out
}

// Name records child as a named sub-control.
func (b *Base) Name(name string, child Control) {
	if b.named == nil {
		b.named = make(map[string]string)
	}
	b.named[name] = child.Core().ID()
}

// Named resolves a named sub-control by id. It returns nil when the id is
// not live on the page.
func (b *Base) Named(name string) Control {
	id, ok := b.named[name]
	if !ok {
		return nil
	}
	c, _ := b.page.Lookup(id)
	return c
}

// Activate marks the control active, checks its named sub-controls and
// attaches its event listeners to the bound element.
func (b *Base) Activate() {
	if b.active {
		return
	}
	b.active = true
	for name, id := range b.named {
		if _, ok := b.page.Lookup(id); !ok {
			b.page.log.V(1).Info("named control not on page", "id", b.id, "name", name, "target", id)
		}
	}
	for _, l := range b.listeners {
		b.attach(l)
	}
}

// On registers an event handler. It is attached to the bound element when
// the control is active, and reattached whenever the element changes.
func (b *Base) On(event string, fn dom.Handler) (cancel func()) {
	l := &listener{event: event, fn: fn}
	b.listeners = append(b.listeners, l)
	if b.active {
		b.attach(l)
	}
	return func() {
		if l.remove != nil {
			l.remove()
			l.remove = nil
		}
		b.listeners = slices.DeleteFunc(b.listeners, func(x *listener) bool { return x == l })
	}
}

func (b *Base) attach(l *listener) {
	if l.remove != nil {
		return
	}
	if t, ok := b.element.(dom.EventTarget); ok {
		l.remove = t.AddEventListener(l.event, l.fn)
	}
}

// rebind points the control at a new element and moves its listeners.
func (b *Base) rebind(el dom.Node) {
	for _, l := range b.listeners {
		if l.remove != nil {
			l.remove()
			l.remove = nil
		}
	}
	b.element = el
	if b.active {
		for _, l := range b.listeners {
			b.attach(l)
		}
	}
}

// Bind wires src to dst through the page's binding manager. The binding
// is closed when the control is removed.
func (b *Base) Bind(src, dst *reactive.Object, spec binding.Spec, opts ...binding.Option) error {
	h, err := b.page.bindings.Bind(src, dst, spec, opts...)
	if err != nil {
		return err
	}
	b.owned = append(b.owned, h)
	return nil
}

// Computed registers a computed property owned by the control.
func (b *Base) Computed(sources []*reactive.Object, deps []string, fn binding.ComputeFunc, opts ...binding.ComputedOption) error {
	h, err := b.page.bindings.Computed(sources, deps, fn, opts...)
	if err != nil {
		return err
	}
	b.owned = append(b.owned, h)
	return nil
}

// Watch registers a watcher owned by the control.
func (b *Base) Watch(src *reactive.Object, name string, fn binding.WatchFunc, opts ...binding.WatchOption) error {
	h, err := b.page.bindings.Watch(src, name, fn, opts...)
	if err != nil {
		return err
	}
	b.owned = append(b.owned, h)
	return nil
}
