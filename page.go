package hxctl

import (
	"fmt"

	"github.com/go-logr/logr"
	"github.com/pkg/errors"

	"github.com/pthm/hxctl/lib/binding"
	"github.com/pthm/hxctl/lib/config"
	"github.com/pthm/hxctl/lib/encoding"
	"github.com/pthm/hxctl/lib/ids"
	"github.com/pthm/hxctl/lib/reactive"
)

// Constructor builds a control from a Spec. When spec.Element is set the
// constructor is activating already-rendered markup: it must not compose
// children and should take its state from spec.Fields.
type Constructor func(spec Spec) Control

// Page is the per-document context: id counters, the type registry, the
// id to control map, and the binding manager shared by every control on
// the page.
//
// Create one Page per document (or per HTTP request when rendering) and
// pass it to every construction call. A Page is not safe for concurrent
// use.
type Page struct {
	ids      *ids.Allocator
	types    map[string]Constructor
	controls map[string]Control
	order    []string
	bindings *binding.Manager
	codec    *encoding.Codec
	attrs    config.Attributes
	log      logr.Logger
	metrics  *Metrics
	objects  ObjectFunc
}

// ObjectFunc builds the reactive objects behind a control's data and view.
type ObjectFunc func(initial map[string]any) *reactive.Object

// Option configures a Page.
type Option func(*Page)

// WithLogger sets the page logger. Defaults to logr.Discard().
func WithLogger(log logr.Logger) Option {
	return func(p *Page) {
		p.log = log
	}
}

// WithCodec sets the codec used for the fields and named attributes.
func WithCodec(c *encoding.Codec) Option {
	return func(p *Page) {
		p.codec = c
	}
}

// WithAttributes overrides the markup attribute names.
func WithAttributes(a config.Attributes) Option {
	return func(p *Page) {
		p.attrs = a
	}
}

// WithMetrics records activation metrics.
func WithMetrics(m *Metrics) Option {
	return func(p *Page) {
		p.metrics = m
	}
}

// WithObjects sets how controls build their data and view objects. Use it
// to keep control state in an external primitive through a compat layer:
//
//	layer := compat.Load(newStore, nil)
//	page := hxctl.NewPage(hxctl.WithObjects(func(m map[string]any) *reactive.Object {
//	    return layer.Object(m)
//	}))
func WithObjects(fn ObjectFunc) Option {
	return func(p *Page) {
		p.objects = fn
	}
}

// NewPage creates an empty page.
func NewPage(opts ...Option) *Page {
	p := &Page{
		ids:      ids.New(),
		types:    make(map[string]Constructor),
		controls: make(map[string]Control),
		codec:    encoding.PlainCodec(),
		attrs:    config.Default().Attributes,
		log:      logr.Discard(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.objects == nil {
		p.objects = func(initial map[string]any) *reactive.Object {
			return reactive.New(initial)
		}
	}
	p.bindings = binding.New(binding.WithLogger(p.log.WithName("binding")))
	return p
}

// FromConfig creates a page using attribute names and field encoding from
// cfg. Additional options are applied afterwards.
func FromConfig(cfg config.Config, opts ...Option) (*Page, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	codec, err := cfg.Codec()
	if err != nil {
		return nil, err
	}
	base := []Option{WithAttributes(cfg.Attributes), WithCodec(codec)}
	return NewPage(append(base, opts...)...), nil
}

// NewID allocates the next id for typ.
func (p *Page) NewID(typ string) string {
	return p.ids.Next(typ)
}

// SetMaxIDs raises the id watermarks so later allocations skip ids already
// present in markup.
func (p *Page) SetMaxIDs(max map[string]int) {
	p.ids.SetMax(max)
}

// MaxIDs returns the highest id suffix issued or observed per type.
func (p *Page) MaxIDs() map[string]int {
	return p.ids.Max()
}

// Register maps a type tag to its constructor. The registry is flat: a
// type name can be registered once per page.
func (p *Page) Register(typ string, c Constructor) {
	if _, exists := p.types[typ]; exists {
		panic(fmt.Sprintf("hxctl: type %q already registered", typ))
	}
	p.types[typ] = c
}

// Constructor returns the constructor registered for typ.
func (p *Page) Constructor(typ string) (Constructor, bool) {
	c, ok := p.types[typ]
	return c, ok
}

// Lookup returns the control with the given id.
func (p *Page) Lookup(id string) (Control, bool) {
	c, ok := p.controls[id]
	return c, ok
}

// Get returns the control with the given id or ErrNotFound.
func (p *Page) Get(id string) (Control, error) {
	if c, ok := p.controls[id]; ok {
		return c, nil
	}
	return nil, errors.Wrap(ErrNotFound, id)
}

// Controls returns every live control in creation order.
func (p *Page) Controls() []Control {
	out := make([]Control, 0, len(p.order))
	for _, id := range p.order {
		out = append(out, p.controls[id])
	}
	return out
}

// Len returns the number of live controls.
func (p *Page) Len() int {
	return len(p.controls)
}

// Bindings returns the page's binding manager.
func (p *Page) Bindings() *binding.Manager {
	return p.bindings
}

// Codec returns the field codec.
func (p *Page) Codec() *encoding.Codec {
	return p.codec
}

// Attributes returns the markup attribute names.
func (p *Page) Attributes() config.Attributes {
	return p.attrs
}

// Logger returns the page logger.
func (p *Page) Logger() logr.Logger {
	return p.log
}

func (p *Page) register(id string, c Control) {
	if existing, ok := p.controls[id]; ok {
		if existing == c {
			return
		}
		panic(fmt.Sprintf("hxctl: duplicate control id %q", id))
	}
	p.controls[id] = c
	p.order = append(p.order, id)
}

func (p *Page) unregister(id string) {
	if _, ok := p.controls[id]; !ok {
		return
	}
	delete(p.controls, id)
	for i, o := range p.order {
		if o == id {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
}
