package hxctl

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/pthm/hxctl/lib/config"
	"github.com/pthm/hxctl/lib/dom"
)

type treeNode struct {
	ID       string
	Type     string
	Children []treeNode
}

func tree(c Control) treeNode {
	b := c.Core()
	n := treeNode{ID: b.ID(), Type: b.Type()}
	for _, child := range b.Controls() {
		n.Children = append(n.Children, tree(child))
	}
	return n
}

func activateString(t *testing.T, p *Page, html string) (*dom.Document, *Report) {
	t.Helper()
	doc, err := dom.ParseString(html)
	if err != nil {
		t.Fatalf("ParseString() error = %v", err)
	}
	report, err := Activate(p, doc.Root())
	if err != nil {
		t.Fatalf("Activate() error = %v", err)
	}
	return doc, report
}

type widget struct {
	*Base
}

func newWidget(spec Spec) Control {
	w := &widget{}
	w.Base = Embed(w, spec, "widget")
	return w
}

func TestActivateCustomAttributes(t *testing.T) {
	cfg := config.Default()
	cfg.Attributes.ID = "id"
	cfg.Attributes.Type = "type"
	p, err := FromConfig(cfg)
	if err != nil {
		t.Fatalf("FromConfig() error = %v", err)
	}
	p.Register("widget", newWidget)

	_, report := activateString(t, p, `<div id="widget_0" type="widget"></div>`)

	c, ok := p.Lookup("widget_0")
	if !ok {
		t.Fatal("widget_0 not activated")
	}
	if _, ok := c.(*widget); !ok {
		t.Errorf("widget_0 is %T, want *widget", c)
	}
	if report.Created != 1 || report.Fallbacks != 0 {
		t.Errorf("report = %+v", report)
	}
	if got := p.NewID("widget"); got != "widget_1" {
		t.Errorf("NewID(widget) = %s, want widget_1", got)
	}
}

func TestActivateRaisesWatermark(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("<div>")
	for i := 0; i < 8; i++ {
		fmt.Fprintf(&sb, `<span data-ctl-id="foo_%d" data-ctl-type="foo"></span>`, i)
	}
	sb.WriteString("</div>")

	p := NewPage()
	_, report := activateString(t, p, sb.String())

	if report.MaxIDs["foo"] != 7 {
		t.Errorf("MaxIDs[foo] = %d, want 7", report.MaxIDs["foo"])
	}
	if got := p.NewID("foo"); got != "foo_8" {
		t.Errorf("NewID(foo) = %s, want foo_8", got)
	}
	if got := NewBase(Spec{Page: p}, "bar").ID(); got != "bar_0" {
		t.Errorf("unrelated type id = %s, want bar_0", got)
	}
}

func TestActivateIsIdempotent(t *testing.T) {
	server := NewPage()
	root := NewBase(Spec{Page: server}, "panel")
	root.Add(newCounter(Spec{Page: server}), newCounter(Spec{Page: server}))
	html, err := RenderString(root)
	if err != nil {
		t.Fatalf("RenderString() error = %v", err)
	}

	client := NewPage()
	client.Register("counter", newCounter)
	doc, first := activateString(t, client, html)
	if first.Created != 3 || first.Activated != 3 || first.Rebound != 0 {
		t.Errorf("first report = %+v", first)
	}
	before := tree(mustLookup(t, client, "panel_0"))

	second, err := Activate(client, doc.Root())
	if err != nil {
		t.Fatalf("second Activate() error = %v", err)
	}
	if second.Created != 0 || second.Activated != 0 || second.Rebound != 3 {
		t.Errorf("second report = %+v", second)
	}
	if client.Len() != 3 {
		t.Errorf("Len() = %d, want 3", client.Len())
	}
	if diff := cmp.Diff(before, tree(mustLookup(t, client, "panel_0"))); diff != "" {
		t.Errorf("tree changed on reactivation (-before +after):\n%s", diff)
	}
	for _, id := range []string{"counter_0", "counter_1"} {
		if n := mustLookup(t, client, id).(*counter).activations; n != 1 {
			t.Errorf("%s activated %d times", id, n)
		}
	}
}

func TestRenderActivateRoundTrip(t *testing.T) {
	server := NewPage()
	panel := NewBase(Spec{Page: server, Tag: "section"}, "panel")
	title := NewBase(Spec{Page: server, Tag: "h2"}, "title")
	title.Add(Text("Tasks"))
	list := NewBase(Spec{Page: server, Tag: "ul"}, "list")
	for _, label := range []string{"one", "two"} {
		item := NewBase(Spec{Page: server, Tag: "li"}, "item")
		_ = item.SetField("label", label)
		item.Add(Text(label))
		list.Add(item)
	}
	panel.Add(title, list)
	panel.Name("title", title)

	html, err := RenderString(panel)
	if err != nil {
		t.Fatalf("RenderString() error = %v", err)
	}

	client := NewPage()
	_, report := activateString(t, client, html)
	if report.Fallbacks != 5 {
		t.Errorf("Fallbacks = %d, want 5", report.Fallbacks)
	}

	got := tree(mustLookup(t, client, "panel_0"))
	if diff := cmp.Diff(tree(panel), got); diff != "" {
		t.Errorf("activated tree mismatch (-server +client):\n%s", diff)
	}

	item := mustLookup(t, client, "item_1").Core()
	if item.Field("label") != "two" {
		t.Errorf("item_1 label = %v, want two", item.Field("label"))
	}
	if item.Parent() != mustLookup(t, client, "list_0") {
		t.Error("item_1 parent is not list_0")
	}
	if item.DOM().Tag != "li" {
		t.Errorf("item_1 tag = %s, want li", item.DOM().Tag)
	}

	p := mustLookup(t, client, "panel_0").Core()
	if p.Named("title") != mustLookup(t, client, "title_0") {
		t.Error("named title not resolved after activation")
	}
	if got := client.NewID("item"); got != "item_2" {
		t.Errorf("NewID(item) = %s, want item_2", got)
	}

	again, err := RenderString(mustLookup(t, client, "panel_0"))
	if err != nil {
		t.Fatalf("RenderString() after activation error = %v", err)
	}
	if !strings.Contains(again, `data-ctl-id="item_1"`) || !strings.Contains(again, `<ul data-ctl-id="list_0"`) {
		t.Errorf("re-render lost structure: %s", again)
	}
}

func TestActivateFallbackIsLogged(t *testing.T) {
	var lines []string
	p := NewPage(WithLogger(captureLogger(&lines)))
	p.Register("nothing", func(Spec) Control { return nil })

	_, report := activateString(t, p, `<div data-ctl-id="mystery_0" data-ctl-type="mystery">`+
		`<b data-ctl-id="nothing_0" data-ctl-type="nothing"></b></div>`)

	if report.Fallbacks != 2 || report.Created != 2 {
		t.Errorf("report = %+v", report)
	}
	c := mustLookup(t, p, "mystery_0")
	if _, ok := c.(*Base); !ok || c.Core().Type() != "mystery" {
		t.Errorf("mystery_0 = %T %s, want generic mystery", c, c.Core().Type())
	}
	if !logged(lines, "no constructor registered") || !logged(lines, "constructor returned nil") {
		t.Errorf("expected fallback log lines, got %v", lines)
	}
}

func TestActivateBadFieldsAreLogged(t *testing.T) {
	var lines []string
	p := NewPage(WithLogger(captureLogger(&lines)))

	_, report := activateString(t, p, `<div data-ctl-id="box_0" data-ctl-fields="{broken"></div>`)

	if report.Created != 1 {
		t.Errorf("Created = %d, want 1", report.Created)
	}
	c := mustLookup(t, p, "box_0").Core()
	if len(c.Fields()) != 0 {
		t.Errorf("Fields() = %v, want empty", c.Fields())
	}
	if c.Type() != "box" {
		t.Errorf("Type() = %s, want type derived from id", c.Type())
	}
	if !logged(lines, "using empty fields") {
		t.Errorf("expected decode log line, got %v", lines)
	}
}

type probe struct {
	*Base
	events *[]string
}

func (p *probe) PreActivate() {
	*p.events = append(*p.events, "pre "+p.ID())
}

func (p *probe) Activate() {
	if p.Active() {
		return
	}
	p.Base.Activate()
	*p.events = append(*p.events, "act "+p.ID())
}

func TestActivateLifecycleOrder(t *testing.T) {
	var events []string
	p := NewPage()
	p.Register("probe", func(spec Spec) Control {
		c := &probe{events: &events}
		c.Base = Embed(c, spec, "probe")
		return c
	})

	activateString(t, p, `<div data-ctl-id="probe_0" data-ctl-type="probe">`+
		`<div data-ctl-id="probe_1" data-ctl-type="probe"><em><span data-ctl-id="probe_2" data-ctl-type="probe"></span></em></div>`+
		`<p data-ctl-id="probe_3" data-ctl-type="probe"></p></div>`)

	want := []string{
		"pre probe_3", "pre probe_2", "pre probe_1", "pre probe_0",
		"act probe_0", "act probe_1", "act probe_2", "act probe_3",
	}
	if diff := cmp.Diff(want, events); diff != "" {
		t.Errorf("lifecycle mismatch (-want +got):\n%s", diff)
	}
	if parent := mustLookup(t, p, "probe_2").Core().Parent(); parent == nil || parent.Core().ID() != "probe_1" {
		t.Errorf("probe_2 parent = %v, want probe_1 across the unidentified <em>", parent)
	}
}

func TestActivateReattachesListeners(t *testing.T) {
	server := NewPage()
	html, err := RenderString(newCounter(Spec{Page: server}))
	if err != nil {
		t.Fatalf("RenderString() error = %v", err)
	}

	client := NewPage()
	client.Register("counter", newCounter)
	first, _ := activateString(t, client, html)

	el := dom.FindAttr(first.Root(), "data-ctl-id", "counter_0").(*dom.Element)
	if n := el.Dispatch("click", nil); n != 1 {
		t.Fatalf("Dispatch() ran %d handlers, want 1", n)
	}
	c := mustLookup(t, client, "counter_0").Core()
	if c.Field("count") != int64(1) {
		t.Errorf("count = %v, want 1", c.Field("count"))
	}

	second, report := activateString(t, client, html)
	if report.Rebound != 1 {
		t.Errorf("Rebound = %d, want 1", report.Rebound)
	}
	moved := dom.FindAttr(second.Root(), "data-ctl-id", "counter_0").(*dom.Element)
	if el.Listeners("click") != 0 || moved.Listeners("click") != 1 {
		t.Errorf("listeners old=%d new=%d, want 0 and 1", el.Listeners("click"), moved.Listeners("click"))
	}
	if c.Element() != dom.Node(moved) {
		t.Error("control not rebound to the new element")
	}
}

func TestActivateDuplicateIDs(t *testing.T) {
	var lines []string
	p := NewPage(WithLogger(captureLogger(&lines)))

	_, report := activateString(t, p, `<div data-ctl-id="x_0"></div><div data-ctl-id="x_0"></div>`)

	if report.Discovered != 2 || report.Created != 1 {
		t.Errorf("report = %+v", report)
	}
	if !logged(lines, "duplicate control id") {
		t.Errorf("expected duplicate log line, got %v", lines)
	}
}

func TestActivateErrors(t *testing.T) {
	doc, _ := dom.ParseString("<div></div>")
	if _, err := Activate(nil, doc.Root()); !errors.Is(err, ErrNoPage) {
		t.Errorf("Activate(nil page) error = %v, want ErrNoPage", err)
	}
	if _, err := Activate(NewPage(), nil); !errors.Is(err, ErrNoDocument) {
		t.Errorf("Activate(nil root) error = %v, want ErrNoDocument", err)
	}
}

func TestActivateMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	p := NewPage(WithMetrics(m))
	p.Register("widget", newWidget)

	html := `<div data-ctl-id="widget_0" data-ctl-type="widget"></div><div data-ctl-id="odd_0"></div>`
	doc, _ := activateString(t, p, html)
	if _, err := Activate(p, doc.Root()); err != nil {
		t.Fatalf("Activate() error = %v", err)
	}

	if got := testutil.ToFloat64(m.runs); got != 2 {
		t.Errorf("runs = %v, want 2", got)
	}
	tests := map[string]float64{"created": 1, "fallback": 1, "rebound": 2}
	for outcome, want := range tests {
		if got := testutil.ToFloat64(m.controls.WithLabelValues(outcome)); got != want {
			t.Errorf("controls{outcome=%s} = %v, want %v", outcome, got, want)
		}
	}
	if n := testutil.CollectAndCount(m.duration); n != 1 {
		t.Errorf("duration collectors = %d, want 1", n)
	}

	var nilMetrics *Metrics
	nilMetrics.observe(&Report{}, 0)
}

func mustLookup(t *testing.T, p *Page, id string) Control {
	t.Helper()
	c, ok := p.Lookup(id)
	if !ok {
		t.Fatalf("control %s not found", id)
	}
	return c
}
