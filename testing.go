package hxctl

import (
	"context"
	"strings"

	"github.com/a-h/templ"

	"github.com/pthm/hxctl/lib/dom"
)

// TestResult holds the result of rendering or activating controls in a
// test.
type TestResult struct {
	HTML     string
	Document *dom.Document
	Page     *Page
	Report   *Report
}

// TestRender renders a component and returns its HTML.
//
//	page := hxctl.NewPage()
//	result, err := hxctl.TestRender(NewCounter(hxctl.Spec{Page: page}))
//	if !result.HTMLContains(`data-ctl-id="counter_0"`) {
//	    t.Fatal("missing id")
//	}
func TestRender(c templ.Component) (*TestResult, error) {
	return TestRenderWithContext(context.Background(), c)
}

// TestRenderWithContext renders a component with a custom context.
func TestRenderWithContext(ctx context.Context, c templ.Component) (*TestResult, error) {
	var sb strings.Builder
	if err := c.Render(ctx, &sb); err != nil {
		return nil, err
	}
	return &TestResult{HTML: sb.String()}, nil
}

// Reactivate parses markup and activates it on page. Use it to exercise
// the client half of a render/activate round trip:
//
//	server := hxctl.NewPage()
//	html, _ := hxctl.RenderString(build(server))
//
//	client := hxctl.NewPage()
//	client.Register("counter", NewCounter)
//	result, err := hxctl.Reactivate(client, html)
func Reactivate(page *Page, html string) (*TestResult, error) {
	doc, err := dom.ParseString(html)
	if err != nil {
		return nil, err
	}
	report, err := Activate(page, doc.Root())
	if err != nil {
		return nil, err
	}
	return &TestResult{HTML: html, Document: doc, Page: page, Report: report}, nil
}

// Lookup returns the control activated under id, or nil.
func (r *TestResult) Lookup(id string) Control {
	if r.Page == nil {
		return nil
	}
	c, _ := r.Page.Lookup(id)
	return c
}

// Element returns the element carrying id in the activated document.
func (r *TestResult) Element(id string) *dom.Element {
	if r.Document == nil || r.Page == nil {
		return nil
	}
	n := dom.FindAttr(r.Document.Root(), r.Page.Attributes().ID, id)
	el, _ := n.(*dom.Element)
	return el
}

// HTMLContains checks if the HTML contains a substring.
func (r *TestResult) HTMLContains(substr string) bool {
	return strings.Contains(r.HTML, substr)
}

// HTMLContainsAll checks if the HTML contains all the given substrings.
func (r *TestResult) HTMLContainsAll(substrs ...string) bool {
	for _, s := range substrs {
		if !strings.Contains(r.HTML, s) {
			return false
		}
	}
	return true
}

// HTMLContainsAny checks if the HTML contains any of the given substrings.
func (r *TestResult) HTMLContainsAny(substrs ...string) bool {
	for _, s := range substrs {
		if strings.Contains(r.HTML, s) {
			return true
		}
	}
	return false
}
