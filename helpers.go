package hxctl

import (
	"net/http"

	"github.com/a-h/templ"
)

// Render writes a templ component to the HTTP response.
//
//	func handler(w http.ResponseWriter, r *http.Request) {
//	    page := hxctl.NewPage()
//	    hxctl.Render(w, r, NewCounter(hxctl.Spec{Page: page}))
//	}
func Render(w http.ResponseWriter, r *http.Request, component templ.Component) error {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	return component.Render(r.Context(), w)
}

// BuildFunc composes the control tree for one request.
type BuildFunc func(p *Page, r *http.Request) (Control, error)

// Handler serves the control built by build. Every request gets a fresh
// Page so ids start from zero and no state leaks between responses.
func Handler(build BuildFunc, opts ...Option) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page := NewPage(opts...)
		c, err := build(page, r)
		if err != nil {
			page.log.Error(err, "cannot build page", "path", r.URL.Path)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		if err := Render(w, r, c); err != nil {
			page.log.Error(err, "cannot render page", "path", r.URL.Path)
		}
	})
}
