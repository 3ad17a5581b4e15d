// Package hxctlecho provides Echo framework integration for hxctl pages.
//
// Serve a control tree from an Echo route:
//
//	e := echo.New()
//	e.GET("/", hxctlecho.Handler(func(p *hxctl.Page, c echo.Context) (hxctl.Control, error) {
//	    return NewCounter(hxctl.Spec{Page: p}), nil
//	}))
//
// Or mount on a group with middleware:
//
//	g := e.Group("/app", authMiddleware)
//	g.GET("/board", hxctlecho.Handler(buildBoard, hxctl.WithLogger(log)))
package hxctlecho

import (
	"net/http"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"
	"github.com/pthm/hxctl"
)

// BuildFunc composes the control tree for one request.
type BuildFunc func(p *hxctl.Page, c echo.Context) (hxctl.Control, error)

// Handler serves the control built by build. Every request gets a fresh
// Page. Build errors are returned to Echo's error handler; a returned
// *echo.HTTPError keeps its status code.
func Handler(build BuildFunc, opts ...hxctl.Option) echo.HandlerFunc {
	return func(c echo.Context) error {
		page := hxctl.NewPage(opts...)
		ctl, err := build(page, c)
		if err != nil {
			if _, ok := err.(*echo.HTTPError); ok {
				return err
			}
			page.Logger().Error(err, "cannot build page", "path", c.Request().URL.Path)
			return echo.NewHTTPError(http.StatusInternalServerError).SetInternal(err)
		}
		return Render(c, ctl)
	}
}

// Render writes a templ component to the Echo response.
//
//	func handler(c echo.Context) error {
//	    return hxctlecho.Render(c, myTemplate())
//	}
func Render(c echo.Context, component templ.Component) error {
	c.Response().Header().Set("Content-Type", "text/html; charset=utf-8")
	return component.Render(c.Request().Context(), c.Response())
}
