package exportrouter

import (
	"github.com/goliatone/go-router"
	"github.com/goliatone/go-tableview/adapters/viewerapi"
	"github.com/goliatone/go-tableview/export"
)

// Config configures the go-router adapter.
type Config = viewerapi.Config

// Handler exposes the viewer page and API for go-router.
type Handler struct {
	controller *viewerapi.Controller
}

// NewHandler creates a go-router handler.
func NewHandler(cfg Config) *Handler {
	return &Handler{controller: viewerapi.NewController(cfg)}
}

// RegisterRoutes registers routes on a compatible go-router router.
func (h *Handler) RegisterRoutes(router any) {
	r, ok := router.(routeRegistrar)
	if !ok || h == nil || h.controller == nil {
		return
	}
	c := h.controller

	r.Get(c.Route(), h.Handle)
	r.Post(c.Route("fetch"), h.Handle)
	r.Get(c.Route("export", ":format"), h.Handle)
	r.Get(c.Route("api", "state"), h.Handle)
	r.Post(c.Route("api", "fetch"), h.Handle)
}

// Handle serves a viewer request.
func (h *Handler) Handle(c router.Context) error {
	if c == nil {
		return nil
	}
	if h == nil || h.controller == nil {
		viewerapi.WriteError(routerResponse{ctx: c}, export.NewError(export.KindInternal, "handler is nil", nil))
		return nil
	}
	h.controller.Serve(routerRequest{ctx: c}, routerResponse{ctx: c})
	return nil
}

type routeRegistrar interface {
	Get(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Post(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
}
