package exporthttp

import (
	"net/http"
	"strings"

	"github.com/goliatone/go-tableview/adapters/viewerapi"
	"github.com/goliatone/go-tableview/export"
)

// Config configures the HTTP adapter.
type Config = viewerapi.Config

// Handler exposes the viewer page and API over net/http.
type Handler struct {
	controller *viewerapi.Controller
}

// NewHandler creates a new HTTP handler.
func NewHandler(cfg Config) *Handler {
	return &Handler{controller: viewerapi.NewController(cfg)}
}

// RegisterRoutes registers handlers on a compatible router.
func (h *Handler) RegisterRoutes(router any) {
	base := h.basePath()
	switch r := router.(type) {
	case interface{ Handle(string, http.Handler) }:
		if base != "/" {
			r.Handle(base, h)
		}
		r.Handle(strings.TrimSuffix(base, "/")+"/", h)
	case interface {
		HandleFunc(string, func(http.ResponseWriter, *http.Request))
	}:
		if base != "/" {
			r.HandleFunc(base, h.ServeHTTP)
		}
		r.HandleFunc(strings.TrimSuffix(base, "/")+"/", h.ServeHTTP)
	}
}

// ServeHTTP routes viewer endpoints.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if w == nil {
		return
	}
	if h == nil || h.controller == nil {
		viewerapi.WriteError(httpResponse{w: w}, export.NewError(export.KindInternal, "handler is nil", nil))
		return
	}
	h.controller.Serve(httpRequest{r: r}, httpResponse{w: w, req: r})
}

func (h *Handler) basePath() string {
	if h == nil || h.controller == nil || h.controller.BasePath() == "" {
		return "/"
	}
	return h.controller.BasePath()
}
