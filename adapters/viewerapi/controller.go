package viewerapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strings"
	"time"

	errorslib "github.com/goliatone/go-errors"
	exporttemplate "github.com/goliatone/go-tableview/adapters/template"
	"github.com/goliatone/go-tableview/export"
	"github.com/goliatone/go-tableview/viewer"
)

const (
	// DefaultCookieName keys the browser session.
	DefaultCookieName = "tableview_sid"
	// DefaultPageTemplate renders the viewer page.
	DefaultPageTemplate = "page"
	// DefaultTableTemplate renders the table fragment inside the page.
	DefaultTableTemplate = "table"
	// DefaultRefreshSeconds is the page refresh interval while a fetch is in flight.
	DefaultRefreshSeconds = 1
	// DefaultFetchTimeout bounds how long POST /api/fetch waits for a result.
	DefaultFetchTimeout = 60 * time.Second
	// DefaultMaxBufferBytes is the fallback buffer limit when streaming is unavailable.
	DefaultMaxBufferBytes int64 = 32 * 1024 * 1024
)

// DefaultFormats are the export actions offered on the page.
var DefaultFormats = []export.Format{export.FormatCSV, export.FormatPDF}

// Sessions resolves the viewer controller owned by a browser session.
type Sessions interface {
	Lookup(id string) (*viewer.Controller, bool)
	Create() (string, *viewer.Controller, error)
}

// Config configures the shared viewer API controller.
type Config struct {
	Sessions       Sessions
	Templates      exporttemplate.TemplateExecutor
	BasePath       string
	Formats        []export.Format
	PageTemplate   string
	TableTemplate  string
	CookieName     string
	CookieMaxAge   int
	RefreshSeconds int
	FetchTimeout   time.Duration
	MaxBodyBytes   int64
	MaxBufferBytes int64
	Logger         export.Logger
}

// ExportLink is an export action rendered on the page.
type ExportLink struct {
	Format export.Format
	Label  string
	Href   string
}

// Controller exposes the viewer page and API for multiple transports.
type Controller struct {
	sessions       Sessions
	templates      exporttemplate.TemplateExecutor
	basePath       string
	formats        []export.Format
	pageTemplate   string
	tableTemplate  string
	cookieName     string
	cookieMaxAge   int
	refreshSeconds int
	fetchTimeout   time.Duration
	maxBodyBytes   int64
	maxBufferBytes int64
	logger         export.Logger
}

// NewController creates a shared viewer API controller.
func NewController(cfg Config) *Controller {
	c := &Controller{
		sessions:       cfg.Sessions,
		templates:      cfg.Templates,
		basePath:       strings.TrimRight(cfg.BasePath, "/"),
		pageTemplate:   cfg.PageTemplate,
		tableTemplate:  cfg.TableTemplate,
		cookieName:     cfg.CookieName,
		cookieMaxAge:   cfg.CookieMaxAge,
		refreshSeconds: cfg.RefreshSeconds,
		fetchTimeout:   cfg.FetchTimeout,
		maxBodyBytes:   cfg.MaxBodyBytes,
		maxBufferBytes: cfg.MaxBufferBytes,
		logger:         cfg.Logger,
	}
	if c.pageTemplate == "" {
		c.pageTemplate = DefaultPageTemplate
	}
	if c.tableTemplate == "" {
		c.tableTemplate = DefaultTableTemplate
	}
	if c.cookieName == "" {
		c.cookieName = DefaultCookieName
	}
	if c.refreshSeconds <= 0 {
		c.refreshSeconds = DefaultRefreshSeconds
	}
	if c.fetchTimeout <= 0 {
		c.fetchTimeout = DefaultFetchTimeout
	}
	if c.maxBufferBytes <= 0 {
		c.maxBufferBytes = DefaultMaxBufferBytes
	}
	if c.logger == nil {
		c.logger = export.NopLogger{}
	}

	formats := cfg.Formats
	if len(formats) == 0 {
		formats = DefaultFormats
	}
	seen := make(map[export.Format]struct{}, len(formats))
	for _, format := range formats {
		format = export.NormalizeFormat(format)
		if _, ok := seen[format]; ok {
			continue
		}
		seen[format] = struct{}{}
		c.formats = append(c.formats, format)
	}
	return c
}

// BasePath returns the configured base path.
func (c *Controller) BasePath() string {
	if c == nil {
		return ""
	}
	return c.basePath
}

// Route returns the absolute path of a route under the base path.
func (c *Controller) Route(parts ...string) string {
	return "/" + strings.Trim(path.Join(append([]string{c.basePath}, parts...)...), "/")
}

// Serve routes viewer endpoints.
func (c *Controller) Serve(req Request, res Response) {
	if res == nil {
		return
	}
	if c == nil {
		WriteError(res, export.NewError(export.KindInternal, "handler is nil", nil))
		return
	}
	if req == nil {
		WriteError(res, export.NewError(export.KindInternal, "request is nil", nil))
		return
	}
	if c.sessions == nil {
		WriteError(res, export.NewError(export.KindInternal, "sessions not configured", nil))
		return
	}
	if !strings.HasPrefix(req.Path(), c.basePath) {
		writeNotFound(res)
		return
	}

	suffix := strings.Trim(strings.TrimPrefix(req.Path(), c.basePath), "/")
	parts := []string{}
	if suffix != "" {
		parts = strings.Split(suffix, "/")
	}

	switch {
	case len(parts) == 0:
		c.allow(req, res, http.MethodGet, c.handlePage)
	case len(parts) == 1 && parts[0] == "fetch":
		c.allow(req, res, http.MethodPost, c.handleFetchForm)
	case len(parts) == 2 && parts[0] == "export":
		format := parts[1]
		c.allow(req, res, http.MethodGet, func(req Request, res Response) {
			c.handleExport(req, res, export.Format(format))
		})
	case len(parts) == 2 && parts[0] == "api" && parts[1] == "state":
		c.allow(req, res, http.MethodGet, c.handleState)
	case len(parts) == 2 && parts[0] == "api" && parts[1] == "fetch":
		c.allow(req, res, http.MethodPost, c.handleAPIFetch)
	default:
		writeNotFound(res)
	}
}

func (c *Controller) allow(req Request, res Response, method string, handler func(Request, Response)) {
	if req.Method() == method || (method == http.MethodGet && req.Method() == http.MethodHead) {
		handler(req, res)
		return
	}
	res.SetHeader("Allow", method)
	res.WriteHeader(http.StatusMethodNotAllowed)
}

func (c *Controller) handlePage(req Request, res Response) {
	ctrl, err := c.session(req, res, true)
	if err != nil {
		WriteError(res, err)
		return
	}

	page, err := c.RenderPage(req.Context(), ctrl.Snapshot())
	if err != nil {
		c.logger.Errorf("page render failed: %v", err)
		WriteError(res, err)
		return
	}

	res.SetHeader("Content-Type", "text/html; charset=utf-8")
	res.SetHeader("Cache-Control", "no-store")
	res.WriteHeader(http.StatusOK)
	if _, err := res.Write(page); err != nil {
		c.logger.Errorf("page write failed: %v", err)
	}
}

func (c *Controller) handleFetchForm(req Request, res Response) {
	payload, err := decodeFetch(req, c.maxBodyBytes)
	if err != nil {
		WriteError(res, err)
		return
	}
	ctrl, err := c.session(req, res, true)
	if err != nil {
		WriteError(res, err)
		return
	}

	ctrl.SetURL(payload.URL)
	token := ctrl.Start(req.Context())
	c.logger.Debugf("fetch %d started for %s", token, payload.URL)

	if err := res.Redirect(c.Route(), http.StatusSeeOther); err != nil {
		c.logger.Errorf("redirect failed: %v", err)
	}
}

func (c *Controller) handleState(req Request, res Response) {
	ctrl, err := c.session(req, res, true)
	if err != nil {
		WriteError(res, err)
		return
	}
	writeJSON(res, http.StatusOK, NewStateResponse(ctrl.Snapshot()))
}

func (c *Controller) handleAPIFetch(req Request, res Response) {
	payload, err := decodeFetch(req, c.maxBodyBytes)
	if err != nil {
		WriteError(res, err)
		return
	}
	ctrl, err := c.session(req, res, true)
	if err != nil {
		WriteError(res, err)
		return
	}

	ctrl.SetURL(payload.URL)
	ctrl.Start(req.Context())

	waitCtx, cancel := context.WithTimeout(req.Context(), c.fetchTimeout)
	defer cancel()
	snap, err := ctrl.Wait(waitCtx)
	if err != nil {
		// Still loading; the client can poll /api/state.
		writeJSON(res, http.StatusAccepted, NewStateResponse(snap))
		return
	}
	if snap.Err != nil {
		WriteError(res, snap.Err)
		return
	}
	writeJSON(res, http.StatusOK, NewStateResponse(snap))
}

func (c *Controller) handleExport(req Request, res Response, format export.Format) {
	format = export.NormalizeFormat(format)
	if !c.offers(format) {
		WriteError(res, export.NewError(export.KindNotFound, fmt.Sprintf("export format %q is not available", format), nil))
		return
	}

	ctrl, err := c.session(req, res, false)
	if err != nil {
		WriteError(res, err)
		return
	}
	if ctrl == nil {
		res.WriteHeader(http.StatusNoContent)
		return
	}

	filename, err := ctrl.Filename(format)
	if err != nil {
		WriteError(res, err)
		return
	}
	setDownloadHeaders(res, sanitizeFilename(filename, format), export.ContentTypeForFormat(format))

	if writer, ok := res.Writer(); ok {
		tracker := &trackingWriter{writer: writer}
		if _, err := ctrl.Export(req.Context(), format, tracker); err != nil {
			if !tracker.Written() {
				clearDownloadHeaders(res)
				c.writeExportError(res, err)
				return
			}
			c.logger.Errorf("export %s failed after write: %v", format, err)
		}
		return
	}

	buffer := newLimitedBuffer(c.maxBufferBytes)
	if _, err := ctrl.Export(req.Context(), format, buffer); err != nil {
		clearDownloadHeaders(res)
		c.writeExportError(res, err)
		return
	}
	res.WriteHeader(http.StatusOK)
	if _, err := res.Write(buffer.Bytes()); err != nil {
		c.logger.Errorf("export buffer write failed: %v", err)
	}
}

// writeExportError turns a no-data export into an empty 204 so the export
// action stays silent, and reports anything else as an API error.
func (c *Controller) writeExportError(res Response, err error) {
	if errors.Is(err, export.ErrNoData) {
		res.WriteHeader(http.StatusNoContent)
		return
	}
	WriteError(res, err)
}

func (c *Controller) offers(format export.Format) bool {
	for _, candidate := range c.formats {
		if candidate == format {
			return true
		}
	}
	return false
}

func (c *Controller) session(req Request, res Response, create bool) (*viewer.Controller, error) {
	if id := req.Cookie(c.cookieName); id != "" {
		if ctrl, ok := c.sessions.Lookup(id); ok {
			return ctrl, nil
		}
	}
	if !create {
		return nil, nil
	}

	id, ctrl, err := c.sessions.Create()
	if err != nil {
		return nil, export.NewError(export.KindInternal, "session create failed", err)
	}
	res.SetCookie(Cookie{
		Name:     c.cookieName,
		Value:    id,
		Path:     c.Route(),
		MaxAge:   c.cookieMaxAge,
		HTTPOnly: true,
	})
	return ctrl, nil
}

func writeNotFound(res Response) {
	res.SetHeader("Content-Type", "text/plain; charset=utf-8")
	res.SetHeader("X-Content-Type-Options", "nosniff")
	res.WriteHeader(http.StatusNotFound)
	_, _ = res.Write([]byte("404 page not found\n"))
}

// WriteError writes err as a JSON error with a status derived from its
// go-errors category.
func WriteError(res Response, err error) {
	if err == nil {
		res.WriteHeader(http.StatusNoContent)
		return
	}
	ge := export.AsGoError(err)
	writeJSON(res, StatusForError(ge), ErrorResponse{
		Error: ErrorBody{
			Message: ge.Message,
			Code:    ge.TextCode,
		},
	})
}

func writeJSON(res Response, status int, payload any) {
	_ = res.WriteJSON(status, payload)
}

// StatusForError maps a go-errors error to an HTTP status. Failures of the
// upstream JSON API surface as 502.
func StatusForError(err *errorslib.Error) int {
	if err == nil {
		return http.StatusInternalServerError
	}
	switch err.TextCode {
	case "not_implemented":
		return http.StatusNotImplemented
	case "upstream_network", "upstream_status", "upstream_decode", "heterogeneous_record_set":
		return http.StatusBadGateway
	}
	switch err.Category {
	case errorslib.CategoryValidation:
		return http.StatusBadRequest
	case errorslib.CategoryNotFound:
		return http.StatusNotFound
	case errorslib.CategoryOperation:
		if err.TextCode == "canceled" {
			return http.StatusConflict
		}
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func sanitizeFilename(filename string, format export.Format) string {
	name := strings.TrimSpace(filename)
	name = strings.ReplaceAll(name, "\"", "")
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	if name == "" {
		name = export.DefaultFilename + "." + export.Extension(format)
	}
	return name
}

func setDownloadHeaders(res Response, filename, contentType string) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	res.SetHeader("Content-Type", contentType)
	res.SetHeader("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filename))
}

func clearDownloadHeaders(res Response) {
	res.DelHeader("Content-Disposition")
	res.DelHeader("Content-Type")
}
