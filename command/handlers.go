package command

import (
	"context"

	gcmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-tableview/export"
	"github.com/goliatone/go-tableview/viewer"
)

// Sessions resolves a session's controller.
type Sessions interface {
	Lookup(id string) (*viewer.Controller, bool)
}

// Expirer drops idle sessions.
type Expirer interface {
	Expire()
}

// FetchRecordsHandler handles fetch commands.
type FetchRecordsHandler struct {
	Sessions Sessions
}

func NewFetchRecordsHandler(sessions Sessions) *FetchRecordsHandler {
	return &FetchRecordsHandler{Sessions: sessions}
}

// Execute blocks until the fetch resolves. The snapshot is stored even when
// the fetch fails so callers can inspect the error state.
func (h *FetchRecordsHandler) Execute(ctx context.Context, msg FetchRecords) error {
	if h == nil {
		return sessionsRequired()
	}
	ctrl, err := lookup(h.Sessions, msg.SessionID)
	if err != nil {
		return err
	}

	ctrl.SetURL(msg.URL)
	snap, err := ctrl.Fetch(ctx)
	if msg.Result != nil {
		*msg.Result = snap
	}
	if res := gcmd.ResultFromContext[viewer.Snapshot](ctx); res != nil {
		res.Store(snap)
	}
	return err
}

// ExportRecordsHandler handles export commands.
type ExportRecordsHandler struct {
	Sessions Sessions
}

func NewExportRecordsHandler(sessions Sessions) *ExportRecordsHandler {
	return &ExportRecordsHandler{Sessions: sessions}
}

func (h *ExportRecordsHandler) Execute(ctx context.Context, msg ExportRecords) error {
	if h == nil {
		return sessionsRequired()
	}
	ctrl, err := lookup(h.Sessions, msg.SessionID)
	if err != nil {
		return err
	}

	result, err := ctrl.Export(ctx, msg.Format, msg.Output)
	if err != nil {
		return err
	}
	if msg.Result != nil {
		*msg.Result = result
	}
	if res := gcmd.ResultFromContext[export.ExportResult](ctx); res != nil {
		res.Store(result)
	}
	return nil
}

// DefaultExpireSchedule runs the session sweep every five minutes.
const DefaultExpireSchedule = "*/5 * * * *"

// ExpireSessionsHandler drops idle sessions on a schedule.
type ExpireSessionsHandler struct {
	Sessions Expirer
	Config   gcmd.HandlerConfig
}

func NewExpireSessionsHandler(sessions Expirer) *ExpireSessionsHandler {
	return &ExpireSessionsHandler{
		Sessions: sessions,
		Config:   gcmd.HandlerConfig{Expression: DefaultExpireSchedule},
	}
}

func (h *ExpireSessionsHandler) Execute(ctx context.Context, msg ExpireSessions) error {
	_ = ctx
	_ = msg
	if h == nil || h.Sessions == nil {
		return sessionsRequired()
	}
	h.Sessions.Expire()
	return nil
}

func (h *ExpireSessionsHandler) CronHandler() func() error {
	return func() error {
		return h.Execute(context.Background(), ExpireSessions{})
	}
}

func (h *ExpireSessionsHandler) CronOptions() gcmd.HandlerConfig {
	return h.Config
}

func lookup(sessions Sessions, id string) (*viewer.Controller, error) {
	if sessions == nil {
		return nil, sessionsRequired()
	}
	ctrl, ok := sessions.Lookup(id)
	if !ok || ctrl == nil {
		return nil, errors.New("session not found", errors.CategoryNotFound).
			WithTextCode("SESSION_NOT_FOUND")
	}
	return ctrl, nil
}

func sessionsRequired() error {
	return errors.New("session store is required", errors.CategoryInternal).
		WithTextCode("SESSIONS_REQUIRED")
}
