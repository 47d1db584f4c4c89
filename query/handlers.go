package query

import (
	"context"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-tableview/viewer"
)

// Sessions resolves a session's controller.
type Sessions interface {
	Lookup(id string) (*viewer.Controller, bool)
}

// TableStateHandler returns a session snapshot without side effects.
type TableStateHandler struct {
	Sessions Sessions
}

func NewTableStateHandler(sessions Sessions) *TableStateHandler {
	return &TableStateHandler{Sessions: sessions}
}

func (h *TableStateHandler) Query(ctx context.Context, msg TableState) (viewer.Snapshot, error) {
	_ = ctx
	if h == nil || h.Sessions == nil {
		return viewer.Snapshot{}, errors.New("session store is required", errors.CategoryInternal).
			WithTextCode("SESSIONS_REQUIRED")
	}
	ctrl, ok := h.Sessions.Lookup(msg.SessionID)
	if !ok || ctrl == nil {
		return viewer.Snapshot{}, errors.New("session not found", errors.CategoryNotFound).
			WithTextCode("SESSION_NOT_FOUND")
	}
	return ctrl.Snapshot(), nil
}
