package command

import (
	"context"

	gcmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-tableview/query"
)

// SessionStore is the store the handlers operate on.
type SessionStore interface {
	Sessions
	Expirer
}

// RegisterOption tunes the handlers built by RegisterHandlers.
type RegisterOption func(*ExpireSessionsHandler)

// WithExpireSchedule sets the cron expression the expiry handler registers with.
func WithExpireSchedule(expr string) RegisterOption {
	return func(h *ExpireSessionsHandler) {
		if expr != "" {
			h.Config.Expression = expr
		}
	}
}

// RegisterHandlers wires the commands and queries to go-command. The expiry
// handler is added to reg when one is given, so its cron and CLI entries come
// up on reg.Initialize. The returned subscriptions must be released by the
// caller.
func RegisterHandlers(reg *gcmd.Registry, sessions SessionStore, opts ...RegisterOption) ([]dispatcher.Subscription, error) {
	if sessions == nil {
		return nil, errors.New("session store is required", errors.CategoryValidation).
			WithTextCode("SESSIONS_REQUIRED")
	}

	fetch := NewFetchRecordsHandler(sessions)
	exp := NewExportRecordsHandler(sessions)
	expire := NewExpireSessionsHandler(sessions)
	for _, opt := range opts {
		if opt != nil {
			opt(expire)
		}
	}
	state := query.NewTableStateHandler(sessions)

	subscriptions := []dispatcher.Subscription{
		dispatcher.SubscribeCommand(fetch),
		dispatcher.SubscribeCommand(exp),
		dispatcher.SubscribeCommand(expire),
		dispatcher.SubscribeQuery(state),
	}

	if reg != nil {
		if err := reg.RegisterCommand(expire); err != nil {
			return subscriptions, err
		}
	}
	return subscriptions, nil
}

// CLIHandler exposes session expiry via CLI.
func (h *ExpireSessionsHandler) CLIHandler() any {
	return &expireCLI{handler: h}
}

// CLIOptions describes session expiry CLI metadata.
func (h *ExpireSessionsHandler) CLIOptions() gcmd.CLIConfig {
	return gcmd.CLIConfig{
		Path:        []string{"sessions-expire"},
		Description: "Drop idle viewer sessions",
		Group:       "sessions",
	}
}

type expireCLI struct {
	handler *ExpireSessionsHandler
}

func (c *expireCLI) Run() error {
	if c == nil || c.handler == nil {
		return errors.New("expire handler is required", errors.CategoryInternal).
			WithTextCode("EXPIRE_HANDLER_REQUIRED")
	}
	return c.handler.Execute(context.Background(), ExpireSessions{})
}
