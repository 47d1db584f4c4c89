package query

import (
	"strings"

	"github.com/goliatone/go-errors"
)

// TableState requests a session's current table state.
type TableState struct {
	SessionID string
}

func (TableState) Type() string { return "tableview:state" }

func (msg TableState) Validate() error {
	if strings.TrimSpace(msg.SessionID) == "" {
		return errors.New("session ID is required", errors.CategoryValidation).
			WithTextCode("SESSION_REQUIRED")
	}
	return nil
}
