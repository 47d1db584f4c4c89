package command

import (
	"io"
	"strings"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-tableview/export"
	"github.com/goliatone/go-tableview/viewer"
)

// FetchRecords sets a session's URL and fetches it.
type FetchRecords struct {
	SessionID string
	URL       string
	Result    *viewer.Snapshot
}

func (FetchRecords) Type() string { return "tableview:fetch" }

func (msg FetchRecords) Validate() error {
	if strings.TrimSpace(msg.SessionID) == "" {
		return errors.New("session ID is required", errors.CategoryValidation).
			WithTextCode("SESSION_REQUIRED")
	}
	return nil
}

// ExportRecords writes a session's record set in the given format.
type ExportRecords struct {
	SessionID string
	Format    export.Format
	Output    io.Writer
	Result    *export.ExportResult
}

func (ExportRecords) Type() string { return "tableview:export" }

func (msg ExportRecords) Validate() error {
	if strings.TrimSpace(msg.SessionID) == "" {
		return errors.New("session ID is required", errors.CategoryValidation).
			WithTextCode("SESSION_REQUIRED")
	}
	if strings.TrimSpace(string(msg.Format)) == "" {
		return errors.New("format is required", errors.CategoryValidation).
			WithTextCode("FORMAT_REQUIRED")
	}
	if msg.Output == nil {
		return errors.New("output writer is required", errors.CategoryValidation).
			WithTextCode("OUTPUT_REQUIRED")
	}
	return nil
}

// ExpireSessions drops idle sessions.
type ExpireSessions struct{}

func (ExpireSessions) Type() string { return "tableview:sessions-expire" }

func (ExpireSessions) Validate() error { return nil }
