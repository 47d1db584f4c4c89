package viewerapi

import (
	"io"

	"github.com/goliatone/go-tableview/dataset"
	"github.com/goliatone/go-tableview/export"
	"github.com/goliatone/go-tableview/viewer"
)

// Response provides a minimal response interface for transport adapters.
type Response interface {
	SetHeader(name, value string)
	DelHeader(name string)
	SetCookie(cookie Cookie)
	WriteHeader(status int)
	Write(data []byte) (int, error)
	WriteJSON(status int, payload any) error
	Writer() (io.Writer, bool)
	Redirect(location string, status int) error
}

// ErrorResponse describes JSON error responses.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody contains error details.
type ErrorBody struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// StateResponse is the JSON form of a viewer snapshot.
type StateResponse struct {
	URL     string            `json:"url"`
	Loading bool              `json:"loading"`
	HasData bool              `json:"has_data"`
	Columns []string          `json:"columns"`
	Rows    dataset.RecordSet `json:"rows"`
	Error   *StateError       `json:"error,omitempty"`
}

// StateError describes the last fetch failure.
type StateError struct {
	Kind    export.ErrorKind `json:"kind"`
	Message string           `json:"message"`
	Status  int              `json:"status,omitempty"`
}

// NewStateResponse converts a snapshot for the API.
func NewStateResponse(snap viewer.Snapshot) StateResponse {
	out := StateResponse{
		URL:     snap.URL,
		Loading: snap.Loading,
		HasData: snap.HasData(),
		Columns: snap.Columns(),
		Rows:    snap.Records,
	}
	if out.Columns == nil {
		out.Columns = []string{}
	}
	if out.Rows == nil {
		out.Rows = dataset.RecordSet{}
	}
	if snap.Err != nil {
		out.Error = &StateError{
			Kind:    snap.ErrorKind(),
			Message: snap.Err.Error(),
			Status:  export.StatusFromError(snap.Err),
		}
	}
	return out
}
