package query

import (
	"context"
	"errors"
	"strings"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-tableview/dataset"
	"github.com/goliatone/go-tableview/viewer"
)

type mapSessions map[string]*viewer.Controller

func (m mapSessions) Lookup(id string) (*viewer.Controller, bool) {
	ctrl, ok := m[id]
	return ctrl, ok
}

func TestTableStateHandler_ReturnsSnapshot(t *testing.T) {
	ctrl := viewer.NewController(viewer.Config{
		Fetcher: viewer.FetcherFunc(func(ctx context.Context, rawURL string) (dataset.RecordSet, error) {
			return dataset.Decode(strings.NewReader(`[{"id":1}]`))
		}),
	})
	ctrl.SetURL("https://api.example.test")
	if _, err := ctrl.Fetch(context.Background()); err != nil {
		t.Fatalf("fetch: %v", err)
	}

	handler := NewTableStateHandler(mapSessions{"sid": ctrl})
	snap, err := handler.Query(context.Background(), TableState{SessionID: "sid"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if snap.URL != "https://api.example.test" || len(snap.Records) != 1 || snap.Loading {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}

func TestTableStateHandler_UnknownSession(t *testing.T) {
	handler := NewTableStateHandler(mapSessions{})
	_, err := handler.Query(context.Background(), TableState{SessionID: "missing"})

	var ge *goerrors.Error
	if !errors.As(err, &ge) || ge.TextCode != "SESSION_NOT_FOUND" {
		t.Fatalf("expected SESSION_NOT_FOUND, got %v", err)
	}
}

func TestTableState_Validate(t *testing.T) {
	if err := (TableState{}).Validate(); err == nil {
		t.Fatalf("expected validation error")
	}
	if err := (TableState{SessionID: "sid"}).Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
