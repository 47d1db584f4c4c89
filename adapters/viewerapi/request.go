package viewerapi

import (
	"context"
	"encoding/json"
	"io"
	"mime"
	"net/url"
	"strings"

	"github.com/goliatone/go-tableview/export"
)

// DefaultMaxBodyBytes bounds request bodies read by the API.
const DefaultMaxBodyBytes int64 = 64 * 1024

// Request provides minimal request access for transport adapters.
type Request interface {
	Context() context.Context
	Method() string
	Path() string
	Header(name string) string
	Query(name string) string
	Cookie(name string) string
	Body() io.ReadCloser
}

// Cookie is the session cookie written by the controller.
type Cookie struct {
	Name     string
	Value    string
	Path     string
	MaxAge   int
	HTTPOnly bool
}

// fetchPayload is the body of POST /fetch and POST /api/fetch.
type fetchPayload struct {
	URL string `json:"url"`
}

// decodeFetch reads the target URL from a JSON or form encoded body. The URL
// text is kept verbatim; validation happens when the fetch runs.
func decodeFetch(req Request, maxBytes int64) (fetchPayload, error) {
	body := req.Body()
	if body == nil {
		return fetchPayload{}, export.NewError(export.KindValidation, "request body is required", nil)
	}
	defer body.Close()

	if maxBytes <= 0 {
		maxBytes = DefaultMaxBodyBytes
	}
	raw, err := io.ReadAll(io.LimitReader(body, maxBytes+1))
	if err != nil {
		return fetchPayload{}, export.NewError(export.KindValidation, "request body unreadable", err)
	}
	if int64(len(raw)) > maxBytes {
		return fetchPayload{}, export.NewError(export.KindValidation, "request body too large", nil)
	}

	mediaType, _, _ := mime.ParseMediaType(req.Header("Content-Type"))
	switch mediaType {
	case "application/x-www-form-urlencoded":
		values, err := url.ParseQuery(string(raw))
		if err != nil {
			return fetchPayload{}, export.NewError(export.KindValidation, "invalid form payload", err)
		}
		return fetchPayload{URL: values.Get("url")}, nil
	case "", "application/json":
		if strings.TrimSpace(string(raw)) == "" {
			return fetchPayload{}, export.NewError(export.KindValidation, "request body is required", nil)
		}
		var payload fetchPayload
		decoder := json.NewDecoder(strings.NewReader(string(raw)))
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&payload); err != nil {
			return fetchPayload{}, export.NewError(export.KindValidation, "invalid request payload", err)
		}
		return payload, nil
	default:
		return fetchPayload{}, export.NewError(export.KindValidation, "unsupported content type "+mediaType, nil)
	}
}
