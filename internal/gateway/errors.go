package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/and161185/bookshelf/internal/errs"
)

// APIError is the error body returned by the backend.
// Message is either a string or a list of field messages on the wire.
type APIError struct {
	StatusCode int      `json:"statusCode"`
	Message    Messages `json:"message"`
	Error      string   `json:"error,omitempty"`
}

// Messages decodes a string or an array of strings.
type Messages []string

func (m *Messages) UnmarshalJSON(b []byte) error {
	var one string
	if err := json.Unmarshal(b, &one); err == nil {
		*m = Messages{one}
		return nil
	}
	var many []string
	if err := json.Unmarshal(b, &many); err != nil {
		return err
	}
	*m = many
	return nil
}

// MarshalJSON writes a single message as a plain string.
func (m Messages) MarshalJSON() ([]byte, error) {
	if len(m) == 1 {
		return json.Marshal(m[0])
	}
	return json.Marshal([]string(m))
}

// KindForStatus maps an HTTP status to the error taxonomy.
func KindForStatus(status int) errs.Kind {
	switch status {
	case http.StatusUnauthorized:
		return errs.KindAuthorization
	case http.StatusForbidden:
		return errs.KindForbidden
	case http.StatusNotFound:
		return errs.KindNotFound
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return errs.KindValidation
	case http.StatusPreconditionFailed:
		return errs.KindVersionConflict
	case http.StatusPreconditionRequired:
		return errs.KindPreconditionMissing
	}
	return errs.KindUnknown
}

var kindMessages = map[errs.Kind]string{
	errs.KindAuthorization:       "not authorized, please log in",
	errs.KindForbidden:           "not permitted for this action",
	errs.KindNotFound:            "book not found",
	errs.KindValidation:          "invalid request",
	errs.KindVersionConflict:     "version mismatch, the book was modified in the meantime",
	errs.KindPreconditionMissing: "version (If-Match header) missing",
	errs.KindUnreachable:         "server unreachable, please check the connection",
	errs.KindUnknown:             "an unknown error occurred",
}

// FromResponse converts a non-2xx response into *errs.Error. The body is consumed.
func FromResponse(resp *http.Response) error {
	kind := KindForStatus(resp.StatusCode)
	e := &errs.Error{Kind: kind, Status: resp.StatusCode, Message: kindMessages[kind]}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var api APIError
	if len(body) > 0 && json.Unmarshal(body, &api) == nil && len(api.Message) > 0 {
		if kind == errs.KindValidation {
			e.Message = "validation failed"
			e.Details = api.Message
		}
	}
	if kind == errs.KindUnknown {
		e.Message = fmt.Sprintf("%s (HTTP %d)", kindMessages[kind], resp.StatusCode)
		if msg := strings.TrimSpace(strings.Join(api.Message, ", ")); msg != "" {
			e.Details = []string{msg}
		}
	}
	return e
}

// FromTransportError classifies an error returned by http.Client.Do.
// Context cancellation is passed through untouched.
func FromTransportError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var e *errs.Error
	if errors.As(err, &e) {
		return err
	}
	return &errs.Error{Kind: errs.KindUnreachable, Message: kindMessages[errs.KindUnreachable], Err: err}
}
