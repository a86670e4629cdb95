package errors

import (
	"errors"
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/go-chi/render"
)

// ErrorResponse is the JSON body written for every failed request
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Code    ErrorCode              `json:"code"`
	Details map[string]interface{} `json:"details,omitempty"`
}

var verbose atomic.Bool

// SetVerbose controls whether wrapped internal errors are echoed to clients.
// It is enabled only outside production.
func SetVerbose(v bool) {
	verbose.Store(v)
}

// ToResponse converts an error into its outward representation and status code
func ToResponse(err error) (int, ErrorResponse) {
	var e *Error
	if !errors.As(err, &e) {
		resp := ErrorResponse{Error: "internal server error", Code: ErrCodeInternal}
		if verbose.Load() {
			resp.Error = err.Error()
		}
		return http.StatusInternalServerError, resp
	}

	resp := ErrorResponse{Error: e.Message, Code: e.Code, Details: e.Details}
	if e.Code == ErrCodeInternal {
		resp.Error = "internal server error"
		if verbose.Load() {
			resp.Error = e.Error()
		}
	}
	return MapErrorCodeToHTTPStatus(e.Code), resp
}

// Render writes err as a JSON error response
func Render(w http.ResponseWriter, r *http.Request, err error) {
	status, resp := ToResponse(err)
	if status >= http.StatusInternalServerError {
		slog.Error("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	render.Status(r, status)
	render.JSON(w, r, resp)
}
