// Package errors provides structured error handling with error codes for simple-academy.
//
// Every failure the token lifecycle can produce carries a stable ErrorCode.
// Domain packages declare their sentinels as *Error values so callers can use
// errors.Is, while the HTTP layer maps codes to status codes with
// MapErrorCodeToHTTPStatus and writes them with Render.
//
// # Basic Usage
//
//	import "github.com/tendant/simple-academy/pkg/errors"
//
//	var ErrNotEntitled = errors.New(errors.ErrCodeNotEntitled, "course not purchased")
//
//	err := errors.Wrap(dbErr, errors.ErrCodeInternal, "failed to load identity")
//	if errors.IsCode(err, errors.ErrCodeInternal) {
//	    // ...
//	}
//
// # HTTP Responses
//
//	func (h *Handle) Get(w http.ResponseWriter, r *http.Request) {
//	    if err := h.service.Do(r.Context()); err != nil {
//	        errors.Render(w, r, err)
//	        return
//	    }
//	}
//
// Render always writes {"error": "...", "code": "..."}. Errors without a code
// are reported as INTERNAL_ERROR with a generic message unless verbose mode
// has been enabled with SetVerbose.
package errors
