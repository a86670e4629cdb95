package errors

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errSentinel = New(ErrCodeTokenExpired, "token expired")

func TestWithDetail_KeepsSentinelIdentity(t *testing.T) {
	detailed := errSentinel.WithDetail("retry_after_seconds", 30)

	assert.True(t, errors.Is(detailed, errSentinel))
	assert.Nil(t, errSentinel.Details, "sentinel must not be mutated")
	assert.Equal(t, 30, detailed.Details["retry_after_seconds"])
	assert.Equal(t, ErrCodeTokenExpired, GetCode(detailed))

	again := detailed.WithDetail("course", "7")
	assert.Len(t, again.Details, 2)
	assert.Len(t, detailed.Details, 1)
	assert.True(t, errors.Is(again, errSentinel))
}

func TestCodeHelpers(t *testing.T) {
	wrapped := fmt.Errorf("loading: %w", errSentinel)
	assert.True(t, IsCode(wrapped, ErrCodeTokenExpired))
	assert.False(t, IsCode(wrapped, ErrCodeNotFound))
	assert.Equal(t, ErrCodeInternal, GetCode(errors.New("plain")))
	assert.Nil(t, GetDetails(errors.New("plain")))
	assert.Nil(t, Wrap(nil, ErrCodeInternal, "nothing"))
}

func TestMapErrorCodeToHTTPStatus(t *testing.T) {
	tests := map[ErrorCode]int{
		ErrCodeInvalidInput:         http.StatusBadRequest,
		ErrCodeTokenSuperseded:      http.StatusBadRequest,
		ErrCodeMissingToken:         http.StatusUnauthorized,
		ErrCodeMalformedHeader:      http.StatusUnauthorized,
		ErrCodeInvalidToken:         http.StatusUnauthorized,
		ErrCodeSessionExpired:       http.StatusUnauthorized,
		ErrCodeTokenExpired:         http.StatusUnauthorized,
		ErrCodeEmailNotVerified:     http.StatusForbidden,
		ErrCodeNotEntitled:          http.StatusForbidden,
		ErrCodeAlreadyUsed:          http.StatusForbidden,
		ErrCodeTokenMismatch:        http.StatusForbidden,
		ErrCodeNotFound:             http.StatusNotFound,
		ErrCodeUnknownUser:          http.StatusNotFound,
		ErrCodeEmailAlreadyVerified: http.StatusConflict,
		ErrCodeRateLimited:          http.StatusTooManyRequests,
		ErrCodeInternal:             http.StatusInternalServerError,
		ErrorCode("SOMETHING_NEW"):  http.StatusInternalServerError,
	}
	for code, status := range tests {
		assert.Equal(t, status, MapErrorCodeToHTTPStatus(code), code)
	}
}

func TestToResponse_HidesInternalDetails(t *testing.T) {
	SetVerbose(false)
	t.Cleanup(func() { SetVerbose(false) })

	status, resp := ToResponse(InternalWrap(errors.New("pq: connection refused"), "failed to load identity"))
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "internal server error", resp.Error)

	status, resp = ToResponse(errors.New("boom"))
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, ErrCodeInternal, resp.Code)
	assert.Equal(t, "internal server error", resp.Error)

	SetVerbose(true)
	_, resp = ToResponse(errors.New("boom"))
	assert.Equal(t, "boom", resp.Error)
}

func TestRender(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	rec := httptest.NewRecorder()

	Render(rec, req, RateLimited("60s"))

	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"RATE_LIMITED"`)
	assert.Contains(t, rec.Body.String(), `"retry_after":"60s"`)
}
