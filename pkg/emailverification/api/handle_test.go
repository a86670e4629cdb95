package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-academy/pkg/emailverification"
	"github.com/tendant/simple-academy/pkg/errors"
	"github.com/tendant/simple-academy/pkg/identity"
	"github.com/tendant/simple-academy/pkg/session"
	"github.com/tendant/simple-academy/pkg/tokencodec"
)

type testEnv struct {
	router  chi.Router
	service *emailverification.EmailVerificationService
	auth    *session.Authenticator
	user    *identity.Identity
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	codec, err := tokencodec.NewCodec("test-secret")
	require.NoError(t, err)
	repo := identity.NewInMemoryRepository()
	user := identity.New("Ana", "ana@example.com", "hash", time.Now().UTC())
	require.NoError(t, repo.Create(context.Background(), user))

	env := &testEnv{
		service: emailverification.NewEmailVerificationService(repo, codec, "http://api.test"),
		auth:    session.NewAuthenticator(codec),
		user:    user,
	}
	r := chi.NewRouter()
	NewHandler(env.service, "http://front.test/").Routes(r, env.auth.Middleware, nil)
	env.router = r
	return env
}

func (e *testEnv) do(t *testing.T, method, target, body, bearer string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func TestVerifyEmailLink_Redirects(t *testing.T) {
	env := newTestEnv(t)
	res, err := env.service.Issue(context.Background(), env.user)
	require.NoError(t, err)

	rec := env.do(t, http.MethodGet, "/verify-email?token="+url.QueryEscape(res.Token), "", "")
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "http://front.test/verify-email.html?status=verified", rec.Header().Get("Location"))

	rec = env.do(t, http.MethodGet, "/verify-email?token="+url.QueryEscape(res.Token), "", "")
	assert.Equal(t, "http://front.test/verify-email.html?status=already_verified", rec.Header().Get("Location"))

	rec = env.do(t, http.MethodGet, "/verify-email?token=bogus", "", "")
	assert.Equal(t, "http://front.test/verify-email.html?code=INVALID_TOKEN&status=error", rec.Header().Get("Location"))
}

func TestVerifyEmailLink_JSON(t *testing.T) {
	env := newTestEnv(t)
	res, err := env.service.Issue(context.Background(), env.user)
	require.NoError(t, err)

	rec := env.do(t, http.MethodGet, "/verify-email?format=json&token="+url.QueryEscape(res.Token), "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body VerifyEmailResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, env.user.ID.String(), body.UserID)
	assert.False(t, body.AlreadyVerified)

	rec = env.do(t, http.MethodGet, "/verify-email?format=json", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVerifyEmail_Post(t *testing.T) {
	env := newTestEnv(t)
	res, err := env.service.Issue(context.Background(), env.user)
	require.NoError(t, err)

	rec := env.do(t, http.MethodPost, "/verify-email", `{"token":"`+res.Token+`"}`, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/verify-email", `{"token":"garbage"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	var errBody errors.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errBody))
	assert.Equal(t, errors.ErrCodeInvalidToken, errBody.Code)
}

func TestResendAndStatus(t *testing.T) {
	env := newTestEnv(t)
	token, _, err := env.auth.Issue(env.user)
	require.NoError(t, err)

	rec := env.do(t, http.MethodPost, "/resend", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodPost, "/resend", "", token)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/resend", "", token)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	rec = env.do(t, http.MethodGet, "/status", "", token)
	require.Equal(t, http.StatusOK, rec.Code)
	var st VerificationStatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.False(t, st.EmailVerified)
	assert.NotNil(t, st.PendingExpiresAt)
}

func TestResendPublic_IsGeneric(t *testing.T) {
	env := newTestEnv(t)

	known := env.do(t, http.MethodPost, "/resend-public", `{"email":"ana@example.com"}`, "")
	unknown := env.do(t, http.MethodPost, "/resend-public", `{"email":"ghost@example.com"}`, "")
	require.Equal(t, http.StatusOK, known.Code)
	require.Equal(t, http.StatusOK, unknown.Code)
	assert.JSONEq(t, known.Body.String(), unknown.Body.String())

	rec := env.do(t, http.MethodPost, "/resend-public", `{}`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
