package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-academy/pkg/accesspolicy"
	"github.com/tendant/simple-academy/pkg/account"
	"github.com/tendant/simple-academy/pkg/courseaccess"
	"github.com/tendant/simple-academy/pkg/emailverification"
	"github.com/tendant/simple-academy/pkg/errors"
	"github.com/tendant/simple-academy/pkg/identity"
	"github.com/tendant/simple-academy/pkg/session"
	"github.com/tendant/simple-academy/pkg/tokencodec"
)

func newTestRouter(t *testing.T) chi.Router {
	t.Helper()
	codec, err := tokencodec.NewCodec("test-secret")
	require.NoError(t, err)

	repo := identity.NewInMemoryRepository()
	auth := session.NewAuthenticator(codec)
	gate := accesspolicy.NewGate(auth, repo)
	service := account.NewService(repo, auth,
		emailverification.NewEmailVerificationService(repo, codec, "http://api.test"),
		courseaccess.NewService(repo, codec, "http://front.test"),
		account.WithPasswordHasher(account.NewBcryptHasher(4)),
	)

	h := NewHandler(service)
	r := chi.NewRouter()
	h.Routes(r, gate.Authenticated, nil)
	r.Route("/courses/{"+CourseParam+"}", func(r chi.Router) {
		r.Use(gate.Authenticated)
		r.Post("/purchase", h.Purchase)
		r.Delete("/purchase", h.Refund)
		r.With(gate.CourseOwnership(CourseParam)).Get("/access", h.CheckAccess)
	})
	return r
}

func call(t *testing.T, r chi.Router, method, target, bearer, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func codeOf(t *testing.T, rec *httptest.ResponseRecorder) errors.ErrorCode {
	t.Helper()
	var body errors.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body.Code
}

func TestRegisterAndLogin(t *testing.T) {
	r := newTestRouter(t)

	rec := call(t, r, http.MethodPost, "/auth/register", "", `{"name":"Ana","email":" Ana@Example.com ","password":"long-enough"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var reg RegisterResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reg))
	assert.Equal(t, "ana@example.com", reg.User.Email)
	assert.False(t, reg.User.IsVerified)
	assert.False(t, reg.EmailSent)
	assert.NotEmpty(t, reg.Warning)
	assert.Equal(t, []string{}, reg.User.PurchasedCourses)

	rec = call(t, r, http.MethodPost, "/auth/register", "", `{"name":"Ana","email":"ana@example.com","password":"long-enough"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = call(t, r, http.MethodPost, "/auth/login", "", `{"email":"ana@example.com","password":"wrong-password"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, errors.ErrCodeInvalidCredentials, codeOf(t, rec))

	rec = call(t, r, http.MethodPost, "/auth/login", "", `{"email":"ana@example.com","password":"long-enough"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var login LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &login))
	require.NotEmpty(t, login.Token)

	rec = call(t, r, http.MethodGet, "/me", login.Token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var me ProfileResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
	assert.Equal(t, reg.User.ID, me.ID)
}

func TestRegister_Validation(t *testing.T) {
	r := newTestRouter(t)

	for name, body := range map[string]string{
		"bad json":       `{`,
		"missing name":   `{"email":"a@example.com","password":"long-enough"}`,
		"bad email":      `{"name":"A","email":"not-an-email","password":"long-enough"}`,
		"short password": `{"name":"A","email":"a@example.com","password":"short"}`,
	} {
		t.Run(name, func(t *testing.T) {
			rec := call(t, r, http.MethodPost, "/auth/register", "", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, errors.ErrCodeInvalidInput, codeOf(t, rec))
		})
	}
}

func TestPurchaseRefundAndAccessCheck(t *testing.T) {
	r := newTestRouter(t)
	call(t, r, http.MethodPost, "/auth/register", "", `{"name":"Ana","email":"ana@example.com","password":"long-enough"}`)
	rec := call(t, r, http.MethodPost, "/auth/login", "", `{"email":"ana@example.com","password":"long-enough"}`)
	var login LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &login))

	rec = call(t, r, http.MethodGet, "/courses/7/access", login.Token, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, errors.ErrCodeNotEntitled, codeOf(t, rec))

	rec = call(t, r, http.MethodPost, "/courses/7/purchase", login.Token, "")
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = call(t, r, http.MethodPost, "/courses/7/purchase", login.Token, "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = call(t, r, http.MethodGet, "/courses/7/access", login.Token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var access AccessCheckResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &access))
	assert.True(t, access.Access)
	assert.Equal(t, "7", access.Course)

	rec = call(t, r, http.MethodGet, "/me/courses", login.Token, "")
	var courses CoursesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &courses))
	assert.Equal(t, 1, courses.Total)

	rec = call(t, r, http.MethodDelete, "/courses/7/purchase", login.Token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	rec = call(t, r, http.MethodDelete, "/courses/7/purchase", login.Token, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = call(t, r, http.MethodGet, "/courses/7/access", login.Token, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestMe_RequiresSession(t *testing.T) {
	r := newTestRouter(t)

	rec := call(t, r, http.MethodGet, "/me", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, errors.ErrCodeMissingToken, codeOf(t, rec))
}
