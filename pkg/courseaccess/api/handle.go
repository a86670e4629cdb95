package api

import (
	"encoding/json"
	stderrors "errors"
	"io"
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"github.com/tendant/simple-academy/pkg/accesspolicy"
	"github.com/tendant/simple-academy/pkg/courseaccess"
	"github.com/tendant/simple-academy/pkg/errors"
	"github.com/tendant/simple-academy/pkg/identity"
)

// CourseParam is the chi URL parameter naming the course
const CourseParam = "course"

// Handler serves the course access link endpoints
type Handler struct {
	service *courseaccess.Service
	repo    identity.Repository
}

func NewHandler(service *courseaccess.Service, repo identity.Repository) *Handler {
	return &Handler{service: service, repo: repo}
}

// CourseRoutes registers the endpoints below /courses/{course}. The caller
// must apply the gate's Authenticated and CourseOwnership middleware.
func (h *Handler) CourseRoutes(r chi.Router) {
	r.Post("/access-links", h.IssueLink)
	r.Get("/access-links", h.ListLinks)
	r.Delete("/access-links", h.RevokeCourseLinks)
	r.Post("/access-log", h.RecordAccess)
	r.Get("/access-log", h.AccessLog)
}

// Routes registers the endpoints that are not scoped to a course
func (h *Handler) Routes(r chi.Router, authenticated func(http.Handler) http.Handler, strict func(http.Handler) http.Handler) {
	if strict == nil {
		strict = func(next http.Handler) http.Handler { return next }
	}
	r.With(authenticated).Delete("/access-links/{token}", h.RevokeLink)
	r.With(strict).Get("/access", h.Redeem)
	r.With(strict).Post("/access", h.Redeem)
}

// IssueLink handles POST /courses/{course}/access-links
func (h *Handler) IssueLink(w http.ResponseWriter, r *http.Request) {
	ident := accesspolicy.IdentityFromContext(r.Context())
	courseRef := chi.URLParam(r, CourseParam)

	var req IssueLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !stderrors.Is(err, io.EOF) {
		errors.Render(w, r, errors.InvalidInput("body", "must be valid JSON"))
		return
	}

	res, err := h.service.Issue(r.Context(), ident, courseRef, metadata(r))
	if err != nil {
		errors.Render(w, r, err)
		return
	}

	resp := IssueLinkResponse{
		Token:     res.Token,
		URL:       res.URL,
		CourseRef: res.CourseRef,
		ExpiresAt: res.ExpiresAt,
		MaxUses:   res.MaxUses,
		Message:   "Access link generated",
	}
	if req.SendEmail {
		if err := h.service.SendLink(ident, res); err != nil {
			slog.Error("Failed to email access link", "user_id", ident.ID, "course", courseRef, "error", err)
			resp.Warning = "access link could not be emailed"
		} else {
			resp.EmailSent = true
		}
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, resp)
}

// ListLinks handles GET /courses/{course}/access-links
func (h *Handler) ListLinks(w http.ResponseWriter, r *http.Request) {
	ident := accesspolicy.IdentityFromContext(r.Context())
	infos := h.service.Active(ident, chi.URLParam(r, CourseParam))

	resp := make([]TokenResponse, 0, len(infos))
	for _, info := range infos {
		resp = append(resp, TokenResponse{
			Token:        info.Token,
			CourseRef:    info.CourseRef,
			CreatedAt:    info.CreatedAt,
			ExpiresAt:    info.ExpiresAt,
			AccessCount:  info.AccessCount,
			Remaining:    info.Remaining,
			LastAccessed: info.LastAccessed,
			Status:       string(info.Status),
		})
	}
	render.JSON(w, r, resp)
}

// RevokeCourseLinks handles DELETE /courses/{course}/access-links
func (h *Handler) RevokeCourseLinks(w http.ResponseWriter, r *http.Request) {
	ident := accesspolicy.IdentityFromContext(r.Context())
	n, err := h.service.InvalidateAllForCourse(r.Context(), ident, chi.URLParam(r, CourseParam))
	if err != nil {
		errors.Render(w, r, err)
		return
	}
	render.JSON(w, r, RevokeResponse{Revoked: n})
}

// RevokeLink handles DELETE /access-links/{token}
func (h *Handler) RevokeLink(w http.ResponseWriter, r *http.Request) {
	ident := accesspolicy.IdentityFromContext(r.Context())
	if err := h.service.Invalidate(r.Context(), ident, chi.URLParam(r, "token")); err != nil {
		errors.Render(w, r, err)
		return
	}
	render.JSON(w, r, RevokeResponse{Revoked: 1})
}

// RecordAccess handles POST /courses/{course}/access-log
func (h *Handler) RecordAccess(w http.ResponseWriter, r *http.Request) {
	ident := accesspolicy.IdentityFromContext(r.Context())

	var req RecordAccessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !stderrors.Is(err, io.EOF) {
		errors.Render(w, r, errors.InvalidInput("body", "must be valid JSON"))
		return
	}
	if err := h.service.RecordAccess(r.Context(), ident, chi.URLParam(r, CourseParam), req.DurationSeconds, metadata(r)); err != nil {
		errors.Render(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AccessLog handles GET /courses/{course}/access-log
func (h *Handler) AccessLog(w http.ResponseWriter, r *http.Request) {
	ident := accesspolicy.IdentityFromContext(r.Context())
	entries := h.service.History(ident, chi.URLParam(r, CourseParam))

	resp := make([]AccessLogResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, AccessLogResponse{
			AccessDate:      e.AccessDate,
			ViaToken:        e.TokenUsed != "",
			ClientIP:        e.ClientIP,
			UserAgent:       e.UserAgent,
			DurationSeconds: e.DurationSeconds,
		})
	}
	render.JSON(w, r, resp)
}

// Redeem handles the public access link: GET /access?token=&usuario=&curso=
// or POST /access with the same fields as JSON. The response carries no
// credential: holding a link grants course access only, never the account.
func (h *Handler) Redeem(w http.ResponseWriter, r *http.Request) {
	var req RedeemRequest
	if r.Method == http.MethodPost {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			errors.Render(w, r, errors.InvalidInput("body", "must be valid JSON"))
			return
		}
	} else {
		q := r.URL.Query()
		req = RedeemRequest{Token: q.Get("token"), Usuario: q.Get("usuario"), Curso: q.Get("curso")}
	}
	if req.Token == "" || req.Usuario == "" || req.Curso == "" {
		errors.Render(w, r, errors.New(errors.ErrCodeInvalidInput, "token, usuario and curso are required"))
		return
	}

	userID, err := uuid.Parse(req.Usuario)
	if err != nil {
		errors.Render(w, r, errors.InvalidInput("usuario", "must be a valid id"))
		return
	}
	ident, err := h.repo.GetByID(r.Context(), userID)
	if err != nil {
		if stderrors.Is(err, identity.ErrIdentityNotFound) {
			errors.Render(w, r, courseaccess.ErrTokenNotFound)
			return
		}
		errors.Render(w, r, errors.InternalWrap(err, "failed to load identity"))
		return
	}

	// a refund revokes links, but entitlement is rechecked anyway
	if err := accesspolicy.CheckOwnership(ident, req.Curso); err != nil {
		errors.Render(w, r, err)
		return
	}

	res, err := h.service.Verify(r.Context(), ident, req.Token, req.Curso, metadata(r))
	if err != nil {
		errors.Render(w, r, err)
		return
	}

	render.JSON(w, r, RedeemResponse{
		Access:    true,
		CourseRef: res.CourseRef,
		Remaining: res.Remaining,
		ExpiresAt: res.ExpiresAt,
		User:      RedeemUser{ID: ident.ID.String(), Name: ident.Name},
	})
}

func metadata(r *http.Request) courseaccess.Metadata {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		ip = r.RemoteAddr
	}
	return courseaccess.Metadata{ClientIP: ip, UserAgent: r.UserAgent()}
}
