package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/tendant/simple-academy/pkg/emailverification"
	"github.com/tendant/simple-academy/pkg/errors"
	"github.com/tendant/simple-academy/pkg/session"
)

// genericResendMessage is returned by the public resend whatever the outcome
const genericResendMessage = "If the address belongs to an unverified account, a verification email has been sent"

// Handler serves the email verification endpoints
type Handler struct {
	service     *emailverification.EmailVerificationService
	frontendURL string
}

// NewHandler creates a new email verification API handler. Browser flows are
// redirected to frontendURL unless format=json is requested.
func NewHandler(service *emailverification.EmailVerificationService, frontendURL string) *Handler {
	return &Handler{
		service:     service,
		frontendURL: strings.TrimRight(frontendURL, "/"),
	}
}

// Routes mounts the public and session protected endpoints. requireSession
// must store a session.Principal in the request context.
func (h *Handler) Routes(r chi.Router, requireSession func(http.Handler) http.Handler, strict func(http.Handler) http.Handler) {
	if strict == nil {
		strict = func(next http.Handler) http.Handler { return next }
	}
	r.Get("/verify-email", h.VerifyEmailLink)
	r.Post("/verify-email", h.VerifyEmail)
	r.With(strict).Post("/resend-public", h.ResendPublic)
	r.Group(func(r chi.Router) {
		r.Use(requireSession)
		r.Post("/resend", h.ResendVerification)
		r.Get("/status", h.GetVerificationStatus)
	})
}

// VerifyEmailLink handles GET /verify-email?token=...[&format=json]
func (h *Handler) VerifyEmailLink(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	asJSON := r.URL.Query().Get("format") == "json"

	if token == "" {
		if asJSON {
			errors.Render(w, r, errors.InvalidInput("token", "is required"))
			return
		}
		h.redirect(w, r, "error", string(errors.ErrCodeInvalidInput))
		return
	}

	res, err := h.service.Consume(r.Context(), token)
	if asJSON {
		h.respondConsume(w, r, res, err)
		return
	}

	switch {
	case err != nil:
		h.redirect(w, r, "error", string(errors.GetCode(err)))
	case res.AlreadyVerified:
		h.redirect(w, r, "already_verified", "")
	default:
		h.redirect(w, r, "verified", "")
	}
}

// VerifyEmail handles POST /verify-email
func (h *Handler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req VerifyEmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Debug("Failed to decode request body", "error", err)
		errors.Render(w, r, errors.InvalidInput("body", "must be valid JSON"))
		return
	}
	if req.Token == "" {
		errors.Render(w, r, errors.InvalidInput("token", "is required"))
		return
	}

	res, err := h.service.Consume(r.Context(), req.Token)
	h.respondConsume(w, r, res, err)
}

// ResendVerification handles POST /resend for the authenticated caller
func (h *Handler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	principal := session.FromContext(r.Context())
	if principal == nil {
		errors.Render(w, r, session.ErrMissingToken)
		return
	}

	res, err := h.service.Resend(r.Context(), principal.UserID)
	if err != nil {
		errors.Render(w, r, err)
		return
	}

	resp := ResendVerificationResponse{
		Message:   "Verification email sent successfully",
		ExpiresAt: res.ExpiresAt.Format(time.RFC3339),
		EmailSent: res.EmailSent,
		Warning:   res.Warning,
	}
	if !res.EmailSent {
		resp.Message = "Verification token issued"
	}
	render.Status(r, http.StatusOK)
	render.JSON(w, r, resp)
}

// ResendPublic handles POST /resend-public
func (h *Handler) ResendPublic(w http.ResponseWriter, r *http.Request) {
	var req ResendPublicRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Email) == "" {
		errors.Render(w, r, errors.InvalidInput("email", "is required"))
		return
	}

	if err := h.service.ResendByEmail(r.Context(), req.Email); err != nil {
		errors.Render(w, r, err)
		return
	}
	render.Status(r, http.StatusOK)
	render.JSON(w, r, ResendVerificationResponse{Message: genericResendMessage})
}

// GetVerificationStatus handles GET /status
func (h *Handler) GetVerificationStatus(w http.ResponseWriter, r *http.Request) {
	principal := session.FromContext(r.Context())
	if principal == nil {
		errors.Render(w, r, session.ErrMissingToken)
		return
	}

	st, err := h.service.Status(r.Context(), principal.UserID)
	if err != nil {
		errors.Render(w, r, err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, VerificationStatusResponse{
		EmailVerified:    st.Verified,
		VerifiedAt:       formatTime(st.VerifiedAt),
		PendingExpiresAt: formatTime(st.PendingExpiresAt),
		LastSentAt:       formatTime(st.VerificationSentAt),
	})
}

func (h *Handler) respondConsume(w http.ResponseWriter, r *http.Request, res *emailverification.ConsumeResult, err error) {
	if err != nil {
		errors.Render(w, r, err)
		return
	}

	resp := VerifyEmailResponse{
		Message:         "Email verified successfully",
		UserID:          res.UserID.String(),
		AlreadyVerified: res.AlreadyVerified,
		VerifiedAt:      formatTime(res.VerifiedAt),
	}
	if res.AlreadyVerified {
		resp.Message = "Email was already verified"
	}
	render.Status(r, http.StatusOK)
	render.JSON(w, r, resp)
}

func (h *Handler) redirect(w http.ResponseWriter, r *http.Request, status, code string) {
	q := url.Values{}
	q.Set("status", status)
	if code != "" {
		q.Set("code", code)
	}
	http.Redirect(w, r, h.frontendURL+"/verify-email.html?"+q.Encode(), http.StatusFound)
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}
