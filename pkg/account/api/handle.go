package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/tendant/simple-academy/pkg/accesspolicy"
	"github.com/tendant/simple-academy/pkg/account"
	"github.com/tendant/simple-academy/pkg/errors"
)

// CourseParam is the chi URL parameter naming the course
const CourseParam = "course"

type Handler struct {
	service *account.Service
}

func NewHandler(service *account.Service) *Handler {
	return &Handler{service: service}
}

// Routes registers /auth and /me. strict guards the credential endpoints.
func (h *Handler) Routes(r chi.Router, authenticated func(http.Handler) http.Handler, strict func(http.Handler) http.Handler) {
	if strict == nil {
		strict = func(next http.Handler) http.Handler { return next }
	}
	r.With(strict).Post("/auth/register", h.Register)
	r.With(strict).Post("/auth/login", h.Login)
	r.Group(func(r chi.Router) {
		r.Use(authenticated)
		r.Get("/me", h.Me)
		r.Get("/me/courses", h.MyCourses)
	})
}

// Register handles POST /auth/register
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.Render(w, r, errors.InvalidInput("body", "must be valid JSON"))
		return
	}

	res, err := h.service.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		errors.Render(w, r, err)
		return
	}

	msg := "Account created, check your inbox to verify your email"
	if !res.EmailSent {
		msg = "Account created"
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, RegisterResponse{
		Message:   msg,
		User:      toResponse(res.Profile),
		EmailSent: res.EmailSent,
		Warning:   res.Warning,
	})
}

// Login handles POST /auth/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.Render(w, r, errors.InvalidInput("body", "must be valid JSON"))
		return
	}

	res, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		errors.Render(w, r, err)
		return
	}
	render.JSON(w, r, LoginResponse{
		Token:     res.Token,
		ExpiresAt: res.ExpiresAt,
		User:      toResponse(res.Profile),
	})
}

// Me handles GET /me
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	ident := accesspolicy.IdentityFromContext(r.Context())
	render.JSON(w, r, toResponse(h.service.Profile(ident)))
}

// MyCourses handles GET /me/courses
func (h *Handler) MyCourses(w http.ResponseWriter, r *http.Request) {
	p := h.service.Profile(accesspolicy.IdentityFromContext(r.Context()))
	render.JSON(w, r, CoursesResponse{
		Total:     len(p.PurchasedCourses),
		Purchased: nonNil(p.PurchasedCourses),
		Completed: nonNil(p.CompletedCourses),
	})
}

// Purchase handles POST /courses/{course}/purchase
func (h *Handler) Purchase(w http.ResponseWriter, r *http.Request) {
	ident := accesspolicy.IdentityFromContext(r.Context())
	course := chi.URLParam(r, CourseParam)
	if err := h.service.Purchase(r.Context(), ident, course); err != nil {
		errors.Render(w, r, err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, CourseActionResponse{Message: "Course purchased", Course: course})
}

// Refund handles DELETE /courses/{course}/purchase
func (h *Handler) Refund(w http.ResponseWriter, r *http.Request) {
	ident := accesspolicy.IdentityFromContext(r.Context())
	course := chi.URLParam(r, CourseParam)
	if err := h.service.Refund(r.Context(), ident, course); err != nil {
		errors.Render(w, r, err)
		return
	}
	render.JSON(w, r, CourseActionResponse{Message: "Purchase refunded", Course: course})
}

// Complete handles POST /courses/{course}/complete
func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	ident := accesspolicy.IdentityFromContext(r.Context())
	course := chi.URLParam(r, CourseParam)
	changed, err := h.service.CompleteCourse(r.Context(), ident, course)
	if err != nil {
		errors.Render(w, r, err)
		return
	}
	msg := "Course marked as completed"
	if !changed {
		msg = "Course was already completed"
	}
	render.JSON(w, r, CourseActionResponse{Message: msg, Course: course})
}

// CheckAccess handles GET /courses/{course}/access. Ownership is enforced by
// the gate middleware, so reaching the handler means access is granted.
func (h *Handler) CheckAccess(w http.ResponseWriter, r *http.Request) {
	ident := accesspolicy.IdentityFromContext(r.Context())
	render.JSON(w, r, AccessCheckResponse{
		Access: true,
		Course: chi.URLParam(r, CourseParam),
		User:   toResponse(h.service.Profile(ident)),
	})
}

func toResponse(p account.Profile) ProfileResponse {
	return ProfileResponse{
		ID:               p.ID.String(),
		Email:            p.Email,
		Name:             p.Name,
		IsVerified:       p.IsVerified,
		VerifiedAt:       p.VerifiedAt,
		PurchasedCourses: nonNil(p.PurchasedCourses),
		CompletedCourses: nonNil(p.CompletedCourses),
		CreatedAt:        p.CreatedAt,
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
