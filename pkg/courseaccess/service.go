package courseaccess

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tendant/simple-academy/pkg/errors"
	"github.com/tendant/simple-academy/pkg/identity"
	"github.com/tendant/simple-academy/pkg/notification"
	"github.com/tendant/simple-academy/pkg/telemetry"
	"github.com/tendant/simple-academy/pkg/tokencodec"
)

const (
	DefaultTokenExpiry = time.Hour
	DefaultMaxUses     = 3
)

// Metadata describes the client redeeming or requesting a link
type Metadata struct {
	ClientIP  string
	UserAgent string
}

// Service issues, redeems and revokes course access tokens. It does not
// check entitlement; callers gate issuance on course ownership.
type Service struct {
	repo                identity.Repository
	codec               *tokencodec.Codec
	notificationManager *notification.NotificationManager
	frontendURL         string
	tokenExpiry         time.Duration
	maxUses             int
	now                 func() time.Time
	tracer              trace.Tracer
}

type Option func(*Service)

func WithTokenExpiry(expiry time.Duration) Option {
	return func(s *Service) {
		s.tokenExpiry = expiry
	}
}

// WithMaxUses sets how many redemptions a single link allows
func WithMaxUses(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxUses = n
		}
	}
}

func WithNotificationManager(nm *notification.NotificationManager) Option {
	return func(s *Service) {
		s.notificationManager = nm
	}
}

// WithNow overrides the clock. By default the codec clock is used.
func WithNow(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = tracer
	}
}

func NewService(repo identity.Repository, codec *tokencodec.Codec, frontendURL string, opts ...Option) *Service {
	s := &Service{
		repo:        repo,
		codec:       codec,
		frontendURL: strings.TrimRight(frontendURL, "/"),
		tokenExpiry: DefaultTokenExpiry,
		maxUses:     DefaultMaxUses,
		now:         codec.Now,
		tracer:      telemetry.DefaultTracer(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MaxUses returns the configured redemption cap
func (s *Service) MaxUses() int {
	return s.maxUses
}

type IssueResult struct {
	Token     string
	CourseRef string
	ExpiresAt time.Time
	MaxUses   int
	URL       string
}

type VerifyResult struct {
	CourseRef   string
	AccessCount int
	Remaining   int
	Exhausted   bool
	ExpiresAt   time.Time
}

// TokenInfo is the diagnostic view of a stored token
type TokenInfo struct {
	Token        string
	CourseRef    string
	CreatedAt    time.Time
	ExpiresAt    time.Time
	AccessCount  int
	Remaining    int
	LastAccessed *time.Time
	Status       identity.TokenStatus
}

// Issue mints a new access token for courseRef and stores it on ident,
// sweeping expired tokens first. ident is updated in place.
func (s *Service) Issue(ctx context.Context, ident *identity.Identity, courseRef string, meta Metadata) (res *IssueResult, err error) {
	ctx, span := s.tracer.Start(ctx, "courseaccess.Issue", trace.WithAttributes(
		attribute.String("user.id", ident.ID.String()),
		attribute.String("course.ref", courseRef),
	))
	defer func() { telemetry.EndSpan(span, err) }()

	if courseRef == "" {
		return nil, errors.InvalidInput("course", "is required")
	}

	now := s.now()
	if n := ident.SweepExpiredAccessTokens(now); n > 0 {
		slog.Debug("Swept expired access tokens", "user_id", ident.ID, "count", n)
	}

	claims := tokencodec.Claims{
		Email:     ident.Email,
		Purpose:   tokencodec.PurposeCourseAccess,
		CourseRef: courseRef,
	}
	claims.Subject = ident.ID.String()

	token, expiresAt, err := s.codec.Sign(claims, s.tokenExpiry)
	if err != nil {
		return nil, errors.InternalWrap(err, "failed to sign access token")
	}
	if ident.FindAccessToken(token) != nil {
		return nil, errors.New(errors.ErrCodeInternal, "duplicate access token issued")
	}

	ident.AddAccessToken(identity.CourseAccessToken{
		CourseRef: courseRef,
		Token:     token,
		CreatedAt: now,
		ExpiresAt: expiresAt,
		ClientIP:  meta.ClientIP,
		UserAgent: meta.UserAgent,
	})
	ident.PrepareSave(now)
	if err := s.repo.Save(ctx, ident); err != nil {
		slog.Error("Failed to store access token", "user_id", ident.ID, "course", courseRef, "error", err)
		return nil, errors.InternalWrap(err, "failed to store access token")
	}

	slog.Info("Course access token issued", "user_id", ident.ID, "course", courseRef, "expires_at", expiresAt)
	return &IssueResult{
		Token:     token,
		CourseRef: courseRef,
		ExpiresAt: expiresAt,
		MaxUses:   s.maxUses,
		URL:       s.AccessURL(ident, courseRef, token),
	}, nil
}

// Verify redeems token for courseRef. Checks run in order: presence on the
// identity, expiry, usage cap, signature, then subject and course.
func (s *Service) Verify(ctx context.Context, ident *identity.Identity, token, courseRef string, meta Metadata) (res *VerifyResult, err error) {
	ctx, span := s.tracer.Start(ctx, "courseaccess.Verify", trace.WithAttributes(
		attribute.String("user.id", ident.ID.String()),
		attribute.String("course.ref", courseRef),
	))
	defer func() { telemetry.EndSpan(span, err) }()

	now := s.now()
	rec := ident.FindAccessToken(token)
	if rec == nil {
		return nil, ErrTokenNotFound
	}
	if rec.Expired(now) {
		return nil, ErrTokenExpired
	}
	if rec.Used {
		return nil, ErrAlreadyUsed
	}

	claims, err := s.codec.Verify(token, tokencodec.PurposeCourseAccess)
	if err != nil {
		if stderrors.Is(err, tokencodec.ErrExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}
	if claims.Subject != ident.ID.String() || claims.CourseRef != courseRef || rec.CourseRef != courseRef {
		slog.Warn("Access token presented for another user or course",
			"user_id", ident.ID, "course", courseRef, "token_course", claims.CourseRef)
		return nil, ErrTokenMismatch
	}

	rec.AccessCount++
	rec.LastAccessed = &now
	if meta.ClientIP != "" {
		rec.ClientIP = meta.ClientIP
	}
	if meta.UserAgent != "" {
		rec.UserAgent = meta.UserAgent
	}
	if rec.AccessCount >= s.maxUses {
		rec.Used = true
	}
	res = &VerifyResult{
		CourseRef:   courseRef,
		AccessCount: rec.AccessCount,
		Remaining:   max(s.maxUses-rec.AccessCount, 0),
		Exhausted:   rec.Used,
		ExpiresAt:   rec.ExpiresAt,
	}

	ident.AccessLogs.Append(identity.AccessLogEntry{
		CourseRef:  courseRef,
		AccessDate: now,
		TokenUsed:  token,
		ClientIP:   meta.ClientIP,
		UserAgent:  meta.UserAgent,
	})
	ident.PrepareSave(now)
	if err := s.repo.Save(ctx, ident); err != nil {
		slog.Error("Failed to record access token use", "user_id", ident.ID, "course", courseRef, "error", err)
		return nil, errors.InternalWrap(err, "failed to record access")
	}

	slog.Info("Course access token redeemed", "user_id", ident.ID, "course", courseRef, "remaining", res.Remaining)
	return res, nil
}

// Invalidate removes a single token
func (s *Service) Invalidate(ctx context.Context, ident *identity.Identity, token string) error {
	if !ident.RemoveAccessToken(token) {
		return ErrTokenNotFound
	}
	ident.PrepareSave(s.now())
	if err := s.repo.Save(ctx, ident); err != nil {
		return errors.InternalWrap(err, "failed to revoke access token")
	}
	slog.Info("Course access token revoked", "user_id", ident.ID)
	return nil
}

// InvalidateAllForCourse removes every token for courseRef and returns how many were dropped
func (s *Service) InvalidateAllForCourse(ctx context.Context, ident *identity.Identity, courseRef string) (int, error) {
	n := ident.RemoveAccessTokensForCourse(courseRef)
	if n == 0 {
		return 0, nil
	}
	ident.PrepareSave(s.now())
	if err := s.repo.Save(ctx, ident); err != nil {
		return 0, errors.InternalWrap(err, "failed to revoke access tokens")
	}
	slog.Info("Course access tokens revoked", "user_id", ident.ID, "course", courseRef, "count", n)
	return n, nil
}

// Active lists the stored tokens for courseRef, including expired ones that
// have not been swept yet
func (s *Service) Active(ident *identity.Identity, courseRef string) []TokenInfo {
	now := s.now()
	tokens := ident.AccessTokensForCourse(courseRef)
	out := make([]TokenInfo, 0, len(tokens))
	for _, t := range tokens {
		out = append(out, TokenInfo{
			Token:        t.Token,
			CourseRef:    t.CourseRef,
			CreatedAt:    t.CreatedAt,
			ExpiresAt:    t.ExpiresAt,
			AccessCount:  t.AccessCount,
			Remaining:    max(s.maxUses-t.AccessCount, 0),
			LastAccessed: t.LastAccessed,
			Status:       t.Status(now),
		})
	}
	return out
}

// RecordAccess appends a session based access to the course history
func (s *Service) RecordAccess(ctx context.Context, ident *identity.Identity, courseRef string, durationSeconds *int, meta Metadata) error {
	if courseRef == "" {
		return errors.InvalidInput("course", "is required")
	}
	if durationSeconds != nil && *durationSeconds < 0 {
		return errors.InvalidInput("duration_seconds", "must not be negative")
	}

	now := s.now()
	ident.AccessLogs.Append(identity.AccessLogEntry{
		CourseRef:       courseRef,
		AccessDate:      now,
		ClientIP:        meta.ClientIP,
		UserAgent:       meta.UserAgent,
		DurationSeconds: durationSeconds,
	})
	ident.PrepareSave(now)
	if err := s.repo.Save(ctx, ident); err != nil {
		return errors.InternalWrap(err, "failed to record access")
	}
	return nil
}

// History returns the recorded accesses of courseRef, oldest first
func (s *Service) History(ident *identity.Identity, courseRef string) []identity.AccessLogEntry {
	return ident.AccessLogs.ForCourse(courseRef)
}

// AccessURL builds the shareable frontend link for a token
func (s *Service) AccessURL(ident *identity.Identity, courseRef, token string) string {
	q := url.Values{}
	q.Set("curso", courseRef)
	q.Set("token", token)
	q.Set("usuario", ident.ID.String())
	return fmt.Sprintf("%s/curso.html?%s", s.frontendURL, q.Encode())
}

// SendLink emails an issued link to the identity
func (s *Service) SendLink(ident *identity.Identity, res *IssueResult) error {
	if s.notificationManager == nil {
		return fmt.Errorf("notification manager not configured")
	}
	return s.notificationManager.Send(notification.CourseAccessLinkNotice, notification.NotificationData{
		To: ident.Email,
		Data: map[string]string{
			"Name":       ident.Name,
			"CourseRef":  res.CourseRef,
			"AccessLink": res.URL,
			"MaxUses":    strconv.Itoa(res.MaxUses),
			"ExpiresAt":  res.ExpiresAt.UTC().Format(time.RFC1123),
		},
	})
}
