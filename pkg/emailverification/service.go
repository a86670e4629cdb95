package emailverification

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tendant/simple-academy/pkg/errors"
	"github.com/tendant/simple-academy/pkg/identity"
	"github.com/tendant/simple-academy/pkg/notification"
	"github.com/tendant/simple-academy/pkg/telemetry"
	"github.com/tendant/simple-academy/pkg/tokencodec"
)

const (
	DefaultTokenExpiry    = 24 * time.Hour
	DefaultResendCooldown = 5 * time.Minute
)

// EmailVerificationService handles email verification operations.
// Pending token state lives on the identity record.
type EmailVerificationService struct {
	repo                identity.Repository
	codec               *tokencodec.Codec
	notificationManager *notification.NotificationManager
	baseURL             string
	tokenExpiry         time.Duration
	resendCooldown      time.Duration
	now                 func() time.Time
	tracer              trace.Tracer
}

// EmailVerificationServiceOption defines configuration options
type EmailVerificationServiceOption func(*EmailVerificationService)

// WithTokenExpiry sets the token expiration duration
func WithTokenExpiry(expiry time.Duration) EmailVerificationServiceOption {
	return func(s *EmailVerificationService) {
		s.tokenExpiry = expiry
	}
}

// WithResendCooldown sets the minimum time between two issued tokens
func WithResendCooldown(cooldown time.Duration) EmailVerificationServiceOption {
	return func(s *EmailVerificationService) {
		s.resendCooldown = cooldown
	}
}

// WithNotificationManager sets the collaborator used to deliver verification emails
func WithNotificationManager(nm *notification.NotificationManager) EmailVerificationServiceOption {
	return func(s *EmailVerificationService) {
		s.notificationManager = nm
	}
}

// WithNow overrides the clock. By default the codec clock is used.
func WithNow(now func() time.Time) EmailVerificationServiceOption {
	return func(s *EmailVerificationService) {
		s.now = now
	}
}

func WithTracer(tracer trace.Tracer) EmailVerificationServiceOption {
	return func(s *EmailVerificationService) {
		s.tracer = tracer
	}
}

// NewEmailVerificationService creates a new email verification service.
// baseURL is the public API root the verification link points at.
func NewEmailVerificationService(
	repo identity.Repository,
	codec *tokencodec.Codec,
	baseURL string,
	opts ...EmailVerificationServiceOption,
) *EmailVerificationService {
	service := &EmailVerificationService{
		repo:           repo,
		codec:          codec,
		baseURL:        baseURL,
		tokenExpiry:    DefaultTokenExpiry,
		resendCooldown: DefaultResendCooldown,
		now:            codec.Now,
		tracer:         telemetry.DefaultTracer(),
	}

	for _, opt := range opts {
		opt(service)
	}

	return service
}

// IssueResult describes a freshly issued verification token
type IssueResult struct {
	Token     string
	ExpiresAt time.Time
	EmailSent bool
	Warning   string
}

// ConsumeResult describes the outcome of a successful verification
type ConsumeResult struct {
	UserID          uuid.UUID
	Email           string
	AlreadyVerified bool
	VerifiedAt      *time.Time
}

// Status is the verification state of one identity
type Status struct {
	Verified           bool
	VerifiedAt         *time.Time
	PendingExpiresAt   *time.Time
	VerificationSentAt *time.Time
}

// Issue signs a new verification token, stores it on ident, persists the
// record and then attempts delivery. ident is updated in place. Delivery
// failure is reported through the result, never as an error.
func (s *EmailVerificationService) Issue(ctx context.Context, ident *identity.Identity) (res *IssueResult, err error) {
	ctx, span := s.tracer.Start(ctx, "emailverification.Issue",
		trace.WithAttributes(attribute.String("user.id", ident.ID.String())))
	defer func() { telemetry.EndSpan(span, err) }()

	if ident.IsVerified {
		slog.Info("Email already verified", "user_id", ident.ID)
		return nil, ErrEmailAlreadyVerified
	}

	now := s.now()
	if ident.VerificationSentAt != nil {
		if wait := s.resendCooldown - now.Sub(*ident.VerificationSentAt); wait > 0 {
			slog.Warn("Verification resend within cooldown", "user_id", ident.ID, "retry_after", wait)
			return nil, ErrResendTooSoon.WithDetail("retry_after_seconds", int(wait.Round(time.Second).Seconds()))
		}
	}

	claims := tokencodec.Claims{
		Email:   ident.Email,
		Name:    ident.Name,
		Purpose: tokencodec.PurposeEmailVerification,
	}
	claims.Subject = ident.ID.String()

	token, expiresAt, err := s.codec.Sign(claims, s.tokenExpiry)
	if err != nil {
		return nil, errors.InternalWrap(err, "failed to sign verification token")
	}

	ident.SetPendingVerification(token, expiresAt, now)
	ident.PrepareSave(now)
	if err := s.repo.Save(ctx, ident); err != nil {
		slog.Error("Failed to store verification token", "user_id", ident.ID, "error", err)
		return nil, errors.InternalWrap(err, "failed to store verification token")
	}

	res = &IssueResult{Token: token, ExpiresAt: expiresAt}
	if err := s.sendVerificationEmail(ident, token); err != nil {
		slog.Error("Failed to send verification email", "user_id", ident.ID, "error", err)
		res.Warning = "verification email could not be sent, please request a new one"
	} else {
		res.EmailSent = true
	}

	slog.Info("Verification token issued", "user_id", ident.ID, "expires_at", expiresAt, "email_sent", res.EmailSent)
	return res, nil
}

// Resend issues a new token for the identity with userID
func (s *EmailVerificationService) Resend(ctx context.Context, userID uuid.UUID) (*IssueResult, error) {
	ident, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, lookupError(err)
	}
	return s.Issue(ctx, ident)
}

// ResendByEmail is the public resend. Unknown, verified and cooling-down
// addresses are accepted silently so callers cannot probe for accounts.
func (s *EmailVerificationService) ResendByEmail(ctx context.Context, email string) error {
	ident, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if stderrors.Is(err, identity.ErrIdentityNotFound) {
			slog.Debug("Public resend for unknown email")
			return nil
		}
		return errors.InternalWrap(err, "failed to load identity")
	}

	_, err = s.Issue(ctx, ident)
	switch {
	case err == nil,
		stderrors.Is(err, ErrEmailAlreadyVerified),
		stderrors.Is(err, ErrResendTooSoon):
		return nil
	default:
		return err
	}
}

// Consume verifies the identity named by token. The identity is located by
// the email in the payload, so authentic but expired tokens are still
// decoded to tell superseded links from expired ones. Consuming a token for
// an identity that is already verified succeeds with AlreadyVerified set.
func (s *EmailVerificationService) Consume(ctx context.Context, token string) (res *ConsumeResult, err error) {
	ctx, span := s.tracer.Start(ctx, "emailverification.Consume")
	defer func() { telemetry.EndSpan(span, err) }()

	claims, err := s.codec.Verify(token, tokencodec.PurposeEmailVerification)
	if err != nil {
		if !stderrors.Is(err, tokencodec.ErrExpired) {
			return nil, ErrInvalidToken
		}
		claims, err = s.codec.DecodeUnsafe(token)
		if err != nil || claims.Purpose != tokencodec.PurposeEmailVerification {
			return nil, ErrInvalidToken
		}
	}

	ident, err := s.repo.GetByEmail(ctx, claims.Email)
	if err != nil {
		if stderrors.Is(err, identity.ErrIdentityNotFound) {
			return nil, ErrUnknownUser
		}
		return nil, errors.InternalWrap(err, "failed to load identity")
	}
	span.SetAttributes(attribute.String("user.id", ident.ID.String()))

	if ident.IsVerified {
		return &ConsumeResult{UserID: ident.ID, Email: ident.Email, AlreadyVerified: true, VerifiedAt: ident.VerifiedAt}, nil
	}

	now := s.now()
	if ident.VerificationToken != token {
		if ident.PendingVerificationExpired(now) {
			return nil, ErrTokenExpired
		}
		slog.Info("Superseded verification token presented", "user_id", ident.ID)
		return nil, ErrTokenSuperseded
	}
	if ident.PendingVerificationExpired(now) {
		return nil, ErrTokenExpired
	}

	ident.MarkVerified(now)
	ident.PrepareSave(now)
	if err := s.repo.Save(ctx, ident); err != nil {
		slog.Error("Failed to mark identity verified", "user_id", ident.ID, "error", err)
		return nil, errors.InternalWrap(err, "failed to verify email")
	}

	slog.Info("Email verified successfully", "user_id", ident.ID)
	return &ConsumeResult{UserID: ident.ID, Email: ident.Email, VerifiedAt: ident.VerifiedAt}, nil
}

// Status returns the verification state of the identity with userID
func (s *EmailVerificationService) Status(ctx context.Context, userID uuid.UUID) (*Status, error) {
	ident, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, lookupError(err)
	}
	st := &Status{
		Verified:           ident.IsVerified,
		VerifiedAt:         ident.VerifiedAt,
		VerificationSentAt: ident.VerificationSentAt,
	}
	if !ident.IsVerified {
		st.PendingExpiresAt = ident.VerificationTokenExpires
	}
	return st, nil
}

// VerificationLink returns the URL mailed to the user
func (s *EmailVerificationService) VerificationLink(token string) string {
	return fmt.Sprintf("%s/verify-email?token=%s", s.baseURL, url.QueryEscape(token))
}

func (s *EmailVerificationService) sendVerificationEmail(ident *identity.Identity, token string) error {
	if s.notificationManager == nil {
		return fmt.Errorf("notification manager not configured")
	}

	notificationData := notification.NotificationData{
		To: ident.Email,
		Data: map[string]string{
			"Name":             ident.Name,
			"VerificationLink": s.VerificationLink(token),
			"ExpiryHours":      fmt.Sprintf("%.0f", s.tokenExpiry.Hours()),
		},
	}
	return s.notificationManager.Send(notification.EmailVerificationNotice, notificationData)
}

func lookupError(err error) error {
	if stderrors.Is(err, identity.ErrIdentityNotFound) {
		return err
	}
	return errors.InternalWrap(err, "failed to load identity")
}
