package account

import (
	"context"
	stderrors "errors"
	"log/slog"
	"net/mail"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"

	"github.com/tendant/simple-academy/pkg/accesspolicy"
	"github.com/tendant/simple-academy/pkg/courseaccess"
	"github.com/tendant/simple-academy/pkg/emailverification"
	"github.com/tendant/simple-academy/pkg/errors"
	"github.com/tendant/simple-academy/pkg/identity"
	"github.com/tendant/simple-academy/pkg/session"
)

const DefaultMinPasswordLength = 8

var (
	ErrInvalidCredentials = errors.New(errors.ErrCodeInvalidCredentials, "invalid email or password")
	ErrAlreadyPurchased   = errors.New(errors.ErrCodeAlreadyExists, "course already purchased")
	ErrNotPurchased       = errors.New(errors.ErrCodeNotFound, "course is not among the purchased courses")
)

// Service covers registration, login and the purchase records the token
// managers depend on. Payment itself is handled elsewhere.
type Service struct {
	repo              identity.Repository
	hasher            PasswordHasher
	sessions          *session.Authenticator
	verification      *emailverification.EmailVerificationService
	courseAccess      *courseaccess.Service
	minPasswordLength int
	now               func() time.Time
}

type Option func(*Service)

func WithPasswordHasher(h PasswordHasher) Option {
	return func(s *Service) {
		s.hasher = h
	}
}

func WithMinPasswordLength(n int) Option {
	return func(s *Service) {
		s.minPasswordLength = n
	}
}

func WithNow(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func NewService(
	repo identity.Repository,
	sessions *session.Authenticator,
	verification *emailverification.EmailVerificationService,
	courseAccess *courseaccess.Service,
	opts ...Option,
) *Service {
	s := &Service{
		repo:              repo,
		hasher:            NewBcryptHasher(0),
		sessions:          sessions,
		verification:      verification,
		courseAccess:      courseAccess,
		minPasswordLength: DefaultMinPasswordLength,
		now:               sessions.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Profile is the outward view of an identity
type Profile struct {
	ID               uuid.UUID
	Email            string
	Name             string
	IsVerified       bool
	VerifiedAt       *time.Time
	PurchasedCourses []string
	CompletedCourses []string
	CreatedAt        time.Time
}

type RegisterResult struct {
	Profile   Profile
	EmailSent bool
	Warning   string
}

type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	Profile   Profile
}

// Register creates an unverified identity and issues its first verification
// token. A failed verification email does not fail registration.
func (s *Service) Register(ctx context.Context, name, email, password string) (*RegisterResult, error) {
	name = strings.TrimSpace(name)
	email = identity.NormalizeEmail(email)
	if name == "" {
		return nil, errors.InvalidInput("name", "is required")
	}
	if _, err := mail.ParseAddress(email); err != nil || email == "" {
		return nil, errors.InvalidInput("email", "is not a valid address")
	}
	if len(password) < s.minPasswordLength {
		return nil, errors.Newf(errors.ErrCodeInvalidInput, "password must be at least %d characters long", s.minPasswordLength)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, errors.InternalWrap(err, "failed to hash password")
	}

	ident := identity.New(name, email, hash, s.now())
	if err := s.repo.Create(ctx, ident); err != nil {
		if stderrors.Is(err, identity.ErrEmailTaken) {
			return nil, err
		}
		return nil, errors.InternalWrap(err, "failed to create identity")
	}
	slog.Info("Identity registered", "user_id", ident.ID)

	res := &RegisterResult{}
	issued, err := s.verification.Issue(ctx, ident)
	switch {
	case err != nil:
		slog.Error("Failed to issue verification token after registration", "user_id", ident.ID, "error", err)
		res.Warning = "account created but the verification email could not be prepared, please request a new one"
	case !issued.EmailSent:
		res.Warning = issued.Warning
	default:
		res.EmailSent = true
	}
	res.Profile = toProfile(ident)
	return res, nil
}

// Login checks the password and issues a session token. Unknown emails and
// wrong passwords fail the same way.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	ident, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if stderrors.Is(err, identity.ErrIdentityNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, errors.InternalWrap(err, "failed to load identity")
	}

	ok, err := s.hasher.Verify(password, ident.PasswordHash)
	if err != nil || !ok {
		slog.Info("Login failed", "user_id", ident.ID)
		return nil, ErrInvalidCredentials
	}

	token, expiresAt, err := s.sessions.Issue(ident)
	if err != nil {
		return nil, err
	}
	slog.Info("Login succeeded", "user_id", ident.ID)
	return &LoginResult{Token: token, ExpiresAt: expiresAt, Profile: toProfile(ident)}, nil
}

// Profile returns the outward view of ident
func (s *Service) Profile(ident *identity.Identity) Profile {
	return toProfile(ident)
}

// Purchase records an entitlement to courseRef
func (s *Service) Purchase(ctx context.Context, ident *identity.Identity, courseRef string) error {
	if courseRef == "" {
		return errors.InvalidInput("course", "is required")
	}
	if !ident.AddPurchase(courseRef) {
		return ErrAlreadyPurchased
	}
	return s.save(ctx, ident, "failed to record purchase")
}

// Refund drops the entitlement and revokes every access link for the course
func (s *Service) Refund(ctx context.Context, ident *identity.Identity, courseRef string) error {
	if !ident.RemovePurchase(courseRef) {
		return ErrNotPurchased
	}
	// a non-zero revocation persists the removed purchase as well
	n, err := s.courseAccess.InvalidateAllForCourse(ctx, ident, courseRef)
	if err != nil {
		return err
	}
	if n == 0 {
		if err := s.save(ctx, ident, "failed to record refund"); err != nil {
			return err
		}
	}
	slog.Info("Course refunded", "user_id", ident.ID, "course", courseRef, "revoked_links", n)
	return nil
}

// CompleteCourse marks progress; the caller gates it on verified email and ownership
func (s *Service) CompleteCourse(ctx context.Context, ident *identity.Identity, courseRef string) (bool, error) {
	if err := accesspolicy.CheckVerified(ident); err != nil {
		return false, err
	}
	if err := accesspolicy.CheckOwnership(ident, courseRef); err != nil {
		return false, err
	}
	if !ident.MarkCompleted(courseRef) {
		return false, nil
	}
	return true, s.save(ctx, ident, "failed to record completion")
}

func (s *Service) save(ctx context.Context, ident *identity.Identity, msg string) error {
	ident.PrepareSave(s.now())
	if err := s.repo.Save(ctx, ident); err != nil {
		return errors.InternalWrap(err, msg)
	}
	return nil
}

func toProfile(ident *identity.Identity) Profile {
	var p Profile
	if err := copier.Copy(&p, ident); err != nil {
		slog.Debug("Failed to copy identity into profile", "user_id", ident.ID, "error", err)
	}
	p.PurchasedCourses = slices.Clone(ident.PurchasedCourses)
	p.CompletedCourses = slices.Clone(ident.CompletedCourses)
	return p
}
