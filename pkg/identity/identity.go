package identity

import (
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TokenStatus is the diagnostic state of a course access token
type TokenStatus string

const (
	TokenStatusActive       TokenStatus = "active"
	TokenStatusCapExhausted TokenStatus = "cap_exhausted"
	TokenStatusExpired      TokenStatus = "expired"
)

// CourseAccessToken is a capped, time-boxed link credential owned by one identity
type CourseAccessToken struct {
	CourseRef    string     `json:"courseRef"`
	Token        string     `json:"token"`
	CreatedAt    time.Time  `json:"createdAt"`
	ExpiresAt    time.Time  `json:"expiresAt"`
	Used         bool       `json:"used"`
	AccessCount  int        `json:"accessCount"`
	LastAccessed *time.Time `json:"lastAccessed,omitempty"`
	ClientIP     string     `json:"clientIp,omitempty"`
	UserAgent    string     `json:"userAgent,omitempty"`
}

// Expired reports whether the token is past its expiry at now
func (t *CourseAccessToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// Usable reports whether the token may still be redeemed
func (t *CourseAccessToken) Usable(now time.Time) bool {
	return !t.Expired(now) && !t.Used
}

// Status distinguishes the two terminal states from an active token.
// Expiry wins when both apply.
func (t *CourseAccessToken) Status(now time.Time) TokenStatus {
	switch {
	case t.Expired(now):
		return TokenStatusExpired
	case t.Used:
		return TokenStatusCapExhausted
	default:
		return TokenStatusActive
	}
}

// Identity is the registered account record and the unit of consistency for all token state
type Identity struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"passwordHash"`
	Name         string    `json:"name"`

	IsVerified               bool       `json:"isVerified"`
	VerifiedAt               *time.Time `json:"verifiedAt,omitempty"`
	VerificationToken        string     `json:"verificationToken,omitempty"`
	VerificationTokenExpires *time.Time `json:"verificationTokenExpires,omitempty"`
	VerificationSentAt       *time.Time `json:"verificationSentAt,omitempty"`

	PurchasedCourses []string            `json:"purchasedCourses"`
	CompletedCourses []string            `json:"completedCourses"`
	AccessTokens     []CourseAccessToken `json:"accessTokens"`
	AccessLogs       AccessLog           `json:"accessLogs"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NormalizeEmail trims and lowercases an email so it can serve as the natural key
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// New creates an unverified identity with no purchases
func New(name, email, passwordHash string, now time.Time) *Identity {
	return &Identity{
		ID:               uuid.New(),
		Email:            NormalizeEmail(email),
		PasswordHash:     passwordHash,
		Name:             strings.TrimSpace(name),
		PurchasedCourses: []string{},
		CompletedCourses: []string{},
		AccessTokens:     []CourseAccessToken{},
		AccessLogs:       AccessLog{},
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// HasPurchased reports whether the identity is entitled to courseRef
func (i *Identity) HasPurchased(courseRef string) bool {
	return slices.Contains(i.PurchasedCourses, courseRef)
}

// HasCompleted reports whether courseRef was marked completed
func (i *Identity) HasCompleted(courseRef string) bool {
	return slices.Contains(i.CompletedCourses, courseRef)
}

// AddPurchase records an entitlement, returning false if it already existed
func (i *Identity) AddPurchase(courseRef string) bool {
	if i.HasPurchased(courseRef) {
		return false
	}
	i.PurchasedCourses = append(i.PurchasedCourses, courseRef)
	return true
}

// RemovePurchase drops an entitlement, returning false if there was none
func (i *Identity) RemovePurchase(courseRef string) bool {
	n := len(i.PurchasedCourses)
	i.PurchasedCourses = slices.DeleteFunc(i.PurchasedCourses, func(c string) bool { return c == courseRef })
	return len(i.PurchasedCourses) != n
}

// MarkCompleted records course completion, returning false if already recorded
func (i *Identity) MarkCompleted(courseRef string) bool {
	if i.HasCompleted(courseRef) {
		return false
	}
	i.CompletedCourses = append(i.CompletedCourses, courseRef)
	return true
}

// SetPendingVerification stores a verification token together with its expiry
func (i *Identity) SetPendingVerification(token string, expiresAt, sentAt time.Time) {
	i.VerificationToken = token
	i.VerificationTokenExpires = &expiresAt
	i.VerificationSentAt = &sentAt
}

// ClearPendingVerification removes token and expiry together
func (i *Identity) ClearPendingVerification() {
	i.VerificationToken = ""
	i.VerificationTokenExpires = nil
}

// MarkVerified flips the identity to verified and clears any pending token
func (i *Identity) MarkVerified(now time.Time) {
	i.IsVerified = true
	i.VerifiedAt = &now
	i.ClearPendingVerification()
}

// PendingVerificationExpired reports whether the stored token is absent or past expiry
func (i *Identity) PendingVerificationExpired(now time.Time) bool {
	if i.VerificationToken == "" || i.VerificationTokenExpires == nil {
		return true
	}
	return !now.Before(*i.VerificationTokenExpires)
}

// FindAccessToken returns the stored record for an exact token string
func (i *Identity) FindAccessToken(token string) *CourseAccessToken {
	for idx := range i.AccessTokens {
		if i.AccessTokens[idx].Token == token {
			return &i.AccessTokens[idx]
		}
	}
	return nil
}

// AccessTokensForCourse returns copies of the stored tokens for courseRef
func (i *Identity) AccessTokensForCourse(courseRef string) []CourseAccessToken {
	var out []CourseAccessToken
	for _, t := range i.AccessTokens {
		if t.CourseRef == courseRef {
			out = append(out, t)
		}
	}
	return out
}

// AddAccessToken appends a freshly issued token
func (i *Identity) AddAccessToken(t CourseAccessToken) {
	i.AccessTokens = append(i.AccessTokens, t)
}

// RemoveAccessToken drops a single token by exact string match
func (i *Identity) RemoveAccessToken(token string) bool {
	n := len(i.AccessTokens)
	i.AccessTokens = slices.DeleteFunc(i.AccessTokens, func(t CourseAccessToken) bool { return t.Token == token })
	return len(i.AccessTokens) != n
}

// RemoveAccessTokensForCourse drops every token for courseRef and returns how many were removed
func (i *Identity) RemoveAccessTokensForCourse(courseRef string) int {
	n := len(i.AccessTokens)
	i.AccessTokens = slices.DeleteFunc(i.AccessTokens, func(t CourseAccessToken) bool { return t.CourseRef == courseRef })
	return n - len(i.AccessTokens)
}

// SweepExpiredAccessTokens removes tokens with expiresAt <= now
func (i *Identity) SweepExpiredAccessTokens(now time.Time) int {
	n := len(i.AccessTokens)
	i.AccessTokens = slices.DeleteFunc(i.AccessTokens, func(t CourseAccessToken) bool { return t.Expired(now) })
	return n - len(i.AccessTokens)
}

// PrepareSave stamps UpdatedAt and sweeps expired access tokens.
// Callers run it right before handing the record to Repository.Save.
func (i *Identity) PrepareSave(now time.Time) {
	i.SweepExpiredAccessTokens(now)
	i.UpdatedAt = now
}

// Clone returns a deep copy so callers never share slices with a repository
func (i *Identity) Clone() *Identity {
	if i == nil {
		return nil
	}
	c := *i
	c.VerifiedAt = cloneTime(i.VerifiedAt)
	c.VerificationTokenExpires = cloneTime(i.VerificationTokenExpires)
	c.VerificationSentAt = cloneTime(i.VerificationSentAt)
	c.PurchasedCourses = slices.Clone(i.PurchasedCourses)
	c.CompletedCourses = slices.Clone(i.CompletedCourses)
	c.AccessTokens = make([]CourseAccessToken, len(i.AccessTokens))
	for idx, t := range i.AccessTokens {
		t.LastAccessed = cloneTime(t.LastAccessed)
		c.AccessTokens[idx] = t
	}
	c.AccessLogs = i.AccessLogs.Clone()
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
