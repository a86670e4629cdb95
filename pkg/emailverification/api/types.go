package api

// VerifyEmailRequest represents the request to verify an email
type VerifyEmailRequest struct {
	Token string `json:"token"`
}

// VerifyEmailResponse represents the response after email verification
type VerifyEmailResponse struct {
	Message         string  `json:"message"`
	UserID          string  `json:"user_id"`
	AlreadyVerified bool    `json:"already_verified"`
	VerifiedAt      *string `json:"verified_at,omitempty"`
}

// ResendPublicRequest carries the address for the unauthenticated resend
type ResendPublicRequest struct {
	Email string `json:"email"`
}

// ResendVerificationResponse represents the response after resending verification
type ResendVerificationResponse struct {
	Message   string `json:"message"`
	ExpiresAt string `json:"expires_at,omitempty"`
	EmailSent bool   `json:"email_sent"`
	Warning   string `json:"warning,omitempty"`
}

// VerificationStatusResponse represents the verification status
type VerificationStatusResponse struct {
	EmailVerified    bool    `json:"email_verified"`
	VerifiedAt       *string `json:"verified_at,omitempty"`
	PendingExpiresAt *string `json:"pending_expires_at,omitempty"`
	LastSentAt       *string `json:"last_sent_at,omitempty"`
}
