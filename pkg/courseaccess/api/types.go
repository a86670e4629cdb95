package api

import "time"

type IssueLinkRequest struct {
	SendEmail bool `json:"send_email"`
}

type IssueLinkResponse struct {
	Token     string    `json:"token"`
	URL       string    `json:"url"`
	CourseRef string    `json:"course"`
	ExpiresAt time.Time `json:"expires_at"`
	MaxUses   int       `json:"max_uses"`
	EmailSent bool      `json:"email_sent"`
	Warning   string    `json:"warning,omitempty"`
	Message   string    `json:"message"`
}

type TokenResponse struct {
	Token        string     `json:"token"`
	CourseRef    string     `json:"course"`
	CreatedAt    time.Time  `json:"created_at"`
	ExpiresAt    time.Time  `json:"expires_at"`
	AccessCount  int        `json:"access_count"`
	Remaining    int        `json:"remaining"`
	LastAccessed *time.Time `json:"last_accessed,omitempty"`
	Status       string     `json:"status"`
}

type RevokeResponse struct {
	Revoked int `json:"revoked"`
}

// RedeemRequest mirrors the query parameters of the access link
type RedeemRequest struct {
	Token   string `json:"token"`
	Usuario string `json:"usuario"`
	Curso   string `json:"curso"`
}

type RedeemUser struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type RedeemResponse struct {
	Access    bool       `json:"access"`
	CourseRef string     `json:"course"`
	Remaining int        `json:"remaining"`
	ExpiresAt time.Time  `json:"expires_at"`
	User      RedeemUser `json:"user"`
}

type RecordAccessRequest struct {
	DurationSeconds *int `json:"duration_seconds,omitempty"`
}

type AccessLogResponse struct {
	AccessDate      time.Time `json:"access_date"`
	ViaToken        bool      `json:"via_token"`
	ClientIP        string    `json:"client_ip,omitempty"`
	UserAgent       string    `json:"user_agent,omitempty"`
	DurationSeconds *int      `json:"duration_seconds,omitempty"`
}
