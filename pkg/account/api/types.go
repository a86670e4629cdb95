package api

import "time"

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type ProfileResponse struct {
	ID               string     `json:"id"`
	Email            string     `json:"email"`
	Name             string     `json:"name"`
	IsVerified       bool       `json:"is_verified"`
	VerifiedAt       *time.Time `json:"verified_at,omitempty"`
	PurchasedCourses []string   `json:"purchased_courses"`
	CompletedCourses []string   `json:"completed_courses"`
	CreatedAt        time.Time  `json:"created_at"`
}

type RegisterResponse struct {
	Message   string          `json:"message"`
	User      ProfileResponse `json:"user"`
	EmailSent bool            `json:"email_sent"`
	Warning   string          `json:"warning,omitempty"`
}

type LoginResponse struct {
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expires_at"`
	User      ProfileResponse `json:"user"`
}

type CoursesResponse struct {
	Total     int      `json:"total"`
	Purchased []string `json:"purchased"`
	Completed []string `json:"completed"`
}

type CourseActionResponse struct {
	Message string `json:"message"`
	Course  string `json:"course"`
}

type AccessCheckResponse struct {
	Access bool            `json:"access"`
	Course string          `json:"course"`
	User   ProfileResponse `json:"user"`
}
