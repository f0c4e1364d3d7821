package dto

import "time"

// AdminLoginRequest payload for login.
type AdminLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	SubjectID string    `json:"subject_id"`
	Email     string    `json:"email"`
}
