package dto

import "time"

// LoginRequest is the multipart form posted to /auth/login.
type LoginRequest struct {
	Username    string `form:"username"`
	Password    string `form:"password"`
	Fingerprint string `form:"fingerprint"`
}

// AdminUserResponse describes the signed-in operator.
type AdminUserResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// LoginResponse wraps a successful login.
type LoginResponse struct {
	Data struct {
		User AdminUserResponse `json:"user"`
		Auth AuthResponse      `json:"auth"`
	} `json:"data"`
}

// AuthCheckResponse answers GET /auth/check.
type AuthCheckResponse struct {
	Authenticated bool               `json:"authenticated"`
	User          *AdminUserResponse `json:"user,omitempty"`
}
