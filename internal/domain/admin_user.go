package domain

import "time"

// AdminUser is an operator of the admin dashboard.
type AdminUser struct {
	ID           string
	Username     string
	PasswordHash string
	Role         Role
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
