package domain

import "time"

// SubjectType differentiates dashboard admins from Mini App users in tokens.
type SubjectType string

const (
	SubjectTypeAdmin   SubjectType = "ADMIN"
	SubjectTypeMiniApp SubjectType = "MINI_APP"
)

// Token represents issued authentication token metadata.
type Token struct {
	ID        string
	SubjectID string
	Subject   SubjectType
	Role      *Role
	ExpiresAt time.Time
	IssuedAt  time.Time
}
