package events

import (
	"time"

	"github.com/spec-kit/botadmin/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventAdminLoginSucceeded    EventType = "admin_login_succeeded"
	EventAdminLoginFailed       EventType = "admin_login_failed"
	EventAdminLoggedOut         EventType = "admin_logged_out"
	EventMiniAppUserVerified    EventType = "mini_app_user_verified"
	EventMiniAppUserRejected    EventType = "mini_app_user_rejected"
	EventMiniAppSearchPerformed EventType = "mini_app_search_performed"
)

var now = time.Now

// Actor encapsulates actor metadata for an event.
type Actor struct {
	Type           domain.SubjectType `json:"type"`
	AdminID        *string            `json:"admin_id,omitempty"`
	TelegramUserID *int64             `json:"telegram_user_id,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// AdminLoginPayload describes a dashboard login attempt.
type AdminLoginPayload struct {
	Username   string `json:"username"`
	DeviceHash string `json:"device_hash,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// MiniAppVerificationPayload describes an init data verification outcome.
type MiniAppVerificationPayload struct {
	TelegramUserID int64  `json:"telegram_user_id,omitempty"`
	Username       string `json:"username,omitempty"`
	Reason         string `json:"reason,omitempty"`
}

// MiniAppSearchPayload describes a user search from the Mini App.
type MiniAppSearchPayload struct {
	Query   string `json:"query"`
	Results int    `json:"results"`
	Total   int    `json:"total"`
}
