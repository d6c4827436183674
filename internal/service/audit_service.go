package service

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/botadmin/internal/events"
)

const defaultAuditCapacity = 200

// AuditService records security-relevant events in the log and keeps the
// most recent ones for the admin area.
type AuditService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger

	mu       sync.Mutex
	recent   []events.Event
	capacity int
}

// NewAuditService creates the service. capacity <= 0 uses a default.
func NewAuditService(dispatcher events.Dispatcher, logger *zap.Logger, capacity int) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if capacity <= 0 {
		capacity = defaultAuditCapacity
	}
	return &AuditService{dispatcher: dispatcher, logger: logger, capacity: capacity}
}

// RegisterHandlers subscribes to events.
func (a *AuditService) RegisterHandlers() {
	if a.dispatcher == nil {
		return
	}
	a.dispatcher.Subscribe(events.EventAdminLoginSucceeded, a.handleInfo)
	a.dispatcher.Subscribe(events.EventAdminLoggedOut, a.handleInfo)
	a.dispatcher.Subscribe(events.EventMiniAppUserVerified, a.handleInfo)
	a.dispatcher.Subscribe(events.EventMiniAppSearchPerformed, a.handleDebug)
	a.dispatcher.Subscribe(events.EventAdminLoginFailed, a.handleWarn)
	a.dispatcher.Subscribe(events.EventMiniAppUserRejected, a.handleWarn)
}

func (a *AuditService) handleInfo(_ context.Context, event events.Event) error {
	a.logger.Info(string(event.Type), a.fields(event)...)
	a.remember(event)
	return nil
}

func (a *AuditService) handleWarn(_ context.Context, event events.Event) error {
	a.logger.Warn(string(event.Type), a.fields(event)...)
	a.remember(event)
	return nil
}

func (a *AuditService) handleDebug(_ context.Context, event events.Event) error {
	a.logger.Debug(string(event.Type), a.fields(event)...)
	return nil
}

func (a *AuditService) fields(event events.Event) []zap.Field {
	return []zap.Field{
		zap.String("event_id", event.ID),
		zap.String("actor_type", string(event.Actor.Type)),
		zap.Any("payload", event.Payload),
	}
}

func (a *AuditService) remember(event events.Event) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.recent = append(a.recent, event)
	if over := len(a.recent) - a.capacity; over > 0 {
		a.recent = append([]events.Event(nil), a.recent[over:]...)
	}
}

// Recent returns up to limit events, newest first.
func (a *AuditService) Recent(limit int) []events.Event {
	a.mu.Lock()
	defer a.mu.Unlock()
	if limit <= 0 || limit > len(a.recent) {
		limit = len(a.recent)
	}
	out := make([]events.Event, 0, limit)
	for i := len(a.recent) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, a.recent[i])
	}
	return out
}
