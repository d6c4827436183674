package service

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/botadmin/internal/domain"
	"github.com/spec-kit/botadmin/internal/events"
)

type memoryAdmins struct {
	mu    sync.Mutex
	users []*domain.AdminUser
}

func (m *memoryAdmins) Create(_ context.Context, user *domain.AdminUser) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user.ID = uuid.NewString()
	m.users = append(m.users, user)
	return nil
}

func (m *memoryAdmins) GetByID(_ context.Context, id string) (*domain.AdminUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (m *memoryAdmins) GetByUsername(_ context.Context, username string) (*domain.AdminUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (m *memoryAdmins) List(_ context.Context, limit, offset int) ([]domain.AdminUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.AdminUser
	for i := offset; i < len(m.users) && len(out) < limit; i++ {
		out = append(out, *m.users[i])
	}
	return out, nil
}

func (m *memoryAdmins) Count(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.users), nil
}

type memoryTelegramUsers struct {
	mu    sync.Mutex
	users map[int64]*domain.TelegramUser
}

func newMemoryTelegramUsers() *memoryTelegramUsers {
	return &memoryTelegramUsers{users: map[int64]*domain.TelegramUser{}}
}

func (m *memoryTelegramUsers) Upsert(_ context.Context, user *domain.TelegramUser) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.users[user.ID]; ok && user.PhotoURL == "" {
		user.PhotoURL = existing.PhotoURL
	}
	copied := *user
	m.users[user.ID] = &copied
	return nil
}

func (m *memoryTelegramUsers) GetByID(_ context.Context, id int64) (*domain.TelegramUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		copied := *u
		return &copied, nil
	}
	return nil, pgx.ErrNoRows
}

func (m *memoryTelegramUsers) Search(_ context.Context, query string, limit, offset int) ([]domain.TelegramUser, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q := strings.ToLower(query)
	var matches []domain.TelegramUser
	for _, u := range m.users {
		if strings.Contains(strings.ToLower(u.Username), q) || strings.Contains(strings.ToLower(u.FirstName), q) {
			matches = append(matches, *u)
		}
	}
	total := len(matches)
	if offset >= total {
		return []domain.TelegramUser{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matches[offset:end], total, nil
}

type recordingDispatcher struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recordingDispatcher) Publish(_ context.Context, event events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingDispatcher) Subscribe(events.EventType, events.EventHandler) {}

func (r *recordingDispatcher) types() []events.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

func newRedisClient(t *testing.T) redis.UniversalClient {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}
