// Package session keeps the Mini App's local verification session: one
// record under one storage key, valid for a fixed TTL after it is written or
// extended. Expiry is evaluated lazily when the record is read.
package session

import (
	"encoding/json"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultTTL is how long a verified session stays valid.
	DefaultTTL = 2 * time.Hour
	// DefaultKey is the storage key the record lives under.
	DefaultKey = "telegram_session"
)

// Session is a verified Mini App session.
type Session struct {
	UserID    int64
	Verified  bool
	Token     string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// record is the stored JSON shape; timestamps are Unix milliseconds.
type record struct {
	UserID    int64  `json:"userId"`
	Verified  bool   `json:"verified"`
	Token     string `json:"token,omitempty"`
	ExpiresAt int64  `json:"expiresAt"`
	CreatedAt int64  `json:"createdAt"`
}

// Options configures a Store.
type Options struct {
	Key    string
	TTL    time.Duration
	Now    func() time.Time
	Logger *zap.Logger
}

// Store reads and writes the session record. It never returns storage
// errors: failed reads look like "no session" and failed writes are logged.
// No cross-process locking is attempted, so the last writer wins.
type Store struct {
	storage Storage
	key     string
	ttl     time.Duration
	now     func() time.Time
	logger  *zap.Logger
}

// NewStore builds a Store over storage.
func NewStore(storage Storage, opts Options) *Store {
	if opts.Key == "" {
		opts.Key = DefaultKey
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Store{
		storage: storage,
		key:     opts.Key,
		ttl:     opts.TTL,
		now:     opts.Now,
		logger:  opts.Logger,
	}
}

// TTL returns the configured session lifetime.
func (s *Store) TTL() time.Duration {
	return s.ttl
}

// Save overwrites the stored session with a fresh one for userID.
func (s *Store) Save(userID int64, token string) {
	now := s.now()
	s.write(Session{
		UserID:    userID,
		Verified:  true,
		Token:     token,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	})
}

// Get returns the current session. Missing, malformed and expired records
// all report false; malformed and expired ones are removed.
func (s *Store) Get() (*Session, bool) {
	raw, ok, err := s.storage.Get(s.key)
	if err != nil {
		s.logger.Warn("session read failed", zap.String("key", s.key), zap.Error(err))
		return nil, false
	}
	if !ok {
		return nil, false
	}

	var rec record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil || rec.ExpiresAt == 0 {
		s.logger.Warn("discarding malformed session", zap.String("key", s.key), zap.Error(err))
		s.Clear()
		return nil, false
	}

	sess := rec.session()
	if !s.now().Before(sess.ExpiresAt) {
		s.logger.Debug("session expired", zap.Int64("user_id", sess.UserID), zap.Time("expires_at", sess.ExpiresAt))
		s.Clear()
		return nil, false
	}
	return &sess, true
}

// IsValid reports whether an unexpired session exists.
func (s *Store) IsValid() bool {
	_, ok := s.Get()
	return ok
}

// RemainingTime returns the time left before expiry, or zero without a session.
func (s *Store) RemainingTime() time.Duration {
	sess, ok := s.Get()
	if !ok {
		return 0
	}
	if remaining := sess.ExpiresAt.Sub(s.now()); remaining > 0 {
		return remaining
	}
	return 0
}

// Extend pushes expiry to now+TTL, keeping CreatedAt, UserID and Token.
// It reports false, writing nothing, when there is no valid session.
func (s *Store) Extend() bool {
	sess, ok := s.Get()
	if !ok {
		return false
	}
	sess.ExpiresAt = s.now().Add(s.ttl)
	return s.write(*sess)
}

// Clear removes the record. Safe to call repeatedly.
func (s *Store) Clear() {
	if err := s.storage.Remove(s.key); err != nil {
		s.logger.Warn("session clear failed", zap.String("key", s.key), zap.Error(err))
	}
}

func (s *Store) write(sess Session) bool {
	data, err := json.Marshal(newRecord(sess))
	if err != nil {
		s.logger.Error("session encode failed", zap.Error(err))
		return false
	}
	if err := s.storage.Set(s.key, string(data)); err != nil {
		s.logger.Warn("session write failed", zap.String("key", s.key), zap.Error(err))
		return false
	}
	return true
}

func newRecord(sess Session) record {
	return record{
		UserID:    sess.UserID,
		Verified:  sess.Verified,
		Token:     sess.Token,
		ExpiresAt: sess.ExpiresAt.UnixMilli(),
		CreatedAt: sess.CreatedAt.UnixMilli(),
	}
}

func (r record) session() Session {
	return Session{
		UserID:    r.UserID,
		Verified:  r.Verified,
		Token:     r.Token,
		CreatedAt: time.UnixMilli(r.CreatedAt),
		ExpiresAt: time.UnixMilli(r.ExpiresAt),
	}
}
