// Package verification drives the Mini App from boot to a usable state:
// it decides between re-verifying a fresh Telegram open, resuming a local
// session, or bouncing an expired one, and then serves user searches.
package verification

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spec-kit/botadmin/internal/api/dto"
	"github.com/spec-kit/botadmin/internal/miniapp/session"
	"github.com/spec-kit/botadmin/internal/miniapp/telegram"
)

// Phase is the flow's position in its state machine.
type Phase string

const (
	PhaseCheckingSession Phase = "CHECKING_SESSION"
	PhaseVerifying       Phase = "VERIFYING"
	PhaseVerified        Phase = "VERIFIED"
	PhaseFailed          Phase = "FAILED"
	PhaseExpiredRedirect Phase = "EXPIRED_REDIRECT"
	PhaseReady           Phase = "READY"
)

const (
	MessageSessionExpired     = "Сессия истекла. Перенаправление..."
	MessageVerificationFailed = "Не удалось подтвердить пользователя"
	MessageQueryTooShort      = "Введите минимум 2 символа для поиска"
	MessageNoResults          = "Пользователи не найдены"
	MessageSearchFailed       = "Ошибка при поиске пользователей"

	DefaultRedirectDelay = time.Second
	DefaultSearchLimit   = 20
	minQueryLength       = 2
)

var (
	// ErrQueryTooShort is returned by Search for queries under two characters.
	ErrQueryTooShort = errors.New("search query too short")
	// ErrNotReady is returned by Search before the user is verified.
	ErrNotReady = errors.New("mini app is not ready")
	// ErrStale is returned when a response arrived after the flow was reset.
	ErrStale = errors.New("response superseded")
	// ErrIdentityUnavailable is returned by Verify when the host sent init
	// data without a user object.
	ErrIdentityUnavailable = errors.New("telegram user data unavailable")
)

// Handshake is the part of the Telegram adapter the flow depends on.
type Handshake interface {
	Init(ctx context.Context) error
	State() telegram.State
	Haptics() telegram.Haptics
}

// Backend is the gateway as seen by the flow.
type Backend interface {
	VerifyUser(ctx context.Context, initData string) (*dto.VerifyUserResponse, error)
	SearchUsers(ctx context.Context, req dto.SearchUsersRequest) (*dto.SearchUsersResponse, error)
}

// tokenSetter is implemented by backends that carry a bearer token.
type tokenSetter interface {
	SetToken(token string)
}

// Navigator performs a hard navigation away from the app.
type Navigator interface {
	Navigate(url string) error
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(url string) error

// Navigate calls f.
func (f NavigatorFunc) Navigate(url string) error { return f(url) }

// SearchState is the search screen's state.
type SearchState struct {
	Query   string
	Loading bool
	Results []dto.TelegramUserData
	Total   int
	Message string
}

// State is a snapshot of the flow.
type State struct {
	Phase          Phase
	Message        string
	TelegramUserID int64
	Search         SearchState
}

// Options configures a Flow.
type Options struct {
	Handshake     Handshake
	Sessions      *session.Store
	Backend       Backend
	Navigator     Navigator
	ExitURL       string
	RedirectDelay time.Duration
	SearchLimit   int
	// After replaces time.After, for tests.
	After  func(time.Duration) <-chan time.Time
	Logger *zap.Logger
}

// Flow is the Mini App verification state machine.
type Flow struct {
	handshake     Handshake
	sessions      *session.Store
	backend       Backend
	navigator     Navigator
	exitURL       string
	redirectDelay time.Duration
	searchLimit   int
	after         func(time.Duration) <-chan time.Time
	logger        *zap.Logger

	mu            sync.Mutex
	state         State
	generation    uint64
	verifyStarted bool
	searchSeq     uint64
}

// New builds a Flow.
func New(opts Options) *Flow {
	if opts.RedirectDelay <= 0 {
		opts.RedirectDelay = DefaultRedirectDelay
	}
	if opts.SearchLimit <= 0 {
		opts.SearchLimit = DefaultSearchLimit
	}
	if opts.After == nil {
		opts.After = time.After
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Flow{
		handshake:     opts.Handshake,
		sessions:      opts.Sessions,
		backend:       opts.Backend,
		navigator:     opts.Navigator,
		exitURL:       opts.ExitURL,
		redirectDelay: opts.RedirectDelay,
		searchLimit:   opts.SearchLimit,
		after:         opts.After,
		logger:        opts.Logger,
		state:         State{Phase: PhaseCheckingSession},
	}
}

// State returns a snapshot of the flow.
func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.state
	s.Search.Results = append([]dto.TelegramUserData(nil), f.state.Search.Results...)
	return s
}

// Reset returns the flow to CHECKING_SESSION as if the page were reloaded.
// Responses to requests issued before the reset are dropped.
func (f *Flow) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.generation++
	f.verifyStarted = false
	f.state = State{Phase: PhaseCheckingSession}
}

// Boot runs the startup sequence. A fresh Telegram open (live init data)
// always re-verifies and never looks at the local session. Otherwise a valid
// session resumes straight to READY and a missing one shows the expiry
// message, waits the redirect delay and navigates to the exit URL.
func (f *Flow) Boot(ctx context.Context) error {
	if err := f.handshake.Init(ctx); err != nil && !errors.Is(err, telegram.ErrHostUnavailable) {
		return err
	}

	if f.handshake.State().HostPresent() {
		return f.Verify(ctx)
	}

	if sess, ok := f.sessions.Get(); ok {
		f.mu.Lock()
		f.state.Phase = PhaseReady
		f.state.TelegramUserID = sess.UserID
		f.mu.Unlock()
		if ts, ok := f.backend.(tokenSetter); ok && sess.Token != "" {
			ts.SetToken(sess.Token)
		}
		f.logger.Info("resumed mini app session", zap.Int64("telegram_user_id", sess.UserID),
			zap.Duration("remaining", f.sessions.RemainingTime()))
		return nil
	}

	return f.expire(ctx)
}

func (f *Flow) expire(ctx context.Context) error {
	f.mu.Lock()
	gen := f.generation
	f.state.Phase = PhaseExpiredRedirect
	f.state.Message = MessageSessionExpired
	f.mu.Unlock()
	f.logger.Info("mini app session expired, redirecting", zap.String("exit_url", f.exitURL))

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-f.after(f.redirectDelay):
	}

	f.mu.Lock()
	stale := gen != f.generation
	f.mu.Unlock()
	if stale {
		return ErrStale
	}
	if f.navigator == nil {
		return nil
	}
	return f.navigator.Navigate(f.exitURL)
}

// Verify sends the init data to the backend. It issues at most one request
// per boot, and none while init data is empty, the host gave no user, or the
// user is verified. Failures are final until the next boot.
func (f *Flow) Verify(ctx context.Context) error {
	hs := f.handshake.State()
	initData := hs.InitData

	f.mu.Lock()
	if initData == "" || f.verifyStarted || f.state.Phase == PhaseVerified {
		f.mu.Unlock()
		return nil
	}
	f.verifyStarted = true
	if hs.User == nil {
		f.state.Phase = PhaseFailed
		f.state.Message = hs.Error
		if f.state.Message == "" {
			f.state.Message = telegram.MessageUserUnavailable
		}
		f.mu.Unlock()
		f.logger.Warn("init data carries no user, skipping verification")
		f.haptic(func(h telegram.Haptics) { h.NotificationOccurred(telegram.NotificationError) })
		return ErrIdentityUnavailable
	}
	gen := f.generation
	f.state.Phase = PhaseVerifying
	f.mu.Unlock()

	resp, err := f.backend.VerifyUser(ctx, initData)

	f.mu.Lock()
	if gen != f.generation || f.state.Phase != PhaseVerifying {
		f.mu.Unlock()
		return ErrStale
	}
	if err != nil || resp == nil || !resp.Verified {
		f.state.Phase = PhaseFailed
		f.state.Message = MessageVerificationFailed
		f.mu.Unlock()

		fields := []zap.Field{zap.Error(err)}
		if resp != nil {
			fields = append(fields, zap.String("message", resp.Message))
		}
		f.logger.Warn("telegram user verification failed", fields...)
		f.haptic(func(h telegram.Haptics) { h.NotificationOccurred(telegram.NotificationError) })
		if err == nil {
			err = errors.New("verification rejected")
		}
		return err
	}
	f.state.Phase = PhaseVerified
	f.state.Message = ""
	f.state.TelegramUserID = resp.TelegramUserID
	f.mu.Unlock()

	f.sessions.Save(resp.TelegramUserID, resp.Token)
	if ts, ok := f.backend.(tokenSetter); ok && resp.Token != "" {
		ts.SetToken(resp.Token)
	}
	f.logger.Info("telegram user verified", zap.Int64("telegram_user_id", resp.TelegramUserID))
	f.haptic(func(h telegram.Haptics) { h.NotificationOccurred(telegram.NotificationSuccess) })
	return nil
}

// Search validates the query locally, then queries the backend. Only the
// latest search may update the state.
func (f *Flow) Search(ctx context.Context, query string) error {
	query = strings.TrimSpace(query)

	f.mu.Lock()
	if f.state.Phase != PhaseVerified && f.state.Phase != PhaseReady {
		f.mu.Unlock()
		return ErrNotReady
	}
	if utf8.RuneCountInString(query) < minQueryLength {
		f.state.Search = SearchState{Query: query, Message: MessageQueryTooShort}
		f.mu.Unlock()
		f.haptic(func(h telegram.Haptics) { h.NotificationOccurred(telegram.NotificationWarning) })
		return ErrQueryTooShort
	}
	f.searchSeq++
	seq, gen := f.searchSeq, f.generation
	f.state.Search = SearchState{Query: query, Loading: true}
	f.mu.Unlock()

	f.haptic(func(h telegram.Haptics) { h.SelectionChanged() })

	resp, err := f.backend.SearchUsers(ctx, dto.SearchUsersRequest{Query: query, Limit: f.searchLimit})

	f.mu.Lock()
	if seq != f.searchSeq || gen != f.generation {
		f.mu.Unlock()
		return ErrStale
	}
	if err != nil {
		f.state.Search = SearchState{Query: query, Message: MessageSearchFailed}
		f.mu.Unlock()
		f.logger.Warn("user search failed", zap.String("query", query), zap.Error(err))
		f.haptic(func(h telegram.Haptics) { h.NotificationOccurred(telegram.NotificationError) })
		return err
	}
	f.state.Search = SearchState{Query: query, Results: resp.Results, Total: resp.Total}
	if len(resp.Results) == 0 {
		f.state.Search.Message = MessageNoResults
	}
	f.mu.Unlock()

	f.sessions.Extend()
	f.haptic(func(h telegram.Haptics) { h.NotificationOccurred(telegram.NotificationSuccess) })
	return nil
}

// haptic delivers a signal on a best-effort basis.
func (f *Flow) haptic(signal func(telegram.Haptics)) {
	defer func() {
		if r := recover(); r != nil {
			f.logger.Debug("haptic feedback failed", zap.Any("panic", r))
		}
	}()
	h := f.handshake.Haptics()
	if h == nil {
		return
	}
	signal(h)
}
