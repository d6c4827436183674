package telegram

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultInitDelay gives the host time to inject its object.
	DefaultInitDelay = 100 * time.Millisecond

	MessageHostUnavailable = "Telegram WebApp не обнаружен"
	MessageUserUnavailable = "Данные пользователя недоступны"

	photoLookupTimeout = 10 * time.Second
)

// ErrHostUnavailable is returned by Init when no host object was injected.
// It is terminal for the current page load.
var ErrHostUnavailable = errors.New("telegram host not detected")

// PhotoResolver looks up a display photo for a Telegram user.
type PhotoResolver interface {
	UserPhotoURL(ctx context.Context, userID int64) (string, error)
}

// State is the adapter's view of the handshake.
type State struct {
	Ready    bool
	User     *UserData
	InitData string
	Error    string
	Theme    Theme
}

// HostPresent reports whether a live identity payload was injected.
func (s State) HostPresent() bool {
	return s.InitData != ""
}

// AdapterOptions configures an Adapter.
type AdapterOptions struct {
	Locator   Locator
	Photos    PhotoResolver
	InitDelay time.Duration
	Logger    *zap.Logger
}

// Adapter reads the host payload once per page load and tracks theme changes.
type Adapter struct {
	locator   Locator
	photos    PhotoResolver
	initDelay time.Duration
	logger    *zap.Logger

	once        sync.Once
	initErr     error
	mu          sync.RWMutex
	state       State
	host        Host
	unsubscribe Unsubscribe
	photoDone   chan struct{}
}

// NewAdapter builds an Adapter. A negative InitDelay disables the delay.
func NewAdapter(opts AdapterOptions) *Adapter {
	if opts.InitDelay == 0 {
		opts.InitDelay = DefaultInitDelay
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Adapter{
		locator:   opts.Locator,
		photos:    opts.Photos,
		initDelay: opts.InitDelay,
		logger:    opts.Logger,
		state:     State{Theme: Theme{Params: map[string]string{}, ColorScheme: ColorSchemeLight}},
		photoDone: make(chan struct{}),
	}
}

// Init probes the host after the init delay and captures its payload. Only
// the first call does work; later calls return the first result.
func (a *Adapter) Init(ctx context.Context) error {
	a.once.Do(func() {
		a.initErr = a.init(ctx)
	})
	return a.initErr
}

func (a *Adapter) init(ctx context.Context) error {
	if a.initDelay > 0 {
		timer := time.NewTimer(a.initDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			close(a.photoDone)
			return ctx.Err()
		case <-timer.C:
		}
	}

	var host Host
	ok := false
	if a.locator != nil {
		host, ok = a.locator()
	}
	if !ok || host == nil {
		a.mu.Lock()
		a.state.Error = MessageHostUnavailable
		a.mu.Unlock()
		close(a.photoDone)
		a.logger.Warn("telegram host not detected")
		return ErrHostUnavailable
	}

	host.Ready()
	host.Expand()

	user := host.User()
	a.mu.Lock()
	a.host = host
	a.state.InitData = host.InitData()
	a.state.Theme = host.Theme().clone()
	if user != nil {
		a.state.User = user
	} else {
		a.state.Error = MessageUserUnavailable
	}
	a.state.Ready = true
	a.mu.Unlock()

	unsubscribe := host.OnThemeChanged(a.applyTheme)
	a.mu.Lock()
	a.unsubscribe = unsubscribe
	a.mu.Unlock()

	if user != nil && a.photos != nil {
		go a.resolvePhoto(user.ID)
	} else {
		close(a.photoDone)
	}

	if user == nil {
		a.logger.Warn("telegram user data unavailable")
	} else {
		a.logger.Info("telegram host ready", zap.Int64("telegram_user_id", user.ID))
	}
	return nil
}

func (a *Adapter) resolvePhoto(userID int64) {
	defer close(a.photoDone)
	defer func() {
		if r := recover(); r != nil {
			a.logger.Warn("photo lookup panicked", zap.Any("panic", r))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), photoLookupTimeout)
	defer cancel()
	url, err := a.photos.UserPhotoURL(ctx, userID)
	if err != nil || url == "" {
		a.logger.Debug("user photo unavailable", zap.Int64("telegram_user_id", userID), zap.Error(err))
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state.User != nil && a.state.User.ID == userID {
		u := *a.state.User
		u.PhotoURL = url
		a.state.User = &u
	}
}

func (a *Adapter) applyTheme(theme Theme) {
	a.mu.Lock()
	a.state.Theme = theme.clone()
	a.mu.Unlock()
}

// State returns a snapshot of the handshake state.
func (a *Adapter) State() State {
	a.mu.RLock()
	defer a.mu.RUnlock()
	s := a.state
	s.Theme = a.state.Theme.clone()
	if a.state.User != nil {
		u := *a.state.User
		s.User = &u
	}
	return s
}

// Haptics returns the host's haptics, or a no-op when there is no host.
func (a *Adapter) Haptics() Haptics {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.host == nil {
		return nopHaptics{}
	}
	return a.host.Haptics()
}

// Close drops the theme subscription.
func (a *Adapter) Close() {
	a.mu.Lock()
	unsubscribe := a.unsubscribe
	a.unsubscribe = nil
	a.mu.Unlock()
	if unsubscribe != nil {
		unsubscribe()
	}
}

type nopHaptics struct{}

func (nopHaptics) ImpactOccurred(ImpactStyle)            {}
func (nopHaptics) NotificationOccurred(NotificationType) {}
func (nopHaptics) SelectionChanged()                     {}
