// Package telegram adapts the host-injected Telegram WebApp object: the
// signed init data, the user it describes, theme parameters and haptics.
package telegram

import "sync"

// ColorScheme is the host's light/dark mode.
type ColorScheme string

const (
	ColorSchemeLight ColorScheme = "light"
	ColorSchemeDark  ColorScheme = "dark"
)

// UserData is the user object embedded in the handshake payload.
type UserData struct {
	ID           int64  `json:"id"`
	FirstName    string `json:"first_name,omitempty"`
	LastName     string `json:"last_name,omitempty"`
	Username     string `json:"username,omitempty"`
	LanguageCode string `json:"language_code,omitempty"`
	IsPremium    bool   `json:"is_premium,omitempty"`
	IsBot        bool   `json:"is_bot,omitempty"`
	PhotoURL     string `json:"photo_url,omitempty"`
}

// Theme is the host's color roles plus its color scheme.
type Theme struct {
	Params      map[string]string
	ColorScheme ColorScheme
}

func (t Theme) clone() Theme {
	params := make(map[string]string, len(t.Params))
	for k, v := range t.Params {
		params[k] = v
	}
	return Theme{Params: params, ColorScheme: t.ColorScheme}
}

// Payload is everything the host injects at boot.
type Payload struct {
	InitData    string
	User        *UserData
	ThemeParams map[string]string
	ColorScheme ColorScheme
}

// ImpactStyle is the strength of an impact haptic.
type ImpactStyle string

const (
	ImpactLight  ImpactStyle = "light"
	ImpactMedium ImpactStyle = "medium"
	ImpactHeavy  ImpactStyle = "heavy"
)

// NotificationType is the outcome a notification haptic signals.
type NotificationType string

const (
	NotificationSuccess NotificationType = "success"
	NotificationWarning NotificationType = "warning"
	NotificationError   NotificationType = "error"
)

// Haptics is the host's haptic feedback surface.
type Haptics interface {
	ImpactOccurred(style ImpactStyle)
	NotificationOccurred(kind NotificationType)
	SelectionChanged()
}

// Unsubscribe cancels an event subscription. Calling it twice is harmless.
type Unsubscribe func()

// Host is the narrow, read-only view of the injected WebApp object.
type Host interface {
	InitData() string
	User() *UserData
	Theme() Theme
	Ready()
	Expand()
	Haptics() Haptics
	OnThemeChanged(fn func(Theme)) Unsubscribe
}

// Locator finds the injected host; ok is false when none is present.
type Locator func() (host Host, ok bool)

// StaticHost is an in-memory Host serving a fixed payload. It records the
// calls made on it and lets callers push theme changes.
type StaticHost struct {
	mu        sync.Mutex
	payload   Payload
	readyN    int
	expandN   int
	haptics   []string
	listeners map[int]func(Theme)
	nextID    int
}

// NewStaticHost returns a host serving payload.
func NewStaticHost(payload Payload) *StaticHost {
	return &StaticHost{payload: payload, listeners: make(map[int]func(Theme))}
}

func (h *StaticHost) InitData() string { return h.payload.InitData }

func (h *StaticHost) User() *UserData {
	if h.payload.User == nil {
		return nil
	}
	u := *h.payload.User
	return &u
}

func (h *StaticHost) Theme() Theme {
	h.mu.Lock()
	defer h.mu.Unlock()
	return Theme{Params: h.payload.ThemeParams, ColorScheme: h.payload.ColorScheme}.clone()
}

func (h *StaticHost) Ready() {
	h.mu.Lock()
	h.readyN++
	h.mu.Unlock()
}

func (h *StaticHost) Expand() {
	h.mu.Lock()
	h.expandN++
	h.mu.Unlock()
}

func (h *StaticHost) Haptics() Haptics { return staticHaptics{h} }

func (h *StaticHost) OnThemeChanged(fn func(Theme)) Unsubscribe {
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.listeners[id] = fn
	h.mu.Unlock()
	return func() {
		h.mu.Lock()
		delete(h.listeners, id)
		h.mu.Unlock()
	}
}

// SetTheme replaces the theme and notifies subscribers.
func (h *StaticHost) SetTheme(theme Theme) {
	h.mu.Lock()
	h.payload.ThemeParams = theme.clone().Params
	h.payload.ColorScheme = theme.ColorScheme
	listeners := make([]func(Theme), 0, len(h.listeners))
	for _, fn := range h.listeners {
		listeners = append(listeners, fn)
	}
	h.mu.Unlock()
	for _, fn := range listeners {
		fn(theme.clone())
	}
}

// Calls reports how often Ready and Expand were invoked.
func (h *StaticHost) Calls() (ready, expand int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.readyN, h.expandN
}

// HapticLog returns the haptic signals emitted so far, e.g. "notification:success".
func (h *StaticHost) HapticLog() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.haptics...)
}

// Subscribers returns the number of live theme subscriptions.
func (h *StaticHost) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.listeners)
}

type staticHaptics struct {
	h *StaticHost
}

func (s staticHaptics) record(event string) {
	s.h.mu.Lock()
	s.h.haptics = append(s.h.haptics, event)
	s.h.mu.Unlock()
}

func (s staticHaptics) ImpactOccurred(style ImpactStyle) { s.record("impact:" + string(style)) }
func (s staticHaptics) NotificationOccurred(kind NotificationType) {
	s.record("notification:" + string(kind))
}
func (s staticHaptics) SelectionChanged() { s.record("selection") }
