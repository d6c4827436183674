package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	nethttp "net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/botadmin/internal/api/http/handlers"
	"github.com/spec-kit/botadmin/internal/auth"
	"github.com/spec-kit/botadmin/internal/config"
	"github.com/spec-kit/botadmin/internal/domain"
	"github.com/spec-kit/botadmin/internal/events"
	"github.com/spec-kit/botadmin/internal/initdata"
	"github.com/spec-kit/botadmin/internal/observability"
	"github.com/spec-kit/botadmin/internal/service"
)

const botToken = "42:GATEWAY"

type admins struct {
	mu    sync.Mutex
	users []*domain.AdminUser
}

func (a *admins) Create(_ context.Context, u *domain.AdminUser) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	u.ID = uuid.NewString()
	a.users = append(a.users, u)
	return nil
}

func (a *admins) find(match func(*domain.AdminUser) bool) (*domain.AdminUser, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, u := range a.users {
		if match(u) {
			return u, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (a *admins) GetByID(_ context.Context, id string) (*domain.AdminUser, error) {
	return a.find(func(u *domain.AdminUser) bool { return u.ID == id })
}

func (a *admins) GetByUsername(_ context.Context, name string) (*domain.AdminUser, error) {
	return a.find(func(u *domain.AdminUser) bool { return u.Username == name })
}

func (a *admins) List(context.Context, int, int) ([]domain.AdminUser, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]domain.AdminUser, 0, len(a.users))
	for _, u := range a.users {
		out = append(out, *u)
	}
	return out, nil
}

func (a *admins) Count(context.Context) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.users), nil
}

type telegramUsers struct {
	mu    sync.Mutex
	users map[int64]domain.TelegramUser
}

func (t *telegramUsers) Upsert(_ context.Context, u *domain.TelegramUser) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.users[u.ID] = *u
	return nil
}

func (t *telegramUsers) GetByID(_ context.Context, id int64) (*domain.TelegramUser, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	u, ok := t.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &u, nil
}

func (t *telegramUsers) Search(_ context.Context, q string, limit, offset int) ([]domain.TelegramUser, int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []domain.TelegramUser
	for _, u := range t.users {
		if strings.Contains(strings.ToLower(u.Username), strings.ToLower(q)) {
			out = append(out, u)
		}
	}
	return out, len(out), nil
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

type gateway struct {
	app    *fiber.App
	admins *admins
}

func newGateway(t *testing.T) *gateway {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := config.Config{
		App: config.AppConfig{Name: "test", Version: "v0"},
		Auth: config.AuthConfig{
			JWTSecret:             "secret",
			AccessTokenTTLMinutes: 60,
			BcryptCost:            4,
			DefaultUsername:       "admin",
			DefaultPassword:       "pw-admin",
			CookieName:            "admin_session",
			MaxLoginAttempts:      3,
			MaxAccountAttempts:    5,
			LoginWindowSeconds:    60,
		},
		Telegram: config.TelegramConfig{BotToken: botToken, InitDataMaxAgeHours: 24, MiniAppTokenTTLMins: 120},
	}

	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher(logger)
	audit := service.NewAuditService(dispatcher, logger, 0)
	audit.RegisterHandlers()

	adminRepo := &admins{}
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	revoker := auth.NewRevoker(client)
	authService := service.NewAuthService(cfg, service.AuthDependencies{
		AdminRepo:      adminRepo,
		Tokens:         tokens,
		Revoker:        revoker,
		Limiter:        auth.NewLoginLimiter(client, cfg.Auth.MaxLoginAttempts, cfg.Auth.LoginWindow()),
		AccountLimiter: auth.NewLoginLimiter(client, cfg.Auth.MaxAccountAttempts, cfg.Auth.LoginWindow()),
		Dispatcher:     dispatcher,
		Logger:         logger,
	})
	require.NoError(t, authService.SeedDefaultAdmin(context.Background()))

	hash, err := auth.HashPassword("pw-manager", 4)
	require.NoError(t, err)
	require.NoError(t, adminRepo.Create(context.Background(), &domain.AdminUser{Username: "manager", PasswordHash: hash, Role: domain.RoleManager, Active: true}))

	miniAppService := service.NewMiniAppService(cfg, service.MiniAppDependencies{
		UserRepo:   &telegramUsers{users: map[int64]domain.TelegramUser{}},
		Tokens:     tokens,
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	authMiddleware := auth.NewAuthMiddleware(tokens, revoker, adminRepo, cfg.Auth.CookieName)

	app := NewApp(cfg.App.Name, logger, metrics, time.Second)
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, map[string]handlers.Pinger{"postgres": pinger{}, "redis": pinger{err: errors.New("down")}}),
		Auth:           handlers.NewAuthHandler(authService, authMiddleware, cfg.Auth),
		MiniApp:        handlers.NewMiniAppHandler(miniAppService),
		Admin:          handlers.NewAdminHandler(authService, audit, metrics),
		AuthMiddleware: authMiddleware,
	})
	return &gateway{app: app, admins: adminRepo}
}

func (g *gateway) do(t *testing.T, req *nethttp.Request) (*nethttp.Response, map[string]any) {
	t.Helper()
	resp, err := g.app.Test(req, -1)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var body map[string]any
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &body), string(raw))
	}
	return resp, body
}

func loginRequest(t *testing.T, username, password, fingerprint string) *nethttp.Request {
	t.Helper()
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	if username != "" {
		require.NoError(t, w.WriteField("username", username))
	}
	require.NoError(t, w.WriteField("password", password))
	require.NoError(t, w.WriteField("fingerprint", fingerprint))
	require.NoError(t, w.Close())
	req := httptest.NewRequest(nethttp.MethodPost, "/auth/login", buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func jsonRequest(t *testing.T, method, path string, body any, bearer string) *nethttp.Request {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(method, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	return req
}

func withCookie(req *nethttp.Request, c *nethttp.Cookie) *nethttp.Request {
	req.AddCookie(c)
	return req
}

func sessionCookie(t *testing.T, resp *nethttp.Response) *nethttp.Cookie {
	t.Helper()
	for _, c := range resp.Cookies() {
		if c.Name == "admin_session" {
			return c
		}
	}
	t.Fatal("no session cookie")
	return nil
}

func TestHealthEndpoints(t *testing.T) {
	g := newGateway(t)

	resp, body := g.do(t, httptest.NewRequest(nethttp.MethodGet, "/health/live", nil))
	assert.Equal(t, nethttp.StatusOK, resp.StatusCode)
	assert.Equal(t, "alive", body["status"])

	resp, body = g.do(t, httptest.NewRequest(nethttp.MethodGet, "/health/ready", nil))
	assert.Equal(t, nethttp.StatusServiceUnavailable, resp.StatusCode)
	details := body["error"].(map[string]any)["details"].(map[string]any)
	assert.Equal(t, "ok", details["postgres"])
	assert.Equal(t, "down", details["redis"])
}

func TestDashboardLoginCheckLogout(t *testing.T) {
	g := newGateway(t)

	resp, body := g.do(t, httptest.NewRequest(nethttp.MethodGet, "/auth/check", nil))
	assert.Equal(t, nethttp.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["authenticated"])

	resp, body = g.do(t, loginRequest(t, "", "pw-admin", "fp-1"))
	require.Equal(t, nethttp.StatusOK, resp.StatusCode)
	user := body["data"].(map[string]any)["user"].(map[string]any)
	assert.Equal(t, "admin", user["username"])
	assert.Equal(t, "ADMIN", user["role"])
	cookie := sessionCookie(t, resp)
	assert.True(t, cookie.HttpOnly)

	resp, body = g.do(t, withCookie(httptest.NewRequest(nethttp.MethodGet, "/auth/check", nil), cookie))
	assert.Equal(t, nethttp.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["authenticated"])
	assert.Equal(t, "ADMIN", body["user"].(map[string]any)["role"])

	resp, _ = g.do(t, withCookie(httptest.NewRequest(nethttp.MethodGet, "/admin/users", nil), cookie))
	assert.Equal(t, nethttp.StatusOK, resp.StatusCode)

	resp, _ = g.do(t, withCookie(httptest.NewRequest(nethttp.MethodPost, "/auth/logout", nil), cookie))
	assert.Equal(t, nethttp.StatusOK, resp.StatusCode)

	_, body = g.do(t, withCookie(httptest.NewRequest(nethttp.MethodGet, "/auth/check", nil), cookie))
	assert.Equal(t, false, body["authenticated"])

	resp, _ = g.do(t, withCookie(httptest.NewRequest(nethttp.MethodGet, "/admin/me", nil), cookie))
	assert.Equal(t, nethttp.StatusUnauthorized, resp.StatusCode)
}

func TestLoginFailuresAndThrottling(t *testing.T) {
	g := newGateway(t)

	for i := 0; i < 3; i++ {
		resp, body := g.do(t, loginRequest(t, "admin", "wrong", "fp-x"))
		require.Equal(t, nethttp.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, "UNAUTHORIZED", body["error"].(map[string]any)["code"])
	}

	resp, body := g.do(t, loginRequest(t, "admin", "pw-admin", "fp-x"))
	assert.Equal(t, nethttp.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "TOO_MANY_REQUESTS", body["error"].(map[string]any)["code"])

	resp, _ = g.do(t, loginRequest(t, "admin", "pw-admin", ""))
	assert.Equal(t, nethttp.StatusBadRequest, resp.StatusCode)
}

func TestLoginThrottlesAccountAcrossFingerprints(t *testing.T) {
	g := newGateway(t)

	for i := 0; i < 5; i++ {
		resp, _ := g.do(t, loginRequest(t, "admin", "wrong", fmt.Sprintf("fp-%d", i)))
		require.Equal(t, nethttp.StatusUnauthorized, resp.StatusCode)
	}

	resp, body := g.do(t, loginRequest(t, "admin", "pw-admin", "fp-unseen"))
	assert.Equal(t, nethttp.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "TOO_MANY_REQUESTS", body["error"].(map[string]any)["code"])

	resp, _ = g.do(t, loginRequest(t, "manager", "pw-manager", "fp-unseen"))
	assert.Equal(t, nethttp.StatusOK, resp.StatusCode)
}

func TestAdminRoutesAreRoleGated(t *testing.T) {
	g := newGateway(t)

	resp, _ := g.do(t, loginRequest(t, "manager", "pw-manager", "fp-m"))
	require.Equal(t, nethttp.StatusOK, resp.StatusCode)
	cookie := sessionCookie(t, resp)

	resp, body := g.do(t, withCookie(httptest.NewRequest(nethttp.MethodGet, "/admin/me", nil), cookie))
	assert.Equal(t, nethttp.StatusOK, resp.StatusCode)
	assert.Equal(t, "MANAGER", body["data"].(map[string]any)["role"])

	resp, _ = g.do(t, withCookie(httptest.NewRequest(nethttp.MethodGet, "/admin/users", nil), cookie))
	assert.Equal(t, nethttp.StatusForbidden, resp.StatusCode)

	resp, _ = g.do(t, httptest.NewRequest(nethttp.MethodGet, "/admin/me", nil))
	assert.Equal(t, nethttp.StatusUnauthorized, resp.StatusCode)
}

func signedInitData(t *testing.T, user initdata.User) string {
	t.Helper()
	raw, err := json.Marshal(user)
	require.NoError(t, err)
	values := url.Values{}
	values.Set("auth_date", strconv.FormatInt(time.Now().Unix(), 10))
	values.Set("user", string(raw))
	return initdata.Sign(values, botToken)
}

func TestMiniAppVerifySearchAndPhoto(t *testing.T) {
	g := newGateway(t)

	resp, body := g.do(t, jsonRequest(t, nethttp.MethodPost, "/mini-app/verify-user",
		map[string]string{"init_data": signedInitData(t, initdata.User{ID: 501, FirstName: "Olga", Username: "olga", PhotoURL: "https://t.me/i/501.jpg"})}, ""))
	require.Equal(t, nethttp.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["verified"])
	assert.EqualValues(t, 501, body["telegram_user_id"])
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)

	resp, body = g.do(t, jsonRequest(t, nethttp.MethodPost, "/mini-app/verify-user", map[string]string{"init_data": "user=%7B%7D&hash=00"}, ""))
	require.Equal(t, nethttp.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["verified"])
	assert.Nil(t, body["token"])

	resp, _ = g.do(t, jsonRequest(t, nethttp.MethodPost, "/mini-app/search-users", map[string]any{"query": "ol"}, ""))
	assert.Equal(t, nethttp.StatusUnauthorized, resp.StatusCode)

	resp, _ = g.do(t, jsonRequest(t, nethttp.MethodPost, "/mini-app/search-users", map[string]any{"query": "o"}, token))
	assert.Equal(t, nethttp.StatusBadRequest, resp.StatusCode)

	resp, body = g.do(t, jsonRequest(t, nethttp.MethodPost, "/mini-app/search-users", map[string]any{"query": "ol", "limit": 5}, token))
	require.Equal(t, nethttp.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, body["total"])
	assert.EqualValues(t, 5, body["limit"])
	assert.Len(t, body["results"], 1)

	resp, _ = g.do(t, httptest.NewRequest(nethttp.MethodGet, "/mini-app/user-photo/501", nil))
	assert.Equal(t, nethttp.StatusFound, resp.StatusCode)
	assert.Equal(t, "https://t.me/i/501.jpg", resp.Header.Get("Location"))

	resp, _ = g.do(t, httptest.NewRequest(nethttp.MethodGet, "/mini-app/user-photo/999", nil))
	assert.Equal(t, nethttp.StatusNotFound, resp.StatusCode)
}

func TestUnknownRouteRendersJSONError(t *testing.T) {
	g := newGateway(t)
	resp, body := g.do(t, httptest.NewRequest(nethttp.MethodGet, "/nope", nil))
	assert.Equal(t, nethttp.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "NOT_FOUND", body["error"].(map[string]any)["code"])
}
