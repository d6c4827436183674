package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/botadmin/internal/auth"
	"github.com/spec-kit/botadmin/internal/config"
	"github.com/spec-kit/botadmin/internal/domain"
	"github.com/spec-kit/botadmin/internal/events"
	"github.com/spec-kit/botadmin/internal/repository"
	apperrors "github.com/spec-kit/botadmin/pkg/util/errorutil"
)

const invalidCredentials = "invalid credentials"

// LoginInput is a dashboard login attempt.
type LoginInput struct {
	Username    string
	Password    string
	Fingerprint string
}

// LoginResult carries the signed-in admin and the issued session token.
type LoginResult struct {
	Admin     *domain.AdminUser
	Token     string
	ExpiresAt time.Time
}

// AuthService coordinates dashboard login, logout and the bootstrap admin.
type AuthService struct {
	admins          repository.AdminUserRepository
	tokenMgr        *auth.TokenManager
	revoker         *auth.Revoker
	limiter         *auth.LoginLimiter
	accountLimiter  *auth.LoginLimiter
	dispatcher      events.Dispatcher
	logger          *zap.Logger
	bcryptCost      int
	defaultUsername string
	defaultPassword string
}

// AuthDependencies encapsulates collaborators for the auth service.
type AuthDependencies struct {
	AdminRepo repository.AdminUserRepository
	Tokens    *auth.TokenManager
	Revoker   *auth.Revoker
	// Limiter counts failures per username and device.
	Limiter *auth.LoginLimiter
	// AccountLimiter counts failures per username across all devices.
	AccountLimiter *auth.LoginLimiter
	Dispatcher     events.Dispatcher
	Logger         *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, deps AuthDependencies) *AuthService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	tokens := deps.Tokens
	if tokens == nil {
		tokens = auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	}
	return &AuthService{
		admins:          deps.AdminRepo,
		tokenMgr:        tokens,
		revoker:         deps.Revoker,
		limiter:         deps.Limiter,
		accountLimiter:  deps.AccountLimiter,
		dispatcher:      deps.Dispatcher,
		logger:          logger,
		bcryptCost:      cfg.Auth.BcryptCost,
		defaultUsername: cfg.Auth.DefaultUsername,
		defaultPassword: cfg.Auth.DefaultPassword,
	}
}

// Login authenticates a dashboard operator. Failed attempts are counted per
// username and device and, with a larger budget, per username alone, since
// the fingerprint is chosen by the caller. Once either budget is spent further
// attempts get 429 until its window closes.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	username := strings.TrimSpace(in.Username)
	if username == "" {
		username = s.defaultUsername
	}
	fingerprint := strings.TrimSpace(in.Fingerprint)

	details := map[string]any{}
	if in.Password == "" {
		details["password"] = "required"
	}
	if fingerprint == "" {
		details["fingerprint"] = "required"
	}
	if len(details) > 0 {
		return nil, apperrors.NewValidationError("invalid login form", details)
	}

	deviceHash := auth.HashFingerprint(fingerprint)
	attempts := loginAttempts{
		{limiter: s.limiter, key: username + "|" + deviceHash},
		{limiter: s.accountLimiter, key: "account|" + username},
	}

	for _, a := range attempts {
		if err := a.limiter.Check(ctx, a.key); err != nil {
			if errors.Is(err, auth.ErrTooManyAttempts) {
				return nil, apperrors.NewTooManyRequests("too many login attempts")
			}
			s.logger.Warn("login limiter unavailable", zap.Error(err))
		}
	}

	admin, err := s.admins.GetByUsername(ctx, username)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return nil, s.rejectLogin(ctx, attempts, username, deviceHash, "unknown username")
	case err != nil:
		return nil, err
	case !admin.Active:
		return nil, s.rejectLogin(ctx, attempts, username, deviceHash, "inactive account")
	}
	if err := auth.ComparePassword(admin.PasswordHash, in.Password); err != nil {
		return nil, s.rejectLogin(ctx, attempts, username, deviceHash, "wrong password")
	}

	for _, a := range attempts {
		if err := a.limiter.Reset(ctx, a.key); err != nil {
			s.logger.Warn("reset login attempts", zap.Error(err))
		}
	}

	role := admin.Role
	token, claims, err := s.tokenMgr.GenerateToken(auth.TokenRequest{
		SubjectID:   admin.ID,
		Subject:     domain.SubjectTypeAdmin,
		Role:        &role,
		Fingerprint: fingerprint,
	})
	if err != nil {
		return nil, err
	}

	adminID := admin.ID
	s.publish(ctx, events.Event{
		Type:    events.EventAdminLoginSucceeded,
		Actor:   events.Actor{Type: domain.SubjectTypeAdmin, AdminID: &adminID},
		Payload: events.AdminLoginPayload{Username: username, DeviceHash: deviceHash},
	})

	return &LoginResult{Admin: admin, Token: token, ExpiresAt: claims.ExpiresAt.Time}, nil
}

type loginAttempt struct {
	limiter *auth.LoginLimiter
	key     string
}

type loginAttempts []loginAttempt

func (s *AuthService) rejectLogin(ctx context.Context, attempts loginAttempts, username, deviceHash, reason string) error {
	s.publish(ctx, events.Event{
		Type:    events.EventAdminLoginFailed,
		Actor:   events.Actor{Type: domain.SubjectTypeAdmin},
		Payload: events.AdminLoginPayload{Username: username, DeviceHash: deviceHash, Reason: reason},
	})
	for _, a := range attempts {
		if err := a.limiter.Fail(ctx, a.key); err != nil && !errors.Is(err, auth.ErrTooManyAttempts) {
			s.logger.Warn("record failed login", zap.Error(err))
		}
	}
	return apperrors.NewUnauthorized(invalidCredentials)
}

// Logout revokes the token the caller authenticated with.
func (s *AuthService) Logout(ctx context.Context, principal *auth.Principal) error {
	if principal == nil || principal.Claims == nil {
		return nil
	}
	claims := principal.Claims
	if s.revoker != nil && claims.ExpiresAt != nil {
		if err := s.revoker.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
			return err
		}
	}

	actor := events.Actor{Type: principal.SubjectType}
	if principal.Admin != nil {
		adminID := principal.Admin.ID
		actor.AdminID = &adminID
	}
	s.publish(ctx, events.Event{Type: events.EventAdminLoggedOut, Actor: actor})
	return nil
}

// ListAdmins returns one page of dashboard operators.
func (s *AuthService) ListAdmins(ctx context.Context, limit, offset int) ([]domain.AdminUser, int, error) {
	limit, offset = normalizePage(limit, offset)
	admins, err := s.admins.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.admins.Count(ctx)
	if err != nil {
		return nil, 0, err
	}
	return admins, total, nil
}

// SeedDefaultAdmin creates the bootstrap ADMIN account when the table is
// empty and a default password is configured.
func (s *AuthService) SeedDefaultAdmin(ctx context.Context) error {
	if s.defaultPassword == "" {
		return nil
	}
	count, err := s.admins.Count(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hash, err := auth.HashPassword(s.defaultPassword, s.bcryptCost)
	if err != nil {
		return err
	}
	admin := &domain.AdminUser{
		Username:     s.defaultUsername,
		PasswordHash: hash,
		Role:         domain.RoleAdmin,
		Active:       true,
	}
	if err := s.admins.Create(ctx, admin); err != nil {
		return err
	}
	s.logger.Info("seeded default admin", zap.String("username", admin.Username))
	return nil
}

func (s *AuthService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, event)
}
