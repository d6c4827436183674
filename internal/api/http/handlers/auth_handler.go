package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/botadmin/internal/api/dto"
	"github.com/spec-kit/botadmin/internal/auth"
	"github.com/spec-kit/botadmin/internal/config"
	"github.com/spec-kit/botadmin/internal/domain"
	"github.com/spec-kit/botadmin/internal/service"
	apperrors "github.com/spec-kit/botadmin/pkg/util/errorutil"
)

// AuthHandler exposes the dashboard /auth endpoints.
type AuthHandler struct {
	auth       *service.AuthService
	middleware *auth.AuthMiddleware
	cookieName string
	secure     bool
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService, middleware *auth.AuthMiddleware, cfg config.AuthConfig) *AuthHandler {
	return &AuthHandler{auth: authService, middleware: middleware, cookieName: cfg.CookieName, secure: cfg.CookieSecure}
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	result, err := h.auth.Login(c.UserContext(), service.LoginInput{
		Username:    req.Username,
		Password:    req.Password,
		Fingerprint: req.Fingerprint,
	})
	if err != nil {
		return err
	}

	c.Cookie(&fiber.Cookie{
		Name:     h.cookieName,
		Value:    result.Token,
		Path:     "/",
		Expires:  result.ExpiresAt,
		HTTPOnly: true,
		Secure:   h.secure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})

	var resp dto.LoginResponse
	resp.Data.User = adminResponse(result.Admin)
	resp.Data.Auth = dto.AuthResponse{Token: result.Token, ExpiresAt: result.ExpiresAt}
	return c.JSON(resp)
}

// Check handles GET /auth/check. Missing or invalid credentials are a normal
// unauthenticated answer.
func (h *AuthHandler) Check(c *fiber.Ctx) error {
	principal, err := h.middleware.Authenticate(c)
	if err != nil {
		if isUnauthorized(err) {
			return c.JSON(dto.AuthCheckResponse{Authenticated: false})
		}
		return err
	}
	if principal.Admin == nil {
		return c.JSON(dto.AuthCheckResponse{Authenticated: false})
	}
	user := adminResponse(principal.Admin)
	return c.JSON(dto.AuthCheckResponse{Authenticated: true, User: &user})
}

// Logout handles POST /auth/logout. The cookie is cleared even when the
// caller was not signed in.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	principal, err := h.middleware.Authenticate(c)
	switch {
	case err == nil:
		if err := h.auth.Logout(c.UserContext(), principal); err != nil {
			return err
		}
	case !isUnauthorized(err):
		return err
	}

	c.Cookie(&fiber.Cookie{
		Name:     h.cookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HTTPOnly: true,
		Secure:   h.secure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return c.JSON(fiber.Map{"success": true})
}

func isUnauthorized(err error) bool {
	var domainErr *apperrors.DomainError
	return errors.As(err, &domainErr) && domainErr.HTTPStatus == http.StatusUnauthorized
}

func adminResponse(admin *domain.AdminUser) dto.AdminUserResponse {
	return dto.AdminUserResponse{ID: admin.ID, Username: admin.Username, Role: string(admin.Role)}
}
