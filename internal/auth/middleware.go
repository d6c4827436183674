package auth

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/botadmin/internal/domain"
	"github.com/spec-kit/botadmin/internal/repository"
	apperrors "github.com/spec-kit/botadmin/pkg/util/errorutil"
)

const principalKey = "auth_principal"

// Principal represents the authenticated caller.
type Principal struct {
	SubjectType    domain.SubjectType
	Admin          *domain.AdminUser
	TelegramUserID int64
	Claims         *Claims
}

// Role returns the dashboard role of an admin principal.
func (p *Principal) Role() (domain.Role, bool) {
	if p == nil || p.Admin == nil {
		return "", false
	}
	return p.Admin.Role, true
}

// AuthMiddleware validates session cookies or bearer tokens and loads principals.
type AuthMiddleware struct {
	tokens     *TokenManager
	revoker    *Revoker
	admins     repository.AdminUserRepository
	cookieName string
}

// NewAuthMiddleware constructs middleware. revoker may be nil.
func NewAuthMiddleware(tokens *TokenManager, revoker *Revoker, admins repository.AdminUserRepository, cookieName string) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, revoker: revoker, admins: admins, cookieName: cookieName}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	principal, err := m.Authenticate(c)
	if err != nil {
		return err
	}
	c.Locals(principalKey, principal)
	return c.Next()
}

// Authenticate resolves the caller without touching the handler chain.
func (m *AuthMiddleware) Authenticate(c *fiber.Ctx) (*Principal, error) {
	raw, err := m.extractToken(c)
	if err != nil {
		return nil, err
	}

	claims, err := m.tokens.ParseToken(raw)
	if err != nil {
		return nil, apperrors.NewUnauthorized("invalid token")
	}

	if m.revoker != nil {
		revoked, err := m.revoker.IsRevoked(c.UserContext(), claims.ID)
		if err != nil {
			return nil, apperrors.MapError(err)
		}
		if revoked {
			return nil, apperrors.NewUnauthorized("token revoked")
		}
	}

	principal := &Principal{SubjectType: claims.Subject, Claims: claims}

	switch claims.Subject {
	case domain.SubjectTypeAdmin:
		admin, err := m.admins.GetByID(c.UserContext(), claims.SubjectID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, apperrors.NewUnauthorized("admin not found")
			}
			return nil, apperrors.MapError(err)
		}
		if !admin.Active {
			return nil, apperrors.NewUnauthorized("admin inactive")
		}
		principal.Admin = admin
	case domain.SubjectTypeMiniApp:
		id, err := strconv.ParseInt(claims.SubjectID, 10, 64)
		if err != nil {
			return nil, apperrors.NewUnauthorized("invalid subject")
		}
		principal.TelegramUserID = id
	default:
		return nil, apperrors.NewUnauthorized("unknown subject")
	}
	return principal, nil
}

// extractToken prefers the Authorization header and falls back to the session cookie.
func (m *AuthMiddleware) extractToken(c *fiber.Ctx) (string, error) {
	if header := c.Get(fiber.HeaderAuthorization); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			return "", apperrors.NewUnauthorized("invalid authorization header")
		}
		return parts[1], nil
	}
	if m.cookieName != "" {
		if cookie := c.Cookies(m.cookieName); cookie != "" {
			return cookie, nil
		}
	}
	return "", apperrors.NewUnauthorized("missing credentials")
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}
