package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/botadmin/internal/domain"
	apperrors "github.com/spec-kit/botadmin/pkg/util/errorutil"
)

// RequireRole ensures the caller is a dashboard admin holding one of the allowed roles.
func RequireRole(allowed ...domain.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		role, isAdmin := principal.Role()
		if !isAdmin {
			return apperrors.NewForbidden("dashboard account required")
		}
		if len(allowed) > 0 && !domain.HasRole(role, allowed) {
			return apperrors.NewForbidden("insufficient role")
		}
		return c.Next()
	}
}

// RequireMiniAppUser ensures the caller holds a verified Mini App token.
func RequireMiniAppUser() fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if principal.SubjectType != domain.SubjectTypeMiniApp {
			return apperrors.NewForbidden("mini app token required")
		}
		return c.Next()
	}
}
