package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/botadmin/internal/api/dto"
	"github.com/spec-kit/botadmin/internal/auth"
	"github.com/spec-kit/botadmin/internal/observability"
	"github.com/spec-kit/botadmin/internal/service"
	apperrors "github.com/spec-kit/botadmin/pkg/util/errorutil"
)

// AdminHandler serves the role-gated admin area.
type AdminHandler struct {
	auth    *service.AuthService
	audit   *service.AuditService
	metrics *observability.Metrics
}

// NewAdminHandler constructs handler.
func NewAdminHandler(authService *service.AuthService, audit *service.AuditService, metrics *observability.Metrics) *AdminHandler {
	return &AdminHandler{auth: authService, audit: audit, metrics: metrics}
}

// Me handles GET /admin/me.
func (h *AdminHandler) Me(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Admin == nil {
		return apperrors.NewUnauthorized("authentication required")
	}
	return c.JSON(fiber.Map{"data": adminResponse(principal.Admin)})
}

// Users handles GET /admin/users.
func (h *AdminHandler) Users(c *fiber.Ctx) error {
	admins, total, err := h.auth.ListAdmins(c.UserContext(), c.QueryInt("limit"), c.QueryInt("offset"))
	if err != nil {
		return err
	}
	out := make([]dto.AdminUserResponse, 0, len(admins))
	for i := range admins {
		out = append(out, adminResponse(&admins[i]))
	}
	return c.JSON(fiber.Map{"data": out, "total": total})
}

// Audit handles GET /admin/audit.
func (h *AdminHandler) Audit(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": h.audit.Recent(c.QueryInt("limit", 50))})
}

// Metrics handles GET /admin/metrics.
func (h *AdminHandler) Metrics(c *fiber.Ctx) error {
	return c.JSON(h.metrics.Snapshot())
}
