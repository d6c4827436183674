package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/botadmin/internal/api/http/handlers"
	"github.com/spec-kit/botadmin/internal/auth"
	"github.com/spec-kit/botadmin/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	MiniApp        *handlers.MiniAppHandler
	Admin          *handlers.AdminHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/auth")
	authGroup.Get("/check", cfg.Auth.Check)
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Post("/logout", cfg.Auth.Logout)

	miniApp := app.Group("/mini-app")
	miniApp.Post("/verify-user", cfg.MiniApp.VerifyUser)
	miniApp.Get("/user-photo/:id", cfg.MiniApp.UserPhoto)
	miniApp.Post("/search-users", cfg.AuthMiddleware.Handle, auth.RequireMiniAppUser(), cfg.MiniApp.SearchUsers)

	admin := app.Group("/admin", cfg.AuthMiddleware.Handle)
	admin.Get("/me", auth.RequireRole(domain.RoleAdmin, domain.RoleManager), cfg.Admin.Me)
	admin.Get("/users", auth.RequireRole(domain.RoleAdmin), cfg.Admin.Users)
	admin.Get("/audit", auth.RequireRole(domain.RoleAdmin), cfg.Admin.Audit)
	admin.Get("/metrics", auth.RequireRole(domain.RoleAdmin), cfg.Admin.Metrics)
}
