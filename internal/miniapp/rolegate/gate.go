// Package rolegate decides, per dashboard route, whether the signed-in
// operator may see the page.
package rolegate

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/botadmin/internal/domain"
)

const (
	DefaultFallbackPath = "/"
	DefaultLoginPath    = "/login"
)

// User is the authenticated dashboard operator.
type User struct {
	ID       string
	Username string
	Role     domain.Role
}

// AuthStatus is what the auth check currently knows.
type AuthStatus struct {
	Loading bool
	User    *User
}

// Route is a role-gated dashboard page.
type Route struct {
	Path         string
	AllowedRoles []domain.Role
}

// Outcome is what to render for a route.
type Outcome int

const (
	OutcomeLoading Outcome = iota
	OutcomeRender
	OutcomeRedirect
)

func (o Outcome) String() string {
	switch o {
	case OutcomeLoading:
		return "loading"
	case OutcomeRender:
		return "render"
	case OutcomeRedirect:
		return "redirect"
	}
	return "unknown"
}

// Decision is the gate's verdict for one render.
type Decision struct {
	Outcome    Outcome
	RedirectTo string
}

// Gate holds the redirect targets.
type Gate struct {
	FallbackPath string
	LoginPath    string
}

// New returns a gate with the default redirect targets.
func New() Gate {
	return Gate{FallbackPath: DefaultFallbackPath, LoginPath: DefaultLoginPath}
}

// Decide maps the auth status and route to a decision. No role is checked
// until the auth status has resolved.
func (g Gate) Decide(status AuthStatus, route Route) Decision {
	if status.Loading {
		return Decision{Outcome: OutcomeLoading}
	}
	if status.User == nil {
		return Decision{Outcome: OutcomeRedirect, RedirectTo: g.LoginPath}
	}
	if domain.HasRole(status.User.Role, route.AllowedRoles) {
		return Decision{Outcome: OutcomeRender}
	}
	return Decision{Outcome: OutcomeRedirect, RedirectTo: g.FallbackPath}
}

// DashboardRoutes are the gated pages of the admin dashboard.
var DashboardRoutes = []Route{
	{Path: "/chats", AllowedRoles: []domain.Role{domain.RoleAdmin, domain.RoleManager}},
	{Path: "/broadcasts", AllowedRoles: []domain.Role{domain.RoleAdmin, domain.RoleManager}},
	{Path: "/moderators", AllowedRoles: []domain.Role{domain.RoleAdmin}},
	{Path: "/payments", AllowedRoles: []domain.Role{domain.RoleAdmin}},
}

// Lookup finds the route registered for path.
func Lookup(routes []Route, path string) (Route, bool) {
	for _, r := range routes {
		if r.Path == path {
			return r, true
		}
	}
	return Route{}, false
}

// AuthChecker asks the backend who is signed in.
type AuthChecker interface {
	CheckAuth(ctx context.Context) (authenticated bool, user *User, err error)
}

// Resolve runs the auth check. Failures resolve to signed out so the gate
// can redirect to login instead of hanging on the loading state.
func Resolve(ctx context.Context, checker AuthChecker, logger *zap.Logger) AuthStatus {
	authenticated, user, err := checker.CheckAuth(ctx)
	if err != nil {
		if logger != nil {
			logger.Warn("auth check failed", zap.Error(err))
		}
		return AuthStatus{}
	}
	if !authenticated {
		return AuthStatus{}
	}
	return AuthStatus{User: user}
}
