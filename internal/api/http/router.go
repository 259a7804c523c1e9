package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/spec-kit/marketplace-accounts/internal/api/http/handlers"
	"github.com/spec-kit/marketplace-accounts/internal/auth"
	"github.com/spec-kit/marketplace-accounts/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Accounts       *handlers.AccountsHandler
	Admin          *handlers.AdminHandler
	Sessions       *handlers.SessionHandler
	Reference      *handlers.ReferenceHandler
	Profiles       *handlers.ProfileHandler
	Guard          *auth.Guard
	AuthMiddleware *auth.AuthMiddleware
	EmailCheckRate fiber.Handler
	MetricsPath    string
	Gatherer       prometheus.Gatherer
}

// RegisterRoutes wires HTTP routes. Every /api route sits behind the request guard.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Gatherer != nil && cfg.MetricsPath != "" {
		app.Get(cfg.MetricsPath, adaptor.HTTPHandler(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}

	api := app.Group("/api", cfg.Guard.Handler())

	emailCheck := []fiber.Handler{cfg.Accounts.CheckEmail}
	if cfg.EmailCheckRate != nil {
		emailCheck = append([]fiber.Handler{cfg.EmailCheckRate}, emailCheck...)
	}
	api.Post("/check-email", emailCheck...)
	api.Post("/register", cfg.Accounts.Register)
	api.Get("/pro-data", cfg.Reference.ProData)
	api.Get("/departments", cfg.Reference.Departments)
	api.Post("/auth/sign-in", cfg.Sessions.SignIn)
	api.Post("/auth/sign-out", cfg.Sessions.SignOut)

	authn := cfg.AuthMiddleware.Handle
	api.Post("/become-pro", authn, auth.RequireAuthenticated(), cfg.Accounts.BecomePro)
	api.Get("/profile", authn, cfg.Profiles.Get)
	api.Patch("/profile", authn, cfg.Profiles.Update)
	api.Get("/pro-profile", authn, auth.RequireRole(domain.RolePro), cfg.Profiles.ProProfile)

	admin := api.Group("/admin", authn, auth.RequireRole(domain.RoleAdmin))
	admin.Post("/create-admin", cfg.Admin.CreateAdmin)
	admin.Post("/user-role", cfg.Admin.UpdateUserRole)
	admin.Get("/users", cfg.Admin.ListUsers)
	admin.Get("/user-stats", cfg.Admin.UserStats)
}
