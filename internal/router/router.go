package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing

	"taskboard/internal/handler"    // import the handlers that implement business logic
	"taskboard/internal/middleware" // import middleware for JWT authentication and role enforcement
	"taskboard/internal/model"      // import model for role names
)

// RegisterRoutes registers routes that do not require authentication on the
// provided Echo instance.  Currently it exposes only a health check, which
// stays outside the rate limiter so monitoring never gets throttled.
func RegisterRoutes(e *echo.Echo) {
	// Map the GET request at path "/healthz" to the Health handler.  This
	// endpoint can be used by load balancers or monitoring systems to verify
	// that the service is up and running.
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers all authentication‑related routes and applies the
// necessary middleware.  Unauthenticated operations live under /v1/auth,
// while protected endpoints live under /v1.
//
// The rate limiter is applied per group, not globally: on /v1/auth there is
// no identity yet so buckets key on the client IP, while on protected groups
// it runs after JWTAuth so each authenticated user draws from their own
// bucket instead of a shared anonymous one.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string, limit echo.MiddlewareFunc) {
	// Operations that do not require an existing session: register, login,
	// refresh and single-session logout (which authenticates by refresh
	// token rather than by access token).
	g := e.Group("/v1/auth")
	if limit != nil {
		g.Use(limit)
	}
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/logout", a.Logout)

	// Protected identity endpoints.  JWTAuth validates the bearer token
	// and stores the sub/role claims in the context; RequireRole rejects
	// requests whose role claim is missing or unknown.
	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))
	if limit != nil {
		auth.Use(limit)
	}
	auth.Use(middleware.RequireRole(model.RoleAdmin, model.RoleUser))
	auth.GET("/me", a.Me)
	auth.POST("/logout-all", a.LogoutAll)
}

// RegisterTasks registers the task CRUD surface and the assignee
// picker.  Every route requires a valid access token; both roles may
// use them because ownership is enforced in the repository layer.  The
// optional cache middleware (Redis-backed) is applied to the list and
// picker reads only — mutations must never be served from cache — and
// bump advances the cache version after each successful mutation so
// the next read reflects it.
func RegisterTasks(e *echo.Echo, t *handler.TaskHandler, jwtSecret string, limit, cache, bump echo.MiddlewareFunc) {
	g := e.Group("/v1")
	g.Use(middleware.JWTAuth(jwtSecret))
	if limit != nil {
		g.Use(limit)
	}
	g.Use(middleware.RequireRole(model.RoleAdmin, model.RoleUser))
	if bump != nil {
		g.Use(bump) // no-op on reads
	}

	if cache != nil {
		g.GET("/tasks", t.List, cache)
		g.GET("/users", t.ListAssignees, cache)
	} else {
		g.GET("/tasks", t.List)
		g.GET("/users", t.ListAssignees)
	}
	g.POST("/tasks", t.Create)
	g.GET("/tasks/:id", t.Get)
	g.PATCH("/tasks/:id", t.Patch)
	g.POST("/tasks/:id/toggle", t.Toggle)
	g.POST("/tasks/:id/delete-request", t.RequestDelete)
	g.DELETE("/tasks/:id", t.Delete)
}

// RegisterAdmin registers the user-management surface under /v1/admin.
// Visibility of these routes in a UI is gated by the is_admin flag from
// /v1/me; enforcement happens here via RequireRole("admin").  User
// deletion also removes tasks, so admin mutations bump the cache
// version like task mutations do.
func RegisterAdmin(e *echo.Echo, a *handler.AdminHandler, jwtSecret string, limit, bump echo.MiddlewareFunc) {
	g := e.Group("/v1/admin")
	g.Use(middleware.JWTAuth(jwtSecret))
	if limit != nil {
		g.Use(limit)
	}
	g.Use(middleware.RequireRole(model.RoleAdmin))
	if bump != nil {
		g.Use(bump)
	}

	g.GET("/users", a.ListUsers)
	g.PUT("/users/:id/role", a.ChangeRole)
	g.POST("/users/:id/delete-request", a.RequestDeleteUser)
	g.DELETE("/users/:id", a.DeleteUser)
}
