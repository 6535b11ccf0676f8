// Package router sets up all HTTP routes and middleware chains for the
// tdp server. It organizes routes into public and admin groups with
// appropriate middleware stacks.
package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/poer2023/tdp/internal/handlers"
	"github.com/poer2023/tdp/internal/middleware"
	"github.com/poer2023/tdp/internal/models"
	"github.com/poer2023/tdp/internal/session"
)

// Deps bundles the handler groups the router wires up. Media may be
// nil when S3 storage is not configured.
type Deps struct {
	Sessions *session.Store
	Auth     *handlers.Auth
	Admin    *handlers.Admin
	Public   *handlers.Public
	Transfer *handlers.Transfer
	Media    *handlers.Media

	// SecureCookies marks CSRF cookies Secure. True in production,
	// false in local development over plain HTTP.
	SecureCookies bool
}

// New creates and returns the configured Chi router with all middleware
// and route groups wired up.
func New(d Deps) chi.Router {
	r := chi.NewRouter()

	// Global middleware, applied to every request.
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)
	r.Use(middleware.SecureHeaders)
	r.Use(middleware.LoadSession(d.Sessions))

	// Health check. No auth, no CSRF.
	r.Get("/health", healthHandler)

	// Public read API.
	r.Route("/api", func(r chi.Router) {
		r.Get("/posts", d.Public.List(models.LocaleEN))
		r.Get("/posts/{slug}", d.Public.Get(models.LocaleEN))
		r.Get("/zh/posts", d.Public.List(models.LocaleZH))
		r.Get("/zh/posts/{slug}", d.Public.Get(models.LocaleZH))

		// Signups get a tight rate limit; everything else on the read
		// path is cache-backed and cheap.
		subscribeLimiter := middleware.NewRateLimiter(10, time.Minute)
		r.Group(func(r chi.Router) {
			r.Use(subscribeLimiter.Middleware)
			r.Post("/subscribe", d.Public.Subscribe)
			r.Get("/subscribe/confirm", d.Public.SubscribeConfirm)
		})
	})

	// Admin API. CSRF protection over the whole group.
	r.Route("/admin", func(r chi.Router) {
		r.Use(middleware.NewCSRF(d.SecureCookies))

		loginLimiter := middleware.NewRateLimiter(10, time.Minute)
		r.With(loginLimiter.Middleware).Post("/login", d.Auth.Login)
		r.Post("/logout", d.Auth.Logout)

		// 2FA enrollment and verification: authenticated, but 2FA not
		// yet complete.
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth)
			r.Post("/2fa/setup", d.Auth.TwoFASetup)
			r.Post("/2fa/verify", d.Auth.TwoFAVerify)
		})

		// Fully authenticated admin area.
		r.Route("/api", func(r chi.Router) {
			r.Use(middleware.RequireAuth)
			r.Use(middleware.Require2FA)

			r.Get("/me", d.Auth.Me)

			r.Route("/posts", func(r chi.Router) {
				r.Get("/", d.Admin.ListPosts)
				r.Post("/", d.Admin.CreatePost)
				r.Get("/{id}", d.Admin.GetPost)
				r.Put("/{id}", d.Admin.UpdatePost)
				r.Delete("/{id}", d.Admin.DeletePost)
			})

			r.Post("/preview", d.Admin.Preview)

			r.Route("/subscribers", func(r chi.Router) {
				r.Get("/", d.Admin.ListSubscribers)
				r.Delete("/{id}", d.Admin.DeleteSubscriber)
			})

			if d.Media != nil {
				r.Route("/media", func(r chi.Router) {
					r.Get("/", d.Media.List)
					r.Post("/", d.Media.Upload)
					r.Delete("/{id}", d.Media.Delete)
				})
			}

			// Import and export are admin-only: a bad archive applied
			// by an editor could rewrite the whole content store.
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAdmin)
				r.Get("/export", d.Transfer.Export)
				r.Post("/import", d.Transfer.ImportDryRun)
				r.Post("/import/apply", d.Transfer.ImportApply)
			})
		})
	})

	return r
}

// healthHandler returns a simple JSON health check response.
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}
