package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/saldanaj97/atlaris-sub007/internal/api"
	"github.com/saldanaj97/atlaris-sub007/internal/api/middleware"
	"github.com/saldanaj97/atlaris-sub007/internal/api/shared"
)

// setupRouter builds the HTTP route tree. Auth endpoints are public;
// everything under /api/plans requires a valid bearer token and is
// subject to the in-process rate limit.
func (app *application) setupRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.TraceMiddleware)
	r.Use(chimiddleware.Timeout(60 * time.Second))

	authHandler := api.NewAuthHandler(app.userService, app.jwtService)
	planHandler := api.NewPlanHandler(app.planService)
	authMiddleware := middleware.NewAuthMiddleware(app.jwtService)
	rateLimiter := middleware.NewRateLimitMiddleware(app.limiter)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", authHandler.Register)
		r.Post("/auth/login", authHandler.Login)

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)
			r.Use(rateLimiter.Limit)

			r.Post("/plans", planHandler.Create)
			r.Get("/plans/{id}", planHandler.Get)
			r.Post("/plans/{id}/regenerate", planHandler.Regenerate)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		shared.RespondWithJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	})

	return r
}
