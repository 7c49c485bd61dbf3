package api

import (
	"net/http"
	"time"

	"savings-intents-go/internal/auth"
	"savings-intents-go/internal/models"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Routes builds the router. Provider callbacks and the health check are
// unauthenticated; everything under /api/v1/intents and /api/v1/admin
// requires a bearer token. Requests are bounded by CallbackTimeout except
// the reconciliation trigger, which runs under ReconcileTimeout.
func Routes(h *Handlers, verifier *auth.Verifier, cfg models.ServerConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Group(func(r chi.Router) {
		if cfg.CallbackTimeout > 0 {
			r.Use(middleware.Timeout(cfg.CallbackTimeout))
		}

		r.Get("/health", h.Health)

		r.Route("/api/v1/callbacks", func(r chi.Router) {
			r.Post("/payment", h.PaymentCallback)
			r.Get("/verify", h.VerifyCallback)
			r.Post("/verify", h.VerifyCallback)
		})

		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(verifier))

			r.Route("/api/v1/intents", func(r chi.Router) {
				r.Post("/", h.CreateIntent)
				r.Get("/", h.ListIntents)
				r.Get("/reference/{reference}", h.GetIntentByReference)
				r.Get("/{id}", h.GetIntent)
				r.Post("/{id}/initiate", h.InitiatePayment)
				r.Post("/{id}/cancel", h.CancelIntent)
			})

			r.With(auth.RequireAdmin).Post("/api/v1/admin/intents/{id}/override", h.OverrideIntent)
		})
	})

	r.Group(func(r chi.Router) {
		if cfg.ReconcileTimeout > 0 {
			r.Use(longRunning(cfg.ReconcileTimeout))
		}
		r.Use(auth.Middleware(verifier))
		r.Use(auth.RequireAdmin)
		r.Post("/api/v1/admin/reconcile", h.Reconcile)
	})

	return r
}

// longRunning bounds a request by timeout and pushes the connection write
// deadline past it so the server WriteTimeout does not cut the response.
func longRunning(timeout time.Duration) func(http.Handler) http.Handler {
	bounded := middleware.Timeout(timeout)
	return func(next http.Handler) http.Handler {
		inner := bounded(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rc := http.NewResponseController(w)
			if err := rc.SetWriteDeadline(time.Now().Add(timeout + 5*time.Second)); err != nil {
				zap.L().Debug("Unable to extend write deadline", zap.Error(err))
			}
			inner.ServeHTTP(w, r)
		})
	}
}
