package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"aquawatch.org/internal/auth"
	"aquawatch.org/internal/obs"
)

// Options tunes the outer HTTP surface. Zero values fall back to
// conservative defaults.
type Options struct {
	CORSAllowedOrigins []string
	RateLimitPerSec    int
	RateLimitBurst     int
	MaxBodyBytes       int64
}

func (o Options) withDefaults() Options {
	if o.RateLimitPerSec <= 0 {
		o.RateLimitPerSec = 10
	}
	if o.RateLimitBurst <= 0 {
		o.RateLimitBurst = 20
	}
	if o.MaxBodyBytes <= 0 {
		o.MaxBodyBytes = 1 << 20
	}
	return o
}

// ReadyProbe reports whether the service can do useful work.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// API is the HTTP layer over the access-control service.
type API struct {
	svc        *auth.Service
	readyProbe ReadyProbe
	version    string
	opts       Options
}

func New(svc *auth.Service, rp ReadyProbe, version string, opts Options) *API {
	return &API{
		svc:        svc,
		readyProbe: rp,
		version:    version,
		opts:       opts.withDefaults(),
	}
}

// Handler builds the full router with middleware applied.
func (a *API) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)
	r.Use(SecurityHeaders)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   a.opts.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-API-Key"},
		AllowCredentials: true,
		MaxAge:           600,
	}))
	r.Use(RequestMeta)
	r.Use(RequestLogger)
	r.Use(RateLimit(a.opts.RateLimitBurst, a.opts.RateLimitPerSec))
	r.Use(MaxBodyBytes(a.opts.MaxBodyBytes))

	r.Get("/healthz", a.handleHealthz)
	r.Get("/readyz", a.handleReadyz)
	r.Method(http.MethodGet, "/metrics", obs.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", a.handleRegister)
			r.Post("/login", a.handleLogin)
			r.Post("/verify-2fa", a.handleVerifyTwoFactor)
			r.Post("/refresh", a.handleRefresh)

			r.Group(func(r chi.Router) {
				r.Use(a.requireUser)
				r.Get("/me", a.handleMe)
				r.Post("/2fa/enable", a.handleEnableTwoFactor)
				r.Post("/2fa/disable", a.handleDisableTwoFactor)
			})
		})

		r.Post("/sensors/ingest", a.handleSensorIngest)

		r.Route("/admin", func(r chi.Router) {
			r.Use(a.requireUser)

			r.Get("/users", a.handleListUsers)
			r.Put("/users/{id}/role", a.handleChangeRole)
			r.Put("/users/{id}/assignment", a.handleAssignScope)

			r.Get("/regions", a.handleListRegions)
			r.Post("/regions", a.handleCreateRegion)
			r.Get("/hospitals", a.handleListHospitals)
			r.Post("/hospitals", a.handleCreateHospital)

			r.Get("/apikeys", a.handleListDeviceCredentials)
			r.Post("/apikeys", a.handleCreateDeviceCredential)
			r.Post("/apikeys/{id}/validate", a.handleValidateDeviceCredential)
			r.Post("/apikeys/{id}/revoke", a.handleRevokeDeviceCredential)

			r.Get("/whitelist", a.handleListAllowedEmails)
			r.Post("/whitelist", a.handleAddAllowedEmail)
			r.Delete("/whitelist/{id}", a.handleRemoveAllowedEmail)
		})
	})

	return obs.Instrument(r)
}

func (a *API) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "aquawatch-api",
		"version": a.version,
	})
}

func (a *API) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := a.readyProbe.Check(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}
