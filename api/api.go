// Package api expõe os endpoints JSON da galeria: autenticação por senha,
// listagem e upload de fotos. Rate limit e sessão são aplicados por handler.
package api

import (
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"

	"gallery-gateway/mediastore"
	"gallery-gateway/middleware/ratelimit"
	"gallery-gateway/middleware/ratelimit/domain"
	"gallery-gateway/middleware/ratelimit/infra"
	"gallery-gateway/session"
)

const (
	maxAuthBody     = 4 << 10
	maxUploadSize   = 10 << 20
	defaultPageSize = 30
	maxPageSize     = 100
)

// API guarda as dependências dos handlers.
type API struct {
	sessions  *session.Service
	passwords session.PasswordMatcher
	limiter   ratelimit.Enforcer
	media     mediastore.Store
	logger    *slog.Logger

	development   bool
	secureCookies bool
	uploadFolder  string

	uploadPool    domain.SlotPool
	uploadTimeout time.Duration

	admission *infra.MemoryStatsStore
}

type Option func(*API)

func WithLogger(logger *slog.Logger) Option {
	return func(a *API) { a.logger = logger }
}

// WithDevelopment libera os endpoints de reset e debug.
func WithDevelopment(dev bool) Option {
	return func(a *API) { a.development = dev }
}

func WithSecureCookies(secure bool) Option {
	return func(a *API) { a.secureCookies = secure }
}

func WithUploadFolder(folder string) Option {
	return func(a *API) { a.uploadFolder = folder }
}

// WithUploadConcurrency limita uploads simultâneos ao tamanho do pool.
func WithUploadConcurrency(pool domain.SlotPool, acquireTimeout time.Duration) Option {
	return func(a *API) {
		a.uploadPool = pool
		a.uploadTimeout = acquireTimeout
	}
}

// WithAdmissionStats expõe os contadores em /debug/admission (só em development).
func WithAdmissionStats(s *infra.MemoryStatsStore) Option {
	return func(a *API) { a.admission = s }
}

func New(sessions *session.Service, passwords session.PasswordMatcher, limiter ratelimit.Enforcer, media mediastore.Store, opts ...Option) *API {
	a := &API{
		sessions:     sessions,
		passwords:    passwords,
		limiter:      limiter,
		media:        media,
		uploadFolder: "gallery",
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	if a.limiter.Logger == nil {
		a.limiter.Logger = a.logger
	}
	return a
}

// Router devolve as rotas, para montar em /api.
func (a *API) Router() chi.Router {
	r := chi.NewRouter()

	r.Post("/auth", a.Login)
	r.Get("/auth", a.AuthStatus)
	r.Delete("/auth", a.ResetRateLimit)
	r.Options("/auth", preflight("GET, POST, DELETE, OPTIONS", "Content-Type"))

	r.Post("/auth/logout", a.Logout)
	r.Options("/auth/logout", preflight("POST, OPTIONS", "Content-Type"))
	r.Post("/auth/reset-rate-limit", a.ResetRateLimit)

	r.Get("/photos", a.ListPhotos)
	r.Options("/photos", preflight("GET, OPTIONS", "Content-Type"))

	r.With(ratelimit.ConcurrencyMiddleware(ratelimit.ConcurrencyOptions{
		Pool:           a.uploadPool,
		AcquireTimeout: a.uploadTimeout,
		Logger:         a.logger,
		OnReject: func(w http.ResponseWriter, _ *http.Request, status int) {
			setCORS(w.Header(), "POST, OPTIONS", "Content-Type, Authorization")
			writeError(w, status, "Too many uploads in progress. Please try again later.")
		},
	})).Post("/upload", a.Upload)
	r.Options("/upload", preflight("POST, OPTIONS", "Content-Type, Authorization"))

	r.Get("/debug/admission", a.AdmissionStats)
	r.Delete("/debug/admission", a.ForgetClient)

	return r
}

func preflight(methods, headers string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		setCORS(w.Header(), methods, headers)
		w.WriteHeader(http.StatusOK)
	}
}

func setCORS(h http.Header, methods, headers string) {
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", methods)
	h.Set("Access-Control-Allow-Headers", headers)
}

func setNoCache(h http.Header) {
	h.Set("Cache-Control", "no-cache, no-store, must-revalidate")
	h.Set("Pragma", "no-cache")
	h.Set("Expires", "0")
}
