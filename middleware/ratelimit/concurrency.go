package ratelimit

import (
	"log/slog"
	"net/http"
	"time"

	"gallery-gateway/middleware/ratelimit/application"
	"gallery-gateway/middleware/ratelimit/domain"
	"gallery-gateway/middleware/ratelimit/infra"
)

type ConcurrencyOptions struct {
	// Pool permite compartilhar o semáforo (ex: para expor ocupação). Se nil, cria um com Max vagas.
	Pool           domain.SlotPool
	Max            int
	RejectStatus   int
	AcquireTimeout time.Duration
	Logger         *slog.Logger
	// OnReject escreve a resposta de rejeição. Se nil, texto puro via http.Error.
	OnReject func(w http.ResponseWriter, r *http.Request, status int)
}

// ConcurrencyMiddleware limita quantas requisições passam ao mesmo tempo por `next`.
// Quem não consegue vaga recebe RejectStatus (503 por padrão).
func ConcurrencyMiddleware(opts ConcurrencyOptions) func(next http.Handler) http.Handler {
	if opts.Pool == nil && opts.Max <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusServiceUnavailable
	}
	if opts.Pool == nil {
		opts.Pool = infra.NewChanPool(opts.Max)
	}
	if opts.OnReject == nil {
		opts.OnReject = func(w http.ResponseWriter, _ *http.Request, status int) {
			http.Error(w, http.StatusText(status), status)
		}
	}

	svc := application.ConcurrencyService{
		Pool:           opts.Pool,
		AcquireTimeout: opts.AcquireTimeout,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			release, waited, ok := svc.Acquire(r.Context())
			if !ok {
				if opts.Logger != nil {
					opts.Logger.Warn("no concurrency slot", slog.String("path", r.URL.Path), slog.Duration("waited", waited))
				}
				opts.OnReject(w, r, opts.RejectStatus)
				return
			}
			defer release()

			next.ServeHTTP(w, r)
		})
	}
}
