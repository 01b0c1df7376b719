package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	applog "gallery-gateway/internal/log"
	"gallery-gateway/middleware/gate"
	"gallery-gateway/middleware/ratelimit"
	"gallery-gateway/middleware/ratelimit/application"
	"gallery-gateway/middleware/ratelimit/domain"
	"gallery-gateway/middleware/ratelimit/infra"
	"gallery-gateway/session"
)

func main() {
	// Exemplo: gate + rate limit direto num http.ServeMux, sem proxy nem Cloudinary
	logger := applog.New(os.Getenv("LOG_LEVEL"), "text")

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		secret = "example-only-secret"
		logger.Warn("JWT_SECRET not set, using an insecure example secret")
	}
	sessions, err := session.NewService(secret, 24*time.Hour)
	if err != nil {
		logger.Error("session service", slog.Any("error", err))
		os.Exit(1)
	}
	passwords := session.PasswordMatcher{Upload: "upload", View: "view"}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store := infra.NewMemoryStore()
	store.StartJanitor(ctx)

	limiter := ratelimit.Enforcer{
		Service:    application.Service{Store: store, Policies: application.DefaultPolicies()},
		KeyFn:      ratelimit.DefaultKeyFunc("X-Api-Key", true), // ou vazio para usar IP
		Logger:     logger,
		AddHeaders: true,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/login", func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Enforce(w, r, domain.ClassAuth, "Too many login attempts. Please try again later.") {
			return
		}
		perm, ok := passwords.Match(r.FormValue("password"))
		if !ok {
			http.Error(w, "invalid password", http.StatusUnauthorized)
			return
		}
		tok, err := sessions.CreateToken(perm)
		if err != nil {
			http.Error(w, "authentication failed", http.StatusInternalServerError)
			return
		}
		session.SetCookie(w, tok, int(sessions.Duration().Seconds()), false)
		fmt.Fprintf(w, "logged in with %s access\n", perm)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if u := gate.UserFromContext(r.Context()); u != nil {
			fmt.Fprintf(w, "hello %s user, you are at %s\n", u.Permission, r.URL.Path)
			return
		}
		_, _ = w.Write([]byte("public page\n"))
	})

	g := gate.Gate{Tokens: sessions, Logger: logger}
	h := ratelimit.ConcurrencyMiddleware(ratelimit.ConcurrencyOptions{Max: 50})(g.Middleware(mux))

	addr := ":8081"
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		addr = v
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("example server listening", slog.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", slog.Any("error", err))
		os.Exit(1)
	}
}
