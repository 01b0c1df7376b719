package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"gallery-gateway/api"
	"gallery-gateway/config"
	applog "gallery-gateway/internal/log"
	"gallery-gateway/mediastore"
	"gallery-gateway/mediastore/cloudinary"
	"gallery-gateway/middleware/gate"
	"gallery-gateway/middleware/ratelimit"
	"gallery-gateway/middleware/ratelimit/application"
	"gallery-gateway/middleware/ratelimit/domain"
	"gallery-gateway/middleware/ratelimit/infra"
	"gallery-gateway/session"
)

var listenAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gateway HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(envFiles...)
		if err != nil {
			return err
		}
		if listenAddr != "" {
			cfg.ListenAddr = listenAddr
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("config error: %w", err)
		}

		logger := applog.New(cfg.LogLevel, cfg.LogFormat)

		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		handler, closeFn, err := buildHandler(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer closeFn()

		srv := &http.Server{
			Addr:              cfg.ListenAddr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       60 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       90 * time.Second,
		}

		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		logger.Info("gateway listening",
			slog.String("addr", cfg.ListenAddr),
			slog.String("env", cfg.Env),
			slog.String("upstream", cfg.UpstreamURL),
			slog.String("static_dir", cfg.StaticDir),
		)
		logger.Info("rate limit",
			slog.String("store", cfg.RateStore),
			slog.Duration("auth_window", cfg.AuthRateWindow),
			slog.Int("auth_max", cfg.AuthRateMax),
			slog.Duration("api_window", cfg.APIRateWindow),
			slog.Int("api_max", cfg.APIRateMax),
			slog.String("key_header", cfg.RateKeyHeader),
			slog.Bool("trust_xff", cfg.TrustXFF),
		)
		logger.Info("uploads",
			slog.Int("concurrency", cfg.UploadConcurrency),
			slog.Duration("acquire_timeout", cfg.UploadAcquireTimeout),
			slog.Bool("media_configured", cfg.MediaConfigured()),
		)

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&listenAddr, "addr", "", "listen address (overrides LISTEN_ADDR)")
}

// buildHandler monta o gateway completo. closeFn libera as conexões abertas.
func buildHandler(ctx context.Context, cfg config.Config, logger *slog.Logger) (http.Handler, func(), error) {
	closeFn := func() {}

	sessions, err := session.NewService(cfg.JWTSecret, cfg.Session())
	if err != nil {
		return nil, closeFn, fmt.Errorf("session: %w", err)
	}

	var rdb *redis.Client
	if cfg.UsesRedis() {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		closeFn = func() { _ = rdb.Close() }

		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		_, err := rdb.Ping(pingCtx).Result()
		cancel()
		if err != nil {
			closeFn()
			return nil, func() {}, fmt.Errorf("redis ping error: %w", err)
		}
	}

	var store domain.CounterStore
	if cfg.RateStore == config.StoreRedis {
		store = infra.NewRedisStore(rdb, infra.WithKeyPrefix(cfg.RatePrefix))
	} else {
		mem := infra.NewMemoryStore()
		mem.StartJanitor(ctx)
		store = mem
	}

	admission := infra.NewMemoryStatsStore(infra.WithTrackKeys(cfg.Development()))
	var stats domain.StatsStore = admission
	if cfg.StatsEnabled {
		stats = infra.MultiStatsStore(admission, infra.NewRedisStatsStore(
			rdb,
			infra.WithStatsPrefix(cfg.StatsPrefix),
			infra.WithStatsTTL(cfg.StatsTTL),
		))
	}

	limiter := ratelimit.Enforcer{
		Service: application.Service{
			Store: store,
			Policies: map[domain.Class]domain.Policy{
				domain.ClassAuth: {Window: cfg.AuthRateWindow, MaxRequests: cfg.AuthRateMax},
				domain.ClassAPI:  {Window: cfg.APIRateWindow, MaxRequests: cfg.APIRateMax},
			},
			OnError: func(k domain.EntryKey, err error) {
				logger.Warn("rate limit store error, allowing request", slog.String("key", k.String()), slog.Any("error", err))
			},
		},
		KeyFn:      ratelimit.DefaultKeyFunc(cfg.RateKeyHeader, cfg.TrustXFF),
		Stats:      stats,
		Logger:     logger,
		AddHeaders: cfg.AddHeaders,
	}

	var media mediastore.Store
	if cfg.MediaConfigured() {
		c, err := cloudinary.New(cfg.CloudName, cfg.CloudAPIKey, cfg.CloudAPISecret,
			cloudinary.WithRateLimit(cfg.CloudRPS, cfg.CloudBurst),
		)
		if err != nil {
			closeFn()
			return nil, func() {}, err
		}
		media = c
	} else {
		logger.Warn("cloudinary credentials missing, photo listing and upload will fail")
	}

	opts := []api.Option{
		api.WithLogger(logger),
		api.WithDevelopment(cfg.Development()),
		api.WithSecureCookies(!cfg.Development()),
		api.WithUploadFolder(cfg.UploadFolder),
		api.WithAdmissionStats(admission),
	}
	if cfg.UploadConcurrency > 0 {
		opts = append(opts, api.WithUploadConcurrency(infra.NewChanPool(cfg.UploadConcurrency), cfg.UploadAcquireTimeout))
	}
	a := api.New(sessions, session.PasswordMatcher{Upload: cfg.UploadPassword, View: cfg.GalleryPassword}, limiter, media, opts...)

	ui, err := uiHandler(cfg, logger)
	if err != nil {
		closeFn()
		return nil, func() {}, err
	}

	g := gate.Gate{Tokens: sessions, LoginPath: "/", Stats: stats, Logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(applog.Requests(logger))
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	r.Mount("/api", a.Router())
	r.Handle("/*", g.Middleware(ui))

	return r, closeFn, nil
}

// uiHandler serve a interface da galeria: proxy para UPSTREAM_URL quando
// configurado, senão os arquivos de STATIC_DIR.
func uiHandler(cfg config.Config, logger *slog.Logger) (http.Handler, error) {
	if cfg.UpstreamURL == "" {
		return http.FileServer(http.Dir(cfg.StaticDir)), nil
	}

	target, err := url.Parse(cfg.UpstreamURL)
	if err != nil {
		return nil, fmt.Errorf("invalid UPSTREAM_URL: %w", err)
	}
	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		logger.Error("proxy error", slog.String("path", r.URL.Path), slog.Any("error", err))
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}
	return proxy, nil
}
