// Package config lê a configuração do gateway do ambiente (e de um .env opcional).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var (
	ErrMissingSecret    = errors.New("JWT_SECRET is required")
	ErrMissingPassword  = errors.New("at least one of UPLOAD_PASSWORD or GALLERY_PASSWORD is required")
	ErrMissingRedisAddr = errors.New("REDIS_ADDR is required when RATE_STORE=redis")
)

const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

type Config struct {
	Env        string `env:"APP_ENV" envDefault:"production"`
	ListenAddr string `env:"LISTEN_ADDR" envDefault:":8080"`
	LogLevel   string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat  string `env:"LOG_FORMAT" envDefault:"text"`

	JWTSecret       string `env:"JWT_SECRET"`
	UploadPassword  string `env:"UPLOAD_PASSWORD"`
	GalleryPassword string `env:"GALLERY_PASSWORD"`
	// em horas
	SessionDuration int `env:"SESSION_DURATION" envDefault:"168"`

	// UI servida atrás do gate: proxy para UpstreamURL ou arquivos de StaticDir.
	UpstreamURL string `env:"UPSTREAM_URL"`
	StaticDir   string `env:"STATIC_DIR" envDefault:"./public"`

	TrustXFF      bool   `env:"TRUST_XFF" envDefault:"false"`
	RateKeyHeader string `env:"RATE_KEY_HEADER"`
	AddHeaders    bool   `env:"ADD_RATELIMIT_HEADERS" envDefault:"false"`

	AuthRateWindow time.Duration `env:"AUTH_RATE_WINDOW" envDefault:"5m"`
	AuthRateMax    int           `env:"AUTH_RATE_MAX" envDefault:"50"`
	APIRateWindow  time.Duration `env:"API_RATE_WINDOW" envDefault:"1m"`
	APIRateMax     int           `env:"API_RATE_MAX" envDefault:"60"`

	RateStore     string `env:"RATE_STORE" envDefault:"memory"`
	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
	RatePrefix    string `env:"RATE_PREFIX" envDefault:"ratelimit"`

	StatsEnabled bool          `env:"RATE_STATS_ENABLED" envDefault:"false"`
	StatsPrefix  string        `env:"RATE_STATS_PREFIX" envDefault:"admission:stats"`
	StatsTTL     time.Duration `env:"RATE_STATS_TTL" envDefault:"24h"`

	UploadConcurrency    int           `env:"UPLOAD_CONCURRENCY" envDefault:"4"`
	UploadAcquireTimeout time.Duration `env:"UPLOAD_ACQUIRE_TIMEOUT" envDefault:"5s"`
	UploadFolder         string        `env:"UPLOAD_FOLDER" envDefault:"team-todd-gallery"`

	CloudName      string  `env:"CLOUDINARY_CLOUD_NAME"`
	CloudAPIKey    string  `env:"CLOUDINARY_API_KEY"`
	CloudAPISecret string  `env:"CLOUDINARY_API_SECRET"`
	CloudRPS       float64 `env:"CLOUDINARY_RPS" envDefault:"5"`
	CloudBurst     int     `env:"CLOUDINARY_BURST" envDefault:"10"`
}

// Load carrega `.env` (quando existir, sem sobrescrever o ambiente) e faz o parse.
// Não valida: quem precisa da configuração completa chama Validate.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.JWTSecret) == "" {
		return ErrMissingSecret
	}
	if c.UploadPassword == "" && c.GalleryPassword == "" {
		return ErrMissingPassword
	}
	if c.SessionDuration <= 0 {
		return errors.New("SESSION_DURATION must be > 0")
	}
	if c.AuthRateWindow <= 0 || c.APIRateWindow <= 0 {
		return errors.New("rate windows must be > 0")
	}
	if c.AuthRateMax <= 0 || c.APIRateMax <= 0 {
		return errors.New("rate limits must be > 0")
	}
	switch c.RateStore {
	case StoreMemory:
	case StoreRedis:
		if strings.TrimSpace(c.RedisAddr) == "" {
			return ErrMissingRedisAddr
		}
	default:
		return fmt.Errorf("RATE_STORE must be %q or %q, got %q", StoreMemory, StoreRedis, c.RateStore)
	}
	if c.StatsEnabled && strings.TrimSpace(c.RedisAddr) == "" {
		return errors.New("REDIS_ADDR is required when RATE_STATS_ENABLED=true")
	}
	if c.UploadConcurrency < 0 {
		return errors.New("UPLOAD_CONCURRENCY must be >= 0")
	}
	return nil
}

func (c Config) Development() bool { return c.Env == "development" }

func (c Config) Session() time.Duration { return time.Duration(c.SessionDuration) * time.Hour }

// MediaConfigured indica se as credenciais da Cloudinary estão presentes.
func (c Config) MediaConfigured() bool {
	return c.CloudName != "" && c.CloudAPIKey != "" && c.CloudAPISecret != ""
}

func (c Config) UsesRedis() bool { return c.RateStore == StoreRedis || c.StatsEnabled }
