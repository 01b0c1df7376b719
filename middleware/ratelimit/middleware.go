package ratelimit

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"gallery-gateway/middleware/ratelimit/application"
	"gallery-gateway/middleware/ratelimit/domain"
)

type KeyFunc func(r *http.Request) string

func DefaultKeyFunc(keyHeader string, trustXFF bool) KeyFunc {
	return func(r *http.Request) string {
		if keyHeader != "" {
			if v := strings.TrimSpace(r.Header.Get(keyHeader)); v != "" {
				return v
			}
		}

		if trustXFF {
			// pega o primeiro IP do X-Forwarded-For (cliente original)
			if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
				if ip := strings.TrimSpace(strings.Split(xff, ",")[0]); ip != "" {
					return ip
				}
			}
			if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
				return ip
			}
		}

		// fallback: RemoteAddr
		host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
		if err == nil && host != "" {
			return host
		}
		if r.RemoteAddr != "" {
			return r.RemoteAddr
		}
		return "unknown"
	}
}

// Enforcer aplica o rate limit dentro de um handler.
type Enforcer struct {
	Service application.Service
	KeyFn   KeyFunc
	Stats   domain.StatsStore
	Logger  *slog.Logger
	// AddHeaders também envia X-RateLimit-* em respostas permitidas.
	AddHeaders bool
}

type tooManyRequests struct {
	Error     string `json:"error"`
	ResetTime int64  `json:"resetTime"`
	Remaining int    `json:"remaining"`
}

// Identify devolve a identidade com que `r` é contabilizada.
func (e Enforcer) Identify(r *http.Request) domain.Key {
	keyFn := e.KeyFn
	if keyFn == nil {
		keyFn = DefaultKeyFunc("", false)
	}
	return domain.Key(keyFn(r))
}

// Enforce contabiliza a requisição na classe `class`.
//
// Retorna true quando o handler pode seguir. Quando a cota acabou, responde 429
// com `message` e devolve false; o handler não deve escrever mais nada.
func (e Enforcer) Enforce(w http.ResponseWriter, r *http.Request, class domain.Class, message string) bool {
	key := e.Identify(r)

	dec := e.Service.Check(r.Context(), key, class)
	if e.Stats != nil {
		ev := domain.StatsEvent{
			Key:     key,
			Class:   class,
			Allowed: dec.Allowed,
			Method:  r.Method,
			Path:    r.URL.Path,
			At:      time.Now(),
		}
		if !dec.Allowed {
			ev.Reason = "rate_limited"
		}
		_ = e.Stats.Record(r.Context(), ev)
	}

	if dec.Allowed {
		if e.AddHeaders && dec.Limit > 0 {
			writeHeaders(w, dec)
		}
		return true
	}

	if e.Logger != nil {
		e.Logger.Warn("rate limit exceeded",
			slog.String("class", string(class)),
			slog.String("key", string(key)),
			slog.String("path", r.URL.Path),
			slog.Time("reset_at", dec.ResetAt),
		)
	}

	writeHeaders(w, dec)
	w.Header().Set("Retry-After", formatSeconds(dec.RetryAfter))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(tooManyRequests{
		Error:     message,
		ResetTime: dec.ResetAt.UnixMilli(),
		Remaining: dec.Remaining,
	})
	return false
}

func writeHeaders(w http.ResponseWriter, dec domain.Decision) {
	w.Header().Set("X-RateLimit-Limit", formatInt(dec.Limit))
	w.Header().Set("X-RateLimit-Remaining", formatInt(dec.Remaining))
	w.Header().Set("X-RateLimit-Reset", formatUnixMilli(dec.ResetAt))
}
