package gate

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"gallery-gateway/middleware/ratelimit/domain"
	"gallery-gateway/session"
)

type Outcome int

const (
	Allow Outcome = iota
	Redirect
	AllowNoCache
)

func (o Outcome) String() string {
	switch o {
	case Allow:
		return "allow"
	case Redirect:
		return "redirect"
	default:
		return "allow-no-cache"
	}
}

// Reason é o código enviado na query `error` do redirect para o login.
type Reason string

const (
	ReasonNoToken                 Reason = "no_token"
	ReasonSessionExpired          Reason = "session_expired"
	ReasonInsufficientPermissions Reason = "insufficient_permissions"
	ReasonInvalidToken            Reason = "invalid_token"
)

type Verdict struct {
	Outcome  Outcome
	Class    Class
	Reason   Reason
	Location string
	User     *session.User
}

// Verifier é o que o gate precisa do serviço de sessão.
type Verifier interface {
	Inspect(token string) (*session.User, session.Status)
}

type Gate struct {
	Tokens Verifier
	// LoginPath é para onde os redirects apontam ("/" por padrão).
	LoginPath string
	Stats     domain.StatsStore
	Logger    *slog.Logger
}

// Decide avalia um caminho e o token do cookie (vazio se ausente).
func (g Gate) Decide(p, token string) Verdict {
	p = cleanPath(p)
	class := Classify(p)
	if class == ClassPublic || class == ClassStatic {
		return Verdict{Outcome: Allow, Class: class}
	}

	if g.Tokens == nil {
		return g.redirect(class, p, ReasonInvalidToken)
	}
	user, status := g.Tokens.Inspect(token)
	switch status {
	case session.StatusValid:
	case session.StatusMissing:
		return g.redirect(class, p, ReasonNoToken)
	case session.StatusExpired:
		return g.redirect(class, p, ReasonSessionExpired)
	default:
		return g.redirect(class, p, ReasonInvalidToken)
	}

	if class == ClassProtectedUpload && !session.HasUploadPermission(user) {
		return g.redirect(class, p, ReasonInsufficientPermissions)
	}
	if !session.HasViewPermission(user) {
		return g.redirect(class, p, ReasonInvalidToken)
	}
	return Verdict{Outcome: AllowNoCache, Class: class, User: user}
}

func (g Gate) redirect(class Class, p string, reason Reason) Verdict {
	return Verdict{Outcome: Redirect, Class: class, Reason: reason, Location: g.loginURL(p, reason)}
}

// loginURL preserva o caminho original em `from` (sem a barra inicial).
// "/" e "/gallery", o destino padrão pós-login, não levam `from`.
func (g Gate) loginURL(p string, reason Reason) string {
	login := g.LoginPath
	if login == "" {
		login = "/"
	}
	q := url.Values{}
	q.Set("error", string(reason))
	if p != "/" && p != "/gallery" {
		q.Set("from", strings.TrimPrefix(p, "/"))
	}
	return login + "?" + q.Encode()
}

// Middleware aplica o veredicto antes de `next`.
// Caminhos fora da forma canônica nunca são repassados: o cliente é redirecionado
// para a forma limpa e passa pelo gate de novo.
func (g Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if clean := cleanPath(r.URL.Path); clean != r.URL.Path {
			u := *r.URL
			u.Path = clean
			u.RawPath = ""
			setNoCache(w.Header())
			http.Redirect(w, r, u.RequestURI(), http.StatusMovedPermanently)
			return
		}

		v := g.Decide(r.URL.Path, session.TokenFromRequest(r))
		g.record(r, v)

		switch v.Outcome {
		case Allow:
			next.ServeHTTP(w, r)
		case Redirect:
			if g.Logger != nil {
				g.Logger.Debug("gate redirect",
					slog.String("path", r.URL.Path),
					slog.String("reason", string(v.Reason)),
				)
			}
			setNoCache(w.Header())
			http.Redirect(w, r, v.Location, http.StatusSeeOther)
		default:
			setNoCache(w.Header())
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), v.User)))
		}
	})
}

func (g Gate) record(r *http.Request, v Verdict) {
	if g.Stats == nil {
		return
	}
	_ = g.Stats.Record(r.Context(), domain.StatsEvent{
		Allowed: v.Outcome != Redirect,
		Reason:  string(v.Reason),
		Method:  r.Method,
		Path:    r.URL.Path,
		At:      time.Now(),
	})
}

// setNoCache impede que qualquer intermediário ou o browser guarde a resposta,
// que depende de quem está autenticado.
func setNoCache(h http.Header) {
	h.Set("Cache-Control", "no-cache, no-store, must-revalidate")
	h.Set("Pragma", "no-cache")
	h.Set("Expires", "0")
}

type userKey struct{}

func WithUser(ctx context.Context, u *session.User) context.Context {
	return context.WithValue(ctx, userKey{}, u)
}

// UserFromContext devolve o usuário verificado pelo gate, ou nil.
func UserFromContext(ctx context.Context) *session.User {
	u, _ := ctx.Value(userKey{}).(*session.User)
	return u
}
