package session

import "net/http"

const CookieName = "auth-token"

// SetCookie grava o token com o mesmo tempo de vida da sessão.
func SetCookie(w http.ResponseWriter, token string, maxAgeSeconds int, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   maxAgeSeconds,
	})
}

// ClearCookie substitui o cookie por um vazio que expira imediatamente (Max-Age=0).
func ClearCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   -1,
	})
}

func TokenFromRequest(r *http.Request) string {
	c, err := r.Cookie(CookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

// UserFromRequest lê e verifica o cookie de sessão; nil quando ausente ou inválido.
func UserFromRequest(s *Service, r *http.Request) *User {
	return s.VerifyToken(TokenFromRequest(r))
}
