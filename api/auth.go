package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"gallery-gateway/middleware/ratelimit/domain"
	"gallery-gateway/session"
)

// Login troca uma senha por um cookie de sessão. Também aceita action=logout.
func (a *API) Login(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxAuthBody)

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if maxErr := new(http.MaxBytesError); errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	// logout nunca consome cota
	if req.Action == "logout" {
		a.Logout(w, r)
		return
	}

	if !a.limiter.Enforce(w, r, domain.ClassAuth, "Too many login attempts. Please try again later.") {
		return
	}

	if req.Password == "" {
		writeError(w, http.StatusBadRequest, "Password is required")
		return
	}

	perm, ok := a.passwords.Match(req.Password)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Invalid password")
		return
	}

	token, err := a.sessions.CreateToken(perm)
	if err != nil {
		a.logger.Error("create session token", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "Authentication failed")
		return
	}

	session.SetCookie(w, token, int(a.sessions.Duration().Seconds()), a.secureCookies)
	writeJSON(w, http.StatusOK, LoginResponse{
		Success:    true,
		Permission: perm,
		Message:    fmt.Sprintf("Logged in with %s access", perm),
	})
}

// Logout apaga o cookie. Idempotente.
func (a *API) Logout(w http.ResponseWriter, r *http.Request) {
	session.ClearCookie(w, a.secureCookies)
	setCORS(w.Header(), "POST, OPTIONS", "Content-Type")
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true, Message: "Logged out successfully"})
}

func (a *API) AuthStatus(w http.ResponseWriter, r *http.Request) {
	u := session.UserFromRequest(a.sessions, r)
	if u == nil {
		writeJSON(w, http.StatusOK, AuthStatusResponse{Authenticated: false})
		return
	}
	writeJSON(w, http.StatusOK, AuthStatusResponse{Authenticated: true, Permission: u.Permission})
}

// ResetRateLimit zera o store de contadores. Só em development.
func (a *API) ResetRateLimit(w http.ResponseWriter, r *http.Request) {
	if !a.development {
		writeError(w, http.StatusForbidden, "Not available in production")
		return
	}
	if err := a.limiter.Service.Reset(r.Context()); err != nil {
		a.logger.Error("clear rate limit store", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "Failed to clear rate limit store")
		return
	}
	a.logger.Info("rate limit store cleared")
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true, Message: "Rate limit store cleared successfully"})
}
