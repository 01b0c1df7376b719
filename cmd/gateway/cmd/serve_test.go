package cmd

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gallery-gateway/config"
	applog "gallery-gateway/internal/log"
	"gallery-gateway/session"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("login page"), 0o600))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "gallery"), 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "gallery", "index.html"), []byte("gallery page"), 0o600))

	return config.Config{
		Env:             "production",
		JWTSecret:       "serve-test-secret",
		UploadPassword:  "up",
		GalleryPassword: "view",
		SessionDuration: 1,
		StaticDir:       dir,
		AuthRateWindow:  time.Minute,
		AuthRateMax:     2,
		APIRateWindow:   time.Minute,
		APIRateMax:      10,
		RateStore:       config.StoreMemory,
		RatePrefix:      "ratelimit",
		StatsPrefix:     "admission:stats",
		StatsTTL:        time.Hour,
	}
}

func startGateway(t *testing.T, cfg config.Config) *httptest.Server {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	h, closeFn, err := buildHandler(ctx, cfg, applog.NewWriter(io.Discard, "error", "text"))
	require.NoError(t, err)
	t.Cleanup(closeFn)

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func noRedirect() *http.Client {
	return &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }}
}

func get(t *testing.T, url, token string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	if token != "" {
		req.AddCookie(&http.Cookie{Name: session.CookieName, Value: token})
	}
	resp, err := noRedirect().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func login(t *testing.T, url, password string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Post(url+"/api/auth", "application/json", strings.NewReader(`{"password":"`+password+`"}`))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	for _, c := range resp.Cookies() {
		if c.Name == session.CookieName {
			return resp, c.Value
		}
	}
	return resp, ""
}

func TestGateway_HealthAndLoginPage(t *testing.T) {
	srv := startGateway(t, testConfig(t))

	resp := get(t, srv.URL+"/health", "")
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "ok", string(body))

	resp = get(t, srv.URL+"/", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ = io.ReadAll(resp.Body)
	assert.Equal(t, "login page", string(body))
}

func TestGateway_GateRedirectsThenAdmitsAfterLogin(t *testing.T) {
	srv := startGateway(t, testConfig(t))

	resp := get(t, srv.URL+"/gallery/", "")
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/?error=no_token&from=gallery%2F", resp.Header.Get("Location"))

	resp, token := login(t, srv.URL, "view")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, token)

	resp = get(t, srv.URL+"/gallery/", token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "no-cache, no-store, must-revalidate", resp.Header.Get("Cache-Control"))
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "gallery page", string(body))

	resp = get(t, srv.URL+"/upload", token)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/?error=insufficient_permissions&from=upload", resp.Header.Get("Location"))
}

func TestGateway_ProxiesToUpstream(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("upstream:" + r.URL.Path))
	}))
	t.Cleanup(upstream.Close)

	cfg := testConfig(t)
	cfg.UpstreamURL = upstream.URL
	srv := startGateway(t, cfg)

	_, token := login(t, srv.URL, "up")
	resp := get(t, srv.URL+"/upload", token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "upstream:/upload", string(body))
}

func TestGateway_RedisBackedLimiterSharedAcrossInstances(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t)
	cfg.RateStore = config.StoreRedis
	cfg.RedisAddr = mr.Addr()
	cfg.StatsEnabled = true

	a := startGateway(t, cfg)
	b := startGateway(t, cfg)

	resp, _ := login(t, a.URL, "wrong")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp, _ = login(t, b.URL, "wrong")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// a cota é do cliente, não da instância
	resp, _ = login(t, a.URL, "view")
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	assert.NotEmpty(t, mr.Keys())
	assert.Equal(t, "1", mr.HGet("admission:stats:reason", "rate_limited"))
}

func TestGateway_FailsWhenRedisUnreachable(t *testing.T) {
	cfg := testConfig(t)
	cfg.RateStore = config.StoreRedis
	cfg.RedisAddr = "127.0.0.1:1"

	_, _, err := buildHandler(context.Background(), cfg, applog.NewWriter(io.Discard, "error", "text"))
	assert.Error(t, err)
}

func TestTokenCommand_MintsVerifiableToken(t *testing.T) {
	t.Setenv("JWT_SECRET", "cli-secret")
	t.Setenv("SESSION_DURATION", "2")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"token", "--permission", "upload", "--env-file", filepath.Join(t.TempDir(), "none.env")})
	t.Cleanup(func() { rootCmd.SetArgs(nil); rootCmd.SetOut(nil) })

	require.NoError(t, rootCmd.Execute())

	svc, err := session.NewService("cli-secret", 2*time.Hour)
	require.NoError(t, err)
	u := svc.VerifyToken(strings.TrimSpace(out.String()))
	require.NotNil(t, u)
	assert.Equal(t, session.PermissionUpload, u.Permission)
}

func TestTokenCommand_RejectsUnknownPermission(t *testing.T) {
	t.Setenv("JWT_SECRET", "cli-secret")

	rootCmd.SetArgs([]string{"token", "--permission", "admin", "--env-file", filepath.Join(t.TempDir(), "none.env")})
	rootCmd.SetErr(io.Discard)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetErr(nil)
		tokenPermission = string(session.PermissionView)
	})

	assert.Error(t, rootCmd.Execute())
}
