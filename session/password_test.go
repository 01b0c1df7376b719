package session

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestPasswordMatcher_PlainSecrets(t *testing.T) {
	m := PasswordMatcher{Upload: "up-secret", View: "view-secret"}

	p, ok := m.Match("up-secret")
	assert.True(t, ok)
	assert.Equal(t, PermissionUpload, p)

	p, ok = m.Match("view-secret")
	assert.True(t, ok)
	assert.Equal(t, PermissionView, p)

	_, ok = m.Match("wrong")
	assert.False(t, ok)

	_, ok = m.Match("")
	assert.False(t, ok)
}

func TestPasswordMatcher_UploadWinsWhenBothEqual(t *testing.T) {
	m := PasswordMatcher{Upload: "same", View: "same"}
	p, ok := m.Match("same")
	assert.True(t, ok)
	assert.Equal(t, PermissionUpload, p)
}

func TestPasswordMatcher_EmptyViewSecretNeverMatches(t *testing.T) {
	m := PasswordMatcher{Upload: "up"}
	_, ok := m.Match("anything")
	assert.False(t, ok)
}

func TestPasswordMatcher_BcryptSecret(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("gallery"), bcrypt.MinCost)
	require.NoError(t, err)

	m := PasswordMatcher{Upload: "up", View: string(hash)}
	p, ok := m.Match("gallery")
	assert.True(t, ok)
	assert.Equal(t, PermissionView, p)

	_, ok = m.Match(string(hash))
	assert.False(t, ok, "the hash itself is not the password")
}

func TestCookies_SetAndClear(t *testing.T) {
	w := httptest.NewRecorder()
	SetCookie(w, "tok", 3600, true)
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	c := cookies[0]
	assert.Equal(t, CookieName, c.Name)
	assert.Equal(t, "tok", c.Value)
	assert.Equal(t, "/", c.Path)
	assert.True(t, c.HttpOnly)
	assert.True(t, c.Secure)
	assert.Equal(t, http.SameSiteStrictMode, c.SameSite)
	assert.Equal(t, 3600, c.MaxAge)

	w = httptest.NewRecorder()
	ClearCookie(w, false)
	header := w.Header().Get("Set-Cookie")
	assert.Contains(t, header, "auth-token=;")
	assert.Contains(t, header, "Max-Age=0")
	assert.Contains(t, header, "SameSite=Strict")
	assert.NotContains(t, header, "Secure")
}

func TestUserFromRequest(t *testing.T) {
	c := &clock{t: time.Now()}
	svc := newTestService(t, c, 1)
	tok, err := svc.CreateToken(PermissionView)
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Nil(t, UserFromRequest(svc, r))

	r.AddCookie(&http.Cookie{Name: CookieName, Value: tok})
	u := UserFromRequest(svc, r)
	require.NotNil(t, u)
	assert.Equal(t, PermissionView, u.Permission)
}
