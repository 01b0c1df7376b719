package session

import (
	"crypto/subtle"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// PasswordMatcher compara a senha enviada com as duas senhas compartilhadas.
//
// Cada segredo pode estar em texto puro ou como hash bcrypt ($2a$, $2b$, $2y$).
// A senha de upload é testada primeiro.
type PasswordMatcher struct {
	Upload string
	View   string
}

func (m PasswordMatcher) Match(password string) (Permission, bool) {
	if password == "" {
		return "", false
	}
	if matchSecret(m.Upload, password) {
		return PermissionUpload, true
	}
	if matchSecret(m.View, password) {
		return PermissionView, true
	}
	return "", false
}

func matchSecret(secret, password string) bool {
	if secret == "" {
		return false
	}
	if isBcrypt(secret) {
		return bcrypt.CompareHashAndPassword([]byte(secret), []byte(password)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(secret), []byte(password)) == 1
}

func isBcrypt(s string) bool {
	return strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$")
}
