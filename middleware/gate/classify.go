// Package gate é o ponto único de controle por onde toda requisição de página passa
// antes de chegar ao upstream/arquivos estáticos.
//
// Cada caminho é classificado de forma estática (public, static, protected-view,
// protected-upload) e o cookie de sessão é verificado só quando o caminho é protegido.
// O resultado é sempre um de três veredictos: Allow, Redirect ou AllowNoCache.
package gate

import (
	"path"
	"strings"
)

type Class int

const (
	ClassPublic Class = iota
	ClassStatic
	ClassProtectedView
	ClassProtectedUpload
)

func (c Class) String() string {
	switch c {
	case ClassPublic:
		return "public"
	case ClassStatic:
		return "static"
	case ClassProtectedView:
		return "protected-view"
	default:
		return "protected-upload"
	}
}

var staticPrefixes = []string{"/_next/", "/static/", "/assets/", "/favicon"}

// Classify mapeia qualquer caminho para exatamente uma classe.
// O que não casa com nenhuma regra é protected-view. A classificação é sempre
// feita sobre a forma canônica do caminho, a mesma que o servidor de arquivos vai abrir.
func Classify(p string) Class {
	p = cleanPath(p)

	switch {
	case p == "/" || p == "/login" || p == "/api" || strings.HasPrefix(p, "/api/"):
		return ClassPublic
	case hasAnyPrefix(p, staticPrefixes) || strings.Contains(path.Base(p), "."):
		return ClassStatic
	case strings.HasPrefix(p, "/upload"):
		return ClassProtectedUpload
	default:
		return ClassProtectedView
	}
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// cleanPath resolve "." e "..", junta barras repetidas e mantém a barra final,
// como o ServeMux faz.
func cleanPath(p string) string {
	if p == "" {
		return "/"
	}
	if p[0] != '/' {
		p = "/" + p
	}
	np := path.Clean(p)
	if p[len(p)-1] == '/' && np != "/" {
		np += "/"
	}
	return np
}
