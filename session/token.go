// Package session emite e verifica a credencial de sessão da galeria: um JWT HS256
// autocontido com o nível de permissão e a expiração absoluta.
//
// Não existe tabela de sessões no servidor; a verificação depende apenas do token,
// do segredo e do relógio. Um token não pode ser revogado antes de expirar.
package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingSecret     = errors.New("session: signing secret is required")
	ErrInvalidDuration   = errors.New("session: duration must be positive")
	ErrInvalidPermission = errors.New("session: invalid permission")
)

// Permission é o nível de acesso: upload implica view.
type Permission string

const (
	PermissionUpload Permission = "upload"
	PermissionView   Permission = "view"
)

func (p Permission) Valid() bool { return p == PermissionUpload || p == PermissionView }

// User é o conteúdo decodificado de um token válido.
type User struct {
	Permission Permission `json:"permission"`
	// ExpiresAt em segundos Unix.
	ExpiresAt int64 `json:"expiresAt"`
}

// Status explica o resultado de Inspect.
type Status int

const (
	StatusValid Status = iota
	StatusMissing
	StatusExpired
	StatusInvalid
)

func (s Status) String() string {
	switch s {
	case StatusValid:
		return "valid"
	case StatusMissing:
		return "missing"
	case StatusExpired:
		return "expired"
	default:
		return "invalid"
	}
}

// Claims é o payload assinado.
type Claims struct {
	Permission Permission `json:"permission"`
	jwt.RegisteredClaims
}

type Service struct {
	secret   []byte
	duration time.Duration
	now      func() time.Time
}

type Option func(*Service)

// WithClock troca o relógio (testes de expiração sem sleep).
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService valida a configuração de boot. Estes são os únicos erros "de verdade"
// do pacote; falhas de verificação de token são valores, não erros.
func NewService(secret string, duration time.Duration, opts ...Option) (*Service, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	if duration <= 0 {
		return nil, ErrInvalidDuration
	}
	s := &Service{secret: []byte(secret), duration: duration, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Duration é o tempo de vida configurado da sessão.
func (s *Service) Duration() time.Duration { return s.duration }

// CreateToken emite um token com exp = agora + duração da sessão.
func (s *Service) CreateToken(p Permission) (string, error) {
	if !p.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidPermission, p)
	}
	now := s.now()
	claims := Claims{
		Permission: p,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.duration)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("session: sign token: %w", err)
	}
	return signed, nil
}

// VerifyToken devolve nil para qualquer token inválido, adulterado ou expirado.
func (s *Service) VerifyToken(token string) *User {
	u, _ := s.Inspect(token)
	return u
}

// Inspect verifica o token e diz por que falhou.
//
// Expirado só é reportado quando a assinatura confere: um exp não autenticado
// não é confiável, então token adulterado é sempre StatusInvalid.
func (s *Service) Inspect(token string) (*User, Status) {
	if token == "" {
		return nil, StatusMissing
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, s.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithStrictDecoding(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, StatusExpired
		}
		return nil, StatusInvalid
	}

	if !claims.Permission.Valid() || claims.ExpiresAt == nil {
		return nil, StatusInvalid
	}
	// segunda checagem explícita: exp precisa ser estritamente maior que agora
	if claims.ExpiresAt.Unix() <= s.now().Unix() {
		return nil, StatusExpired
	}

	return &User{Permission: claims.Permission, ExpiresAt: claims.ExpiresAt.Unix()}, StatusValid
}

func (s *Service) keyFunc(t *jwt.Token) (any, error) {
	return s.secret, nil
}

func HasUploadPermission(u *User) bool { return u != nil && u.Permission == PermissionUpload }

func HasViewPermission(u *User) bool {
	return u != nil && (u.Permission == PermissionUpload || u.Permission == PermissionView)
}
