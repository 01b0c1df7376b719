package application

import (
	"context"
	"errors"
	"time"

	"gallery-gateway/middleware/ratelimit/domain"
)

// DefaultPolicies são os valores de produção: auth 50 a cada 5 minutos, API 60 por minuto.
func DefaultPolicies() map[domain.Class]domain.Policy {
	return map[domain.Class]domain.Policy{
		domain.ClassAuth: {Window: 5 * time.Minute, MaxRequests: 50},
		domain.ClassAPI:  {Window: 1 * time.Minute, MaxRequests: 60},
	}
}

// Service concentra a regra de janela fixa do rate limit.
//
// Ele não sabe nada sobre HTTP (headers/status), apenas retorna uma decisão.
// Nunca retorna erro: falha do store libera a requisição (fail open) e é
// reportada em OnError.
type Service struct {
	Store    domain.CounterStore
	Policies map[domain.Class]domain.Policy
	Now      func() time.Time
	OnError  func(key domain.EntryKey, err error)
}

func (s Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Check contabiliza uma requisição de `identity` na classe `class` e decide.
//
// Requisições negadas também consomem a cota (o incremento não é desfeito).
func (s Service) Check(ctx context.Context, identity domain.Key, class domain.Class) domain.Decision {
	pol, ok := s.Policies[class]
	if s.Store == nil || !ok || pol.MaxRequests <= 0 || pol.Window <= 0 {
		return domain.Decision{Allowed: true}
	}

	now := s.now()
	key := domain.EntryKey{Identity: identity, Class: class}

	ent, err := s.Store.Increment(ctx, key, pol.Window, now)
	if err != nil {
		if s.OnError != nil {
			s.OnError(key, err)
		}
		return domain.Decision{Allowed: true, Limit: pol.MaxRequests, Remaining: pol.MaxRequests, ResetAt: now.Add(pol.Window)}
	}

	dec := domain.Decision{
		Allowed:   ent.Count <= pol.MaxRequests,
		Limit:     pol.MaxRequests,
		Remaining: max(0, pol.MaxRequests-ent.Count),
		ResetAt:   ent.ResetAt,
	}
	if !dec.Allowed {
		dec.RetryAfter = ent.ResetAt.Sub(now)
		if dec.RetryAfter < time.Second {
			dec.RetryAfter = time.Second
		}
	}
	return dec
}

// Peek lê a cota corrente de `identity` sem consumir nada.
// Allowed indica se a próxima requisição passaria.
func (s Service) Peek(ctx context.Context, identity domain.Key, class domain.Class) (domain.Decision, error) {
	pol, ok := s.Policies[class]
	if s.Store == nil || !ok || pol.MaxRequests <= 0 || pol.Window <= 0 {
		return domain.Decision{Allowed: true}, nil
	}

	now := s.now()
	ent, found, err := s.Store.Get(ctx, domain.EntryKey{Identity: identity, Class: class}, now)
	if err != nil {
		return domain.Decision{}, err
	}
	if !found {
		return domain.Decision{Allowed: true, Limit: pol.MaxRequests, Remaining: pol.MaxRequests, ResetAt: now.Add(pol.Window)}, nil
	}
	return domain.Decision{
		Allowed:   ent.Count < pol.MaxRequests,
		Limit:     pol.MaxRequests,
		Remaining: max(0, pol.MaxRequests-ent.Count),
		ResetAt:   ent.ResetAt,
	}, nil
}

// Forget apaga os contadores de `identity` em todas as classes configuradas.
func (s Service) Forget(ctx context.Context, identity domain.Key) error {
	if s.Store == nil {
		return nil
	}
	var errs []error
	for class := range s.Policies {
		if err := s.Store.Delete(ctx, domain.EntryKey{Identity: identity, Class: class}); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Reset apaga todos os contadores (uso em desenvolvimento).
func (s Service) Reset(ctx context.Context) error {
	if s.Store == nil {
		return nil
	}
	return s.Store.Clear(ctx)
}
