package domain

import (
	"context"
	"time"
)

// StatsEvent representa uma decisão de admissão (rate limit ou gate).
//
// Ele é propositalmente "agnóstico de HTTP": Method/Path são strings genéricas.
//
// Observação: cuidado com cardinalidade (ex.: salvar Key/Path sem controle pode
// explodir o número de chaves em uma base como Redis).
type StatsEvent struct {
	Key     Key
	Class   Class
	Allowed bool
	// Reason é o motivo da negação (ex: "no_token", "rate_limited"). Vazio quando permitido.
	Reason string

	Method string
	Path   string

	At time.Time
}

// StatsStore é a estratégia de persistência para estatísticas de admissão.
//
// Implementações podem armazenar em Redis, memória, etc.
// Quem chama deve tratar erro como best-effort (não derrubar request).
type StatsStore interface {
	Record(ctx context.Context, ev StatsEvent) error
}
