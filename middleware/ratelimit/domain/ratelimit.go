package domain

// Camada de domínio do rate limit.
//
// Regras e contratos (interfaces/tipos) sem dependência de net/http.

import (
	"context"
	"time"
)

// Key identifica o cliente (ex: IP, header de API key).
type Key string

// Class é a classe de tráfego. Cada classe tem sua própria cota, independente das outras.
type Class string

const (
	ClassAuth Class = "auth"
	ClassAPI  Class = "api"
)

// EntryKey é a chave composta (identidade, classe) usada pelos stores.
type EntryKey struct {
	Identity Key
	Class    Class
}

func (k EntryKey) String() string { return string(k.Class) + ":" + string(k.Identity) }

// Policy define a janela fixa de uma classe de tráfego.
type Policy struct {
	Window      time.Duration
	MaxRequests int
}

// Entry é o uso de uma identidade dentro da janela corrente.
//
// Quando now >= ResetAt a entrada está vencida e deve ser tratada como ausente.
type Entry struct {
	Count   int
	ResetAt time.Time
}

// Expired informa se a janela já virou.
func (e Entry) Expired(now time.Time) bool { return !now.Before(e.ResetAt) }

// CounterStore guarda os contadores por (identidade, classe).
//
// Increment é a primitiva atômica: cria ou reinicia a entrada quando ausente/vencida
// (Count=0, ResetAt=now+window) e então incrementa. Implementações podem ser
// em memória (processo único) ou compartilhadas (Redis) para várias instâncias.
type CounterStore interface {
	Increment(ctx context.Context, key EntryKey, window time.Duration, now time.Time) (Entry, error)
	// Get retorna ok=false quando não existe entrada válida.
	Get(ctx context.Context, key EntryKey, now time.Time) (Entry, bool, error)
	Delete(ctx context.Context, key EntryKey) error
	Clear(ctx context.Context) error
}

type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
	// RetryAfter é o valor a ser retornado em Retry-After quando bloquear.
	// Se 0, não há recomendação.
	RetryAfter time.Duration
}
