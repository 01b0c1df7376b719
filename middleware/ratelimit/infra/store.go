package infra

import (
	"context"
	"sync"
	"time"

	"gallery-gateway/middleware/ratelimit/domain"
)

// MemoryStore guarda contadores de janela fixa em memória, por (identidade, classe).
//
// Serve para deploy de processo único: não persiste entre restarts e não é
// compartilhado entre instâncias (para isso use RedisStore).
// Entradas vencidas são removidas de forma oportunista nos acessos (no máximo uma
// varredura por purgeEvery) e pelo janitor.
type MemoryStore struct {
	mu           sync.Mutex
	entries      map[domain.EntryKey]domain.Entry
	cleanupEvery time.Duration
	purgeEvery   time.Duration
	lastPurge    time.Time
	now          func() time.Time
}

type StoreOption func(*MemoryStore)

func WithCleanupEvery(d time.Duration) StoreOption {
	return func(s *MemoryStore) { s.cleanupEvery = d }
}

// WithPurgeEvery controla a varredura oportunista feita dentro de Increment.
// 0 varre em toda chamada.
func WithPurgeEvery(d time.Duration) StoreOption {
	return func(s *MemoryStore) { s.purgeEvery = d }
}

// WithStoreClock troca o relógio usado pelo janitor (Cleanup).
func WithStoreClock(now func() time.Time) StoreOption {
	return func(s *MemoryStore) { s.now = now }
}

func NewMemoryStore(opts ...StoreOption) *MemoryStore {
	s := &MemoryStore{
		entries:      make(map[domain.EntryKey]domain.Entry),
		cleanupEvery: 2 * time.Minute,
		purgeEvery:   10 * time.Second,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) CleanupEvery() time.Duration { return s.cleanupEvery }

// Increment implementa domain.CounterStore.
func (s *MemoryStore) Increment(_ context.Context, key domain.EntryKey, window time.Duration, now time.Time) (domain.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if now.Sub(s.lastPurge) >= s.purgeEvery {
		s.purgeLocked(now)
		s.lastPurge = now
	}

	ent, ok := s.entries[key]
	if !ok || ent.Expired(now) {
		ent = domain.Entry{Count: 0, ResetAt: now.Add(window)}
	}
	ent.Count++
	s.entries[key] = ent
	return ent, nil
}

func (s *MemoryStore) Get(_ context.Context, key domain.EntryKey, now time.Time) (domain.Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ent, ok := s.entries[key]
	if !ok {
		return domain.Entry{}, false, nil
	}
	if ent.Expired(now) {
		delete(s.entries, key)
		return domain.Entry{}, false, nil
	}
	return ent, true, nil
}

func (s *MemoryStore) Delete(_ context.Context, key domain.EntryKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

func (s *MemoryStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[domain.EntryKey]domain.Entry)
	return nil
}

// Len devolve o número de entradas guardadas (inclusive as ainda não purgadas).
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Cleanup remove todas as entradas cuja janela já virou.
func (s *MemoryStore) Cleanup() {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.purgeLocked(now)
}

func (s *MemoryStore) purgeLocked(now time.Time) {
	for k, ent := range s.entries {
		if ent.Expired(now) {
			delete(s.entries, k)
		}
	}
}

// StartJanitor inicia uma goroutine que limpa entradas vencidas periodicamente.
// Pare cancelando o contexto.
func (s *MemoryStore) StartJanitor(ctx DoneContext) {
	if s.cleanupEvery <= 0 {
		return
	}

	t := time.NewTicker(s.cleanupEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.Cleanup()
			}
		}
	}()
}

// DoneContext é o mínimo necessário para aceitar context.Context no janitor.
type DoneContext interface {
	Done() <-chan struct{}
}
