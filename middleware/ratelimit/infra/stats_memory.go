package infra

import (
	"context"
	"sync"

	"gallery-gateway/middleware/ratelimit/domain"
)

type Counters struct {
	Allowed int64 `json:"allowed"`
	Denied  int64 `json:"denied"`
}

func (c *Counters) add(allowed bool) {
	if allowed {
		c.Allowed++
		return
	}
	c.Denied++
}

// Snapshot é uma cópia consistente dos contadores do MemoryStatsStore.
type Snapshot struct {
	Total    Counters            `json:"total"`
	ByClass  map[string]Counters `json:"by_class"`
	ByReason map[string]int64    `json:"by_reason"`
	ByKey    map[string]Counters `json:"by_key,omitempty"`
}

// MemoryStatsStore é uma implementação simples em memória.
// Útil para testes e desenvolvimento.
//
// Não faz expiração e não é indicada para produção.
type MemoryStatsStore struct {
	mu       sync.Mutex
	total    Counters
	byClass  map[string]Counters
	byReason map[string]int64
	byKey    map[string]Counters

	trackKeys bool
}

type MemoryStatsOption func(*MemoryStatsStore)

func WithTrackKeys(track bool) MemoryStatsOption {
	return func(s *MemoryStatsStore) { s.trackKeys = track }
}

func NewMemoryStatsStore(opts ...MemoryStatsOption) *MemoryStatsStore {
	s := &MemoryStatsStore{
		byClass:  make(map[string]Counters),
		byReason: make(map[string]int64),
		byKey:    make(map[string]Counters),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStatsStore) Record(_ context.Context, ev domain.StatsEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.total.add(ev.Allowed)

	class := string(ev.Class)
	if class == "" {
		class = "gate"
	}
	c := s.byClass[class]
	c.add(ev.Allowed)
	s.byClass[class] = c

	if !ev.Allowed && ev.Reason != "" {
		s.byReason[ev.Reason]++
	}

	if s.trackKeys && ev.Key != "" {
		k := s.byKey[string(ev.Key)]
		k.add(ev.Allowed)
		s.byKey[string(ev.Key)] = k
	}
	return nil
}

func (s *MemoryStatsStore) Total() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

func (s *MemoryStatsStore) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := Snapshot{
		Total:    s.total,
		ByClass:  make(map[string]Counters, len(s.byClass)),
		ByReason: make(map[string]int64, len(s.byReason)),
	}
	for k, v := range s.byClass {
		out.ByClass[k] = v
	}
	for k, v := range s.byReason {
		out.ByReason[k] = v
	}
	if s.trackKeys {
		out.ByKey = make(map[string]Counters, len(s.byKey))
		for k, v := range s.byKey {
			out.ByKey[k] = v
		}
	}
	return out
}
