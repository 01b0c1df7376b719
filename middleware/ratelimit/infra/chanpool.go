package infra

import (
	"context"
	"sync"

	"gallery-gateway/middleware/ratelimit/domain"
)

type chanPool struct {
	sem chan struct{}
}

// NewChanPool cria um semáforo baseado em channel com capacidade `size`.
func NewChanPool(size int) domain.SlotPool {
	return &chanPool{sem: make(chan struct{}, size)}
}

func (p *chanPool) Acquire(ctx context.Context) (func(), bool) {
	// ctx já encerrado não deve pegar vaga, mesmo havendo espaço
	if ctx.Err() != nil {
		return nil, false
	}
	select {
	case p.sem <- struct{}{}:
		var once sync.Once
		return func() { once.Do(func() { <-p.sem }) }, true
	case <-ctx.Done():
		return nil, false
	}
}

// InUse devolve quantas vagas estão ocupadas agora.
func InUse(p domain.SlotPool) int {
	if cp, ok := p.(*chanPool); ok {
		return len(cp.sem)
	}
	return 0
}
