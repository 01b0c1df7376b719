package application

import (
	"context"
	"time"

	"gallery-gateway/middleware/ratelimit/domain"
)

// ConcurrencyService limita quantas operações caras (ex: uploads de até 10MB)
// rodam ao mesmo tempo, sem saber nada sobre HTTP.
type ConcurrencyService struct {
	Pool           domain.SlotPool
	AcquireTimeout time.Duration
}

// Acquire tenta adquirir uma vaga.
//   - Sem Pool, sempre libera.
//   - AcquireTimeout <= 0: espera até o ctx da requisição encerrar.
//   - AcquireTimeout > 0: espera no máximo esse tempo.
//
// Retorna (release, waited, ok). Se ok=false, nenhuma vaga foi adquirida e
// release não deve ser chamado.
func (s ConcurrencyService) Acquire(ctx context.Context) (release func(), waited time.Duration, ok bool) {
	if s.Pool == nil {
		return func() {}, 0, true
	}

	start := time.Now()
	if s.AcquireTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.AcquireTimeout)
		defer cancel()
	}
	release, ok = s.Pool.Acquire(ctx)
	return release, time.Since(start), ok
}
