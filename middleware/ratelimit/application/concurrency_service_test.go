package application

import (
	"context"
	"testing"
	"time"
)

type blockingPool struct{}

func (p *blockingPool) Acquire(ctx context.Context) (func(), bool) {
	select {
	case <-ctx.Done():
		return nil, false
	case <-time.After(5 * time.Second):
		// não deve chegar aqui nos testes
		return nil, false
	}
}

type countingPool struct {
	acquired int
	released int
}

func (p *countingPool) Acquire(context.Context) (func(), bool) {
	p.acquired++
	return func() { p.released++ }, true
}

func TestConcurrencyService_Acquire_AllowsWhenNoPool(t *testing.T) {
	svc := ConcurrencyService{}
	release, _, ok := svc.Acquire(context.Background())
	if !ok {
		t.Fatalf("expected ok")
	}
	release()
}

func TestConcurrencyService_Acquire_GivesUpAfterTimeout(t *testing.T) {
	svc := ConcurrencyService{Pool: &blockingPool{}, AcquireTimeout: 10 * time.Millisecond}

	_, waited, ok := svc.Acquire(context.Background())
	if ok {
		t.Fatalf("expected timeout and ok=false")
	}
	if waited < 10*time.Millisecond {
		t.Fatalf("expected to wait at least the timeout, waited %s", waited)
	}
}

func TestConcurrencyService_Acquire_HonorsRequestContext(t *testing.T) {
	svc := ConcurrencyService{Pool: &blockingPool{}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, ok := svc.Acquire(ctx); ok {
		t.Fatalf("expected cancelled context to abort acquire")
	}
}

func TestConcurrencyService_Acquire_ReleasesThroughPool(t *testing.T) {
	pool := &countingPool{}
	svc := ConcurrencyService{Pool: pool}

	release, _, ok := svc.Acquire(context.Background())
	if !ok {
		t.Fatalf("expected ok")
	}
	release()
	if pool.acquired != 1 || pool.released != 1 {
		t.Fatalf("expected one acquire and one release, got %d/%d", pool.acquired, pool.released)
	}
}
