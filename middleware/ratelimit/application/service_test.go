package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"gallery-gateway/middleware/ratelimit/domain"
)

// fakeStore implementa a janela fixa em memória, sem purge, só para isolar o Service.
type fakeStore struct {
	mu      sync.Mutex
	entries map[domain.EntryKey]domain.Entry
	err     error
}

func newFakeStore() *fakeStore {
	return &fakeStore{entries: make(map[domain.EntryKey]domain.Entry)}
}

func (s *fakeStore) Increment(_ context.Context, key domain.EntryKey, window time.Duration, now time.Time) (domain.Entry, error) {
	if s.err != nil {
		return domain.Entry{}, s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ent, ok := s.entries[key]
	if !ok || ent.Expired(now) {
		ent = domain.Entry{ResetAt: now.Add(window)}
	}
	ent.Count++
	s.entries[key] = ent
	return ent, nil
}

func (s *fakeStore) Get(_ context.Context, key domain.EntryKey, now time.Time) (domain.Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ent, ok := s.entries[key]
	if !ok || ent.Expired(now) {
		return domain.Entry{}, false, nil
	}
	return ent, true, nil
}

func (s *fakeStore) Delete(_ context.Context, key domain.EntryKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

func (s *fakeStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[domain.EntryKey]domain.Entry)
	return nil
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newService(store domain.CounterStore, clock *fakeClock, max int, window time.Duration) Service {
	return Service{
		Store: store,
		Policies: map[domain.Class]domain.Policy{
			domain.ClassAuth: {Window: window, MaxRequests: max},
		},
		Now: clock.Now,
	}
}

func TestService_Check_AllowsWhenNoStore(t *testing.T) {
	svc := Service{Policies: DefaultPolicies()}
	dec := svc.Check(context.Background(), "k", domain.ClassAPI)
	if !dec.Allowed {
		t.Fatalf("expected allowed")
	}
	if dec.RetryAfter != 0 {
		t.Fatalf("expected RetryAfter=0 when allowed, got %s", dec.RetryAfter)
	}
}

func TestService_Check_AllowsUnknownClass(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	svc := newService(newFakeStore(), clock, 1, time.Minute)
	for i := 0; i < 3; i++ {
		if dec := svc.Check(context.Background(), "k", domain.ClassAPI); !dec.Allowed {
			t.Fatalf("expected class without policy to be allowed (call %d)", i+1)
		}
	}
}

func TestService_Check_FixedWindowCountsDown(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	svc := newService(newFakeStore(), clock, 5, time.Minute)
	ctx := context.Background()

	want := []int{4, 3, 2, 1, 0}
	for i, rem := range want {
		dec := svc.Check(ctx, "10.0.0.1", domain.ClassAuth)
		if !dec.Allowed {
			t.Fatalf("call %d: expected allowed", i+1)
		}
		if dec.Remaining != rem {
			t.Fatalf("call %d: expected remaining=%d, got %d", i+1, rem, dec.Remaining)
		}
		if !dec.ResetAt.Equal(clock.t.Add(time.Minute)) {
			t.Fatalf("call %d: unexpected resetAt %s", i+1, dec.ResetAt)
		}
		clock.Advance(time.Second)
	}

	dec := svc.Check(ctx, "10.0.0.1", domain.ClassAuth)
	if dec.Allowed {
		t.Fatalf("expected 6th call to be blocked")
	}
	if dec.Remaining != 0 {
		t.Fatalf("expected remaining=0, got %d", dec.Remaining)
	}
	if dec.RetryAfter != 55*time.Second {
		t.Fatalf("expected RetryAfter=55s, got %s", dec.RetryAfter)
	}
}

func TestService_Check_ResetsAfterWindow(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	svc := newService(newFakeStore(), clock, 2, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		svc.Check(ctx, "k", domain.ClassAuth)
	}
	if dec := svc.Check(ctx, "k", domain.ClassAuth); dec.Allowed {
		t.Fatalf("expected blocked inside the window")
	}

	// exatamente no resetAt a janela já virou
	clock.Advance(time.Minute)
	dec := svc.Check(ctx, "k", domain.ClassAuth)
	if !dec.Allowed {
		t.Fatalf("expected allowed after window reset")
	}
	if dec.Remaining != 1 {
		t.Fatalf("expected remaining=1 after reset, got %d", dec.Remaining)
	}
}

func TestService_Check_ClassesAndIdentitiesAreIndependent(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	svc := Service{
		Store: newFakeStore(),
		Policies: map[domain.Class]domain.Policy{
			domain.ClassAuth: {Window: time.Minute, MaxRequests: 1},
			domain.ClassAPI:  {Window: time.Minute, MaxRequests: 1},
		},
		Now: clock.Now,
	}
	ctx := context.Background()

	if !svc.Check(ctx, "a", domain.ClassAuth).Allowed {
		t.Fatalf("expected first auth call allowed")
	}
	if !svc.Check(ctx, "a", domain.ClassAPI).Allowed {
		t.Fatalf("expected api quota to be independent from auth quota")
	}
	if !svc.Check(ctx, "b", domain.ClassAuth).Allowed {
		t.Fatalf("expected identity b to have its own quota")
	}
	if svc.Check(ctx, "a", domain.ClassAuth).Allowed {
		t.Fatalf("expected second auth call for a to be blocked")
	}
}

func TestService_Check_FailsOpenOnStoreError(t *testing.T) {
	store := newFakeStore()
	store.err = errors.New("boom")
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	svc := newService(store, clock, 1, time.Minute)

	var reported error
	svc.OnError = func(_ domain.EntryKey, err error) { reported = err }

	dec := svc.Check(context.Background(), "k", domain.ClassAuth)
	if !dec.Allowed {
		t.Fatalf("expected fail open on store error")
	}
	if reported == nil {
		t.Fatalf("expected OnError to be called")
	}
}

func TestService_Reset_ClearsStore(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	svc := newService(newFakeStore(), clock, 1, time.Minute)
	ctx := context.Background()

	svc.Check(ctx, "k", domain.ClassAuth)
	if svc.Check(ctx, "k", domain.ClassAuth).Allowed {
		t.Fatalf("expected blocked before reset")
	}
	if err := svc.Reset(ctx); err != nil {
		t.Fatalf("unexpected reset error: %v", err)
	}
	if !svc.Check(ctx, "k", domain.ClassAuth).Allowed {
		t.Fatalf("expected allowed after reset")
	}
}

func TestService_Peek_DoesNotConsume(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	svc := newService(newFakeStore(), clock, 2, time.Minute)
	ctx := context.Background()

	dec, err := svc.Peek(ctx, "k", domain.ClassAuth)
	if err != nil {
		t.Fatalf("unexpected peek error: %v", err)
	}
	if !dec.Allowed || dec.Remaining != 2 || dec.Limit != 2 {
		t.Fatalf("expected full quota before any request, got %+v", dec)
	}

	svc.Check(ctx, "k", domain.ClassAuth)
	for i := 0; i < 3; i++ {
		dec, _ = svc.Peek(ctx, "k", domain.ClassAuth)
		if !dec.Allowed || dec.Remaining != 1 {
			t.Fatalf("peek %d: expected remaining=1 allowed, got %+v", i, dec)
		}
	}

	svc.Check(ctx, "k", domain.ClassAuth)
	dec, _ = svc.Peek(ctx, "k", domain.ClassAuth)
	if dec.Allowed || dec.Remaining != 0 {
		t.Fatalf("expected exhausted quota, got %+v", dec)
	}
	if want := clock.t.Add(time.Minute); !dec.ResetAt.Equal(want) {
		t.Fatalf("expected reset at %s, got %s", want, dec.ResetAt)
	}

	clock.Advance(time.Minute)
	dec, _ = svc.Peek(ctx, "k", domain.ClassAuth)
	if !dec.Allowed || dec.Remaining != 2 {
		t.Fatalf("expected fresh window after reset, got %+v", dec)
	}
}

func TestService_Forget_ClearsOnlyThatIdentity(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	store := newFakeStore()
	svc := newService(store, clock, 1, time.Minute)
	ctx := context.Background()

	svc.Check(ctx, "a", domain.ClassAuth)
	svc.Check(ctx, "b", domain.ClassAuth)

	if err := svc.Forget(ctx, "a"); err != nil {
		t.Fatalf("unexpected forget error: %v", err)
	}
	if !svc.Check(ctx, "a", domain.ClassAuth).Allowed {
		t.Fatalf("expected a to start over after forget")
	}
	if svc.Check(ctx, "b", domain.ClassAuth).Allowed {
		t.Fatalf("expected b to keep its count")
	}
}
