package infra

import (
	"context"
	"errors"

	"gallery-gateway/middleware/ratelimit/domain"
)

type multiStats []domain.StatsStore

// MultiStatsStore grava o evento em todos os stores (nil é ignorado).
// Um store com erro não impede os demais.
func MultiStatsStore(stores ...domain.StatsStore) domain.StatsStore {
	out := make(multiStats, 0, len(stores))
	for _, s := range stores {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

func (m multiStats) Record(ctx context.Context, ev domain.StatsEvent) error {
	var errs []error
	for _, s := range m {
		if err := s.Record(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
