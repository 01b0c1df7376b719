package infra

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gallery-gateway/middleware/ratelimit/domain"

	"github.com/redis/go-redis/v9"
)

// incrScript faz INCR e garante o TTL da janela de forma atômica.
// Na primeira requisição da janela (ou se a chave ficou sem TTL) aplica PEXPIRE.
// Retorna {count, pttl_ms}.
var incrScript = redis.NewScript(`
local c = redis.call('INCR', KEYS[1])
local ttl = redis.call('PTTL', KEYS[1])
if c == 1 or ttl < 0 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end
return {c, ttl}
`)

// RedisStore compartilha os contadores entre várias instâncias do gateway.
//
// A janela é o TTL da chave: quando ela expira no Redis a entrada deixa de existir,
// o que dá a mesma semântica de reset do MemoryStore sem precisar de janitor.
type RedisStore struct {
	rdb    redis.UniversalClient
	prefix string
}

type RedisStoreOption func(*RedisStore)

func WithKeyPrefix(prefix string) RedisStoreOption {
	return func(s *RedisStore) { s.prefix = strings.Trim(prefix, ":") }
}

func NewRedisStore(rdb redis.UniversalClient, opts ...RedisStoreOption) *RedisStore {
	s := &RedisStore{rdb: rdb, prefix: "ratelimit"}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) key(k domain.EntryKey) string { return s.prefix + ":" + k.String() }

// Increment implementa domain.CounterStore.
//
// O resetAt é derivado do PTTL devolvido pelo Redis somado ao `now` do chamador.
func (s *RedisStore) Increment(ctx context.Context, key domain.EntryKey, window time.Duration, now time.Time) (domain.Entry, error) {
	res, err := incrScript.Run(ctx, s.rdb, []string{s.key(key)}, window.Milliseconds()).Int64Slice()
	if err != nil {
		return domain.Entry{}, fmt.Errorf("redis ratelimit incr %s: %w", key, err)
	}
	if len(res) != 2 {
		return domain.Entry{}, fmt.Errorf("redis ratelimit incr %s: unexpected reply %v", key, res)
	}
	return domain.Entry{
		Count:   int(res[0]),
		ResetAt: now.Add(time.Duration(res[1]) * time.Millisecond),
	}, nil
}

func (s *RedisStore) Get(ctx context.Context, key domain.EntryKey, now time.Time) (domain.Entry, bool, error) {
	k := s.key(key)

	pipe := s.rdb.Pipeline()
	getCmd := pipe.Get(ctx, k)
	ttlCmd := pipe.PTTL(ctx, k)
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return domain.Entry{}, false, fmt.Errorf("redis ratelimit get %s: %w", key, err)
	}

	count, err := getCmd.Int()
	if err == redis.Nil {
		return domain.Entry{}, false, nil
	}
	if err != nil {
		return domain.Entry{}, false, fmt.Errorf("redis ratelimit get %s: %w", key, err)
	}
	ttl := ttlCmd.Val()
	if ttl <= 0 {
		return domain.Entry{}, false, nil
	}
	return domain.Entry{Count: count, ResetAt: now.Add(ttl)}, true, nil
}

func (s *RedisStore) Delete(ctx context.Context, key domain.EntryKey) error {
	return s.rdb.Del(ctx, s.key(key)).Err()
}

// Clear remove todas as chaves do prefixo usando SCAN (nunca KEYS).
func (s *RedisStore) Clear(ctx context.Context) error {
	iter := s.rdb.Scan(ctx, 0, s.prefix+":*", 500).Iterator()
	batch := make([]string, 0, 500)
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == cap(batch) {
			if err := s.rdb.Del(ctx, batch...).Err(); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(batch) > 0 {
		return s.rdb.Del(ctx, batch...).Err()
	}
	return nil
}
