// Package redisrepo keeps credentials in Redis, for clients that share one
// session across processes or run where no local disk is available.
package redisrepo

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jrsteele09/neoping-client/credentials"
	apperrors "github.com/jrsteele09/neoping-client/internal/errors"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const scanBatch = 100

var _ credentials.Repo = (*RedisRepo)(nil)

type RedisRepo struct {
	client redis.UniversalClient
	prefix string
}

// New stores every key as "<prefix>:<key>". Values carry no TTL; the backend
// decides token lifetime.
func New(client redis.UniversalClient, prefix string) *RedisRepo {
	return &RedisRepo{
		client: client,
		prefix: strings.TrimSuffix(prefix, ":"),
	}
}

func (r *RedisRepo) key(name string) string {
	if r.prefix == "" {
		return name
	}
	return r.prefix + ":" + name
}

func (r *RedisRepo) Get(ctx context.Context, key string) (string, error) {
	value, err := r.client.Get(ctx, r.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", apperrors.ErrNotFound
	}
	if err != nil {
		return "", errors.Wrap(err, "RedisRepo.Get")
	}
	return value, nil
}

func (r *RedisRepo) Set(ctx context.Context, key, value string) error {
	if key == "" {
		return fmt.Errorf("key is required")
	}
	if err := r.client.Set(ctx, r.key(key), value, 0).Err(); err != nil {
		return errors.Wrap(err, "RedisRepo.Set")
	}
	return nil
}

// Delete is idempotent: DEL on a missing key reports zero removals, not an error.
func (r *RedisRepo) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		return errors.Wrap(err, "RedisRepo.Delete")
	}
	return nil
}

func (r *RedisRepo) ListKeys(ctx context.Context) ([]string, error) {
	pattern := r.key("*")
	keys := make([]string, 0)

	var cursor uint64
	for {
		batch, next, err := r.client.Scan(ctx, cursor, pattern, scanBatch).Result()
		if err != nil {
			return nil, errors.Wrap(err, "RedisRepo.ListKeys")
		}
		for _, k := range batch {
			if r.prefix != "" {
				k = strings.TrimPrefix(k, r.prefix+":")
			}
			keys = append(keys, k)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	sort.Strings(keys)
	return keys, nil
}
