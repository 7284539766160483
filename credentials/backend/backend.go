// Package backend picks the credential storage implementation once, at
// construction time, from configuration.
package backend

import (
	"fmt"
	"io"

	"github.com/jrsteele09/neoping-client/credentials"
	"github.com/jrsteele09/neoping-client/credentials/filerepo"
	"github.com/jrsteele09/neoping-client/credentials/redisrepo"
	"github.com/jrsteele09/neoping-client/internal/config"
	"github.com/redis/go-redis/v9"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Open returns the configured Repo and a Closer releasing its resources.
func Open(cfg config.StorageConfig) (credentials.Repo, io.Closer, error) {
	switch cfg.GetTokenStore() {
	case config.StoreMemory:
		return credentials.NewInMemoryRepo(), nopCloser{}, nil
	case config.StoreFile, "":
		return filerepo.New(cfg.GetTokenFile(), cfg.GetTokenSecret()), nopCloser{}, nil
	case config.StoreRedis:
		rdb := redis.NewClient(&redis.Options{Addr: cfg.GetRedisAddr()})
		return redisrepo.New(rdb, cfg.GetRedisPrefix()), rdb, nil
	default:
		return nil, nil, fmt.Errorf("unknown token store %q", cfg.GetTokenStore())
	}
}
