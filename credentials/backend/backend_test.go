package backend_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/jrsteele09/neoping-client/credentials"
	"github.com/jrsteele09/neoping-client/credentials/backend"
	"github.com/jrsteele09/neoping-client/credentials/filerepo"
	"github.com/jrsteele09/neoping-client/credentials/redisrepo"
	"github.com/jrsteele09/neoping-client/internal/config"
	"github.com/stretchr/testify/require"
)

type storageConfig struct {
	config.Storage
	store string
	file  string
	redis string
}

func (c storageConfig) GetTokenStore() string { return c.store }
func (c storageConfig) GetTokenFile() string  { return c.file }
func (c storageConfig) GetRedisAddr() string  { return c.redis }

func TestOpen(t *testing.T) {
	mr := miniredis.RunT(t)

	tests := []struct {
		name    string
		cfg     storageConfig
		want    any
		wantErr bool
	}{
		{name: "memory", cfg: storageConfig{store: config.StoreMemory}, want: &credentials.InMemoryRepo{}},
		{name: "file", cfg: storageConfig{store: config.StoreFile, file: filepath.Join(t.TempDir(), "t.json")}, want: &filerepo.FileRepo{}},
		{name: "redis", cfg: storageConfig{store: config.StoreRedis, redis: mr.Addr()}, want: &redisrepo.RedisRepo{}},
		{name: "unknown", cfg: storageConfig{store: "keychain"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, closer, err := backend.Open(tt.cfg)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			defer closer.Close()
			require.IsType(t, tt.want, repo)

			ctx := context.Background()
			require.NoError(t, repo.Set(ctx, credentials.AccessTokenKey, "T1"))
			value, err := repo.Get(ctx, credentials.AccessTokenKey)
			require.NoError(t, err)
			require.Equal(t, "T1", value)
		})
	}
}
