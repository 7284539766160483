package filerepo_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/jrsteele09/neoping-client/credentials"
	"github.com/jrsteele09/neoping-client/credentials/filerepo"
	apperrors "github.com/jrsteele09/neoping-client/internal/errors"
	"github.com/stretchr/testify/require"
)

func TestFileRepoPlaintext(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "tokens.json")
	repo := filerepo.New(path, "")

	_, err := repo.Get(ctx, credentials.AccessTokenKey)
	require.ErrorIs(t, err, apperrors.ErrNotFound)

	require.NoError(t, repo.Set(ctx, credentials.AccessTokenKey, "T1"))
	require.NoError(t, repo.Set(ctx, credentials.RefreshTokenKey, "R1"))

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	// A second repo on the same path sees the values: durable across restarts.
	reopened := filerepo.New(path, "")
	value, err := reopened.Get(ctx, credentials.RefreshTokenKey)
	require.NoError(t, err)
	require.Equal(t, "R1", value)

	keys, err := reopened.ListKeys(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{credentials.AccessTokenKey, credentials.RefreshTokenKey}, keys)

	require.NoError(t, reopened.Delete(ctx, credentials.AccessTokenKey))
	require.NoError(t, reopened.Delete(ctx, credentials.AccessTokenKey))
	_, err = repo.Get(ctx, credentials.AccessTokenKey)
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestFileRepoSealed(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "tokens.json")
	repo := filerepo.New(path, "correct horse battery staple")

	require.NoError(t, repo.Set(ctx, credentials.AccessTokenKey, "secret-access-token"))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.False(t, strings.Contains(string(raw), "secret-access-token"))
	require.Contains(t, string(raw), `"sealed"`)

	value, err := filerepo.New(path, "correct horse battery staple").Get(ctx, credentials.AccessTokenKey)
	require.NoError(t, err)
	require.Equal(t, "secret-access-token", value)

	_, err = filerepo.New(path, "wrong passphrase").Get(ctx, credentials.AccessTokenKey)
	require.Error(t, err)

	_, err = filerepo.New(path, "").Get(ctx, credentials.AccessTokenKey)
	require.ErrorIs(t, err, filerepo.ErrSealed)
}

func TestFileRepoUnreadableFileFailsSilentlyThroughStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "tokens.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	store := credentials.NewStore(filerepo.New(path, ""))
	require.Equal(t, "", store.Get(ctx, credentials.AccessTokenKey))
}

func TestFileRepoConcurrentWritersOnOnePath(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "tokens.json")

	// Separate repos stand in for separate processes: they share no mutex.
	const writers = 8
	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			repo := filerepo.New(path, "")
			for j := 0; j < 20; j++ {
				if err := repo.Set(ctx, credentials.AccessTokenKey, fmt.Sprintf("T%d-%d", i, j)); err != nil {
					errs[i] = err
					return
				}
			}
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}

	value, err := filerepo.New(path, "").Get(ctx, credentials.AccessTokenKey)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(value, "T"))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "tokens.json", entries[0].Name())
}
