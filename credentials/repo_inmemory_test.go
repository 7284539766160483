package credentials_test

import (
	"context"
	"testing"

	"github.com/jrsteele09/neoping-client/credentials"
	apperrors "github.com/jrsteele09/neoping-client/internal/errors"
	"github.com/stretchr/testify/require"
)

func TestInMemoryRepo(t *testing.T) {
	ctx := context.Background()
	repo := credentials.NewInMemoryRepo()

	_, err := repo.Get(ctx, "missing")
	require.ErrorIs(t, err, apperrors.ErrNotFound)

	require.NoError(t, repo.Set(ctx, "b", "2"))
	require.NoError(t, repo.Set(ctx, "a", "1"))

	keys, err := repo.ListKeys(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, keys)

	require.NoError(t, repo.Delete(ctx, "a"))
	require.NoError(t, repo.Delete(ctx, "a"))

	require.Error(t, repo.Set(ctx, "", "x"))
}
