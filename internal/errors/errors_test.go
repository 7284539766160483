package errors_test

import (
	"fmt"
	"testing"

	apperrors "github.com/jrsteele09/neoping-client/internal/errors"
	"github.com/stretchr/testify/require"
)

func TestWrapf(t *testing.T) {
	require.Nil(t, apperrors.Wrapf(nil, "load %s", "auth_token"))

	err := apperrors.Wrapf(apperrors.ErrNotFound, "load %s", "auth_token")
	require.EqualError(t, err, "load auth_token: not found")
	require.True(t, apperrors.Is(err, apperrors.ErrNotFound))
	require.False(t, apperrors.Is(err, apperrors.ErrSessionExpired))
}

type kindErr struct{ kind string }

func (k *kindErr) Error() string { return k.kind }

func TestAs(t *testing.T) {
	err := fmt.Errorf("outer: %w", &kindErr{kind: "network"})

	var target *kindErr
	require.True(t, apperrors.As(err, &target))
	require.Equal(t, "network", target.kind)
}
