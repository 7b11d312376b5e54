package client

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("invalid config", func(t *testing.T) {
		t.Parallel()
		r, err := New(&Config{})
		require.Error(t, err)
		require.Nil(t, r)
	})

	t.Run("valid config", func(t *testing.T) {
		t.Parallel()
		r, err := New(&Config{
			Address: "127.0.0.1",
			Port:    9443,
		})
		require.NoError(t, err)
		require.NotNil(t, r)
		require.NoError(t, r.Close())
	})
}
