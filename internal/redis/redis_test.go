package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"authflow/internal/errutil"
)

func TestNew(t *testing.T) {
	m := miniredis.RunT(t)

	client, err := New(context.Background(), "redis://"+m.Addr()+"/0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	require.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())
	got, err := m.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)
}

func TestNew_Errors(t *testing.T) {
	_, err := New(context.Background(), "not a url")
	errutil.AssertErrorCode(t, err, "REDIS_CONFIG_INVALID")

	m := miniredis.RunT(t)
	addr := m.Addr()
	m.Close()

	_, err = New(context.Background(), "redis://"+addr)
	errutil.AssertErrorCode(t, err, "REDIS_CONNECT_FAILED")
}
