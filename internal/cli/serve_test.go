package cli

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/procflow/internal/config"
	"github.com/roach88/procflow/internal/lock"
)

func TestNewLockerLocal(t *testing.T) {
	l, closeFn, err := newLocker(t.Context(), config.Redis{})
	require.NoError(t, err)
	defer closeFn()
	assert.IsType(t, &lock.Local{}, l)
}

func TestNewLockerRedis(t *testing.T) {
	mr := miniredis.RunT(t)

	l, closeFn, err := newLocker(t.Context(), config.Redis{Addr: mr.Addr(), Prefix: "procflow:"})
	require.NoError(t, err)
	defer closeFn()
	require.IsType(t, &lock.Redis{}, l)

	unlock, err := l.Lock(t.Context(), "Project:P-1", time.Second)
	require.NoError(t, err)
	assert.True(t, mr.Exists("procflow:lock:Project:P-1"))
	require.NoError(t, unlock(t.Context()))
	assert.False(t, mr.Exists("procflow:lock:Project:P-1"))
}

func TestNewLockerRedisUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, _, err := newLocker(t.Context(), config.Redis{Addr: addr})
	require.Error(t, err)
	assert.Contains(t, err.Error(), addr)
}

func TestServeStopsOnCancel(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := config.Default()
	cfg.Redis.Addr = mr.Addr()

	opts := &RootOptions{Format: "text", cfg: cfg}
	cmd := NewServeCommand(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	cmd.SetContext(ctx)

	out, err := execute(cmd, "--db", filepath.Join(t.TempDir(), "serve.db"), "--addr", "127.0.0.1:0")
	require.NoError(t, err)
	assert.Contains(t, out, "Listening on 127.0.0.1:0")
}
