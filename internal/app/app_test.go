package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trunov/convo/internal/config"
)

func TestNew_MemoryBackend(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Server.Port = 0

	a, err := New(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, ":0", a.HttpServer.Addr)
	assert.NotNil(t, a.HttpServer.Handler)
}

func TestNew_UnknownBackend(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Artifacts.Backend = "s3"

	_, err := New(context.Background(), cfg)
	assert.ErrorContains(t, err, "unknown artifact backend")
}

func TestRun_StopsOnCancel(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Server.Port = 0
	cfg.Server.ShutdownTimeout = time.Second

	a, err := New(context.Background(), cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
