package server

import (
	"context"
	"testing"
	"time"

	"github.com/dmitrijs2005/campusvault/internal/server/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	c := &config.Config{}
	c.LoadDefaults()
	c.DatabaseDSN = MemoryDSN
	c.BlobBackend = config.BlobMemory
	c.HTTPAddr = "127.0.0.1:0"
	c.GRPCAddr = "127.0.0.1:0"
	c.LogLevel = "error"
	return c
}

func TestNewApp_RunsAndStops(t *testing.T) {
	app, err := NewApp(context.Background(), testConfig())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	time.Sleep(150 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("app did not stop after cancel")
	}
}

func TestNewApp_Errors(t *testing.T) {
	c := testConfig()
	c.LogBackend = "zap"
	_, err := NewApp(context.Background(), c)
	assert.Error(t, err)

	c = testConfig()
	c.QuotaUploadPolicy = "vibes"
	_, err = NewApp(context.Background(), c)
	assert.Error(t, err)

	c = testConfig()
	c.ReconcileCron = "whenever"
	_, err = NewApp(context.Background(), c)
	assert.Error(t, err)
}

func TestRun_ReportsListenFailure(t *testing.T) {
	c := testConfig()
	c.HTTPAddr = "256.0.0.1:bad"
	app, err := NewApp(context.Background(), c)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- app.Run(context.Background()) }()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.Contains(t, err.Error(), "http server")
	case <-time.After(5 * time.Second):
		t.Fatal("app did not stop after listen failure")
	}
}
