package serverapp

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"os"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gql2sql/internal/config"
	"gql2sql/internal/logging"
)

func testLogger() *logging.Logger {
	return logging.NewLogger(logging.Config{Level: "debug", Format: "text", Output: &bytes.Buffer{}})
}

func TestNew_RequiresConfigAndLogger(t *testing.T) {
	_, err := New(nil, testLogger())
	assert.Error(t, err)
	_, err = New(&config.Config{}, nil)
	assert.Error(t, err)
}

func TestWaitForStop(t *testing.T) {
	t.Run("signal", func(t *testing.T) {
		app := &App{logger: testLogger()}
		stop := make(chan os.Signal, 1)
		stop <- syscall.SIGTERM

		reason, err := app.WaitForStop(stop, make(chan error))
		require.NoError(t, err)
		assert.Equal(t, "signal", reason)
	})

	t.Run("server error", func(t *testing.T) {
		app := &App{logger: testLogger()}
		serverErrors := make(chan error, 1)
		serverErrors <- errors.New("boom")

		reason, err := app.WaitForStop(make(chan os.Signal), serverErrors)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "boom")
		assert.Equal(t, "server_error", reason)
	})

	t.Run("only server errors", func(t *testing.T) {
		app := &App{logger: testLogger()}
		serverErrors := make(chan error, 1)
		serverErrors <- nil

		reason, err := app.WaitForStop(nil, serverErrors)
		require.Error(t, err)
		assert.Equal(t, "server_error", reason)
	})

	t.Run("nothing to wait for", func(t *testing.T) {
		app := &App{logger: testLogger()}
		_, err := app.WaitForStop(nil, nil)
		assert.Error(t, err)
	})
}

func TestShutdown_RunsCleanupOnceInReverseOrder(t *testing.T) {
	app := &App{logger: testLogger()}
	var calls int32
	var order []string
	app.cleanup.push("first", func(context.Context) error {
		atomic.AddInt32(&calls, 1)
		order = append(order, "first")
		return nil
	})
	app.cleanup.push("second", func(context.Context) error {
		order = append(order, "second")
		return errors.New("ignored")
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, app.Shutdown(ctx))
	require.NoError(t, app.Shutdown(ctx))

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, []string{"second", "first"}, order)
}

func TestStart_BeforeInitFails(t *testing.T) {
	app := &App{logger: testLogger()}
	_, err := app.Start()
	assert.Error(t, err)
}

func TestStartAndShutdown(t *testing.T) {
	srv := &http.Server{Addr: "127.0.0.1:0", Handler: http.NewServeMux()}
	app := &App{
		cfg:         &config.Config{},
		logger:      testLogger(),
		serverAddr:  srv.Addr,
		srv:         srv,
		initialized: true,
	}
	app.cleanup.push("HTTP server", srv.Shutdown)

	first, err := app.Start()
	require.NoError(t, err)
	second, err := app.Start()
	require.NoError(t, err)
	assert.Equal(t, first, second)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, app.Shutdown(ctx))
}

func TestInit_FailureLeavesAppUninitialized(t *testing.T) {
	cfg := &config.Config{
		Database: config.DatabaseConfig{
			Host:     "127.0.0.1",
			Port:     1,
			User:     "root",
			Database: "test",
			TLS:      config.DatabaseTLSConfig{Mode: "off"},
			Pool:     config.PoolConfig{MaxOpen: 1, MaxIdle: 1, MaxLifetime: time.Second},
		},
		Server: config.ServerConfig{Port: 18089, HealthCheckTimeout: time.Second},
		Logging: config.LoggingConfig{Level: "info", Format: "text"},
	}
	app, err := New(cfg, testLogger())
	require.NoError(t, err)

	err = app.Init(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to database")

	app.stateMu.Lock()
	defer app.stateMu.Unlock()
	assert.False(t, app.initialized)
	assert.Nil(t, app.handler)
}

func TestInit_RequiresDatabaseNameWithoutCatalogFile(t *testing.T) {
	cfg := &config.Config{
		Database: config.DatabaseConfig{Host: "127.0.0.1", Port: 1},
	}
	app, err := New(cfg, testLogger())
	require.NoError(t, err)

	err = app.Init(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no database configured")
}
