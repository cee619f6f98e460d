package serverapp

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
)

// Start serves HTTP in a goroutine and returns the channel its failure is
// reported on. Calling Start again returns the same channel.
func (a *App) Start() (<-chan error, error) {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()

	if !a.initialized {
		return nil, errors.New("app is not initialized")
	}
	if a.started {
		return a.serverErrors, nil
	}

	serverErrors := make(chan error, 1)
	srv := a.srv
	attrs := []any{
		slog.String("address", a.serverAddr),
		slog.String("graphql_endpoint", "/graphql"),
		slog.String("health_endpoint", "/health"),
		slog.Bool("graphiql", a.cfg.Server.GraphiQL),
		slog.Int("max_concurrent_statements", a.cfg.Server.MaxConcurrentStatements),
	}
	if a.meterProvider != nil {
		attrs = append(attrs, slog.String("metrics_endpoint", "/metrics"))
	}
	a.logger.Info("server starting", attrs...)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()

	a.serverErrors = serverErrors
	a.started = true
	return serverErrors, nil
}

// WaitForStop blocks until a signal arrives on stop or the server fails. The
// reason is "signal" or "server_error". A nil serverErrors falls back to the
// channel from Start.
func (a *App) WaitForStop(stop <-chan os.Signal, serverErrors <-chan error) (reason string, err error) {
	if serverErrors == nil {
		a.stateMu.Lock()
		if a.serverErrors != nil {
			serverErrors = a.serverErrors
		}
		a.stateMu.Unlock()
	}
	if stop == nil && serverErrors == nil {
		return "", errors.New("nothing to wait for: stop and serverErrors are both nil")
	}

	// A nil channel never becomes ready, so one select covers every case.
	select {
	case err := <-serverErrors:
		if err == nil {
			return "server_error", errors.New("server stopped unexpectedly")
		}
		return "server_error", fmt.Errorf("server failed: %w", err)
	case sig := <-stop:
		if a.logger != nil {
			a.logger.Info("received shutdown signal", slog.String("signal", sig.String()))
		}
		return "signal", nil
	}
}
