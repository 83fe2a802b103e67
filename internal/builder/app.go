package builder

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/repoqa/repoqa-backend/internal/queue"
	"go.uber.org/zap"
)

// Worker is a long running queue consumer.
type Worker interface {
	Run(ctx context.Context) error
}

// App represents one process of the pipeline with all its components
type App struct {
	server *http.Server
	worker Worker
	db     *pgxpool.Pool
	broker *queue.Broker
	logger *zap.Logger
}

// Run starts the HTTP server and the worker, if any, and blocks until a
// shutdown signal arrives or one of them fails.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(ctxzap.ToContext(context.Background(), a.logger))
	defer cancel()

	// Start HTTP server in goroutine
	errChan := make(chan error, 2)
	go func() {
		a.logger.Info("Starting HTTP server", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	workerDone := make(chan struct{})
	if a.worker != nil {
		go func() {
			defer close(workerDone)
			if err := a.worker.Run(ctx); err != nil {
				errChan <- err
			}
		}()
	} else {
		close(workerDone)
	}

	// Wait for interrupt signal or a component error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	var runErr error
	select {
	case runErr = <-errChan:
		a.logger.Error("Component error", zap.Error(runErr))
	case sig := <-sigChan:
		a.logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
	}

	cancel()
	<-workerDone

	// Graceful shutdown
	if err := a.shutdown(); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

// shutdown gracefully shuts down the application
func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a.logger.Info("Shutting down server gracefully")

	var shutdownErr error
	if err := a.server.Shutdown(ctx); err != nil {
		a.logger.Error("Server shutdown error", zap.Error(err))
		shutdownErr = err
	}

	if a.broker != nil {
		a.logger.Info("Closing broker connection")
		if err := a.broker.Close(); err != nil {
			a.logger.Warn("Broker close error", zap.Error(err))
		}
	}

	a.logger.Info("Closing database connections")
	if a.db != nil {
		a.db.Close()
	}

	a.logger.Info("Application stopped gracefully")
	_ = a.logger.Sync()
	return shutdownErr
}
