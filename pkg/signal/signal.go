// Package signal waits for process termination signals and runs a
// bounded graceful shutdown.
package signal

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

// WaitForShutdown blocks until SIGINT or SIGTERM arrives, then runs
// shutdownFunc with a timeout. It returns nil after a clean shutdown so
// the caller can exit 0.
func WaitForShutdown(log *zap.Logger, shutdownFunc func() error) error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	log.Info("service is running, waiting for shutdown signal (SIGINT/SIGTERM)")

	sig := <-sigChan
	log.Info("received shutdown signal", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	errChan := make(chan error, 1)
	go func() {
		errChan <- shutdownFunc()
	}()

	select {
	case err := <-errChan:
		if err != nil {
			log.Error("graceful shutdown failed", zap.Error(err))
			return err
		}
		log.Info("graceful shutdown completed")
		return nil
	case <-ctx.Done():
		log.Error("graceful shutdown timed out", zap.Error(ctx.Err()))
		return ctx.Err()
	}
}
