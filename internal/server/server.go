// Package server exposes the bridge's telemetry over HTTP: the
// Prometheus registry on /metrics and a liveness probe on /health.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/munin-snmp-bridge/config"
)

// httpShutdownTimeout bounds the graceful shutdown.
const httpShutdownTimeout = 5 * time.Second

// HTTPServer wraps the listener and the registry it exposes.
type HTTPServer struct {
	addr   string
	server *http.Server
	log    *zap.Logger
}

// statusWriter captures the response status code, which the native
// ResponseWriter does not expose.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(statusCode int) {
	w.status = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

// NewHTTPServer builds the telemetry endpoint over the given registry.
func NewHTTPServer(cfg config.ServerConfig, registry *prometheus.Registry, log *zap.Logger) *HTTPServer {
	mux := http.NewServeMux()

	logRequest := func(r *http.Request, msg string, statusCode int, start time.Time) {
		log.Debug(msg,
			zap.String("method", r.Method),
			zap.String("url", r.URL.String()),
			zap.String("remote", r.RemoteAddr),
			zap.Int("status", statusCode),
			zap.Duration("duration", time.Since(start)),
		)
	}

	mux.Handle("/metrics", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &statusWriter{ResponseWriter: w, status: 200}

		promhttp.HandlerFor(registry, promhttp.HandlerOpts{
			ErrorLog: zap.NewStdLog(log),
		}).ServeHTTP(ww, r)

		logRequest(r, "metrics request received", ww.status, start)
	}))

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &statusWriter{ResponseWriter: w, status: 200}

		ww.WriteHeader(http.StatusOK)
		_, _ = ww.Write([]byte("OK"))

		logRequest(r, "health check received", ww.status, start)
	})

	return &HTTPServer{
		addr: cfg.Addr,
		log:  log,
		server: &http.Server{
			Addr:         cfg.Addr,
			Handler:      mux,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
	}
}

// Start begins listening in a goroutine; listen errors other than a
// clean close are fatal since telemetry was explicitly enabled.
func (s *HTTPServer) Start() error {
	s.log.Info("starting telemetry HTTP server",
		zap.String("listen_addr", s.addr),
		zap.Duration("read_timeout", s.server.ReadTimeout),
		zap.Duration("write_timeout", s.server.WriteTimeout),
		zap.Duration("idle_timeout", s.server.IdleTimeout),
	)

	go func() {
		if err := s.server.ListenAndServe(); err != nil {
			if !errors.Is(err, http.ErrServerClosed) {
				s.log.Fatal("telemetry HTTP server failed to listen",
					zap.Error(err),
					zap.String("listen_addr", s.addr))
			}
			s.log.Info("telemetry HTTP server stopped listening",
				zap.String("listen_addr", s.addr))
		}
	}()
	return nil
}

// Shutdown stops accepting requests and drains in-flight ones within the
// timeout. A deadline overrun counts as done.
func (s *HTTPServer) Shutdown() error {
	s.log.Info("shutting down telemetry HTTP server", zap.String("listen_addr", s.addr))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), httpShutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		if errors.Is(shutdownCtx.Err(), context.DeadlineExceeded) {
			return nil
		}
		s.log.Error("telemetry HTTP server shutdown failed", zap.Error(err))
		return err
	}
	return nil
}
