package logger_test

import (
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/munin-snmp-bridge/config"
	"github.com/munin-snmp-bridge/pkg/logger"
)

// mockFatalHook captures fatal entries without exiting the process.
type mockFatalHook struct {
	called bool
}

func (h *mockFatalHook) Hook(e zapcore.Entry) error {
	if e.Level == zapcore.FatalLevel {
		h.called = true
	}
	return nil
}

func TestLoggerLevels(t *testing.T) {
	cfg := config.ZapLogConfig{
		Level:   "debug",
		Format:  "console",
		Path:    t.TempDir(),
		MaxSize: 10,
		MaxAge:  1,
	}

	if err := logger.Init(cfg); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	logger.Debug("debug msg")
	logger.Info("info msg", zap.String("k", "v"))
	logger.Warn("warn msg")
	logger.Error("error msg")

	// fatal without os.Exit, via zap.Hooks
	hook := &mockFatalHook{}
	l := logger.GetLogger().WithOptions(zap.Hooks(hook.Hook))
	func() {
		defer func() { _ = recover() }()
		l.WithOptions(zap.OnFatal(zapcore.WriteThenPanic)).Fatal("fatal msg")
	}()
	if !hook.called {
		t.Errorf("fatal hook was not triggered")
	}

	if err := logger.Sync(); err != nil {
		t.Logf("Sync: %v", err)
	}

	time.Sleep(100 * time.Millisecond)
}

func TestInitIsIdempotent(t *testing.T) {
	cfg := config.ZapLogConfig{
		Level:   "info",
		Format:  "json",
		Path:    t.TempDir(),
		MaxSize: 10,
		MaxAge:  1,
	}
	if err := logger.Init(cfg); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if err := logger.Init(cfg); err != nil {
		t.Fatalf("second Init failed: %v", err)
	}
	if logger.GetLogger() == nil {
		t.Fatal("GetLogger returned nil after Init")
	}
}
