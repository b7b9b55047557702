package serverrun

import (
	"context"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestRunStopsOnContextCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, Options{DataDir: t.TempDir(), TickMs: 10})
	}()

	// Let the reactor take a few ticks before shutdown.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("run did not stop on cancel")
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	cfg, err := loadConfig(Options{Backend: "mem", TickMs: 100, LogLevel: "debug", LogFormat: "json"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.TickIntervalMs != 100 || cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
}

func TestLoadConfigRejectsBadBackend(t *testing.T) {
	if _, err := loadConfig(Options{Backend: "tape"}); err == nil {
		t.Fatalf("bad backend must be rejected")
	}
}
