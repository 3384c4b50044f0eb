package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"options_go/internal/domain"
	"options_go/internal/infra/storage"
)

func writeConfig(t *testing.T, dir string) string {
	t.Helper()
	yaml := `
app:
  name: options-go
  version: test
engine:
  lattice_steps: 100
  simulations: 2000
  seed: 5
storage:
  path: ` + filepath.Join(dir, "options.db") + `
  cache_enabled: true
server:
  addr: "127.0.0.1:0"
book:
  symbol: BTCUSDT
  positions:
    - kind: call
      style: european
      strike: 100
      maturity: 1
      vol: 0.2
      quantity: 1
logging:
  level: error
  dir: ` + filepath.Join(dir, "logs") + `
`
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestInitialize(t *testing.T) {
	dir := t.TempDir()
	b := NewBootstrap()
	if err := b.Initialize(writeConfig(t, dir)); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	t.Cleanup(func() { b.Shutdown(context.Background()) })

	if b.Storage == nil || b.Service == nil || b.Sequencer == nil || b.Publisher == nil || b.Server == nil {
		t.Fatalf("component missing: %+v", b)
	}
	if b.Redis != nil {
		t.Error("redis should be disabled without an address")
	}
	if got := b.Sequencer.GetMarketState().Rate; got != 0.05 {
		t.Errorf("initial rate = %v, want market default", got)
	}
}

func TestInitialize_MissingConfig(t *testing.T) {
	err := NewBootstrap().Initialize(filepath.Join(t.TempDir(), "absent.yaml"))
	if !errors.Is(err, domain.ErrConfigNotFound) {
		t.Errorf("expected ErrConfigNotFound, got %v", err)
	}
}

func TestInitialize_RestoresRate(t *testing.T) {
	dir := t.TempDir()
	store, err := storage.NewStorage(filepath.Join(dir, "options.db"))
	if err != nil {
		t.Fatal(err)
	}
	if err := store.SaveConfig(lastRateKey, "0.0425"); err != nil {
		t.Fatal(err)
	}
	store.Close()

	b := NewBootstrap()
	if err := b.Initialize(writeConfig(t, dir)); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	t.Cleanup(func() { b.Shutdown(context.Background()) })

	if got := b.Sequencer.GetMarketState().Rate; got != 0.0425 {
		t.Errorf("restored rate = %v, want 0.0425", got)
	}
}

func TestRunAndShutdown(t *testing.T) {
	b := NewBootstrap()
	if err := b.Initialize(writeConfig(t, t.TempDir())); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), time.Second)
	defer stop()
	if err := b.Shutdown(shutdownCtx); err != nil {
		t.Errorf("Shutdown: %v", err)
	}
}
