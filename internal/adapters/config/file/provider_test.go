package file

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tjfontaine/blueprint-api/internal/pkg/config"
)

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func writeConfig(t *testing.T, path, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

// replaceConfig swaps the file in atomically, the way most editors save.
func replaceConfig(t *testing.T, path, body string) {
	t.Helper()
	tmp := path + ".tmp"
	writeConfig(t, tmp, body)
	if err := os.Rename(tmp, path); err != nil {
		t.Fatalf("rename config: %v", err)
	}
}

func TestNewProvider_EmptyPath(t *testing.T) {
	if _, err := NewProvider("", nil); err == nil {
		t.Error("expected error for empty path")
	}
}

func TestProvider_Load(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, path, `
server:
  port: 9090
models:
  - name: tag
`)

	p, err := NewProvider(path, quiet())
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}
	cfg, err := p.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9090 || len(cfg.Models) != 1 {
		t.Errorf("cfg = %+v", cfg)
	}
	if p.Current() != cfg {
		t.Error("Current should return the loaded config")
	}
}

func TestProvider_WatchReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, path, "models:\n  - name: tag\n")

	p, err := NewProvider(path, quiet())
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}
	defer p.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan *config.Config, 4)
	if err := p.Watch(ctx, func(cfg *config.Config) { changes <- cfg }); err != nil {
		t.Fatalf("Watch: %v", err)
	}

	replaceConfig(t, path, "models:\n  - name: tag\n  - name: post\n")

	select {
	case cfg := <-changes:
		if len(cfg.Models) != 2 {
			t.Errorf("reloaded models = %d, want 2", len(cfg.Models))
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for reload")
	}
}

func TestProvider_WatchSkipsInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, path, "models:\n  - name: tag\n")

	p, _ := NewProvider(path, quiet())
	defer p.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan *config.Config, 4)
	if err := p.Watch(ctx, func(cfg *config.Config) { changes <- cfg }); err != nil {
		t.Fatalf("Watch: %v", err)
	}

	replaceConfig(t, path, "models:\n  - name: tag\n    key_type: bogus\n")

	select {
	case cfg := <-changes:
		t.Errorf("invalid config should not be delivered: %+v", cfg)
	case <-time.After(300 * time.Millisecond):
	}
}
