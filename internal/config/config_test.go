package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/xraph/griddispatch"
	"github.com/xraph/griddispatch/internal/config"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.Store.Backend != config.BackendMemory {
		t.Errorf("backend = %q, want memory", cfg.Store.Backend)
	}
	if got, want := cfg.Dispatcher(), griddispatch.DefaultConfig(); got != want {
		t.Errorf("Dispatcher() = %+v, want %+v", got, want)
	}
}

func TestLoad_EmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := config.Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.HTTP.Addr != ":8080" {
		t.Errorf("http addr = %q", cfg.HTTP.Addr)
	}
}

func TestLoad_OverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "node.yaml")
	data := []byte(`
node:
  pool_size: 32
  idle_interval: 10ms
  max_idle_interval: 2s
  job_timeout: 1m
store:
  backend: redis
  redis:
    addr: redis:6379
    prefix: "blue:"
membership:
  provider: kubernetes
  kubernetes:
    namespace: compute
    label_selector: app=render
log:
  format: json
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Node.PoolSize != 32 {
		t.Errorf("pool_size = %d, want 32", cfg.Node.PoolSize)
	}
	if cfg.Node.IdleInterval != 10*time.Millisecond || cfg.Node.MaxIdleInterval != 2*time.Second {
		t.Errorf("idle = %s..%s", cfg.Node.IdleInterval, cfg.Node.MaxIdleInterval)
	}
	if cfg.Node.JobTimeout != time.Minute {
		t.Errorf("job_timeout = %s", cfg.Node.JobTimeout)
	}
	// Untouched fields keep their defaults.
	if cfg.Node.HeartbeatInterval != griddispatch.DefaultConfig().HeartbeatInterval {
		t.Errorf("heartbeat_interval = %s, want default", cfg.Node.HeartbeatInterval)
	}
	if cfg.Store.Redis.Addr != "redis:6379" || cfg.Store.Redis.Prefix != "blue:" {
		t.Errorf("redis = %+v", cfg.Store.Redis)
	}
	if cfg.Membership.Kubernetes.Namespace != "compute" || cfg.Membership.Kubernetes.LabelSelector != "app=render" {
		t.Errorf("kubernetes = %+v", cfg.Membership.Kubernetes)
	}
	if cfg.Log.Format != "json" || cfg.Log.Level != "info" {
		t.Errorf("log = %+v", cfg.Log)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown backend", "store:\n  backend: etcd\n"},
		{"postgres without dsn", "store:\n  backend: postgres\n"},
		{"sqlite without path", "store:\n  backend: sqlite\n  sqlite:\n    path: \"\"\n"},
		{"negative pool", "node:\n  pool_size: -1\n"},
		{"idle above max", "node:\n  idle_interval: 2s\n  max_idle_interval: 1s\n"},
		{"negative job timeout", "node:\n  job_timeout: -1s\n"},
		{"unknown membership", "membership:\n  provider: consul\n"},
		{"kubernetes without namespace", "membership:\n  provider: kubernetes\n  kubernetes:\n    namespace: \"\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Parse([]byte(tt.yaml))
			if !errors.Is(err, griddispatch.ErrInvalidConfig) {
				t.Fatalf("err = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestParse_Malformed(t *testing.T) {
	_, err := config.Parse([]byte("node: [unterminated"))
	if err == nil {
		t.Fatal("expected decode error")
	}
	if errors.Is(err, griddispatch.ErrInvalidConfig) {
		t.Error("decode errors should not be reported as validation errors")
	}
}
