// Package config loads the griddispatch node's YAML configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/xraph/griddispatch"
)

// Store backends.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

// Membership providers.
const (
	MembershipStore      = "store"
	MembershipKubernetes = "kubernetes"
)

// File is the on-disk configuration of one node.
type File struct {
	Node       NodeConfig       `yaml:"node"`
	Store      StoreConfig      `yaml:"store"`
	Membership MembershipConfig `yaml:"membership"`
	HTTP       HTTPConfig       `yaml:"http"`
	Log        LogConfig        `yaml:"log"`
	Audit      AuditConfig      `yaml:"audit"`
}

// NodeConfig mirrors griddispatch.Config plus identity.
type NodeConfig struct {
	ID                 string        `yaml:"id"`
	Hostname           string        `yaml:"hostname"`
	PoolSize           int           `yaml:"pool_size"`
	MaxInFlight        int           `yaml:"max_in_flight"`
	IdleInterval       time.Duration `yaml:"idle_interval"`
	MaxIdleInterval    time.Duration `yaml:"max_idle_interval"`
	HeartbeatInterval  time.Duration `yaml:"heartbeat_interval"`
	StaleNodeThreshold time.Duration `yaml:"stale_node_threshold"`
	SubmitRateLimit    float64       `yaml:"submit_rate_limit"`
	SubmitRateBurst    int           `yaml:"submit_rate_burst"`
	ShutdownTimeout    time.Duration `yaml:"shutdown_timeout"`
	JobTimeout         time.Duration `yaml:"job_timeout"`
}

// StoreConfig selects and configures the shared backend.
type StoreConfig struct {
	Backend  string         `yaml:"backend"`
	Redis    RedisConfig    `yaml:"redis"`
	Postgres PostgresConfig `yaml:"postgres"`
	SQLite   SQLiteConfig   `yaml:"sqlite"`
}

// RedisConfig configures the redis backend.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// PostgresConfig configures the postgres backend.
type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

// SQLiteConfig configures the sqlite backend.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// MembershipConfig selects where nodes register. "store" uses the shared
// backend; "kubernetes" uses Pod annotations.
type MembershipConfig struct {
	Provider   string           `yaml:"provider"`
	Kubernetes KubernetesConfig `yaml:"kubernetes"`
}

// KubernetesConfig configures the Pod annotation registry.
type KubernetesConfig struct {
	Namespace        string `yaml:"namespace"`
	LabelSelector    string `yaml:"label_selector"`
	AnnotationPrefix string `yaml:"annotation_prefix"`
	// Kubeconfig is used outside a cluster. Empty means in-cluster config.
	Kubeconfig string `yaml:"kubeconfig"`
}

// HTTPConfig configures the admin API. An empty Addr disables it.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// AuditConfig enables audit log lines for lifecycle events. An empty
// Actions list audits everything.
type AuditConfig struct {
	Enabled bool     `yaml:"enabled"`
	Actions []string `yaml:"actions"`
}

// Default returns a configuration for a single in-memory node.
func Default() File {
	d := griddispatch.DefaultConfig()
	return File{
		Node: NodeConfig{
			PoolSize:           d.PoolSize,
			MaxInFlight:        d.MaxInFlight,
			IdleInterval:       d.IdleInterval,
			MaxIdleInterval:    d.MaxIdleInterval,
			HeartbeatInterval:  d.HeartbeatInterval,
			StaleNodeThreshold: d.StaleNodeThreshold,
			SubmitRateLimit:    d.SubmitRateLimit,
			SubmitRateBurst:    d.SubmitRateBurst,
			ShutdownTimeout:    d.ShutdownTimeout,
		},
		Store: StoreConfig{
			Backend: BackendMemory,
			Redis:   RedisConfig{Addr: "localhost:6379"},
			SQLite:  SQLiteConfig{Path: "griddispatch.db"},
		},
		Membership: MembershipConfig{
			Provider:   MembershipStore,
			Kubernetes: KubernetesConfig{Namespace: "default"},
		},
		HTTP: HTTPConfig{Addr: ":8080"},
		Log:  LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (File, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (File, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Dispatcher returns the node settings as a griddispatch.Config.
func (f File) Dispatcher() griddispatch.Config {
	n := f.Node
	return griddispatch.Config{
		PoolSize:           n.PoolSize,
		MaxInFlight:        n.MaxInFlight,
		IdleInterval:       n.IdleInterval,
		MaxIdleInterval:    n.MaxIdleInterval,
		HeartbeatInterval:  n.HeartbeatInterval,
		StaleNodeThreshold: n.StaleNodeThreshold,
		SubmitRateLimit:    n.SubmitRateLimit,
		SubmitRateBurst:    n.SubmitRateBurst,
		ShutdownTimeout:    n.ShutdownTimeout,
	}
}

// Validate checks cross-field constraints.
func (f File) Validate() error {
	var errs []error
	if err := f.Dispatcher().Validate(); err != nil {
		errs = append(errs, err)
	}
	if f.Node.JobTimeout < 0 {
		errs = append(errs, fmt.Errorf("%w: job timeout must not be negative", griddispatch.ErrInvalidConfig))
	}

	switch strings.ToLower(f.Store.Backend) {
	case BackendMemory:
	case BackendRedis:
		if f.Store.Redis.Addr == "" {
			errs = append(errs, fmt.Errorf("%w: store.redis.addr is required", griddispatch.ErrInvalidConfig))
		}
	case BackendPostgres:
		if f.Store.Postgres.DSN == "" {
			errs = append(errs, fmt.Errorf("%w: store.postgres.dsn is required", griddispatch.ErrInvalidConfig))
		}
	case BackendSQLite:
		if f.Store.SQLite.Path == "" {
			errs = append(errs, fmt.Errorf("%w: store.sqlite.path is required", griddispatch.ErrInvalidConfig))
		}
	default:
		errs = append(errs, fmt.Errorf("%w: unknown store backend %q", griddispatch.ErrInvalidConfig, f.Store.Backend))
	}

	switch strings.ToLower(f.Membership.Provider) {
	case MembershipStore:
	case MembershipKubernetes:
		if f.Membership.Kubernetes.Namespace == "" {
			errs = append(errs, fmt.Errorf("%w: membership.kubernetes.namespace is required", griddispatch.ErrInvalidConfig))
		}
	default:
		errs = append(errs, fmt.Errorf("%w: unknown membership provider %q", griddispatch.ErrInvalidConfig, f.Membership.Provider))
	}

	return errors.Join(errs...)
}
