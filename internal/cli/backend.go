package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/xraph/griddispatch"
	audithook "github.com/xraph/griddispatch/audit_hook"
	"github.com/xraph/griddispatch/cluster"
	"github.com/xraph/griddispatch/cluster/k8s"
	"github.com/xraph/griddispatch/engine"
	"github.com/xraph/griddispatch/id"
	"github.com/xraph/griddispatch/internal/config"
	"github.com/xraph/griddispatch/store/memory"
	pgstore "github.com/xraph/griddispatch/store/postgres"
	redisstore "github.com/xraph/griddispatch/store/redis"
	sqlitestore "github.com/xraph/griddispatch/store/sqlite"
)

// backend holds the opened shared store and membership registry.
type backend struct {
	store      griddispatch.Storer
	membership cluster.Store
	closers    []func() error
}

func (b *backend) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		errs = append(errs, b.closers[i]())
	}
	return errors.Join(errs...)
}

// openBackend connects the configured store, runs its migrations, and
// resolves the membership registry.
func openBackend(ctx context.Context, cfg config.File, logger *slog.Logger) (*backend, error) {
	b := &backend{}

	switch strings.ToLower(cfg.Store.Backend) {
	case config.BackendMemory:
		b.store = memory.New()

	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Store.Redis.Addr,
			Password: cfg.Store.Redis.Password,
			DB:       cfg.Store.Redis.DB,
		})
		b.closers = append(b.closers, client.Close)
		opts := []redisstore.Option{redisstore.WithLogger(logger)}
		if cfg.Store.Redis.Prefix != "" {
			opts = append(opts, redisstore.WithPrefix(cfg.Store.Redis.Prefix))
		}
		b.store = redisstore.New(client, opts...)

	case config.BackendPostgres:
		s, err := pgstore.New(ctx, cfg.Store.Postgres.DSN, pgstore.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		b.store = s

	case config.BackendSQLite:
		s, err := sqlitestore.Open(cfg.Store.SQLite.Path, sqlitestore.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		b.store = s

	default:
		return nil, fmt.Errorf("%w: unknown store backend %q", griddispatch.ErrInvalidConfig, cfg.Store.Backend)
	}
	b.closers = append(b.closers, b.store.Close)

	if err := b.store.Ping(ctx); err != nil {
		_ = b.Close()
		return nil, fmt.Errorf("ping %s store: %w", cfg.Store.Backend, err)
	}
	if err := b.store.Migrate(ctx); err != nil {
		_ = b.Close()
		return nil, err
	}

	if strings.EqualFold(cfg.Membership.Provider, config.MembershipKubernetes) {
		p, err := kubernetesProvider(cfg.Membership.Kubernetes, logger)
		if err != nil {
			_ = b.Close()
			return nil, err
		}
		b.membership = p
	}
	return b, nil
}

func kubernetesProvider(cfg config.KubernetesConfig, logger *slog.Logger) (*k8s.Provider, error) {
	var (
		restCfg *rest.Config
		err     error
	)
	if cfg.Kubeconfig != "" {
		restCfg, err = clientcmd.BuildConfigFromFlags("", cfg.Kubeconfig)
	} else {
		restCfg, err = rest.InClusterConfig()
	}
	if err != nil {
		return nil, fmt.Errorf("kubernetes config: %w", err)
	}
	client, err := kubernetes.NewForConfig(restCfg)
	if err != nil {
		return nil, fmt.Errorf("kubernetes client: %w", err)
	}

	opts := []k8s.Option{k8s.WithLogger(logger)}
	if cfg.LabelSelector != "" {
		opts = append(opts, k8s.WithLabelSelector(cfg.LabelSelector))
	}
	if cfg.AnnotationPrefix != "" {
		opts = append(opts, k8s.WithAnnotationPrefix(cfg.AnnotationPrefix))
	}
	return k8s.New(client, cfg.Namespace, opts...), nil
}

// buildEngine creates a node over the backend and wires it.
func buildEngine(cfg config.File, b *backend, logger *slog.Logger) (*engine.Engine, error) {
	nodeOpts := []griddispatch.Option{
		griddispatch.WithConfig(cfg.Dispatcher()),
		griddispatch.WithStore(b.store),
		griddispatch.WithLogger(logger),
	}
	if cfg.Node.ID != "" {
		nodeID, err := id.ParseNodeID(cfg.Node.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: node.id: %v", griddispatch.ErrInvalidConfig, err)
		}
		nodeOpts = append(nodeOpts, griddispatch.WithNodeID(nodeID))
	}
	if cfg.Node.Hostname != "" {
		nodeOpts = append(nodeOpts, griddispatch.WithHostname(cfg.Node.Hostname))
	}

	n, err := griddispatch.New(nodeOpts...)
	if err != nil {
		return nil, err
	}

	var engOpts []engine.Option
	if cfg.Node.JobTimeout > 0 {
		engOpts = append(engOpts, engine.WithJobTimeout(cfg.Node.JobTimeout))
	}
	if b.membership != nil {
		engOpts = append(engOpts, engine.WithMembership(b.membership))
	}
	if cfg.Audit.Enabled {
		auditOpts := []audithook.Option{audithook.WithNodeID(n.ID()), audithook.WithLogger(logger)}
		if len(cfg.Audit.Actions) > 0 {
			auditOpts = append(auditOpts, audithook.WithActions(cfg.Audit.Actions...))
		}
		engOpts = append(engOpts, engine.WithExtension(audithook.New(audithook.LogRecorder(logger), auditOpts...)))
	}
	eng, err := engine.Build(n, engOpts...)
	if err != nil {
		return nil, err
	}
	registerBuiltins(eng)
	return eng, nil
}
