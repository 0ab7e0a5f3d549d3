package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/xraph/griddispatch/api"
)

func newRunCmd() *cobra.Command {
	var httpAddr string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a dispatch node until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("http-addr") {
				cfg.HTTP.Addr = httpAddr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runNode(ctx)
		},
	}
	cmd.Flags().StringVar(&httpAddr, "http-addr", "", "Admin API listen address; empty disables it (overrides http.addr)")
	return cmd
}

// runNode serves until ctx is cancelled.
func runNode(ctx context.Context) error {
	b, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := b.Close(); cerr != nil {
			logger.Warn("close backend", slog.String("error", cerr.Error()))
		}
	}()

	eng, err := buildEngine(cfg, b, logger)
	if err != nil {
		return err
	}
	if err := eng.Start(ctx); err != nil {
		return fmt.Errorf("start node: %w", err)
	}
	logger.Info("node started",
		slog.String("node_id", eng.Node().ID().String()),
		slog.String("store", cfg.Store.Backend),
		slog.String("membership", cfg.Membership.Provider),
		slog.Int("pool_size", cfg.Node.PoolSize),
	)

	g, gctx := errgroup.WithContext(ctx)

	var srv *http.Server
	addr := ""
	if cfg.HTTP.Addr != "" {
		ln, err := net.Listen("tcp", cfg.HTTP.Addr)
		if err != nil {
			_ = eng.Stop(context.Background())
			return fmt.Errorf("listen %s: %w", cfg.HTTP.Addr, err)
		}
		addr = ln.Addr().String()
		srv = &http.Server{
			Handler:           api.New(eng, api.WithLogger(logger)),
			ReadHeaderTimeout: 10 * time.Second,
		}
		g.Go(func() error {
			logger.Info("admin API listening", slog.String("addr", addr))
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("admin API: %w", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		// Node.Stop bounds itself by ShutdownTimeout; the server shares it.
		shutdownCtx := context.Background()
		if cfg.Node.ShutdownTimeout > 0 {
			var cancel context.CancelFunc
			shutdownCtx, cancel = context.WithTimeout(shutdownCtx, cfg.Node.ShutdownTimeout)
			defer cancel()
		}

		var errs []error
		if srv != nil {
			errs = append(errs, srv.Shutdown(shutdownCtx))
		}
		errs = append(errs, eng.Stop(shutdownCtx))
		return errors.Join(errs...)
	})

	return g.Wait()
}
