package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"messagecore/internal/core"
	"messagecore/internal/httpapi"
)

const shutdownTimeout = 5 * time.Second

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr      string
	TraceFile string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the messages resource over HTTP",
		Long: `Serve the messages resource over REST with a websocket event stream at
/messages/events and Prometheus metrics at /metrics.

Example:
  messagecore serve --addr :3030
  messagecore serve --storage sqlite --trace-file spans.jsonl`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "override MESSAGECORE_ADDR")
	cmd.Flags().StringVar(&opts.TraceFile, "trace-file", "", "write JSON trace spans to this file")

	return cmd
}

func runServe(cmd *cobra.Command, opts *ServeOptions) error {
	cfg := opts.Config()
	if opts.Addr != "" {
		cfg.Addr = opts.Addr
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appOpts := []appOption{withSnapshot(opts.Snapshot)}
	if opts.TraceFile != "" {
		f, err := os.OpenFile(opts.TraceFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return fmt.Errorf("open trace file: %w", err)
		}
		defer func() { _ = f.Close() }()
		appOpts = append(appOpts, withTracer(core.NewJSONTracer(f)))
	}

	app, err := newApp(ctx, cfg, cmd.ErrOrStderr(), appOpts...)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			app.Logger.Error("shutdown cleanup failed", "error", err)
		}
	}()

	api := httpapi.New(app.Service,
		httpapi.WithLogger(app.Logger),
		httpapi.WithRateLimit(cfg.Rate.RPS, cfg.Rate.Burst),
		httpapi.WithMetricsHandler(promhttp.HandlerFor(app.Registry, promhttp.HandlerOpts{})),
		httpapi.WithEventStream(),
	)

	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Addr, err)
	}
	srv := &http.Server{Handler: api, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	app.Logger.Info("messagecore listening", "addr", ln.Addr().String(), "storage", cfg.Storage.Driver)
	fmt.Fprintf(cmd.OutOrStdout(), "messagecore listening on http://%s\n", ln.Addr())

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	app.Logger.Info("messagecore stopped")
	return nil
}
