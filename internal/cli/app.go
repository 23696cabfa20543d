package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"messagecore/internal/archive"
	"messagecore/internal/blob"
	"messagecore/internal/config"
	"messagecore/internal/core"
	"messagecore/internal/infra/persistence/memory"
	"messagecore/internal/logging"
	"messagecore/internal/relay"
	"messagecore/pkg/domain"
)

// App is a fully wired service with its side-effect listeners.
type App struct {
	Config   config.Config
	Logger   *logging.Logger
	Service  *core.Service
	Registry *prometheus.Registry
	Archive  *archive.Archiver

	snapshot string
	closers  []func() error
}

type appSettings struct {
	variant  core.Variant
	paginate bool
	tracer   core.Tracer
	snapshot string
}

type appOption func(*appSettings)

// withDatabaseVariant keeps the counter field on create regardless of store.
func withDatabaseVariant() appOption {
	return func(s *appSettings) { s.variant = core.VariantDatabase }
}

// withPagination bounds find even on the memory store.
func withPagination() appOption {
	return func(s *appSettings) { s.paginate = true }
}

func withTracer(t core.Tracer) appOption {
	return func(s *appSettings) { s.tracer = t }
}

func withSnapshot(path string) appOption {
	return func(s *appSettings) { s.snapshot = path }
}

// newApp opens the configured store and attaches the archive and relay.
func newApp(ctx context.Context, cfg config.Config, logOut io.Writer, opts ...appOption) (*App, error) {
	settings := appSettings{variant: core.VariantMemory}
	for _, opt := range opts {
		opt(&settings)
	}

	logger, err := logging.New(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: logOut})
	if err != nil {
		return nil, err
	}
	app := &App{Config: cfg, Logger: logger, Registry: prometheus.NewRegistry(), snapshot: settings.snapshot}
	app.Registry.MustRegister(collectors.NewGoCollector())

	storeOpts := cfg.StorageOptions()
	store, err := core.OpenStore(ctx, storeOpts)
	if err != nil {
		return nil, err
	}
	if c, ok := store.(domain.Closer); ok {
		app.closers = append(app.closers, c.Close)
	}
	if err := app.restore(store); err != nil {
		_ = app.Close()
		return nil, err
	}

	recorder, err := core.NewPrometheusMetricsRecorder(app.Registry)
	if err != nil {
		_ = app.Close()
		return nil, err
	}

	variant := settings.variant
	if storeOpts.Driver.SQLBacked() {
		variant = core.VariantDatabase
	}
	svcOpts := []core.Option{
		core.WithHooks(core.MessageHooks(variant)),
		core.WithLogger(logger),
		core.WithMetricsRecorder(recorder),
		core.WithTracer(settings.tracer),
	}
	if storeOpts.Driver.SQLBacked() || settings.paginate {
		svcOpts = append(svcOpts, core.WithPaginate(cfg.PaginateOptions()))
	}
	app.Service = core.NewService(store, svcOpts...)

	if bc, ok := cfg.BlobConfig(); ok {
		bs, err := blob.Open(ctx, bc)
		if err != nil {
			_ = app.Close()
			return nil, fmt.Errorf("open archive: %w", err)
		}
		app.Archive = archive.New(bs)
		app.Archive.Attach(app.Service.Emitter())
		logger.Info("revision archive enabled", "driver", string(bc.Driver))
	}
	if cfg.Redis.Addr != "" {
		pub, err := relay.NewRedisPublisher(ctx, cfg.Redis.Addr)
		if err != nil {
			_ = app.Close()
			return nil, err
		}
		app.closers = append(app.closers, pub.Close)
		relay.New(pub, relay.WithChannel(cfg.Redis.Channel), relay.WithPath(app.Service.Path())).Attach(app.Service.Emitter())
		logger.Info("redis relay enabled", "addr", cfg.Redis.Addr, "channel", cfg.Redis.Channel)
	}
	return app, nil
}

// restore loads the snapshot file into a memory store. A missing file is not an error.
func (a *App) restore(store domain.RecordStore) error {
	mem, ok := store.(*memory.Store)
	if !ok || a.snapshot == "" {
		return nil
	}
	data, err := os.ReadFile(a.snapshot)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}
	var snap memory.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}
	mem.ImportState(snap)
	a.Logger.Info("snapshot restored", "path", a.snapshot, "records", len(snap.Records))
	return nil
}

func (a *App) save() error {
	if a.Service == nil || a.snapshot == "" {
		return nil
	}
	mem, ok := a.Service.Store().(*memory.Store)
	if !ok {
		return nil
	}
	data, err := json.MarshalIndent(mem.ExportState(), "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := os.WriteFile(a.snapshot, data, 0o600); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

// Close saves the snapshot and releases stores and connections.
func (a *App) Close() error {
	errs := []error{a.save()}
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}
