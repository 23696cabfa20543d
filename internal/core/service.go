package core

import (
	"context"
	"time"

	"github.com/google/uuid"

	"messagecore/internal/infra/persistence/memory"
	"messagecore/pkg/domain"
)

// Service is the uniform facade over a record store. Every operation builds a
// HookContext, runs the before hooks, calls the store, runs the after hooks,
// and emits an event for successful mutations. Hook tables are fixed at
// construction.
type Service struct {
	path     string
	store    domain.RecordStore
	hooks    Hooks
	emitter  *Emitter
	logger   Logger
	clock    Clock
	metrics  MetricsRecorder
	tracer   Tracer
	observer ErrorObserver
	paginate domain.Paginate
}

// Option configures a Service at construction.
type Option func(*Service)

// WithPath sets the service path reported to observers and logs.
func WithPath(path string) Option {
	return func(s *Service) {
		if path != "" {
			s.path = path
		}
	}
}

// WithHooks installs the before/after hook table. The table is copied.
func WithHooks(h Hooks) Option {
	return func(s *Service) { s.hooks = h.clone() }
}

// WithEmitter shares an existing emitter, e.g. one with listeners attached
// before the service is built.
func WithEmitter(e *Emitter) Option {
	return func(s *Service) {
		if e != nil {
			s.emitter = e
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(l Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the time source used by timestamp hooks.
func WithClock(c Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithMetricsRecorder sets the metrics sink.
func WithMetricsRecorder(m MetricsRecorder) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithTracer sets the tracer.
func WithTracer(t Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithErrorObserver replaces the default failure observer, which logs through
// the service logger.
func WithErrorObserver(o ErrorObserver) Option {
	return func(s *Service) { s.observer = o }
}

// WithPaginate bounds find results.
func WithPaginate(p domain.Paginate) Option {
	return func(s *Service) { s.paginate = p }
}

// NewService constructs a service over store.
func NewService(store domain.RecordStore, opts ...Option) *Service {
	s := &Service{
		path:    DefaultPath,
		store:   store,
		hooks:   Hooks{}.clone(),
		logger:  noopLogger{},
		clock:   systemClock{},
		metrics: noopMetrics{},
		tracer:  noopTracer{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.emitter == nil {
		s.emitter = NewEmitter(s.logger)
	}
	if s.observer == nil {
		s.observer = LogErrors(s.logger)
	}
	return s
}

// NewInMemoryService creates a service over a fresh in-memory store.
func NewInMemoryService(opts ...Option) *Service {
	return NewService(memory.NewStore(), opts...)
}

// Path returns the service path.
func (s *Service) Path() string { return s.path }

// Store returns the underlying record store.
func (s *Service) Store() domain.RecordStore { return s.store }

// Emitter returns the event emitter.
func (s *Service) Emitter() *Emitter { return s.emitter }

// On subscribes listener to event.
func (s *Service) On(event domain.Event, listener Listener) {
	s.emitter.On(event, listener)
}

// Find returns the records selected by q.
func (s *Service) Find(ctx context.Context, q domain.Query) ([]domain.Record, error) {
	hc, err := s.run(ctx, HookContext{Method: domain.MethodFind, Query: q}, func(ctx context.Context, hc *HookContext) error {
		query := hc.Query
		if s.paginate.Enabled() {
			query = s.paginate.Apply(query)
		}
		out, err := s.store.Find(ctx, query)
		if err != nil {
			return err
		}
		hc.Results = out
		return nil
	})
	if err != nil {
		return nil, err
	}
	return hc.Results, nil
}

// Get returns the record with id.
func (s *Service) Get(ctx context.Context, id int64) (domain.Record, error) {
	hc, err := s.run(ctx, HookContext{Method: domain.MethodGet, ID: id}, func(ctx context.Context, hc *HookContext) error {
		rec, err := s.store.Get(ctx, hc.ID)
		hc.Result = rec
		return err
	})
	if err != nil {
		return nil, err
	}
	return hc.Result, nil
}

// Create stores a new record built from data.
func (s *Service) Create(ctx context.Context, data domain.Record) (domain.Record, error) {
	hc, err := s.run(ctx, HookContext{Method: domain.MethodCreate, Data: input(data)}, func(ctx context.Context, hc *HookContext) error {
		rec, err := s.store.Create(ctx, hc.Data)
		hc.Result = rec
		return err
	})
	if err != nil {
		return nil, err
	}
	return hc.Result, nil
}

// Update replaces every field of the record except its id.
func (s *Service) Update(ctx context.Context, id int64, data domain.Record) (domain.Record, error) {
	hc, err := s.run(ctx, HookContext{Method: domain.MethodUpdate, ID: id, Data: input(data)}, func(ctx context.Context, hc *HookContext) error {
		rec, err := s.store.Update(ctx, hc.ID, hc.Data)
		hc.Result = rec
		return err
	})
	if err != nil {
		return nil, err
	}
	return hc.Result, nil
}

// Patch merges data onto the record.
func (s *Service) Patch(ctx context.Context, id int64, data domain.Record) (domain.Record, error) {
	hc, err := s.run(ctx, HookContext{Method: domain.MethodPatch, ID: id, Data: input(data)}, func(ctx context.Context, hc *HookContext) error {
		rec, err := s.store.Patch(ctx, hc.ID, hc.Data)
		hc.Result = rec
		return err
	})
	if err != nil {
		return nil, err
	}
	return hc.Result, nil
}

// Remove deletes the record and returns it.
func (s *Service) Remove(ctx context.Context, id int64) (domain.Record, error) {
	hc, err := s.run(ctx, HookContext{Method: domain.MethodRemove, ID: id}, func(ctx context.Context, hc *HookContext) error {
		rec, err := s.store.Remove(ctx, hc.ID)
		hc.Result = rec
		return err
	})
	if err != nil {
		return nil, err
	}
	return hc.Result, nil
}

func input(data domain.Record) domain.Record {
	if data == nil {
		return domain.Record{}
	}
	return domain.NormalizeRecord(data)
}

func (s *Service) run(ctx context.Context, hc HookContext, exec func(context.Context, *HookContext) error) (HookContext, error) {
	operation := s.path + "." + string(hc.Method)
	started := time.Now()
	hc.CallID = uuid.NewString()
	hc.Path = s.path
	hc.HasID = hc.Method.TargetsID()
	hc.StartedAt = s.clock.Now()
	hc.clock = s.clock

	ctx, span := s.tracer.Start(ctx, operation)
	var err error
	defer func() {
		span.End(err)
		s.metrics.Observe(ctx, operation, err == nil, time.Since(started))
	}()

	var failedHook string
	hc, failedHook, err = runHooks(ctx, s.hooks.before(hc.Method), hc)
	if err == nil {
		err = exec(ctx, &hc)
	}
	if err == nil {
		hc, failedHook, err = runHooks(ctx, s.hooks.after(hc.Method), hc)
	}
	if err != nil {
		if failedHook != "" {
			s.logger.Debug("hook aborted call", "call_id", hc.CallID, "hook", failedHook, "method", string(hc.Method))
		}
		s.observer(ctx, s.path, hc.Method, err)
		return hc, err
	}

	if event, ok := hc.Method.Event(); ok {
		s.emitter.Emit(ctx, event, hc.Result)
	}
	s.logger.Debug("service method completed", "call_id", hc.CallID, "path", s.path, "method", string(hc.Method), "duration", time.Since(started))
	return hc, nil
}
