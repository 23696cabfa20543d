// Package httpapi exposes the messages service over REST with a websocket
// event stream. It is a thin adapter: every request maps onto exactly one
// service facade call.
package httpapi

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"messagecore/internal/core"
	"messagecore/pkg/domain"
)

const maxBodyBytes = 1 << 20

// Server routes HTTP requests to a service.
type Server struct {
	svc     *core.Service
	router  *mux.Router
	logger  core.Logger
	hub     *Hub
	limiter *RateLimiter
	metrics http.Handler
	stream  bool
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(l core.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRateLimit enables per-client rate limiting. A non-positive rps disables it.
func WithRateLimit(rps float64, burst int) Option {
	return func(s *Server) {
		if rps > 0 {
			s.limiter = NewRateLimiter(rps, burst)
		}
	}
}

// WithMetricsHandler mounts h at /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// WithEventStream mounts a websocket hub at /<path>/events and subscribes it
// to every mutation event of the service.
func WithEventStream() Option {
	return func(s *Server) { s.stream = true }
}

// New builds the router for svc.
func New(svc *core.Service, opts ...Option) *Server {
	s := &Server{svc: svc, router: mux.NewRouter(), logger: noopLogger{}}
	for _, opt := range opts {
		opt(s)
	}
	if s.stream {
		s.hub = NewHub(s.logger)
	}
	s.routes()
	return s
}

// Hub returns the websocket hub, nil when the event stream is disabled.
func (s *Server) Hub() *Hub { return s.hub }

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	base := "/" + strings.Trim(s.svc.Path(), "/")
	s.router.Use(s.logRequests)
	if s.limiter != nil {
		s.router.Use(s.limiter.Middleware)
	}
	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics).Methods(http.MethodGet)
	}
	if s.hub != nil {
		s.hub.Attach(s.svc.Emitter())
		s.router.Handle(base+"/events", s.hub).Methods(http.MethodGet)
	}
	s.router.HandleFunc(base, s.find).Methods(http.MethodGet)
	s.router.HandleFunc(base, s.create).Methods(http.MethodPost)
	s.router.HandleFunc(base+"/{id}", s.get).Methods(http.MethodGet)
	s.router.HandleFunc(base+"/{id}", s.update).Methods(http.MethodPut)
	s.router.HandleFunc(base+"/{id}", s.patch).Methods(http.MethodPatch)
	s.router.HandleFunc(base+"/{id}", s.remove).Methods(http.MethodDelete)
	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, &httpError{status: http.StatusNotFound, msg: fmt.Sprintf("Page not found: %s", r.URL.Path)})
	})
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, &httpError{status: http.StatusMethodNotAllowed, msg: fmt.Sprintf("Method %s not allowed", r.Method)})
	})
}

func (s *Server) find(w http.ResponseWriter, r *http.Request) {
	q, err := domain.ParseQuery(r.URL.RawQuery)
	if err != nil {
		writeError(w, err)
		return
	}
	out, err := s.svc.Find(r.Context(), q)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	rec, err := s.svc.Get(r.Context(), id)
	s.respond(w, http.StatusOK, rec, err)
}

func (s *Server) create(w http.ResponseWriter, r *http.Request) {
	data, err := readBody(r)
	if err != nil {
		writeError(w, err)
		return
	}
	rec, err := s.svc.Create(r.Context(), data)
	s.respond(w, http.StatusCreated, rec, err)
}

func (s *Server) update(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, s.svc.Update)
}

func (s *Server) patch(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, s.svc.Patch)
}

func (s *Server) mutate(w http.ResponseWriter, r *http.Request, call func(context.Context, int64, domain.Record) (domain.Record, error)) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	data, err := readBody(r)
	if err != nil {
		writeError(w, err)
		return
	}
	rec, err := call(r.Context(), id, data)
	s.respond(w, http.StatusOK, rec, err)
}

func (s *Server) remove(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	rec, err := s.svc.Remove(r.Context(), id)
	s.respond(w, http.StatusOK, rec, err)
}

func (s *Server) respond(w http.ResponseWriter, status int, rec domain.Record, err error) {
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, status, rec)
}

func pathID(r *http.Request) (int64, error) {
	raw := mux.Vars(r)["id"]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, badRequest(fmt.Sprintf("invalid id %q", raw))
	}
	return id, nil
}

// readBody accepts JSON and url-encoded bodies. Repeated form keys become lists.
func readBody(r *http.Request) (domain.Record, error) {
	r.Body = http.MaxBytesReader(nil, r.Body, maxBodyBytes)
	ct := r.Header.Get("Content-Type")
	mediaType := "application/json"
	if ct != "" {
		parsed, _, err := mime.ParseMediaType(ct)
		if err != nil {
			return nil, badRequest("malformed Content-Type")
		}
		mediaType = parsed
	}
	switch mediaType {
	case "application/json":
		dec := json.NewDecoder(r.Body)
		dec.UseNumber()
		var data domain.Record
		if err := dec.Decode(&data); err != nil {
			if errors.Is(err, io.EOF) {
				return domain.Record{}, nil
			}
			return nil, bodyError(err, "invalid JSON body")
		}
		if _, err := dec.Token(); !errors.Is(err, io.EOF) {
			return nil, bodyError(err, "unexpected data after JSON body")
		}
		return data, nil
	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return nil, bodyError(err, "invalid form body")
		}
		data := make(domain.Record, len(r.PostForm))
		for k, vals := range r.PostForm {
			if len(vals) == 1 {
				data[k] = vals[0]
				continue
			}
			list := make([]any, len(vals))
			for i, v := range vals {
				list[i] = v
			}
			data[k] = list
		}
		return data, nil
	default:
		return nil, &httpError{status: http.StatusUnsupportedMediaType, msg: fmt.Sprintf("unsupported content type %s", mediaType)}
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("http request", "method", r.Method, "path", r.URL.Path, "status", rec.status, "duration", time.Since(started))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack lets the websocket upgrader take over the connection.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
