package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/msgsight/cfgd/pkg/lifecycle"
	"github.com/msgsight/cfgd/pkg/logging"
	"github.com/msgsight/cfgd/pkg/manager"
	"github.com/msgsight/cfgd/pkg/metrics"
	"github.com/msgsight/cfgd/pkg/notify"
)

// Default server timeouts.
const (
	DefaultReadTimeout  = 30 * time.Second
	DefaultWriteTimeout = 30 * time.Second
)

// API exposes the configuration REST API.
type API struct {
	manager *manager.Manager
	service *lifecycle.Service
	hub     *notify.Hub
	metrics *metrics.Metrics
	log     *slog.Logger
	backend string

	openapi []byte
	handler http.Handler

	readTimeout  time.Duration
	writeTimeout time.Duration
	startTime    time.Time

	mu         sync.Mutex
	httpServer *http.Server
	listener   net.Listener
	serveErr   chan error
}

// NewAPI creates the API over a manager. The OpenAPI description is built
// and validated here, so a broken description fails construction.
func NewAPI(m *manager.Manager, opts ...Option) (*API, error) {
	a := &API{
		manager:      m,
		log:          logging.Nop(),
		backend:      m.Store().Backend().Name(),
		readTimeout:  DefaultReadTimeout,
		writeTimeout: DefaultWriteTimeout,
		startTime:    time.Now(),
	}
	for _, opt := range opts {
		opt(a)
	}

	doc, err := BuildOpenAPI(context.Background(), m.Registry(), m.Version())
	if err != nil {
		return nil, err
	}
	a.openapi = doc

	mux := http.NewServeMux()
	a.registerRoutes(mux)
	a.handler = a.withMiddleware(mux)
	return a, nil
}

// Handler returns the HTTP handler with middleware applied.
func (a *API) Handler() http.Handler { return a.handler }

// Start listens on addr and serves in the background.
func (a *API) Start(addr string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.httpServer != nil {
		return errors.New("admin API already started")
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("admin API listen on %s: %w", addr, err)
	}
	a.listener = ln
	a.serveErr = make(chan error, 1)
	a.httpServer = &http.Server{
		Handler:           a.handler,
		ReadTimeout:       a.readTimeout,
		ReadHeaderTimeout: a.readTimeout,
		// Write deadlines are set per request so /events can stay open.
		WriteTimeout: 0,
		ErrorLog:     slog.NewLogLogger(a.log.Handler(), slog.LevelWarn),
	}

	go func() {
		err := a.httpServer.Serve(ln)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("admin API server error", "error", err)
			a.serveErr <- err
		}
		close(a.serveErr)
	}()

	a.log.Info("admin API listening", "addr", ln.Addr().String())
	return nil
}

// Addr returns the listen address once started.
func (a *API) Addr() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listener == nil {
		return ""
	}
	return a.listener.Addr().String()
}

// Done reports a serve failure; it is closed when the server stops.
func (a *API) Done() <-chan error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.serveErr
}

// Stop gracefully shuts down the server.
func (a *API) Stop(ctx context.Context) error {
	a.mu.Lock()
	srv := a.httpServer
	a.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// Uptime returns the time since the API was created.
func (a *API) Uptime() time.Duration {
	return time.Since(a.startTime)
}
