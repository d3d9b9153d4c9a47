// Option functions for configuring API.

package admin

import (
	"log/slog"
	"time"

	"github.com/msgsight/cfgd/pkg/lifecycle"
	"github.com/msgsight/cfgd/pkg/metrics"
	"github.com/msgsight/cfgd/pkg/notify"
)

// Option configures an API.
type Option func(*API)

// WithLogger sets the API logger.
func WithLogger(log *slog.Logger) Option {
	return func(a *API) {
		if log != nil {
			a.log = log
		}
	}
}

// WithService routes POST /service/restart through the lifecycle service.
// Without one, restart reloads the manager directly.
func WithService(s *lifecycle.Service) Option {
	return func(a *API) {
		a.service = s
	}
}

// WithHub enables GET /events.
func WithHub(h *notify.Hub) Option {
	return func(a *API) {
		a.hub = h
	}
}

// WithMetrics enables GET /metrics and request instrumentation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(a *API) {
		a.metrics = m
	}
}

// WithTimeouts sets the server read and write timeouts.
func WithTimeouts(read, write time.Duration) Option {
	return func(a *API) {
		if read > 0 {
			a.readTimeout = read
		}
		if write > 0 {
			a.writeTimeout = write
		}
	}
}
