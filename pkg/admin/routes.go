// Route registration for the Admin API.

package admin

import (
	"net/http"

	"github.com/msgsight/cfgd/pkg/notify"
)

// registerRoutes sets up all API routes.
func (a *API) registerRoutes(mux *http.ServeMux) {
	// Configuration objects
	mux.HandleFunc("GET /configuration", a.handleGetDocument)
	mux.HandleFunc("GET /configuration/{$}", a.handleGetDocument)
	mux.HandleFunc("GET /configuration/{type}", a.handleGetType)
	mux.HandleFunc("GET /configuration/{type}/{$}", a.handleGetType)
	mux.HandleFunc("GET /configuration/{type}/{name}", a.handleGetObject)
	mux.HandleFunc("POST /configuration", a.handleApply)
	mux.HandleFunc("POST /configuration/{$}", a.handleApply)
	mux.HandleFunc("DELETE /configuration/{type}/{name}", a.handleDelete)

	// Service lifecycle
	mux.HandleFunc("POST /service/restart", a.handleRestart)
	mux.HandleFunc("GET /service/status", a.handleStatus)

	// Change stream
	if a.hub != nil {
		mux.Handle("GET /events", notify.NewStreamHandler(a.hub, a.log))
	}

	// Descriptions
	mux.HandleFunc("GET /schema.json", a.handleDocumentSchema)
	mux.HandleFunc("GET /openapi.json", a.handleOpenAPI)

	// Health and metrics
	mux.HandleFunc("GET /health", a.handleHealth)
	if a.metrics != nil {
		mux.Handle("GET /metrics", a.metrics.Handler())
	}

	// Everything else, including wrong methods on known paths
	mux.HandleFunc("/", a.handleUnknown)
}
