package admin

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/msgsight/cfgd/pkg/cfgerr"
	"github.com/msgsight/cfgd/pkg/httputil"
	"github.com/msgsight/cfgd/pkg/lifecycle"
	"github.com/msgsight/cfgd/pkg/manager"
)

// ServiceName is the only service accepted by POST /service/restart.
const ServiceName = "Server"

// ============================================================================
// Configuration objects
// ============================================================================

func (a *API) handleGetDocument(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteOK(w, a.manager.Document())
}

func (a *API) handleGetType(w http.ResponseWriter, r *http.Request) {
	doc, err := a.manager.TypeDocument(r.PathValue("type"))
	if err != nil {
		httputil.WriteError(w, a.requestLog(r), err)
		return
	}
	httputil.WriteOK(w, doc)
}

func (a *API) handleGetObject(w http.ResponseWriter, r *http.Request) {
	doc, err := a.manager.ObjectDocument(r.PathValue("type"), r.PathValue("name"))
	if err != nil {
		httputil.WriteError(w, a.requestLog(r), err)
		return
	}
	httputil.WriteOK(w, doc)
}

func (a *API) handleApply(w http.ResponseWriter, r *http.Request) {
	log := a.requestLog(r)

	body, err := httputil.ReadBody(r)
	if err != nil {
		if errors.Is(err, httputil.ErrBodyTooLarge) {
			httputil.WriteStatusError(w, http.StatusRequestEntityTooLarge, cfgerr.CodeInvalidCall,
				cfgerr.Message(cfgerr.CodeInvalidCall, "POST /configuration"))
			return
		}
		httputil.WriteError(w, log, cfgerr.Internal(err))
		return
	}

	batch, err := manager.ParseRequest(a.manager.Registry(), body)
	if err != nil {
		httputil.WriteError(w, log, err)
		return
	}
	res, err := a.manager.Apply(r.Context(), batch)
	if err != nil {
		httputil.WriteError(w, log, err)
		return
	}
	httputil.WriteOK(w, a.manager.ResultDocument(res))
}

func (a *API) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := a.manager.Delete(r.Context(), r.PathValue("type"), r.PathValue("name")); err != nil {
		httputil.WriteError(w, a.requestLog(r), err)
		return
	}
	httputil.WriteOK(w, manager.Confirmation())
}

// ============================================================================
// Service
// ============================================================================

// restartRequest is the body of POST /service/restart.
type restartRequest struct {
	Service string `json:"Service"`
}

func (a *API) handleRestart(w http.ResponseWriter, r *http.Request) {
	log := a.requestLog(r)

	body, err := httputil.ReadBody(r)
	if err != nil {
		httputil.WriteError(w, log, cfgerr.Internal(err))
		return
	}
	var req restartRequest
	if err := json.Unmarshal(body, &req); err != nil || !strings.EqualFold(req.Service, ServiceName) {
		httputil.WriteError(w, log, cfgerr.InvalidShape("POST /service/restart"))
		return
	}

	if a.service != nil {
		err = a.service.Restart(r.Context())
	} else {
		_, err = a.manager.Reload(r.Context())
	}
	if errors.Is(err, lifecycle.ErrInvalidState) {
		httputil.WriteStatusError(w, http.StatusConflict, cfgerr.CodeInvalidCall,
			"The service cannot be restarted in state "+a.service.State()+".")
		return
	}
	if err != nil {
		httputil.WriteError(w, log, err)
		return
	}
	log.Info("service restarted", "revision", a.manager.Revision())
	httputil.WriteOK(w, manager.Confirmation())
}

// StatusResponse is the body of GET /service/status.
type StatusResponse struct {
	Service     string    `json:"Service"`
	State       string    `json:"State"`
	Since       time.Time `json:"Since,omitzero"`
	StartedAt   time.Time `json:"StartedAt,omitzero"`
	Restarts    int       `json:"Restarts"`
	LastError   string    `json:"LastError,omitempty"`
	Version     string    `json:"Version"`
	Backend     string    `json:"Backend"`
	Revision    uint64    `json:"Revision"`
	Objects     int       `json:"Objects"`
	Subscribers int       `json:"Subscribers"`
	Uptime      int64     `json:"Uptime"`
}

func (a *API) handleStatus(w http.ResponseWriter, _ *http.Request) {
	snap := a.manager.Snapshot()
	resp := StatusResponse{
		Service:  ServiceName,
		State:    lifecycle.StateRunning,
		Version:  a.manager.Version(),
		Backend:  a.backend,
		Revision: snap.Revision(),
		Objects:  snap.Len(),
		Uptime:   int64(a.Uptime().Seconds()),
	}
	if a.service != nil {
		st := a.service.Status()
		resp.State = st.State
		resp.Since = st.Since
		resp.StartedAt = st.StartedAt
		resp.Restarts = st.Restarts
		resp.LastError = st.LastError
	}
	if a.hub != nil {
		resp.Subscribers = a.hub.Subscribers()
	}
	httputil.WriteOK(w, resp)
}

// ============================================================================
// Descriptions, health
// ============================================================================

func (a *API) handleDocumentSchema(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteOK(w, a.manager.Registry().DocumentSchema())
}

func (a *API) handleOpenAPI(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(a.openapi)
}

func (a *API) handleHealth(w http.ResponseWriter, _ *http.Request) {
	status := http.StatusOK
	body := map[string]any{"status": "ok", "uptime": int64(a.Uptime().Seconds())}
	if a.service != nil {
		if state := a.service.State(); state != lifecycle.StateRunning {
			status = http.StatusServiceUnavailable
			body["status"] = state
		}
	}
	httputil.WriteJSON(w, status, body)
}

func (a *API) handleUnknown(w http.ResponseWriter, r *http.Request) {
	httputil.WriteError(w, a.requestLog(r), cfgerr.InvalidShape(r.Method+" "+r.URL.Path))
}
