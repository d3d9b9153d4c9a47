package notify

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	ws "github.com/coder/websocket"

	"github.com/msgsight/cfgd/pkg/logging"
)

const writeTimeout = 10 * time.Second

// StreamHandler serves the change stream over WebSocket. Clients may limit
// the stream with one or more type query parameters, for example
// /events?type=Endpoint&type=MessageHub or /events?type=Endpoint,MessageHub.
type StreamHandler struct {
	hub *Hub
	log *slog.Logger
}

// NewStreamHandler creates a WebSocket handler fed by hub.
func NewStreamHandler(hub *Hub, log *slog.Logger) *StreamHandler {
	if log == nil {
		log = logging.Nop()
	}
	return &StreamHandler{hub: hub, log: log}
}

// ServeHTTP implements http.Handler.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var filter Filter
	for _, v := range r.URL.Query()["type"] {
		for _, t := range strings.Split(v, ",") {
			if t = strings.TrimSpace(t); t != "" {
				filter.Types = append(filter.Types, t)
			}
		}
	}

	conn, err := ws.Accept(w, r, &ws.AcceptOptions{
		CompressionMode: ws.CompressionDisabled,
	})
	if err != nil {
		h.log.Debug("websocket upgrade failed", "error", err)
		return
	}
	defer func() { _ = conn.CloseNow() }()

	sub := h.hub.Subscribe(filter)
	defer sub.Close()

	// The stream is write-only; CloseRead handles control frames and
	// cancels ctx when the client goes away.
	ctx := conn.CloseRead(r.Context())
	h.log.Debug("event stream opened", "remote", r.RemoteAddr, "types", filter.Types)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.C:
			if !ok {
				_ = conn.Close(ws.StatusGoingAway, "server shutting down")
				return
			}
			if err := writeEvent(ctx, conn, ev); err != nil {
				if !errors.Is(err, context.Canceled) {
					h.log.Debug("event stream write failed", "error", err)
				}
				return
			}
		}
	}
}

func writeEvent(ctx context.Context, conn *ws.Conn, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(ctx, ws.MessageText, data)
}
