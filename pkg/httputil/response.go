// Package httputil provides shared HTTP utilities for consistent response handling.
package httputil

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/msgsight/cfgd/pkg/cfgerr"
)

// MaxBodySize bounds request bodies read by ReadBody.
const MaxBodySize = 10 << 20

// internalMessage replaces the detail of internal failures on the wire.
const internalMessage = "An internal error occurred while processing the request."

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Status  int    `json:"status"`
	Code    string `json:"Code"`
	Message string `json:"Message"`
}

// WriteJSON writes a JSON response with the given status code.
// It sets the Content-Type header to application/json.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		_ = enc.Encode(data)
	}
}

// WriteOK writes a 200 OK response with data.
func WriteOK(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusOK, data)
}

// WriteError maps err onto its status and CWLNA code and writes the error
// envelope. Internal failures are logged with their cause and sanitized;
// client errors are logged at Warn.
func WriteError(w http.ResponseWriter, log *slog.Logger, err error) {
	ce := cfgerr.As(err)
	resp := ErrorResponse{Status: ce.Status(), Code: ce.Code, Message: ce.Error()}

	if ce.Kind == cfgerr.KindInternal {
		resp.Message = internalMessage
		if log != nil {
			log.Error("request failed", "code", ce.Code, "error", err)
		}
	} else if log != nil {
		log.Warn("request rejected", "code", ce.Code, "kind", ce.Kind.String(), "message", resp.Message)
	}
	WriteJSON(w, resp.Status, resp)
}

// WriteStatusError writes the error envelope for failures that carry no
// CWLNA classification, such as an unknown route.
func WriteStatusError(w http.ResponseWriter, status int, code, message string) {
	WriteJSON(w, status, ErrorResponse{Status: status, Code: code, Message: message})
}

// ErrBodyTooLarge is returned by ReadBody for bodies over MaxBodySize.
var ErrBodyTooLarge = errors.New("request body too large")

// ReadBody reads a request body up to MaxBodySize.
func ReadBody(r *http.Request) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r.Body, MaxBodySize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > MaxBodySize {
		return nil, ErrBodyTooLarge
	}
	return data, nil
}
