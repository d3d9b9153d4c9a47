package logging

import (
	"context"
	"log/slog"
)

// AuditKey marks a record as a configuration change. Records carrying it are
// copied to the audit log.
const AuditKey = "revision"

// auditHandler sends every record to the console handler and copies
// configuration changes to the audit handler. Attributes added with With
// count, so a logger scoped to one revision audits everything it writes.
type auditHandler struct {
	console slog.Handler
	audit   slog.Handler
	marked  bool
}

func newAuditHandler(console, audit slog.Handler) *auditHandler {
	return &auditHandler{console: console, audit: audit}
}

func (h *auditHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.console.Enabled(ctx, level) || h.audit.Enabled(ctx, level)
}

func (h *auditHandler) Handle(ctx context.Context, r slog.Record) error {
	var err error
	if h.console.Enabled(ctx, r.Level) {
		err = h.console.Handle(ctx, r)
	}
	if !h.audit.Enabled(ctx, r.Level) || !(h.marked || hasAuditKey(r)) {
		return err
	}
	// Both handlers always run; the console error wins.
	if aerr := h.audit.Handle(ctx, r.Clone()); err == nil {
		err = aerr
	}
	return err
}

func (h *auditHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	marked := h.marked
	for _, a := range attrs {
		if a.Key == AuditKey {
			marked = true
		}
	}
	return &auditHandler{console: h.console.WithAttrs(attrs), audit: h.audit.WithAttrs(attrs), marked: marked}
}

func (h *auditHandler) WithGroup(name string) slog.Handler {
	return &auditHandler{console: h.console.WithGroup(name), audit: h.audit.WithGroup(name), marked: h.marked}
}

func hasAuditKey(r slog.Record) bool {
	found := false
	r.Attrs(func(a slog.Attr) bool {
		found = a.Key == AuditKey
		return !found
	})
	return found
}
