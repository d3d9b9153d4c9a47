// Package logging provides structured logging configuration for cfgd.
//
// This package wraps log/slog so every component logs the same way. It
// supports configurable log levels and output formats, and an optional audit
// file that receives a JSON copy of every record.
//
//	logger, closeFn, err := logging.Open(logging.Config{
//	    Level:     logging.LevelInfo,
//	    Format:    logging.FormatText,
//	    AuditFile: "/var/lib/cfgd/audit.log",
//	})
//
//	logger.Info("object created", "type", "MessageHub", "name", "hub1")
//
// Components should accept a *slog.Logger in their constructor or via an
// option. If no logger is provided, use logging.Nop().
package logging
