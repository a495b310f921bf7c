// Package logging provides structured logging for Fleet Core.
//
// It wraps the standard library's log/slog with configuration-driven
// setup (level, format, destination) and default service fields.
//
// Usage:
//
//	log := logging.New(cfg.Logging, version)
//	log.Info("device registered", "device_id", id)
//
//	// Component-scoped logger
//	schedLog := log.With("component", "schedule")
package logging
