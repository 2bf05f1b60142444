// Package logging provides structured logging for Facility Core.
//
// It wraps Go's standard log/slog package to provide consistent,
// structured logging across the application: JSON output for production,
// text for development, default service/version fields on every entry,
// and level-based filtering.
//
// Never log secrets, tokens, or password material.
package logging
