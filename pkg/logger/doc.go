// Package logger provides helper slog attribute constructors shared across
// the engine's packages so that log records use consistent keys. Helpers
// accepting a nilable value return an empty Attr for nil, which slog drops
// silently.
package logger
