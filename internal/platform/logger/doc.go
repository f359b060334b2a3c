// Package logger configures the application's structured slog logger and
// provides helpers for carrying a logger through a context.Context.
package logger
