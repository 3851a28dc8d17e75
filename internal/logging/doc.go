// Package logging configures log/slog for the chat binaries.
package logging
