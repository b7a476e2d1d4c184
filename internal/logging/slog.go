// Package logging holds the slog attribute keys shared across linkharvest so
// log lines stay greppable.
package logging

import (
	"fmt"
	"log/slog"
)

const (
	KeyOperation = "operation"
	KeyMessageID = "message_id"
	KeyThreadID  = "thread_id"
	KeyCount     = "count"
	KeyPath      = "path"
	KeyError     = "error"
)

// WithOperation returns a logger with the operation attribute set.
func WithOperation(logger *slog.Logger, operation string) *slog.Logger {
	return logger.With(slog.String(KeyOperation, operation))
}

func MessageID(id string) slog.Attr { return slog.String(KeyMessageID, id) }

func ThreadID(id string) slog.Attr { return slog.String(KeyThreadID, id) }

func Count(n int) slog.Attr { return slog.Int(KeyCount, n) }

func Path(p string) slog.Attr { return slog.String(KeyPath, p) }

// Err returns an error attribute. A nil error yields an empty group, which
// slog drops from output.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Group("")
	}
	return slog.String(KeyError, err.Error())
}

// SanitizeToken masks a token for logging, keeping only its length.
func SanitizeToken(token string) string {
	if token == "" {
		return "<empty>"
	}
	return fmt.Sprintf("[token:%d chars]", len(token))
}
