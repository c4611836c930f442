// Package logger configures the process-wide slog logger.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
)

// New builds a logger writing to w. The dev environment gets a text handler
// at debug level unless level says otherwise; everything else logs JSON.
func New(env, level string, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}
	dev := strings.EqualFold(strings.TrimSpace(env), "dev")

	opts := &slog.HandlerOptions{Level: ParseLevel(level, dev)}

	var handler slog.Handler
	if dev {
		handler = slog.NewTextHandler(w, opts)
	} else {
		opts.AddSource = true
		handler = slog.NewJSONHandler(w, opts)
	}
	return slog.New(contextHandler{Handler: handler})
}

// Init builds a logger for stdout and installs it as the slog default.
func Init(env, level string) *slog.Logger {
	log := New(env, level, os.Stdout)
	slog.SetDefault(log)
	return log
}

// ParseLevel maps LOG_LEVEL values onto slog levels. Unknown or empty values
// fall back to debug in dev and info elsewhere.
func ParseLevel(level string, dev bool) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	if dev {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// contextHandler stamps records with the chi request id when one is present.
type contextHandler struct {
	slog.Handler
}

func (h contextHandler) Handle(ctx context.Context, r slog.Record) error {
	if id := middleware.GetReqID(ctx); id != "" {
		r.AddAttrs(slog.String("request_id", id))
	}
	return h.Handler.Handle(ctx, r)
}

func (h contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return contextHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h contextHandler) WithGroup(name string) slog.Handler {
	return contextHandler{Handler: h.Handler.WithGroup(name)}
}
