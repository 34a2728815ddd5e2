package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

var level = new(slog.LevelVar)

// SetLevel accepts DEBUG, INFO, WARN or ERROR. Unknown values keep INFO.
func SetLevel(s string) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		level.Set(slog.LevelDebug)
	case "WARN":
		level.Set(slog.LevelWarn)
	case "ERROR":
		level.Set(slog.LevelError)
	default:
		level.Set(slog.LevelInfo)
	}
}

type Logger struct {
	service   string
	requestID string
	base      *slog.Logger
}

func New(service string) *Logger { return NewWithWriter(service, os.Stdout) }

func NewWithWriter(service string, w io.Writer) *Logger {
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			switch a.Key {
			case slog.TimeKey:
				a.Key = "timestamp"
				a.Value = slog.StringValue(a.Value.Time().UTC().Format(time.RFC3339Nano))
			case slog.MessageKey:
				a.Key = "message"
			}
			return a
		},
	})
	return &Logger{
		service: service,
		base:    slog.New(h).With("service", service, "hostname", hostname()),
	}
}

// WithRequestID returns a copy bound to a request id.
func (l *Logger) WithRequestID(id string) *Logger {
	cp := *l
	cp.requestID = id
	return &cp
}

func (l *Logger) log(lvl slog.Level, action string, fields map[string]any, err error) {
	attrs := make([]any, 0, 2*len(fields)+6)
	attrs = append(attrs, "action", action, "request_id", l.requestID)
	for k, v := range fields {
		attrs = append(attrs, k, v)
	}
	if err != nil {
		attrs = append(attrs, slog.Group("error", "msg", err.Error(), "type", fmt.Sprintf("%T", err)))
	}
	l.base.Log(context.Background(), lvl, action, attrs...)
}

func (l *Logger) Info(action string, fields map[string]any)  { l.log(slog.LevelInfo, action, fields, nil) }
func (l *Logger) Debug(action string, fields map[string]any) { l.log(slog.LevelDebug, action, fields, nil) }
func (l *Logger) Warn(action string, fields map[string]any)  { l.log(slog.LevelWarn, action, fields, nil) }
func (l *Logger) Error(action string, err error, fields map[string]any) {
	l.log(slog.LevelError, action, fields, err)
}

// Middleware writes one access record per request.
func (l *Logger) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		l.WithRequestID(middleware.GetReqID(r.Context())).Info("http_request", map[string]any{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      ww.Status(),
			"bytes":       ww.BytesWritten(),
			"duration_ms": time.Since(start).Milliseconds(),
		})
	})
}

func hostname() string { h, _ := os.Hostname(); return h }
