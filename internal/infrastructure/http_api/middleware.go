package http_api

import (
	"context"
	"net/http"

	"github.com/felixge/httpsnoop"
	"github.com/google/uuid"
	"github.com/urfave/negroni/v3"
	"go.uber.org/zap"
)

type loggerKey struct{}

func loggerFrom(ctx context.Context, fallback *zap.Logger) *zap.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*zap.Logger); ok {
		return l
	}
	return fallback
}

func requestLogger(base *zap.Logger) negroni.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
		l := base.With(
			zap.String("request_id", uuid.NewString()),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
		)
		r = r.WithContext(context.WithValue(r.Context(), loggerKey{}, l))

		m := httpsnoop.CaptureMetrics(next, w, r)

		fields := []zap.Field{
			zap.Int("status", m.Code),
			zap.Int64("body_size", m.Written),
			zap.Int64("elapsed_ms", m.Duration.Milliseconds()),
		}
		switch {
		case m.Code >= 500:
			l.Error(http.StatusText(m.Code), fields...)
		case m.Code >= 400:
			l.Warn(http.StatusText(m.Code), fields...)
		default:
			l.Info(http.StatusText(m.Code), fields...)
		}
	}
}
