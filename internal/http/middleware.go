package http

import (
	stdhttp "net/http"
	"time"

	"github.com/google/uuid"

	"github.com/weauth/weauth/internal/observability/logger"
)

const requestIDHeader = "X-Request-Id"

// WithRequestID asigna un request id (o respeta el entrante) y lo inyecta
// junto con un logger enriquecido en el contexto del request.
func WithRequestID(next stdhttp.Handler) stdhttp.Handler {
	return stdhttp.HandlerFunc(func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		rid := r.Header.Get(requestIDHeader)
		if rid == "" {
			rid = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, rid)

		log := logger.With(logger.RequestID(rid))
		ctx := logger.ToContext(r.Context(), log)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// WithAccessLog loguea cada request con método, path, status y duración.
func WithAccessLog(next stdhttp.Handler) stdhttp.Handler {
	return stdhttp.HandlerFunc(func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}

		next.ServeHTTP(rec, r)

		status := rec.status
		if status == 0 {
			status = stdhttp.StatusOK
		}
		logger.From(r.Context()).Info("http request",
			logger.Method(r.Method),
			logger.Path(r.URL.Path),
			logger.Status(status),
			logger.Duration(time.Since(start)),
		)
	})
}

// statusRecorder captura el status code escrito por el handler.
type statusRecorder struct {
	stdhttp.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
