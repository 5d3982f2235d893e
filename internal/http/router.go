// Package http arma el router del servicio: endpoints de autenticación
// social, health y métricas.
package http

import (
	stdhttp "net/http"

	"github.com/go-chi/chi/v5"

	controllers "github.com/weauth/weauth/internal/http/controllers/social"
	"github.com/weauth/weauth/internal/metrics"
)

// RouterDeps agrupa los handlers que expone el servicio.
type RouterDeps struct {
	Start    *controllers.StartController
	Callback *controllers.CallbackController
}

// NewRouter construye el router con middleware de request-id y access log.
func NewRouter(deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(WithRequestID)
	r.Use(WithAccessLog)

	r.Get("/healthz", func(w stdhttp.ResponseWriter, _ *stdhttp.Request) {
		w.WriteHeader(stdhttp.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(stdhttp.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1/auth/wechat", func(r chi.Router) {
		r.Get("/start", deps.Start.Start)
		r.Get("/callback", deps.Callback.Callback)
	})

	return r
}
