// Package metrics expone las métricas Prometheus del servicio y el
// handler para /metrics.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	authOnce sync.Once
	authErr  error

	authAttemptsTotal    *prometheus.CounterVec
	codeExchangeDuration prometheus.Histogram
)

// AuthRecorder registra resultados de intentos de autenticación y latencia
// del intercambio de código. Implementa el Recorder del servicio social.
type AuthRecorder struct{}

// NewAuthRecorder registra las métricas en el registry indicado (nil usa el
// global) y devuelve el recorder. Idempotente: registros duplicados se
// ignoran.
func NewAuthRecorder(registry prometheus.Registerer) (*AuthRecorder, error) {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	authOnce.Do(func() {
		authAttemptsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "weauth_auth_attempts_total",
			Help: "Intentos de autenticación por variante y resultado",
		}, []string{"variant", "result"}) // result: authenticated|failed

		codeExchangeDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "weauth_code_exchange_duration_seconds",
			Help:    "Latencia del intercambio código-por-token contra el proveedor",
			Buckets: prometheus.DefBuckets,
		})

		if err := registerCollector(registry, authAttemptsTotal); err != nil {
			authErr = err
			return
		}
		if err := registerCollector(registry, codeExchangeDuration); err != nil {
			authErr = err
			return
		}
	})
	if authErr != nil {
		return nil, authErr
	}
	return &AuthRecorder{}, nil
}

// AttemptResult incrementa el contador de intentos.
func (r *AuthRecorder) AttemptResult(variant, result string) {
	if authAttemptsTotal != nil {
		authAttemptsTotal.WithLabelValues(variant, result).Inc()
	}
}

// ExchangeObserved registra la duración de un intercambio de código.
func (r *AuthRecorder) ExchangeObserved(d time.Duration) {
	if codeExchangeDuration != nil {
		codeExchangeDuration.Observe(d.Seconds())
	}
}

// Handler devuelve el handler HTTP para /metrics.
// Usamos el gatherer global por compatibilidad, ya que las métricas se
// registran allí.
func Handler() http.Handler {
	return promhttp.Handler()
}

// registerCollector registra el collector en el registry indicado,
// ignorando duplicados.
func registerCollector(reg prometheus.Registerer, collector prometheus.Collector) error {
	if err := reg.Register(collector); err != nil {
		if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return nil
		}
		return err
	}
	return nil
}
