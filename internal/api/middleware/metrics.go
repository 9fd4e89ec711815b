// metrics.go — Prometheus HTTP метрики Audio Memory.
// Регистрирует метрики: audiomemo_http_requests_total,
// audiomemo_http_request_duration_seconds.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP метрики
var (
	// httpRequestsTotal — общее количество HTTP-запросов.
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audiomemo_http_requests_total",
			Help: "Общее количество HTTP-запросов к Audio Memory",
		},
		[]string{"method", "path", "status"},
	)

	// httpRequestDuration — гистограмма длительности HTTP-запросов.
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "audiomemo_http_request_duration_seconds",
			Help:    "Длительность HTTP-запросов к Audio Memory в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// MetricsMiddleware возвращает HTTP middleware для сбора Prometheus метрик.
// Записывает количество запросов и длительность для каждого endpoint.
func MetricsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Нормализуем путь для лейблов метрик
			// (токены и идентификаторы заменяются на {token} для предотвращения кардинальности)
			normalizedPath := normalizePath(r.URL.Path)

			wrapped := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(wrapped, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(wrapped.Status())

			httpRequestsTotal.WithLabelValues(r.Method, normalizedPath, status).Inc()
			httpRequestDuration.WithLabelValues(r.Method, normalizedPath).Observe(duration)
		})
	}
}

// normalizePath заменяет токен-сегменты пути на {token} для предотвращения
// взрывного роста кардинальности метрик.
// /qr/abc12345 → /qr/{token}
func normalizePath(path string) string {
	// Статические пути — возвращаем как есть
	switch path {
	case "/", "/health/live", "/health/ready", "/metrics",
		"/admin", "/admin/login",
		"/auth/magic-link", "/auth/callback", "/auth/logout",
		"/api/v1/codes", "/api/v1/codes/export":
		return path
	}

	// Динамические пути с токеном
	if strings.HasPrefix(path, "/qr/") {
		return "/qr/{token}"
	}
	if strings.HasPrefix(path, "/api/v1/qr/") {
		rest := strings.TrimPrefix(path, "/api/v1/qr/")
		if i := strings.IndexByte(rest, '/'); i >= 0 {
			return "/api/v1/qr/{token}" + rest[i:]
		}
		return "/api/v1/qr/{token}"
	}
	if strings.HasPrefix(path, "/api/v1/codes/") {
		// /api/v1/codes/{token}/qr.png
		if strings.HasSuffix(path, "/qr.png") {
			return "/api/v1/codes/{token}/qr.png"
		}
		return "/api/v1/codes/{token}"
	}
	if strings.HasPrefix(path, "/static/") {
		return "/static"
	}

	return path
}
