// metrics.go — Prometheus метрики Audio Store.
// HTTP метрики: audiostore_http_requests_total, audiostore_http_request_duration_seconds.
// Бизнес-метрики: приём файлов, операции каталога, осиротевшие blob'ы.
// Нормализация путей предотвращает взрывной рост кардинальности.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP метрики Audio Store
var (
	// httpRequestsTotal — общее количество HTTP-запросов.
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audiostore_http_requests_total",
			Help: "Общее количество HTTP-запросов к Audio Store",
		},
		[]string{"method", "path", "status"},
	)

	// httpRequestDuration — гистограмма длительности HTTP-запросов.
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "audiostore_http_request_duration_seconds",
			Help:    "Длительность HTTP-запросов к Audio Store в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// Бизнес-метрики приёма и каталога
var (
	// IngestFilesTotal — количество принятых файлов по результату (committed/failed/rejected).
	IngestFilesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audiostore_ingest_files_total",
			Help: "Количество файлов, прошедших через приём, по результату",
		},
		[]string{"result"},
	)

	// IngestBatchesTotal — количество пакетов загрузки по результату (success/partial/failed/rejected).
	IngestBatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audiostore_ingest_batches_total",
			Help: "Количество пакетов загрузки по результату",
		},
		[]string{"result"},
	)

	// OperationsTotal — операции каталога (list/get/update/delete/download) по результату.
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audiostore_operations_total",
			Help: "Количество операций каталога по типу и результату",
		},
		[]string{"operation", "result"},
	)

	// OrphanBlobsTotal — blob'ы, оставшиеся на диске после сбоя компенсации или удаления.
	OrphanBlobsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "audiostore_orphan_blobs_total",
			Help: "Количество blob-файлов, которые не удалось удалить с диска",
		},
	)
)

// MetricsMiddleware возвращает HTTP middleware для сбора Prometheus метрик.
// Записывает количество запросов и длительность для каждого endpoint.
func MetricsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Нормализуем путь для лейблов метрик
			// (заменяем числовой id на {id} для предотвращения кардинальности)
			normalizedPath := normalizePath(r.URL.Path)

			wrapped := newMetricsResponseWriter(w)
			next.ServeHTTP(wrapped, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(wrapped.statusCode)

			httpRequestsTotal.WithLabelValues(r.Method, normalizedPath, status).Inc()
			httpRequestDuration.WithLabelValues(r.Method, normalizedPath).Observe(duration)
		})
	}
}

// metricsResponseWriter — обёртка для перехвата статус-кода.
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func newMetricsResponseWriter(w http.ResponseWriter) *metricsResponseWriter {
	return &metricsResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *metricsResponseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Unwrap позволяет http.ResponseController получить доступ к оригинальному ResponseWriter.
func (rw *metricsResponseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// normalizePath заменяет числовой сегмент id на {id} для предотвращения
// взрывного роста кардинальности метрик.
// /api/v1/audio/123 → /api/v1/audio/{id}
// /api/v1/audio/123/download → /api/v1/audio/{id}/download
func normalizePath(path string) string {
	// Статические пути — возвращаем как есть
	switch path {
	case "/health/live", "/health/ready", "/metrics",
		"/api/v1/audio":
		return path
	}

	const audioPrefix = "/api/v1/audio/"
	if strings.HasPrefix(path, audioPrefix) {
		rest := path[len(audioPrefix):]
		id, suffix, _ := strings.Cut(rest, "/")
		if isNumeric(id) {
			switch suffix {
			case "download":
				return "/api/v1/audio/{id}/download"
			case "":
				return "/api/v1/audio/{id}"
			}
		}
	}

	return path
}

// isNumeric сообщает, состоит ли строка только из десятичных цифр.
func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
