package api

import (
	"net/http"
	"strconv"

	"github.com/felixge/httpsnoop"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/synclist/internal/metrics"
)

// requestLogger logs every request and records HTTP metrics.
func requestLogger(logger *logrus.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			m := httpsnoop.CaptureMetrics(next, w, r)

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, strconv.Itoa(m.Code)).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method).Observe(m.Duration.Seconds())

			logger.WithFields(logrus.Fields{
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     m.Code,
				"duration":   m.Duration,
				"request_id": chimw.GetReqID(r.Context()),
				"remote":     r.RemoteAddr,
			}).Info("Handled request")
		})
	}
}
