// Package exporters exposes collected metrics over HTTP.
package exporters

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/smazurov/pingnode/internal/logging"
)

// HTTPHandler serves the metrics of g in the Prometheus exposition format.
// A nil g serves the default registry, which holds the probe metrics.
// Gathering errors are logged and the remaining metrics are still served.
func HTTPHandler(g prometheus.Gatherer, logger *slog.Logger) http.Handler {
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	if logger == nil {
		logger = logging.GetLogger("metrics")
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{
		ErrorLog:      errorLog{logger: logger},
		ErrorHandling: promhttp.ContinueOnError,
	})
}

// errorLog adapts slog to promhttp.Logger.
type errorLog struct {
	logger *slog.Logger
}

func (l errorLog) Println(v ...any) {
	l.logger.Warn("Metrics gathering failed", "error", fmt.Sprint(v...))
}
