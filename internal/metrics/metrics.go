// Package metrics exposes Prometheus instrumentation for the scanner.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Price stream metrics
	PriceUpdates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spread_price_updates_total",
			Help: "Total number of price updates received",
		},
		[]string{"exchange"},
	)

	DecodeErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spread_decode_errors_total",
			Help: "Total number of frames that failed to decode",
		},
		[]string{"exchange"},
	)

	// Connection metrics
	ConnectionStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "spread_connection_status",
			Help: "WebSocket connection status (1=connected, 0=disconnected)",
		},
		[]string{"exchange"},
	)

	ConnectionReconnects = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spread_reconnects_total",
			Help: "Total number of reconnection attempts",
		},
		[]string{"exchange"},
	)

	ConnectionErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spread_connection_errors_total",
			Help: "Total number of connection errors",
		},
		[]string{"exchange", "error_type"},
	)

	// Catalog metrics
	CatalogSymbols = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "spread_catalog_symbols",
			Help: "Number of symbols fetched from a venue catalog",
		},
		[]string{"exchange"},
	)

	CatalogErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spread_catalog_errors_total",
			Help: "Total number of catalog fetch failures",
		},
		[]string{"exchange"},
	)

	// Detector metrics
	SpreadsDetected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "spread_opportunities_total",
			Help: "Total number of spread opportunities above threshold",
		},
	)

	AlertsEmitted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "spread_alerts_emitted_total",
			Help: "Total number of alerts that passed deduplication and the existence probe",
		},
	)

	AlertsSuppressed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "spread_alerts_suppressed_total",
			Help: "Total number of alerts suppressed by deduplication or ignore list",
		},
	)
)

// RecordPriceUpdate records a decoded price update.
func RecordPriceUpdate(exchange string) {
	PriceUpdates.WithLabelValues(exchange).Inc()
}

// RecordDecodeError records a frame that failed to decode.
func RecordDecodeError(exchange string) {
	DecodeErrors.WithLabelValues(exchange).Inc()
}

// RecordConnectionStatus records connection status.
func RecordConnectionStatus(exchange string, connected bool) {
	status := 0.0
	if connected {
		status = 1.0
	}
	ConnectionStatus.WithLabelValues(exchange).Set(status)
}

// RecordReconnect records a reconnection attempt.
func RecordReconnect(exchange string) {
	ConnectionReconnects.WithLabelValues(exchange).Inc()
}

// RecordConnectionError records a connection error.
func RecordConnectionError(exchange, errorType string) {
	ConnectionErrors.WithLabelValues(exchange, errorType).Inc()
}

// RecordCatalog records the outcome of a catalog fetch.
func RecordCatalog(exchange string, symbols int, err error) {
	if err != nil {
		CatalogErrors.WithLabelValues(exchange).Inc()
		return
	}
	CatalogSymbols.WithLabelValues(exchange).Set(float64(symbols))
}
