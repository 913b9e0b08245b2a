package metrics

import (
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "watering_"

	resultSuccess = "success"
	resultError   = "error"
)

var (
	registerOnce sync.Once

	sweepRuns    *prometheus.CounterVec
	sweepDemoted prometheus.Counter
	sweepLatency *prometheus.HistogramVec

	statusReports       *prometheus.CounterVec
	statusReportLatency *prometheus.HistogramVec

	ingestRequests *prometheus.CounterVec
	ingestLatency  *prometheus.HistogramVec
)

// Init registers observability metrics and DB-backed gauges.
func Init(db *sql.DB, logger *log.Logger) {
	registerOnce.Do(func() {
		sweepRuns = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "sweep_runs_total",
				Help: "Total heartbeat sweep runs by result",
			},
			[]string{"result"},
		)
		sweepDemoted = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "sweep_demoted_total",
				Help: "Total devices demoted to inactive by sweeps",
			},
		)
		sweepLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "sweep_latency_seconds",
				Help:    "Heartbeat sweep latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		statusReports = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "status_reports_total",
				Help: "Total device status reports by result",
			},
			[]string{"result"},
		)
		statusReportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "status_report_latency_seconds",
				Help:    "Device status report latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		ingestRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_requests_total",
				Help: "Total log ingest requests by kind and result",
			},
			[]string{"kind", "result"},
		)
		ingestLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "ingest_latency_seconds",
				Help:    "Log ingest latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"kind"},
		)

		prometheus.MustRegister(
			sweepRuns,
			sweepDemoted,
			sweepLatency,
			statusReports,
			statusReportLatency,
			ingestRequests,
			ingestLatency,
		)

		registerDBMetrics(db, logger)
	})
}

// ObserveSweep records one sweep run.
func ObserveSweep(result string, demoted int64, duration time.Duration) {
	if sweepRuns == nil {
		return
	}
	sweepRuns.WithLabelValues(result).Inc()
	sweepLatency.WithLabelValues(result).Observe(duration.Seconds())
	if demoted > 0 {
		sweepDemoted.Add(float64(demoted))
	}
}

// ObserveStatusReport records one device status report.
func ObserveStatusReport(result string, duration time.Duration) {
	if statusReports == nil {
		return
	}
	statusReports.WithLabelValues(result).Inc()
	statusReportLatency.WithLabelValues(result).Observe(duration.Seconds())
}

// ObserveIngest records one sensor/relay log ingest request.
func ObserveIngest(kind, result string, duration time.Duration) {
	if ingestRequests == nil {
		return
	}
	ingestRequests.WithLabelValues(kind, result).Inc()
	ingestLatency.WithLabelValues(kind).Observe(duration.Seconds())
}

func registerDBMetrics(db *sql.DB, logger *log.Logger) {
	for _, status := range []string{"active", "inactive"} {
		status := status
		prometheus.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name:        metricPrefix + "devices",
				Help:        "Registered devices by status",
				ConstLabels: prometheus.Labels{"status": status},
			},
			func() float64 {
				return queryCount(db, logger, "SELECT COUNT(*) FROM devices WHERE status = '"+status+"'")
			},
		))
	}
}

func queryCount(db *sql.DB, logger *log.Logger, query string) float64 {
	if db == nil {
		return 0
	}
	var count int64
	if err := db.QueryRow(query).Scan(&count); err != nil {
		if logger != nil {
			logger.Printf("metrics query failed: %v", err)
		}
		return 0
	}
	if count < 0 {
		return 0
	}
	return float64(count)
}
