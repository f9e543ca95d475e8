package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce           sync.Once
	httpRequestsTotal      *prometheus.CounterVec
	httpLatencySeconds     *prometheus.HistogramVec
	httpErrorsTotal        *prometheus.CounterVec
	analysisRequestsTotal  *prometheus.CounterVec
	analysisLatencySeconds *prometheus.HistogramVec
	parseDegradationsTotal *prometheus.CounterVec
	uploadRejectedTotal    *prometheus.CounterVec
	complaintsRecorded     prometheus.Counter
	complaintsPurged       prometheus.Counter
)

// RegisterMetrics initialises the Prometheus collectors used by the intake service.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "intake_http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "intake_http_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "intake_http_errors_total",
			Help: "Total number of error responses returned by API endpoints.",
		}, []string{"method", "route", "status"})

		analysisRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "intake_analysis_requests_total",
			Help: "Analysis pipeline runs by input modality and outcome.",
		}, []string{"modality", "outcome"})

		analysisLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "intake_analysis_latency_seconds",
			Help:    "End-to-end analysis pipeline latency by input modality.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		}, []string{"modality"})

		parseDegradationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "intake_parse_degradations_total",
			Help: "Model replies that fell back to placeholder values.",
		}, []string{"stage"})

		uploadRejectedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "intake_upload_rejected_total",
			Help: "Uploads rejected before reaching an upstream service.",
		}, []string{"reason"})

		complaintsRecorded = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "intake_complaints_recorded_total",
			Help: "Complaint rows inserted.",
		})

		complaintsPurged = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "intake_complaints_purged_total",
			Help: "Complaint rows removed by bulk purges.",
		})

		prometheus.MustRegister(
			httpRequestsTotal, httpLatencySeconds, httpErrorsTotal,
			analysisRequestsTotal, analysisLatencySeconds, parseDegradationsTotal,
			uploadRejectedTotal, complaintsRecorded, complaintsPurged,
		)
	})
}

// HTTPRequests exposes the counter for API requests.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the latency histogram for API requests.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// HTTPErrors exposes the counter for API error responses.
func HTTPErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return httpErrorsTotal
}

// AnalysisRequests counts pipeline runs.
func AnalysisRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return analysisRequestsTotal
}

// AnalysisLatency exposes the pipeline latency histogram.
func AnalysisLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return analysisLatencySeconds
}

// ParseDegradations counts replies replaced by placeholders.
func ParseDegradations() *prometheus.CounterVec {
	RegisterMetrics()
	return parseDegradationsTotal
}

// UploadRejected counts uploads refused by the guard.
func UploadRejected() *prometheus.CounterVec {
	RegisterMetrics()
	return uploadRejectedTotal
}

// ComplaintsRecorded counts inserted complaint rows.
func ComplaintsRecorded() prometheus.Counter {
	RegisterMetrics()
	return complaintsRecorded
}

// ComplaintsPurged counts purged complaint rows.
func ComplaintsPurged() prometheus.Counter {
	RegisterMetrics()
	return complaintsPurged
}
