package ai

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	aiDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "intake",
		Subsystem: "ai",
		Name:      "request_duration_seconds",
		Help:      "Duration of hosted AI requests",
	}, []string{"provider", "operation"})

	aiFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "intake",
		Subsystem: "ai",
		Name:      "request_failures_total",
		Help:      "Number of failed hosted AI requests",
	}, []string{"provider", "operation"})
)

func observe(provider, operation string, start time.Time) {
	aiDuration.WithLabelValues(provider, operation).Observe(time.Since(start).Seconds())
}

func fail(span trace.Span, provider, operation string, err error) {
	aiFailures.WithLabelValues(provider, operation).Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
