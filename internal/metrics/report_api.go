package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	reportAPIRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "report_api",
		Name:      "requests_total",
		Help:      "Count of report API requests by response code.",
	}, []string{"format", "code"})
	reportAPIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "report_api",
		Name:      "request_duration_seconds",
		Help:      "Duration of report API requests.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"format", "code"})
)

// ReportAPI tracks metrics for the HTTP report endpoint.
type ReportAPI struct{}

func NewReportAPI() *ReportAPI {
	return &ReportAPI{}
}

// ObserveRequest records a served request. Formats other than json and text share the
// invalid label so callers cannot grow the series count.
func (m ReportAPI) ObserveRequest(format string, code int, started time.Time) {
	switch format {
	case "json", "text":
	default:
		format = "invalid"
	}
	c := strconv.Itoa(code)
	reportAPIRequestsTotal.WithLabelValues(format, c).Inc()
	reportAPIRequestDuration.WithLabelValues(format, c).Observe(time.Since(started).Seconds())
}
