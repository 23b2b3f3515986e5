package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"service", "method", "path", "status"},
	)

	HTTPRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)

	UploadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "registry_uploads_total",
			Help: "Total number of package upload attempts.",
		},
		[]string{"service", "result"},
	)

	DownloadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "registry_downloads_total",
			Help: "Total number of tarball download attempts.",
		},
		[]string{"service", "result"},
	)

	UploadTokensIssuedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "registry_upload_tokens_issued_total",
			Help: "Total number of upload token issuance attempts.",
		},
		[]string{"service", "result"},
	)

	VerificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "registry_verifications_total",
			Help: "Total number of version verification outcomes.",
		},
		[]string{"service", "result"},
	)
)

func MustRegister(serviceName string) {
	HTTPRequestsTotal = HTTPRequestsTotal.MustCurryWith(prometheus.Labels{"service": serviceName})
	HTTPRequestDurationSeconds = HTTPRequestDurationSeconds.MustCurryWith(prometheus.Labels{"service": serviceName}).(*prometheus.HistogramVec)
	UploadsTotal = UploadsTotal.MustCurryWith(prometheus.Labels{"service": serviceName})
	DownloadsTotal = DownloadsTotal.MustCurryWith(prometheus.Labels{"service": serviceName})
	UploadTokensIssuedTotal = UploadTokensIssuedTotal.MustCurryWith(prometheus.Labels{"service": serviceName})
	VerificationsTotal = VerificationsTotal.MustCurryWith(prometheus.Labels{"service": serviceName})

	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDurationSeconds,
		UploadsTotal,
		DownloadsTotal,
		UploadTokensIssuedTotal,
		VerificationsTotal,
	)
}
