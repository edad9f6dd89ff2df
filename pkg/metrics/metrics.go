package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Submissions counts processed submissions by kind (contact, newsletter)
	// and outcome (sent, rejected, rate_limited, render_failed, send_failed).
	Submissions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "contactapi_submissions_total",
		Help: "Total number of submissions by kind and outcome",
	}, []string{"kind", "outcome"})

	MailSendSuccess = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "contactapi_mail_send_success_total",
		Help: "Total number of successful mail sends",
	}, []string{"host"})
	MailSendFailure = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "contactapi_mail_send_failure_total",
		Help: "Total number of failed mail sends",
	}, []string{"host"})

	RateLimitRejected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "contactapi_ratelimit_rejected_total",
		Help: "Total number of requests rejected by a rate limit policy",
	}, []string{"policy"})
	// RateLimitStoreErrors counts counter store failures; the request is admitted.
	RateLimitStoreErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "contactapi_ratelimit_store_errors_total",
		Help: "Total number of rate limit store errors (requests admitted)",
	}, []string{"policy"})
)

func init() {
	prometheus.MustRegister(Submissions)
	prometheus.MustRegister(MailSendSuccess)
	prometheus.MustRegister(MailSendFailure)
	prometheus.MustRegister(RateLimitRejected)
	prometheus.MustRegister(RateLimitStoreErrors)
}

// MetricsHandler returns an http.Handler exposing Prometheus metrics.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
