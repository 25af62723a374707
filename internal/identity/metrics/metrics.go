package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/aussiebroadwan/iworkcore/pkg/slogx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Result labels.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultDropped = "dropped"
)

// Metrics holds the identity collectors on their own registry. A nil
// *Metrics is valid and records nothing, so callers never need to check.
type Metrics struct {
	Registry *prometheus.Registry

	signups      *prometheus.CounterVec
	signins      *prometheus.CounterVec
	tokensIssued *prometheus.CounterVec
	emails       *prometheus.CounterVec
	onboarding   *prometheus.CounterVec
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		signups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "identity_signups_total",
				Help: "Total number of sign-up attempts.",
			},
			[]string{"result"},
		),
		signins: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "identity_signins_total",
				Help: "Total number of sign-in attempts.",
			},
			[]string{"result"},
		),
		tokensIssued: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "identity_tokens_issued_total",
				Help: "Total number of token pairs and intermediate tokens issued.",
			},
			[]string{"flow"},
		),
		emails: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "identity_emails_total",
				Help: "Total number of outbound emails by template and outcome.",
			},
			[]string{"template", "result"},
		),
		onboarding: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "identity_onboarding_total",
				Help: "Total number of onboarding transitions.",
			},
			[]string{"step", "result"},
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "identity_http_requests_total",
				Help: "Total number of HTTP requests.",
			},
			[]string{"method", "route", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "identity_http_request_duration_seconds",
				Help:    "Duration of HTTP requests.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}

	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.signups,
		m.signins,
		m.tokensIssued,
		m.emails,
		m.onboarding,
		m.httpRequests,
		m.httpDuration,
	)
	return m
}

func (m *Metrics) SignUp(result string) {
	if m == nil {
		return
	}
	m.signups.WithLabelValues(result).Inc()
}

func (m *Metrics) SignIn(result string) {
	if m == nil {
		return
	}
	m.signins.WithLabelValues(result).Inc()
}

// TokensIssued counts one issuance for flow, e.g. "signin" or "refresh".
func (m *Metrics) TokensIssued(flow string) {
	if m == nil {
		return
	}
	m.tokensIssued.WithLabelValues(flow).Inc()
}

func (m *Metrics) Email(template, result string) {
	if m == nil {
		return
	}
	m.emails.WithLabelValues(template, result).Inc()
}

func (m *Metrics) Onboarding(step, result string) {
	if m == nil {
		return
	}
	m.onboarding.WithLabelValues(step, result).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

// Middleware records request count and latency labelled by the matched
// route pattern. It must wrap the ServeMux so the pattern is known once the
// inner handler returns.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &slogx.StatusRecorder{ResponseWriter: w, Status: http.StatusOK}

		next.ServeHTTP(rec, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		m.httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(rec.Status)).Inc()
		m.httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
