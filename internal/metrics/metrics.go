package metrics

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RequestOutcome classifies how a single executed request ended.
type RequestOutcome string

const (
	// RequestOK indicates the request completed with an expected status and body.
	RequestOK RequestOutcome = "ok"
	// RequestTransportError indicates the request never completed at the network layer.
	RequestTransportError RequestOutcome = "transport_error"
	// RequestUnexpectedStatus indicates the status code fell outside the expected set.
	RequestUnexpectedStatus RequestOutcome = "unexpected_status"
	// RequestEmptyBody indicates content was required but the body was empty.
	RequestEmptyBody RequestOutcome = "empty_body"
)

// ScenarioResult captures the verdict of one lifecycle scenario.
type ScenarioResult string

const (
	ScenarioPassed ScenarioResult = "pass"
	ScenarioFailed ScenarioResult = "fail"
)

// Recorder publishes Prometheus metrics for probe activity.
type Recorder struct {
	gatherer prometheus.Gatherer
	handler  http.Handler

	httpRequests *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec

	scenarios       *prometheus.CounterVec
	scenarioLatency *prometheus.HistogramVec

	fakeRequests *prometheus.CounterVec
}

// NewRecorder constructs a Prometheus-backed Recorder. When reg is nil a dedicated
// registry is created so multiple recorders can coexist without conflicting with
// the global default registerer.
func NewRecorder(reg *prometheus.Registry) *Recorder {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	reg.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	httpRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "objectprobe",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Requests issued by the request executor.",
	}, []string{"method", "outcome", "status_code"})

	httpLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "objectprobe",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Round-trip latency of executed requests.",
		Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"method", "outcome"})

	scenarios := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "objectprobe",
		Subsystem: "lifecycle",
		Name:      "scenarios_total",
		Help:      "Lifecycle scenarios run, by verdict.",
	}, []string{"scenario", "result"})

	scenarioLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "objectprobe",
		Subsystem: "lifecycle",
		Name:      "scenario_duration_seconds",
		Help:      "Wall time spent per lifecycle scenario.",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	}, []string{"scenario"})

	fakeRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "objectprobe",
		Subsystem: "fakeapi",
		Name:      "requests_total",
		Help:      "Requests served by the in-process objects API.",
	}, []string{"route", "status_code"})

	reg.MustRegister(httpRequests, httpLatency, scenarios, scenarioLatency, fakeRequests)

	handler := promhttp.HandlerFor(reg, promhttp.HandlerOpts{})

	return &Recorder{
		gatherer:        reg,
		handler:         handler,
		httpRequests:    httpRequests,
		httpLatency:     httpLatency,
		scenarios:       scenarios,
		scenarioLatency: scenarioLatency,
		fakeRequests:    fakeRequests,
	}
}

// Handler exposes the Prometheus HTTP handler for the recorder's registry.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "metrics unavailable", http.StatusServiceUnavailable)
		})
	}
	return r.handler
}

// Gatherer returns the underlying Prometheus gatherer for tests and the textfile dump.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	if r == nil {
		return prometheus.NewRegistry()
	}
	return r.gatherer
}

// ObserveRequest records the outcome and latency of one executed request.
// A statusCode of zero means no response was received.
func (r *Recorder) ObserveRequest(method string, outcome RequestOutcome, statusCode int, duration time.Duration) {
	if r == nil {
		return
	}
	methodLabel := strings.ToUpper(normalizeLabel(method))
	outcomeLabel := normalizeLabel(string(outcome))
	r.httpRequests.WithLabelValues(methodLabel, outcomeLabel, statusLabel(statusCode)).Inc()
	r.httpLatency.WithLabelValues(methodLabel, outcomeLabel).Observe(duration.Seconds())
}

// ObserveScenario records a scenario verdict and its duration.
func (r *Recorder) ObserveScenario(name string, result ScenarioResult, duration time.Duration) {
	if r == nil {
		return
	}
	nameLabel := normalizeLabel(name)
	resultLabel := string(result)
	if resultLabel == "" {
		resultLabel = string(ScenarioFailed)
	}
	r.scenarios.WithLabelValues(nameLabel, resultLabel).Inc()
	r.scenarioLatency.WithLabelValues(nameLabel).Observe(duration.Seconds())
}

// ObserveServed records a request answered by the fake objects API.
func (r *Recorder) ObserveServed(route string, statusCode int) {
	if r == nil {
		return
	}
	r.fakeRequests.WithLabelValues(normalizeLabel(route), statusLabel(statusCode)).Inc()
}

// WriteTextfile dumps the current registry in the Prometheus text format,
// suitable for the node_exporter textfile collector.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil {
		return errors.New("metrics: recorder unavailable")
	}
	if strings.TrimSpace(path) == "" {
		return errors.New("metrics: textfile path required")
	}
	if err := prometheus.WriteToTextfile(path, r.gatherer); err != nil {
		return fmt.Errorf("metrics: write textfile: %w", err)
	}
	return nil
}

func statusLabel(statusCode int) string {
	if statusCode <= 0 {
		return "none"
	}
	return strconv.Itoa(statusCode)
}

func normalizeLabel(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "unknown"
	}
	return trimmed
}
