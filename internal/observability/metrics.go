package observability

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/signalsfoundry/satdecay/model"
)

// PipelineCollector bundles Prometheus metrics for a dataset pipeline run.
type PipelineCollector struct {
	gatherer prometheus.Gatherer

	RemoteCalls         *prometheus.CounterVec
	RemoteCallDurations *prometheus.HistogramVec
	ThrottleWait        prometheus.Histogram
	Resolutions         *prometheus.CounterVec
	RecordsFetched      prometheus.Counter
	Entities            prometheus.Gauge
	MemoHitRatio        *prometheus.GaugeVec
}

// NewPipelineCollector registers pipeline metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewPipelineCollector(reg prometheus.Registerer) (*PipelineCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	calls, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "satdecay_remote_calls_total",
		Help: "Remote catalog and history calls, labeled by service, operation and outcome.",
	}, []string{"service", "operation", "outcome"}), "satdecay_remote_calls_total")
	if err != nil {
		return nil, err
	}

	durations, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "satdecay_remote_call_duration_seconds",
		Help:    "Remote call latency in seconds, excluding throttle waits.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	}, []string{"service", "operation"}), "satdecay_remote_call_duration_seconds")
	if err != nil {
		return nil, err
	}

	wait, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "satdecay_throttle_wait_seconds",
		Help:    "Time spent blocked by the request throttle after each remote call.",
		Buckets: []float64{0.1, 1, 2.5, 5, 10, 15, 30, 60},
	}), "satdecay_throttle_wait_seconds")
	if err != nil {
		return nil, err
	}

	resolutions, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "satdecay_resolutions_total",
		Help: "Designator resolutions, labeled by token kind and the source that answered.",
	}, []string{"kind", "source"}), "satdecay_resolutions_total")
	if err != nil {
		return nil, err
	}

	records, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "satdecay_history_records_fetched_total",
		Help: "Historical element sets received from the history service.",
	}), "satdecay_history_records_fetched_total")
	if err != nil {
		return nil, err
	}

	entities, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "satdecay_entities",
		Help: "Entities present in the most recently built dataset.",
	}), "satdecay_entities")
	if err != nil {
		return nil, err
	}

	memo, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "satdecay_memo_hit_ratio",
		Help: "Hit ratio of the per-run remote call memo, labeled by cache.",
	}, []string{"cache"}), "satdecay_memo_hit_ratio")
	if err != nil {
		return nil, err
	}

	return &PipelineCollector{
		gatherer:            gatherer,
		RemoteCalls:         calls,
		RemoteCallDurations: durations,
		ThrottleWait:        wait,
		Resolutions:         resolutions,
		RecordsFetched:      records,
		Entities:            entities,
		MemoHitRatio:        memo,
	}, nil
}

// Gatherer returns the gatherer paired with the registerer.
func (c *PipelineCollector) Gatherer() prometheus.Gatherer {
	if c == nil || c.gatherer == nil {
		return prometheus.DefaultGatherer
	}
	return c.gatherer
}

// Handler exposes a ready-to-use /metrics handler.
func (c *PipelineCollector) Handler() http.Handler {
	return promhttp.HandlerFor(c.Gatherer(), promhttp.HandlerOpts{})
}

// ObserveRemoteCall records one remote call and its latency.
func (c *PipelineCollector) ObserveRemoteCall(service, operation string, err error, d time.Duration) {
	if c == nil {
		return
	}
	if c.RemoteCalls != nil {
		c.RemoteCalls.WithLabelValues(service, operation, Outcome(err)).Inc()
	}
	if c.RemoteCallDurations != nil {
		c.RemoteCallDurations.WithLabelValues(service, operation).Observe(d.Seconds())
	}
}

// ObserveThrottleWait records time spent in the throttle's delay.
func (c *PipelineCollector) ObserveThrottleWait(d time.Duration) {
	if c == nil || c.ThrottleWait == nil {
		return
	}
	c.ThrottleWait.Observe(d.Seconds())
}

// IncResolution counts one token resolution outcome.
func (c *PipelineCollector) IncResolution(kind, source string) {
	if c == nil || c.Resolutions == nil {
		return
	}
	c.Resolutions.WithLabelValues(kind, source).Inc()
}

// AddRecordsFetched counts fetched history records.
func (c *PipelineCollector) AddRecordsFetched(n int) {
	if c == nil || c.RecordsFetched == nil || n <= 0 {
		return
	}
	c.RecordsFetched.Add(float64(n))
}

// SetEntities sets the entity gauge.
func (c *PipelineCollector) SetEntities(n int) {
	if c == nil || c.Entities == nil {
		return
	}
	c.Entities.Set(float64(n))
}

// SetMemoHitRatio publishes the hit ratio of a named memo.
func (c *PipelineCollector) SetMemoHitRatio(cache string, ratio float64) {
	if c == nil || c.MemoHitRatio == nil {
		return
	}
	c.MemoHitRatio.WithLabelValues(cache).Set(ratio)
}

// Outcome maps an error onto the outcome label value.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, model.ErrCredentialFailure):
		return "unauthorized"
	case errors.Is(err, model.ErrSourceUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGaugeVec(reg prometheus.Registerer, vec *prometheus.GaugeVec, name string) (*prometheus.GaugeVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.GaugeVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
