// Package metrics provides Prometheus collectors for OpenAPI client calls.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Outcome labels.
const (
	OutcomeSuccess     = "success"
	OutcomeTransport   = "transport_error"
	OutcomeRemote      = "remote_error"
	OutcomeSignature   = "signature_error"
	OutcomeInvalid     = "invalid_request"
	OutcomeSkipped     = "skipped"
	OutcomeBadResponse = "bad_response"
)

// Metrics holds the client collectors. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	// callsTotal counts single calls and uploads.
	// Labels: category (rest/file/public), method (GET/POST/UPLOAD), outcome.
	callsTotal *prometheus.CounterVec

	// callDuration observes single call latency in seconds.
	// Labels: category, method.
	callDuration *prometheus.HistogramVec

	// batchesTotal counts batch submissions. Labels: outcome.
	batchesTotal *prometheus.CounterVec

	// batchItemsFilled counts batch items whose response slot was filled.
	batchItemsFilled prometheus.Counter

	// batchItemsUnfilled counts submitted batch items left without a response.
	batchItemsUnfilled prometheus.Counter
}

// New creates the collectors and registers them with reg. Pass
// prometheus.DefaultRegisterer to expose them on the default registry.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		callsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "baidu_openapi_calls_total",
				Help: "Total number of OpenAPI calls",
			},
			[]string{"category", "method", "outcome"},
		),
		callDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "baidu_openapi_call_duration_seconds",
				Help:    "Duration of OpenAPI calls in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"category", "method"},
		),
		batchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "baidu_openapi_batches_total",
				Help: "Total number of batch/run submissions",
			},
			[]string{"outcome"},
		),
		batchItemsFilled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "baidu_openapi_batch_items_filled_total",
			Help: "Batch items that received a response",
		}),
		batchItemsUnfilled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "baidu_openapi_batch_items_unfilled_total",
			Help: "Batch items left without a response",
		}),
	}

	if reg != nil {
		for _, c := range []prometheus.Collector{
			m.callsTotal,
			m.callDuration,
			m.batchesTotal,
			m.batchItemsFilled,
			m.batchItemsUnfilled,
		} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

// RecordCall records one call outcome and its duration.
func (m *Metrics) RecordCall(category, method, outcome string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.callsTotal.WithLabelValues(category, method, outcome).Inc()
	m.callDuration.WithLabelValues(category, method).Observe(durationSeconds)
}

// RecordBatch records a batch submission outcome. filled and unfilled count
// the response slots written and left empty.
func (m *Metrics) RecordBatch(outcome string, filled, unfilled int) {
	if m == nil {
		return
	}
	m.batchesTotal.WithLabelValues(outcome).Inc()
	m.batchItemsFilled.Add(float64(filled))
	m.batchItemsUnfilled.Add(float64(unfilled))
}
