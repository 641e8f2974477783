// Package metrics adapts valuestore.MetricsObserver to Prometheus, the way
// the rest of this codebase's stack exposes runtime instrumentation.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/oarkflow/valuestore"
)

// PrometheusObserver implements valuestore.MetricsObserver, recording
// operation latencies, error counts, and chunk-split events against a
// prometheus.Registerer supplied by the caller.
type PrometheusObserver struct {
	opLatency   *prometheus.HistogramVec
	opErrors    *prometheus.CounterVec
	chunkSplits *prometheus.CounterVec
	mergedSlots prometheus.Histogram
}

// NewPrometheusObserver constructs an observer and registers its
// collectors against reg. Passing nil registers against
// prometheus.DefaultRegisterer.
func NewPrometheusObserver(reg prometheus.Registerer) *PrometheusObserver {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	o := &PrometheusObserver{
		opLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "valuestore_operation_latency_seconds",
			Help:    "Latency of Manager operations.",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		opErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "valuestore_operation_errors_total",
			Help: "Count of Manager operations that returned an error.",
		}, []string{"op"}),
		chunkSplits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "valuestore_chunk_splits_total",
			Help: "Count of value chunks written mid-stream because they crossed the size threshold.",
		}, []string{"slot"}),
		mergedSlots: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "valuestore_merge_changes_slots",
			Help:    "Number of slots with pending edits processed per MergeChanges call.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
	}

	reg.MustRegister(o.opLatency, o.opErrors, o.chunkSplits, o.mergedSlots)
	return o
}

var _ valuestore.MetricsObserver = (*PrometheusObserver)(nil)

// OnChunkSplit implements valuestore.MetricsObserver.
func (o *PrometheusObserver) OnChunkSplit(slot valuestore.Slot) {
	o.chunkSplits.WithLabelValues(slotLabel(slot)).Inc()
}

// OnMergeChanges implements valuestore.MetricsObserver.
func (o *PrometheusObserver) OnMergeChanges(d time.Duration, slots int, err error) {
	o.opLatency.WithLabelValues("merge_changes").Observe(d.Seconds())
	o.mergedSlots.Observe(float64(slots))
	if err != nil {
		o.opErrors.WithLabelValues("merge_changes").Inc()
	}
}

// OnAddDocument implements valuestore.MetricsObserver.
func (o *PrometheusObserver) OnAddDocument(d time.Duration, err error) {
	o.opLatency.WithLabelValues("add_document").Observe(d.Seconds())
	if err != nil {
		o.opErrors.WithLabelValues("add_document").Inc()
	}
}

// OnDeleteDocument implements valuestore.MetricsObserver.
func (o *PrometheusObserver) OnDeleteDocument(d time.Duration, err error) {
	o.opLatency.WithLabelValues("delete_document").Observe(d.Seconds())
	if err != nil {
		o.opErrors.WithLabelValues("delete_document").Inc()
	}
}

func slotLabel(slot valuestore.Slot) string {
	return strconv.FormatUint(uint64(slot), 10)
}
