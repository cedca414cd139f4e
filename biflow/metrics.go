package biflow

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics instrumentation, following the teacher's package-level
// CounterVec/Histogram/Gauge declarations (see ipfix/metrics.go).
var (
	PairsMerged = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "biflow",
		Name:      "pairs_merged_total",
		Help:      "Number of uniflow record pairs merged into a single biflow record.",
	})

	Passthrough = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "biflow",
		Name:      "passthrough_total",
		Help:      "Number of records emitted as passthrough, by reason.",
	}, []string{"reason"})

	CacheSize = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "biflow",
		Name:      "cache_size",
		Help:      "Number of uniflow records currently pending a reverse-direction counterpart.",
	})

	Templates = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "biflow",
		Name:      "templates_total",
		Help:      "Number of output templates registered, by kind.",
	}, []string{"kind"})

	MessagesEmitted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "biflow",
		Name:      "messages_emitted_total",
		Help:      "Number of IPFIX messages emitted downstream.",
	})

	MessageBytes = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "biflow",
		Name:      "message_bytes",
		Help:      "Size in bytes of emitted IPFIX messages.",
		Buckets:   prometheus.ExponentialBuckets(64, 2, 12),
	})
)

// Passthrough reasons, used as the "reason" label value.
const (
	ReasonKeyExtractionFailed = "key_extraction_failed"
	ReasonAlreadyBiflow       = "already_biflow"
	ReasonOptionsTemplate     = "options_template"
	ReasonExpired             = "expired"
	ReasonSuperseded          = "superseded"
	ReasonTemplateBuildFailed = "template_build_failed"
)
