package ipfix

import "github.com/prometheus/client_golang/prometheus"

// Wire-level metrics: encoding/decoding of IPFIX messages, sets, and
// records, independent of any particular consumer's domain logic.
var (
	DecodedMessages = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "ipfix",
		Name:      "decoded_messages_total",
		Help:      "Total number of decoded IPFIX messages",
	})
	DecodeErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "ipfix",
		Name:      "decode_errors_total",
		Help:      "Total number of errors while decoding IPFIX messages",
	})
	DecodedSets = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ipfix",
		Name:      "decoded_sets_total",
		Help:      "Total number of decoded sets per kind",
	}, []string{"kind"})
	DecodedRecords = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ipfix",
		Name:      "decoded_records_total",
		Help:      "Total number of decoded records per kind",
	}, []string{"kind"})
)
