package biflow

import "github.com/zoomoid/ipfix-biflow/ipfix"

// RecordBuffer is an owned copy of one uniflow data record's decoded
// fields, tagged with the *inbound* template id it arrived under. It has
// a single exclusive owner: the cache, until it is consumed by a merge or
// a passthrough emission (at which point the consuming call takes the
// fields by value) or evicted outright.
type RecordBuffer struct {
	Fields     []ipfix.Field
	TemplateID uint16
}

// newRecordBuffer deep-copies a decoded record's fields so the cache does
// not alias storage owned by the message currently being processed.
func newRecordBuffer(dr *ipfix.DataRecord) RecordBuffer {
	fields := make([]ipfix.Field, len(dr.Fields))
	for i, f := range dr.Fields {
		raw := make([]byte, len(f.Raw))
		copy(raw, f.Raw)
		fields[i] = ipfix.Field{FieldSpec: f.FieldSpec, Raw: raw}
	}
	return RecordBuffer{Fields: fields, TemplateID: dr.TemplateId}
}
