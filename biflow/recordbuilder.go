package biflow

import (
	"encoding/binary"

	"github.com/zoomoid/ipfix-biflow/ipfix"
)

// RecordBuilder accumulates fields for a synthesized biflow data record, in
// the same order as the TemplateBuilder that describes its layout (spec
// §4.3). Every Append* method copies its input so the builder never aliases
// caller-owned memory.
type RecordBuilder struct {
	fields []ipfix.Field
}

func NewRecordBuilder() *RecordBuilder {
	return &RecordBuilder{}
}

// AppendRaw copies raw verbatim as the value of the field declared by spec.
// This is the only path used for fields copied out of an inbound record:
// the engine never interprets a field's value, only its specifier.
func (rb *RecordBuilder) AppendRaw(spec ipfix.FieldSpec, raw []byte) *RecordBuilder {
	owned := make([]byte, len(raw))
	copy(owned, raw)
	rb.fields = append(rb.fields, ipfix.Field{FieldSpec: spec, Raw: owned})
	return rb
}

// AppendUint encodes v big-endian, trimmed (or left-padded with zeros) to
// spec.Length octets. Used for the synthetic biflowDirection field.
func (rb *RecordBuilder) AppendUint(spec ipfix.FieldSpec, v uint64) *RecordBuilder {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, v)
	raw := make([]byte, spec.Length)
	copy(raw, buf[8-int(spec.Length):])
	rb.fields = append(rb.fields, ipfix.Field{FieldSpec: spec, Raw: raw})
	return rb
}

// AppendIP encodes ip in its shortest form as the value of the field
// declared by spec.
func (rb *RecordBuilder) AppendIP(spec ipfix.FieldSpec, ip IPAddr) *RecordBuilder {
	return rb.AppendRaw(spec, ip.Bytes())
}

func (rb *RecordBuilder) Len() int {
	return len(rb.fields)
}

// Build finalizes the field list into a data record bound to templateID.
func (rb *RecordBuilder) Build(templateID uint16) ipfix.DataRecord {
	fields := append([]ipfix.Field(nil), rb.fields...)
	return ipfix.DataRecord{
		TemplateId: templateID,
		FieldCount: uint16(len(fields)),
		Fields:     fields,
	}
}
