package biflow

import (
	"github.com/zoomoid/ipfix-biflow/ipfix"
)

// TemplateBuilder accumulates field specifiers for a synthesized biflow
// template, in the order they will appear on the wire (spec §4.3).
type TemplateBuilder struct {
	fields []ipfix.FieldSpec
}

func NewTemplateBuilder() *TemplateBuilder {
	return &TemplateBuilder{}
}

// Append declares one field specifier. enterpriseId 0 means the IANA
// registry.
func (tb *TemplateBuilder) Append(enterpriseId uint32, id uint16, length uint16) *TemplateBuilder {
	tb.fields = append(tb.fields, ipfix.FieldSpec{
		FieldKey: ipfix.FieldKey{EnterpriseId: enterpriseId, Id: id},
		Length:   length,
	})
	return tb
}

// AppendSpec appends an already-constructed field specifier, e.g. one
// copied verbatim from an inbound template.
func (tb *TemplateBuilder) AppendSpec(spec ipfix.FieldSpec) *TemplateBuilder {
	tb.fields = append(tb.fields, spec)
	return tb
}

func (tb *TemplateBuilder) Len() int {
	return len(tb.fields)
}

// Build finalizes the field list into a template record and wraps it as an
// ipfix.Template ready for registration with the downstream template
// manager.
func (tb *TemplateBuilder) Build(templateID uint16) *ipfix.Template {
	record := &ipfix.TemplateRecord{
		TemplateId: templateID,
		FieldCount: uint16(len(tb.fields)),
		Fields:     append([]ipfix.FieldSpec(nil), tb.fields...),
	}
	return &ipfix.Template{Record: record}
}
