package ipfix

import (
	"fmt"

	"github.com/zoomoid/ipfix-biflow/ipfix/iana/semantics"
	"github.com/zoomoid/ipfix-biflow/ipfix/iana/status"
)

// Abstract data types that carry structured, nested records rather than a
// scalar value. RFC 6313 assigns each of these a dedicated IANA element id;
// the engine never decodes their contents, it only needs to recognize them
// in order to drop them from generated biflow templates.
const (
	TypeBasicList            = "basicList"
	TypeSubTemplateList      = "subTemplateList"
	TypeSubTemplateMultiList = "subTemplateMultiList"
	TypeUnassigned           = "unassigned"
)

// InformationElement is a registry entry: the name and abstract data type
// of an (enterprise, id) pair, and, for enterprise-private elements, the
// sibling element that carries its reverse-direction counterpart.
//
// This is a much thinner cousin of the original DataType-backed registry
// entry: since fields are now opaque byte views (see field.go), an entry
// only needs to answer "what kind of thing is this" for the handful of
// decisions the pairing engine makes, never "how do I parse this value".
type InformationElement struct {
	Id           uint16 `json:"id,omitempty" yaml:"id,omitempty"`
	Name         string `json:"name,omitempty" yaml:"name,omitempty"`
	EnterpriseId uint32 `json:"pen,omitempty" yaml:"pen,omitempty"`

	Type string `json:"type,omitempty" yaml:"type,omitempty"`

	Semantics semantics.Semantic `json:"semantics,omitempty" yaml:"semantics,omitempty"`
	Status    status.Status      `json:"status,omitempty" yaml:"status,omitempty"`

	// ReverseId names the sibling information element, in the same
	// enterprise namespace, that carries this element's reverse-direction
	// value. Only meaningful for EnterpriseId != 0; IANA elements reverse
	// via ReversePEN instead (see rfc5103.go).
	ReverseId *uint16 `json:"reverseId,omitempty" yaml:"reverseId,omitempty"`
}

func (i InformationElement) String() string {
	return fmt.Sprintf("%s(pen=%d,id=%d,type=%s)", i.Name, i.EnterpriseId, i.Id, i.Type)
}

func (i InformationElement) Key() FieldKey {
	return FieldKey{EnterpriseId: i.EnterpriseId, Id: i.Id}
}

// HasStructuredData reports whether the element's abstract data type is one
// of the RFC 6313 list containers that this engine does not merge.
func (i InformationElement) HasStructuredData() bool {
	switch i.Type {
	case TypeBasicList, TypeSubTemplateList, TypeSubTemplateMultiList:
		return true
	default:
		return false
	}
}

func (i InformationElement) IsUnassigned() bool {
	return i.Type == "" || i.Type == TypeUnassigned
}

func (i InformationElement) Clone() InformationElement {
	ie := i
	if i.ReverseId != nil {
		rid := *i.ReverseId
		ie.ReverseId = &rid
	}
	return ie
}
