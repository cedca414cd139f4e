package ipfix

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// TemplateRecord announces the field layout that data records referencing
// its TemplateId will follow: an ordered list of FieldSpecs, nothing else.
type TemplateRecord struct {
	TemplateId uint16      `json:"templateId,omitempty"`
	FieldCount uint16      `json:"fieldCount,omitempty"`
	Fields     []FieldSpec `json:"fields,omitempty"`
}

var _ templateRecord = &TemplateRecord{}
var _ fmt.Stringer = &TemplateRecord{}

func (tr *TemplateRecord) String() string {
	sl := make([]string, 0, len(tr.Fields))
	for _, f := range tr.Fields {
		sl = append(sl, f.String())
	}
	return fmt.Sprintf("<id=%d,len=%d>%v", tr.TemplateId, tr.FieldCount, sl)
}

func (tr *TemplateRecord) Type() string {
	return KindTemplateSet
}

func (tr *TemplateRecord) Id() uint16 {
	return tr.TemplateId
}

func (tr *TemplateRecord) Encode(w io.Writer) (n int, err error) {
	hdr := make([]byte, 0, 4)
	hdr = binary.BigEndian.AppendUint16(hdr, tr.TemplateId)
	hdr = binary.BigEndian.AppendUint16(hdr, tr.FieldCount)
	ln, err := w.Write(hdr)
	n += ln
	if err != nil {
		return n, err
	}
	for _, f := range tr.Fields {
		fn, err := f.Encode(w)
		n += fn
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

func (tr *TemplateRecord) Decode(r io.Reader) (n int, err error) {
	hdr := make([]byte, 4)
	m, err := io.ReadFull(r, hdr)
	n += m
	if err != nil {
		return n, err
	}
	tr.TemplateId = binary.BigEndian.Uint16(hdr[0:2])
	tr.FieldCount = binary.BigEndian.Uint16(hdr[2:4])
	if tr.FieldCount == 0 {
		return n, errors.New("ipfix: template record field count must not be zero")
	}

	tr.Fields = make([]FieldSpec, 0, int(tr.FieldCount))
	for i := 0; i < int(tr.FieldCount); i++ {
		spec, m, err := DecodeFieldSpec(r)
		n += m
		if err != nil {
			return n, err
		}
		tr.Fields = append(tr.Fields, spec)
	}
	return n, nil
}

// DecodeData is a no-op for TemplateRecord: a template declares fields, it
// carries no data of its own.
func (tr *TemplateRecord) DecodeData(r io.Reader) (int, error) {
	return 0, nil
}

func (tr *TemplateRecord) MarshalJSON() ([]byte, error) {
	type iotr struct {
		TemplateId uint16      `json:"templateId,omitempty"`
		Fields     []FieldSpec `json:"fields,omitempty"`
	}
	return json.Marshal(iotr{TemplateId: tr.TemplateId, Fields: tr.Fields})
}

func (tr *TemplateRecord) UnmarshalJSON(in []byte) error {
	type itr struct {
		TemplateId uint16      `json:"templateId,omitempty"`
		Fields     []FieldSpec `json:"fields,omitempty"`
	}
	t := &itr{}
	if err := json.Unmarshal(in, t); err != nil {
		return err
	}
	tr.TemplateId = t.TemplateId
	tr.Fields = t.Fields
	tr.FieldCount = uint16(len(t.Fields))
	return nil
}

// Length is the encoded length of this template record in octets.
func (tr *TemplateRecord) Length() uint16 {
	l := uint16(4)
	for _, f := range tr.Fields {
		l += uint16(f.WireLength())
	}
	return l
}
