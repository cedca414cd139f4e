package ipfix

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// OptionsTemplateRecord announces the field layout of an options data
// record: a leading run of scope FieldSpecs, followed by option FieldSpecs.
type OptionsTemplateRecord struct {
	TemplateId      uint16 `json:"templateId,omitempty"`
	FieldCount      uint16 `json:"fieldCount,omitempty"`
	ScopeFieldCount uint16 `json:"scopeFieldCount,omitempty"`

	Scopes  []FieldSpec `json:"scopes,omitempty"`
	Options []FieldSpec `json:"options,omitempty"`
}

var _ templateRecord = &OptionsTemplateRecord{}
var _ fmt.Stringer = &OptionsTemplateRecord{}

func (otr *OptionsTemplateRecord) String() string {
	scs := make([]string, 0, len(otr.Scopes))
	for _, scope := range otr.Scopes {
		scs = append(scs, scope.String())
	}
	os := make([]string, 0, len(otr.Options))
	for _, option := range otr.Options {
		os = append(os, option.String())
	}
	return fmt.Sprintf("<id=%d,len=%d>[scopes:%v options:%v]", otr.TemplateId, otr.FieldCount, scs, os)
}

func (otr *OptionsTemplateRecord) Type() string {
	return KindOptionsTemplateSet
}

func (otr *OptionsTemplateRecord) Id() uint16 {
	return otr.TemplateId
}

func (otr *OptionsTemplateRecord) Decode(r io.Reader) (n int, err error) {
	hdr := make([]byte, 6)
	m, err := io.ReadFull(r, hdr)
	n += m
	if err != nil {
		return n, err
	}
	otr.TemplateId = binary.BigEndian.Uint16(hdr[0:2])
	otr.FieldCount = binary.BigEndian.Uint16(hdr[2:4])
	otr.ScopeFieldCount = binary.BigEndian.Uint16(hdr[4:6])
	if otr.ScopeFieldCount == 0 {
		return n, errors.New("ipfix: options template record scope field count must not be zero")
	}

	otr.Scopes = make([]FieldSpec, 0, int(otr.ScopeFieldCount))
	for i := 0; i < int(otr.ScopeFieldCount); i++ {
		spec, m, err := DecodeFieldSpec(r)
		n += m
		if err != nil {
			return n, err
		}
		otr.Scopes = append(otr.Scopes, spec)
	}

	optionsSize := int(otr.FieldCount) - int(otr.ScopeFieldCount)
	if optionsSize < 0 {
		return n, errors.New("ipfix: negative length options template record")
	}
	otr.Options = make([]FieldSpec, 0, optionsSize)
	for i := 0; i < optionsSize; i++ {
		spec, m, err := DecodeFieldSpec(r)
		n += m
		if err != nil {
			return n, err
		}
		otr.Options = append(otr.Options, spec)
	}
	return n, nil
}

func (otr *OptionsTemplateRecord) DecodeData(r io.Reader) (int, error) {
	return 0, nil
}

func (otr *OptionsTemplateRecord) Encode(w io.Writer) (n int, err error) {
	hdr := make([]byte, 0, 6)
	hdr = binary.BigEndian.AppendUint16(hdr, otr.TemplateId)
	hdr = binary.BigEndian.AppendUint16(hdr, otr.FieldCount)
	hdr = binary.BigEndian.AppendUint16(hdr, otr.ScopeFieldCount)
	ln, err := w.Write(hdr)
	n += ln
	if err != nil {
		return n, err
	}
	for _, f := range otr.Scopes {
		fn, err := f.Encode(w)
		n += fn
		if err != nil {
			return n, err
		}
	}
	for _, f := range otr.Options {
		fn, err := f.Encode(w)
		n += fn
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

func (otr *OptionsTemplateRecord) MarshalJSON() ([]byte, error) {
	type iotr struct {
		TemplateId uint16      `json:"templateId,omitempty"`
		Scopes     []FieldSpec `json:"scopes,omitempty"`
		Options    []FieldSpec `json:"options,omitempty"`
	}
	return json.Marshal(iotr{TemplateId: otr.TemplateId, Scopes: otr.Scopes, Options: otr.Options})
}

func (otr *OptionsTemplateRecord) UnmarshalJSON(in []byte) error {
	type iotr struct {
		TemplateId uint16      `json:"templateId,omitempty"`
		Scopes     []FieldSpec `json:"scopes,omitempty"`
		Options    []FieldSpec `json:"options,omitempty"`
	}
	t := &iotr{}
	if err := json.Unmarshal(in, t); err != nil {
		return err
	}
	otr.TemplateId = t.TemplateId
	otr.Scopes = t.Scopes
	otr.Options = t.Options
	otr.ScopeFieldCount = uint16(len(t.Scopes))
	otr.FieldCount = uint16(len(t.Scopes) + len(t.Options))
	return nil
}

// Length is the encoded length of this options template record in octets.
func (otr *OptionsTemplateRecord) Length() uint16 {
	l := uint16(6)
	for _, f := range otr.Scopes {
		l += uint16(f.WireLength())
	}
	for _, f := range otr.Options {
		l += uint16(f.WireLength())
	}
	return l
}
