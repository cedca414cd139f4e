package ipfix

import (
	"encoding/json"
	"fmt"
	"io"
)

// DataRecord is a sequence of opaque field values, each identified by the
// FieldSpec declared at the same position in the record's template.
type DataRecord struct {
	TemplateId uint16  `json:"templateId,omitempty"`
	FieldCount uint16  `json:"fieldCount,omitempty"`
	Fields     []Field `json:"fields,omitempty"`

	template *Template
}

func (dr *DataRecord) Encode(w io.Writer) (n int, err error) {
	for _, f := range dr.Fields {
		fn, err := f.Encode(w)
		n += fn
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

func (dr *DataRecord) With(t *Template) *DataRecord {
	dr.template = t
	return dr
}

func (dr *DataRecord) Decode(r io.Reader) (n int, err error) {
	switch t := dr.template.Record.(type) {
	case *TemplateRecord:
		n, err = dr.decodeWithFields(r, t.Fields)
		dr.TemplateId = t.TemplateId
	case *OptionsTemplateRecord:
		specs := make([]FieldSpec, 0, len(t.Scopes)+len(t.Options))
		specs = append(specs, t.Scopes...)
		specs = append(specs, t.Options...)
		n, err = dr.decodeWithFields(r, specs)
		dr.TemplateId = t.TemplateId
	default:
		return 0, fmt.Errorf("ipfix: data record bound to unsupported template type %T", t)
	}
	if err != nil && err != io.EOF {
		return n, fmt.Errorf("failed to decode data record, %w", err)
	}
	dr.FieldCount = uint16(len(dr.Fields))
	return n, err
}

func (dr *DataRecord) decodeWithFields(r io.Reader, specs []FieldSpec) (n int, err error) {
	cursor := NewCursor(r)
	fs := make([]Field, 0, len(specs))
	for idx, spec := range specs {
		f, m, err := cursor.Next(spec)
		n += m
		if err != nil {
			if err == io.EOF {
				dr.Fields = fs
				return n, io.EOF
			}
			return n, fmt.Errorf("failed to decode field %d (%s), %w", idx, spec, err)
		}
		fs = append(fs, f)
	}
	dr.Fields = fs
	return n, nil
}

func (dr *DataRecord) Length() uint16 {
	l := uint16(0)
	for _, f := range dr.Fields {
		if f.IsVariableLength() {
			if f.Length() < 255 {
				l += 1
			} else {
				l += 3
			}
		}
		l += f.Length()
	}
	return l
}

// Get looks up a decoded field by its information element key.
func (dr *DataRecord) Get(key FieldKey) (Field, bool) {
	for _, f := range dr.Fields {
		if f.FieldKey == key {
			return f, true
		}
	}
	return Field{}, false
}

func (dr *DataRecord) String() string {
	sl := make([]string, 0, len(dr.Fields))
	for _, v := range dr.Fields {
		sl = append(sl, v.String())
	}
	return fmt.Sprintf("<id=%d,len=%d>%v", dr.TemplateId, dr.FieldCount, sl)
}

func (dr *DataRecord) UnmarshalJSON(in []byte) error {
	type idr struct {
		TemplateId uint16  `json:"templateId,omitempty"`
		FieldCount uint16  `json:"fieldCount,omitempty"`
		Fields     []Field `json:"fields,omitempty"`
	}
	t := &idr{}
	if err := json.Unmarshal(in, t); err != nil {
		return err
	}
	dr.TemplateId = t.TemplateId
	dr.FieldCount = t.FieldCount
	dr.Fields = t.Fields
	return nil
}

func (dr *DataRecord) Clone() DataRecord {
	fs := make([]Field, len(dr.Fields))
	for i, f := range dr.Fields {
		raw := make([]byte, len(f.Raw))
		copy(raw, f.Raw)
		fs[i] = Field{FieldSpec: f.FieldSpec, Raw: raw}
	}
	return DataRecord{
		TemplateId: dr.TemplateId,
		FieldCount: dr.FieldCount,
		Fields:     fs,
	}
}
