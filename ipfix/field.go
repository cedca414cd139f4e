/*
Copyright 2023 Alexander Bartolomey (github@alexanderbartolomey.de)

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package ipfix

import (
	"encoding/binary"
	"fmt"
	"io"
)

// VariableLength is the length sentinel a template field specifier uses to
// announce that the field's actual length is carried on the wire in front
// of each occurrence, rather than being fixed.
const VariableLength uint16 = 0xffff

// enterpriseBit marks an information element id as enterprise-specific (PEN
// follows in the field specifier) rather than IANA-assigned.
const enterpriseBit uint16 = 0x8000

// FieldKey identifies an information element by its enterprise number and
// element id. EnterpriseId 0 means the IANA registry.
type FieldKey struct {
	EnterpriseId uint32
	Id           uint16
}

func (k FieldKey) String() string {
	return fmt.Sprintf("%d:%d", k.EnterpriseId, k.Id)
}

// FieldSpec is a field specifier as it appears in a template or options
// template record: which information element it names, and how long its
// value is (or VariableLength if that varies per-record).
type FieldSpec struct {
	FieldKey
	Length uint16
}

func (fs FieldSpec) IsVariableLength() bool {
	return fs.Length == VariableLength
}

func (fs FieldSpec) IsEnterprise() bool {
	return fs.EnterpriseId != 0
}

// WireLength is the number of octets this specifier occupies inside an
// encoded template record: 4 for IANA elements, 8 for enterprise elements.
func (fs FieldSpec) WireLength() int {
	if fs.IsEnterprise() {
		return 8
	}
	return 4
}

func (fs FieldSpec) String() string {
	return fmt.Sprintf("%s/%d", fs.FieldKey, fs.Length)
}

// Encode writes the field specifier in RFC 7011 section 3.2 wire format.
func (fs FieldSpec) Encode(w io.Writer) (int, error) {
	id := fs.Id
	if fs.IsEnterprise() {
		id |= enterpriseBit
	}
	buf := make([]byte, 0, 8)
	buf = binary.BigEndian.AppendUint16(buf, id)
	buf = binary.BigEndian.AppendUint16(buf, fs.Length)
	if fs.IsEnterprise() {
		buf = binary.BigEndian.AppendUint32(buf, fs.EnterpriseId)
	}
	n, err := w.Write(buf)
	return n, err
}

// DecodeFieldSpec reads one field specifier off the wire.
func DecodeFieldSpec(r io.Reader) (FieldSpec, int, error) {
	hdr := make([]byte, 4)
	n, err := io.ReadFull(r, hdr)
	if err != nil {
		return FieldSpec{}, n, err
	}
	id := binary.BigEndian.Uint16(hdr[0:2])
	length := binary.BigEndian.Uint16(hdr[2:4])

	var pen uint32
	read := n
	if id&enterpriseBit != 0 {
		id &^= enterpriseBit
		penBuf := make([]byte, 4)
		m, err := io.ReadFull(r, penBuf)
		read += m
		if err != nil {
			return FieldSpec{}, read, err
		}
		pen = binary.BigEndian.Uint32(penBuf)
	}

	return FieldSpec{
		FieldKey: FieldKey{EnterpriseId: pen, Id: id},
		Length:   length,
	}, read, nil
}

// Field is a read-only, decoded view of one field inside a data record: the
// specifier it was declared under, and the raw octets exactly as they
// arrived on or are destined for the wire.
//
// This collapses what used to be a DataType interface hierarchy (one
// concrete type per IANA abstract type, mutated in place while iterating a
// record) into a single immutable view plus an explicit Cursor walking the
// record body. The engine never interprets a field's value; it only
// inspects FieldSpec to decide whether a field may be copied into a biflow
// record, and splices Raw verbatim when it does.
type Field struct {
	FieldSpec
	Raw []byte
}

func (f Field) Length() uint16 {
	return uint16(len(f.Raw))
}

// Encode writes a variable-length field's 1- or 3-octet length prefix
// followed by its raw value, or just the raw value for a fixed-length
// field.
func (f Field) Encode(w io.Writer) (int, error) {
	written := 0
	if f.IsVariableLength() {
		n, err := encodeVariableLengthPrefix(w, len(f.Raw))
		written += n
		if err != nil {
			return written, err
		}
	}
	n, err := w.Write(f.Raw)
	written += n
	return written, err
}

func encodeVariableLengthPrefix(w io.Writer, length int) (int, error) {
	if length < 255 {
		return w.Write([]byte{byte(length)})
	}
	if length > 0xffff {
		return 0, fmt.Errorf("ipfix: variable-length field value too long: %d octets", length)
	}
	buf := []byte{0xff, 0, 0}
	binary.BigEndian.PutUint16(buf[1:], uint16(length))
	return w.Write(buf)
}

// Cursor decodes a sequence of Fields out of a data record body, given the
// FieldSpecs declared by the record's template, in declaration order.
type Cursor struct {
	r io.Reader
}

func NewCursor(r io.Reader) *Cursor {
	return &Cursor{r: r}
}

// Next decodes one field according to spec, reading a variable-length
// prefix off the wire first if spec is variable-length.
func (c *Cursor) Next(spec FieldSpec) (Field, int, error) {
	length := int(spec.Length)
	read := 0
	if spec.IsVariableLength() {
		n, actual, err := decodeVariableLengthPrefix(c.r)
		read += n
		if err != nil {
			return Field{}, read, err
		}
		length = actual
	}

	raw := make([]byte, length)
	n, err := io.ReadFull(c.r, raw)
	read += n
	if err != nil {
		return Field{}, read, err
	}
	return Field{FieldSpec: FieldSpec{FieldKey: spec.FieldKey, Length: spec.Length}, Raw: raw}, read, nil
}

func decodeVariableLengthPrefix(r io.Reader) (int, int, error) {
	first := make([]byte, 1)
	n, err := io.ReadFull(r, first)
	if err != nil {
		return n, 0, err
	}
	if first[0] < 255 {
		return n, int(first[0]), nil
	}
	rest := make([]byte, 2)
	m, err := io.ReadFull(r, rest)
	n += m
	if err != nil {
		return n, 0, err
	}
	return n, int(binary.BigEndian.Uint16(rest)), nil
}
