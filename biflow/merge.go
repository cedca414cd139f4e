package biflow

import "github.com/zoomoid/ipfix-biflow/ipfix"

// biflowDirectionFieldID is the RFC 5103 §6.3 information element every
// synthesized biflow record carries in addition to the merged key and
// value fields.
const biflowDirectionFieldID uint16 = 239

var biflowDirectionSpec = ipfix.FieldSpec{
	FieldKey: ipfix.FieldKey{Id: biflowDirectionFieldID},
	Length:   1,
}

// biflowDirectionArbitrary is the value stored in the biflowDirection
// field: the engine always re-derives which record is "forward" from
// arrival order, so the emitted flow is always reported arbitrary
// (neither endpoint is known to have initiated).
const biflowDirectionArbitrary uint64 = 0

// isKeyField reports whether a field participates in the 5-tuple and is
// therefore dropped from the merged record body and re-emitted once,
// separately, by appendKeyFields (spec §4.6: "Any side, key field").
func isKeyField(k ipfix.FieldKey) bool {
	if k.EnterpriseId != 0 {
		return false
	}
	switch k.Id {
	case ieSourceTransportPort, ieDestinationTransportPort, ieProtocolIdentifier,
		ieSourceIPv4Address, ieDestinationIPv4Address,
		ieSourceIPv6Address, ieDestinationIPv6Address:
		return true
	default:
		return false
	}
}

// admit classifies a single non-key field from one side of the merge,
// grounded on Storage::add_field_to_drec: it decides whether the field is
// copied into the biflow record at all, and, on first sight of this
// (fwdTemplateId, revTemplateId) pair, under which (pen, id) it is
// declared in the synthesized template.
//
// reversed is true for fields coming from the reverse-direction record.
func admit(f ipfix.Field, reversed bool, registry ipfix.Registry, ignoreMissingReverse bool) (emit bool, outKey ipfix.FieldKey) {
	ie, known := registry.Get(f.FieldKey)
	if known && ie.HasStructuredData() {
		return false, ipfix.FieldKey{}
	}
	if !known || ie.IsUnassigned() {
		return false, ipfix.FieldKey{}
	}

	if !reversed {
		return true, f.FieldKey
	}

	if !f.IsEnterprise() {
		if !ipfix.Reversible(f.Id) {
			return false, ipfix.FieldKey{}
		}
		return true, ipfix.FieldKey{EnterpriseId: ipfix.ReversePEN, Id: f.Id}
	}

	if known && ie.ReverseId != nil {
		return true, ipfix.FieldKey{EnterpriseId: f.EnterpriseId, Id: *ie.ReverseId}
	}

	// Enterprise-private field with no known reverse definition: dropped
	// under ignore_missing_reverse, otherwise duplicated verbatim under its
	// own (pen, id), per Storage::add_field_to_drec.
	if ignoreMissingReverse {
		return false, ipfix.FieldKey{}
	}
	return true, f.FieldKey
}

// appendKeyFields re-emits the merged record's 5-tuple once, using the
// forward (cached) side's own key verbatim; ports are only appended when
// nonzero, so a pairing that dropped ports entirely (pair_missing_ports)
// omits them from the output too (spec §4.6, §4.1).
func appendKeyFields(rb *RecordBuilder, tb *TemplateBuilder, fwdKey FlowKey) {
	srcIPSpec, dstIPSpec := ipAddressSpecs(fwdKey)
	rb.AppendIP(srcIPSpec, fwdKey.SrcIP)
	rb.AppendIP(dstIPSpec, fwdKey.DstIP)
	if tb != nil {
		tb.AppendSpec(srcIPSpec)
		tb.AppendSpec(dstIPSpec)
	}

	if fwdKey.SrcPort != 0 {
		spec := ipfix.FieldSpec{FieldKey: ipfix.FieldKey{Id: ieSourceTransportPort}, Length: 2}
		rb.AppendUint(spec, uint64(fwdKey.SrcPort))
		if tb != nil {
			tb.AppendSpec(spec)
		}
	}
	if fwdKey.DstPort != 0 {
		spec := ipfix.FieldSpec{FieldKey: ipfix.FieldKey{Id: ieDestinationTransportPort}, Length: 2}
		rb.AppendUint(spec, uint64(fwdKey.DstPort))
		if tb != nil {
			tb.AppendSpec(spec)
		}
	}

	protoSpec := ipfix.FieldSpec{FieldKey: ipfix.FieldKey{Id: ieProtocolIdentifier}, Length: 1}
	rb.AppendUint(protoSpec, uint64(fwdKey.Protocol))
	if tb != nil {
		tb.AppendSpec(protoSpec)
	}
}

// ipAddressSpecs picks the IPv4 or IPv6 address field ids to declare,
// based on the address kind actually carried by the key.
func ipAddressSpecs(k FlowKey) (src, dst ipfix.FieldSpec) {
	if k.SrcIP.IsIP4() && k.DstIP.IsIP4() {
		return ipfix.FieldSpec{FieldKey: ipfix.FieldKey{Id: ieSourceIPv4Address}, Length: 4},
			ipfix.FieldSpec{FieldKey: ipfix.FieldKey{Id: ieDestinationIPv4Address}, Length: 4}
	}
	return ipfix.FieldSpec{FieldKey: ipfix.FieldKey{Id: ieSourceIPv6Address}, Length: 16},
		ipfix.FieldSpec{FieldKey: ipfix.FieldKey{Id: ieDestinationIPv6Address}, Length: 16}
}

// buildBiflow merges a cached forward-direction record with a newly
// arrived reverse-direction record into one biflow record, constructing
// its template the first time this (fwdTemplateId, revTemplateId) pair is
// seen. fwdKey is the cached record's own (already-extracted) 5-tuple,
// used verbatim for the re-emitted key fields (spec §4.6: "reversed key
// here is the key of the cached record").
func buildBiflow(
	fwd, rev []ipfix.Field,
	fwdKey FlowKey,
	registry ipfix.Registry,
	ignoreMissingReverse bool,
	tmplExists bool,
) (ipfix.DataRecord, []ipfix.FieldSpec) {
	rb := NewRecordBuilder()
	var tb *TemplateBuilder
	if !tmplExists {
		tb = NewTemplateBuilder()
	}

	appendKeyFields(rb, tb, fwdKey)

	for _, f := range fwd {
		if isKeyField(f.FieldKey) {
			continue
		}
		if ok, outKey := admit(f, false, registry, ignoreMissingReverse); ok {
			rb.AppendRaw(ipfix.FieldSpec{FieldKey: outKey, Length: f.FieldSpec.Length}, f.Raw)
			if tb != nil {
				tb.Append(outKey.EnterpriseId, outKey.Id, f.FieldSpec.Length)
			}
		}
	}
	for _, f := range rev {
		if isKeyField(f.FieldKey) {
			continue
		}
		if ok, outKey := admit(f, true, registry, ignoreMissingReverse); ok {
			rb.AppendRaw(ipfix.FieldSpec{FieldKey: outKey, Length: f.FieldSpec.Length}, f.Raw)
			if tb != nil {
				tb.Append(outKey.EnterpriseId, outKey.Id, f.FieldSpec.Length)
			}
		}
	}

	rb.AppendUint(biflowDirectionSpec, biflowDirectionArbitrary)
	if tb != nil {
		tb.AppendSpec(biflowDirectionSpec)
	}

	dr := rb.Build(0) // templateID is filled in by the caller once known
	if tb == nil {
		return dr, nil
	}
	return dr, tb.fields
}
