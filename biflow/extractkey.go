package biflow

import (
	"time"

	"github.com/zoomoid/ipfix-biflow/ipfix"
)

// IANA information element ids consulted by key extraction and by the
// admissibility rules in merge.go.
const (
	ieSourceTransportPort      uint16 = 7
	ieDestinationTransportPort uint16 = 11
	ieProtocolIdentifier       uint16 = 4
	ieSourceIPv4Address        uint16 = 8
	ieDestinationIPv4Address   uint16 = 12
	ieSourceIPv6Address        uint16 = 27
	ieDestinationIPv6Address   uint16 = 28
)

// now is a package-level hook so tests can control "the current time"
// without the engine depending on a clock abstraction end to end.
var now = func() time.Time { return time.Now() }

// extractKey implements spec §4.1: derive a FlowKey from a decoded data
// record, or report a format error if mandatory fields are missing.
func extractKey(dr *ipfix.DataRecord, pairMissingPorts bool) (FlowKey, error) {
	var srcPort, dstPort uint16

	sp, spOk := dr.Get(ipfix.FieldKey{Id: ieSourceTransportPort})
	dp, dpOk := dr.Get(ipfix.FieldKey{Id: ieDestinationTransportPort})
	if !spOk || !dpOk {
		if !pairMissingPorts {
			return FlowKey{}, formatErrorf("missing transport port field")
		}
	} else if !pairMissingPorts {
		// Ports only participate in the pairing key when the engine is not
		// configured to tolerate missing ports. When pair_missing_ports is
		// set, a peer that never reports ports at all (e.g. a non-transport
		// protocol, or an exporter that only attaches port fields to one
		// direction of a conversation) would otherwise never hash-match its
		// real-ported counterpart, so ports are dropped from the key
		// entirely rather than only when literally absent on this record.
		srcPort = beUint16(sp.Raw)
		dstPort = beUint16(dp.Raw)
	}

	proto, ok := dr.Get(ipfix.FieldKey{Id: ieProtocolIdentifier})
	if !ok || len(proto.Raw) < 1 {
		return FlowKey{}, formatErrorf("missing protocolIdentifier field")
	}

	dstIP, err := extractIP(dr, ieDestinationIPv4Address, ieDestinationIPv6Address)
	if err != nil {
		return FlowKey{}, err
	}
	srcIP, err := extractIP(dr, ieSourceIPv4Address, ieSourceIPv6Address)
	if err != nil {
		return FlowKey{}, err
	}

	return FlowKey{
		SrcIP:     srcIP,
		DstIP:     dstIP,
		SrcPort:   srcPort,
		DstPort:   dstPort,
		Protocol:  proto.Raw[0],
		ArrivalTS: now().Unix(),
	}, nil
}

func extractIP(dr *ipfix.DataRecord, v4Id, v6Id uint16) (IPAddr, error) {
	if f, ok := dr.Get(ipfix.FieldKey{Id: v4Id}); ok {
		return IPv4FromBytes(f.Raw)
	}
	if f, ok := dr.Get(ipfix.FieldKey{Id: v6Id}); ok {
		return IPv6FromBytes(f.Raw)
	}
	return IPAddr{}, formatErrorf("missing IP address field (id %d or %d)", v4Id, v6Id)
}

func beUint16(b []byte) uint16 {
	if len(b) < 2 {
		if len(b) == 1 {
			return uint16(b[0])
		}
		return 0
	}
	return uint16(b[0])<<8 | uint16(b[1])
}
