package biflow

import (
	"hash/crc64"
)

var crcTable = crc64.MakeTable(crc64.ECMA)

// widthDiscriminant values combined into the final hash so that the
// 13-byte (both-IPv4) and 37-byte (otherwise) packing domains cannot
// collide even if some pathological input produced identical CRC64 values
// for differently-sized inputs.
const (
	widthDiscriminantV4 uint64 = 0
	widthDiscriminantV6 uint64 = 1 << 63
)

// FlowKey is the 5-tuple plus arrival timestamp that identifies one
// direction of a flow. Only the 5-tuple participates in equality and
// hashing; ArrivalTS is carried for expiry accounting only.
type FlowKey struct {
	SrcIP, DstIP     IPAddr
	SrcPort, DstPort uint16
	Protocol         uint8
	ArrivalTS        int64 // unix seconds
}

// Reverse swaps source/destination IPs and ports, preserving protocol and
// arrival timestamp.
func (k FlowKey) Reverse() FlowKey {
	return FlowKey{
		SrcIP:     k.DstIP,
		DstIP:     k.SrcIP,
		SrcPort:   k.DstPort,
		DstPort:   k.SrcPort,
		Protocol:  k.Protocol,
		ArrivalTS: k.ArrivalTS,
	}
}

// Equal compares the 5-tuple only, ignoring ArrivalTS.
func (k FlowKey) Equal(other FlowKey) bool {
	return k.SrcIP.Equal(other.SrcIP) &&
		k.DstIP.Equal(other.DstIP) &&
		k.SrcPort == other.SrcPort &&
		k.DstPort == other.DstPort &&
		k.Protocol == other.Protocol
}

// Hash computes the CRC-64 of the packed 5-tuple, using a width
// discriminant to separate the both-IPv4 and mixed/IPv6 packing domains.
// FlowKey itself is comparable (IPAddr is a fixed-size array) and the cache
// keys its map on FlowKey directly; Hash is for callers that want a
// narrower value than the full struct, e.g. for sharding or logging.
func (k FlowKey) Hash() uint64 {
	if k.SrcIP.IsIP4() && k.DstIP.IsIP4() {
		buf := make([]byte, 0, 13)
		buf = append(buf, k.SrcIP.Bytes()...)
		buf = append(buf, k.DstIP.Bytes()...)
		buf = append(buf, byte(k.SrcPort>>8), byte(k.SrcPort))
		buf = append(buf, byte(k.DstPort>>8), byte(k.DstPort))
		buf = append(buf, k.Protocol)
		return crc64.Checksum(buf, crcTable) ^ widthDiscriminantV4
	}

	buf := make([]byte, 0, 37)
	buf = append(buf, fullOctets(k.SrcIP)...)
	buf = append(buf, fullOctets(k.DstIP)...)
	buf = append(buf, byte(k.SrcPort>>8), byte(k.SrcPort))
	buf = append(buf, byte(k.DstPort>>8), byte(k.DstPort))
	buf = append(buf, k.Protocol)
	return crc64.Checksum(buf, crcTable) ^ widthDiscriminantV6
}

// fullOctets returns the full 16-byte representation regardless of kind.
func fullOctets(ip IPAddr) []byte {
	b := make([]byte, 16)
	copy(b, ip.octets[:])
	return b
}

// mapKey is an alias of FlowKey for call sites that rely on Go equality
// rather than the explicit Equal/Hash methods above: FlowKey's IPAddr,
// being a fixed-size array, is already comparable. The cache's map is
// declared with FlowKey itself, and the time wheel keeps keys in slices.
type mapKey = FlowKey
