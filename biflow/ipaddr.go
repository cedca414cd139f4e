package biflow

import (
	"bytes"
	"fmt"
	"net"
)

// v4InV6Prefix is the ::ffff:0:0/96 prefix IPv4 addresses are stored under.
var v4InV6Prefix = [12]byte{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0xff, 0xff}

// IPAddr is a unified IPv4/IPv6 address value: always 16 bytes, network
// byte order, IPv4 addresses held in IPv4-mapped-IPv6 form. Kind is
// inferred from the address's prefix rather than carried as a separate
// tag, so equality and ordering stay purely bytewise.
type IPAddr struct {
	octets [16]byte
}

// IPv4 constructs an IPAddr from 4 octets in network byte order.
func IPv4(a, b, c, d byte) IPAddr {
	var ip IPAddr
	copy(ip.octets[:12], v4InV6Prefix[:])
	ip.octets[12], ip.octets[13], ip.octets[14], ip.octets[15] = a, b, c, d
	return ip
}

// IPv4FromBytes constructs an IPAddr from a 4-byte IPv4 address.
func IPv4FromBytes(b []byte) (IPAddr, error) {
	if len(b) != 4 {
		return IPAddr{}, fmt.Errorf("biflow: IPv4 address must be 4 bytes, got %d", len(b))
	}
	return IPv4(b[0], b[1], b[2], b[3]), nil
}

// IPv6FromBytes constructs an IPAddr from a 16-byte IPv6 address.
func IPv6FromBytes(b []byte) (IPAddr, error) {
	if len(b) != 16 {
		return IPAddr{}, fmt.Errorf("biflow: IPv6 address must be 16 bytes, got %d", len(b))
	}
	var ip IPAddr
	copy(ip.octets[:], b)
	return ip, nil
}

// IsIP4 reports whether this address is stored in IPv4-mapped-IPv6 form.
func (ip IPAddr) IsIP4() bool {
	return bytes.Equal(ip.octets[:12], v4InV6Prefix[:])
}

// IsIP6 is defined as "not IsIP4", per the data model: there is no third
// kind.
func (ip IPAddr) IsIP6() bool {
	return !ip.IsIP4()
}

// Bytes returns the address in its shortest wire form: 4 bytes for an IPv4
// address, 16 bytes for an IPv6 address.
func (ip IPAddr) Bytes() []byte {
	if ip.IsIP4() {
		b := make([]byte, 4)
		copy(b, ip.octets[12:])
		return b
	}
	b := make([]byte, 16)
	copy(b, ip.octets[:])
	return b
}

// Equal is bytewise equality over the full 16-byte representation.
func (ip IPAddr) Equal(other IPAddr) bool {
	return ip.octets == other.octets
}

// Compare orders two addresses bytewise; returns -1, 0, or 1.
func (ip IPAddr) Compare(other IPAddr) int {
	return bytes.Compare(ip.octets[:], other.octets[:])
}

func (ip IPAddr) String() string {
	return net.IP(ip.octets[:]).String()
}
