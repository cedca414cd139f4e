package ipfix

import (
	"github.com/zoomoid/ipfix-biflow/ipfix/iana/semantics"
	"github.com/zoomoid/ipfix-biflow/ipfix/iana/status"
)

// IANA returns the subset of the IANA-IPFIX information element registry
// (https://www.iana.org/assignments/ipfix/ipfix.xhtml) that this module's
// test fixtures and examples exercise: the 5-tuple fields, a handful of
// counters, flow timestamps, the biflow direction field, and the RFC 6313
// structured-data container elements. It is not a complete mirror of the
// registry - callers collecting against exporters that use other IANA
// elements should register them with a Registry via Add.
func IANA() []InformationElement {
	return []InformationElement{
		{Id: 1, Name: "octetDeltaCount", Type: "unsigned64", Semantics: semantics.DeltaCounter, Status: status.Current},
		{Id: 2, Name: "packetDeltaCount", Type: "unsigned64", Semantics: semantics.DeltaCounter, Status: status.Current},
		{Id: 4, Name: "protocolIdentifier", Type: "unsigned8", Semantics: semantics.Identifier, Status: status.Current},
		{Id: 6, Name: "tcpControlBits", Type: "unsigned16", Semantics: semantics.Flags, Status: status.Current},
		{Id: 7, Name: "sourceTransportPort", Type: "unsigned16", Semantics: semantics.Identifier, Status: status.Current},
		{Id: 8, Name: "sourceIPv4Address", Type: "ipv4Address", Semantics: semantics.Identifier, Status: status.Current},
		{Id: 10, Name: "ingressInterface", Type: "unsigned32", Semantics: semantics.Identifier, Status: status.Current},
		{Id: 11, Name: "destinationTransportPort", Type: "unsigned16", Semantics: semantics.Identifier, Status: status.Current},
		{Id: 12, Name: "destinationIPv4Address", Type: "ipv4Address", Semantics: semantics.Identifier, Status: status.Current},
		{Id: 14, Name: "egressInterface", Type: "unsigned32", Semantics: semantics.Identifier, Status: status.Current},
		{Id: 21, Name: "flowEndSysUpTime", Type: "unsigned32", Semantics: semantics.Quantity, Status: status.Current},
		{Id: 22, Name: "flowStartSysUpTime", Type: "unsigned32", Semantics: semantics.Quantity, Status: status.Current},
		{Id: 61, Name: "flowDirection", Type: "unsigned8", Semantics: semantics.Identifier, Status: status.Current},
		{Id: 150, Name: "flowStartSeconds", Type: "dateTimeSeconds", Semantics: semantics.Quantity, Status: status.Current},
		{Id: 151, Name: "flowEndSeconds", Type: "dateTimeSeconds", Semantics: semantics.Quantity, Status: status.Current},
		{Id: 152, Name: "flowStartMilliseconds", Type: "dateTimeMilliseconds", Semantics: semantics.Quantity, Status: status.Current},
		{Id: 153, Name: "flowEndMilliseconds", Type: "dateTimeMilliseconds", Semantics: semantics.Quantity, Status: status.Current},
		{Id: 27, Name: "sourceIPv6Address", Type: "ipv6Address", Semantics: semantics.Identifier, Status: status.Current},
		{Id: 28, Name: "destinationIPv6Address", Type: "ipv6Address", Semantics: semantics.Identifier, Status: status.Current},
		{Id: 239, Name: "biflowDirection", Type: "unsigned8", Semantics: semantics.Identifier, Status: status.Current},
		{Id: 291, Name: "basicList", Type: TypeBasicList, Semantics: semantics.List, Status: status.Current},
		{Id: 292, Name: "subTemplateList", Type: TypeSubTemplateList, Semantics: semantics.List, Status: status.Current},
		{Id: 293, Name: "subTemplateMultiList", Type: TypeSubTemplateMultiList, Semantics: semantics.List, Status: status.Current},
	}
}
