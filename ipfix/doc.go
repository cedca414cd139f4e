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

/*
Package ipfix implements the wire-level pieces of RFC 7011 (IPFIX message
format) and RFC 5103 (bidirectional flow export) needed to read and write
IPFIX messages: message and set headers, template and data records, and a
registry of information elements.

# Scope

This package decodes and encodes the envelope: Message, Set, TemplateRecord,
OptionsTemplateRecord, and DataRecord. It deliberately does not interpret
field values - a DataRecord's Fields are opaque byte views (see field.go),
not typed values. Callers that need typed access build it on top; this
keeps decoding allocation-light and keeps the package usable for workloads,
like bidirectional flow pairing, that only ever copy field bytes verbatim
between records rather than parsing them.

Out of scope: TCP/UDP collection transport, on-disk file formats, RFC 5610
dynamic information element definitions, and persistent/etcd-backed
template caches. These concerns live in the consuming application, not in
the wire codec.

# Data structures

An IPFIX message contains one or more Sets, each carrying records of a
single kind: template records (Set ID 2), options template records (Set ID
3), or data records (Set ID >= 256, associated with a previously received
template by ID). A DataRecord cannot be decoded without first decoding the
TemplateRecord or OptionsTemplateRecord it references; Template and
TemplateCache manage that association.

Bidirectional flow information per RFC 5103 is signaled by re-declaring a
field under the reverse enterprise number (ReversePEN, 29305); see
rfc5103.go for the list of elements that RFC 5103 forbids from being
reversed this way.
*/
package ipfix
