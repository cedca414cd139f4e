package biflow

import (
	"github.com/zoomoid/ipfix-biflow/ipfix"
)

// messageBuilderState implements the strict state machine from spec §4.4:
// Empty -> Initialized -> (Initialized|SetOpen)* -> Built.
type messageBuilderState int

const (
	stateEmpty messageBuilderState = iota
	stateInitialized
	stateSetOpen
	stateBuilt
)

const (
	messageHeaderLength = 16
	setHeaderLength     = 4
	maxMessageLength    = 65535
)

// MessageBuilder assembles an outbound IPFIX message one record (or
// template) at a time, opening and closing sets transparently as the
// caller alternates between template ids, and rejecting any append that
// would push the message past the 65535-octet wire limit.
type MessageBuilder struct {
	state messageBuilderState

	msg    *ipfix.Message
	length int // running encoded length, message header included

	openKind string
	openID   uint16
}

func NewMessageBuilder() *MessageBuilder {
	return &MessageBuilder{state: stateEmpty}
}

// Init starts a new message. Init is only valid on a fresh builder; calling
// it on a builder that was already initialized or built is an invariant
// violation.
func (mb *MessageBuilder) Init(odid uint32, exportTime uint32, sequenceNumber uint32) error {
	if mb.state != stateEmpty {
		return invariantErrorf("init called on a message builder that is not empty")
	}
	mb.msg = &ipfix.Message{
		Version:             10,
		ExportTime:          exportTime,
		SequenceNumber:      sequenceNumber,
		ObservationDomainId: odid,
	}
	mb.length = messageHeaderLength
	mb.state = stateInitialized
	return nil
}

// ensureSetIndex returns the index into mb.msg.Sets of the open set
// matching (kind, id), opening a new one if necessary. recLen is the size
// of the record about to be appended, used for the overflow check before
// any state is mutated.
func (mb *MessageBuilder) ensureSetIndex(kind string, setID uint16, recLen int) (int, error) {
	if mb.state == stateSetOpen && mb.openKind == kind && mb.openID == setID {
		if mb.length+recLen > maxMessageLength {
			return 0, overflowErrorf("appending %d octets to open set would exceed message length", recLen)
		}
		return len(mb.msg.Sets) - 1, nil
	}

	if mb.length+setHeaderLength+recLen > maxMessageLength {
		return 0, overflowErrorf("opening a new set for %d octets would exceed message length", recLen)
	}

	s := ipfix.Set{SetHeader: ipfix.SetHeader{Id: setID}, Kind: kind}
	switch kind {
	case ipfix.KindDataSet:
		s.Set = &ipfix.DataSet{}
	case ipfix.KindTemplateSet:
		s.Set = &ipfix.TemplateSet{}
	case ipfix.KindOptionsTemplateSet:
		s.Set = &ipfix.OptionsTemplateSet{}
	default:
		return 0, invariantErrorf("unknown set kind %q", kind)
	}

	mb.msg.Sets = append(mb.msg.Sets, s)
	mb.openKind = kind
	mb.openID = setID
	mb.length += setHeaderLength
	mb.state = stateSetOpen
	return len(mb.msg.Sets) - 1, nil
}

// AddTemplate appends a template record to the open template set, or opens
// a new template set if a different set is currently open; a message can
// therefore carry several template sets. AddTemplate must be called before
// any data record referencing the template.
func (mb *MessageBuilder) AddTemplate(tr ipfix.TemplateRecord) error {
	if mb.state != stateInitialized && mb.state != stateSetOpen {
		return invariantErrorf("add_template called before init")
	}
	recLen := int(tr.Length())
	idx, err := mb.ensureSetIndex(ipfix.KindTemplateSet, ipfix.IPFIX, recLen)
	if err != nil {
		return err
	}
	ts := mb.msg.Sets[idx].Set.(*ipfix.TemplateSet)
	ts.Records = append(ts.Records, tr)
	mb.length += recLen
	return nil
}

// AddOptionsTemplate is the options-template-set analogue of AddTemplate.
func (mb *MessageBuilder) AddOptionsTemplate(otr ipfix.OptionsTemplateRecord) error {
	if mb.state != stateInitialized && mb.state != stateSetOpen {
		return invariantErrorf("add_options_template called before init")
	}
	recLen := int(otr.Length())
	idx, err := mb.ensureSetIndex(ipfix.KindOptionsTemplateSet, ipfix.IPFIXOptions, recLen)
	if err != nil {
		return err
	}
	ots := mb.msg.Sets[idx].Set.(*ipfix.OptionsTemplateSet)
	ots.Records = append(ots.Records, otr)
	mb.length += recLen
	return nil
}

// AddRecord appends a data record under templateID, opening a new data set
// if the currently open set belongs to a different template.
func (mb *MessageBuilder) AddRecord(templateID uint16, dr ipfix.DataRecord) error {
	if mb.state != stateInitialized && mb.state != stateSetOpen {
		return invariantErrorf("add_record called before init")
	}
	// Summed as int: DataRecord.Length is uint16 and wraps for oversized records.
	recLen := 0
	for _, f := range dr.Fields {
		if f.IsVariableLength() {
			if len(f.Raw) < 255 {
				recLen += 1
			} else {
				recLen += 3
			}
		}
		recLen += len(f.Raw)
	}
	idx, err := mb.ensureSetIndex(ipfix.KindDataSet, templateID, recLen)
	if err != nil {
		return err
	}
	ds := mb.msg.Sets[idx].Set.(*ipfix.DataSet)
	ds.Records = append(ds.Records, dr)
	mb.length += recLen
	return nil
}

// Len reports the encoded length the message would currently have,
// including the 16-octet message header.
func (mb *MessageBuilder) Len() int {
	return mb.length
}

// Build finalizes the message: back-patches every set's header length and
// the message's own length field, and returns the assembled message. The
// builder is left in the Built state; it must be discarded after this
// call, per spec §4.4 (a fresh MessageBuilder is used for the next
// message).
func (mb *MessageBuilder) Build() (*ipfix.Message, error) {
	if mb.state != stateInitialized && mb.state != stateSetOpen {
		return nil, invariantErrorf("build called before init")
	}

	for i := range mb.msg.Sets {
		s := &mb.msg.Sets[i]
		var body int
		switch ss := s.Set.(type) {
		case *ipfix.DataSet:
			for _, r := range ss.Records {
				body += int(r.Length())
			}
		case *ipfix.TemplateSet:
			for _, r := range ss.Records {
				body += int(r.Length())
			}
		case *ipfix.OptionsTemplateSet:
			for _, r := range ss.Records {
				body += int(r.Length())
			}
		}
		s.SetHeader.Length = uint16(setHeaderLength + body)
	}

	mb.msg.Length = uint16(mb.length)
	mb.state = stateBuilt
	return mb.msg, nil
}
