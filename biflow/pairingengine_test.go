package biflow

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/zoomoid/ipfix-biflow/ipfix"
)

// collectingPasser records every message the engine hands it, standing in
// for the host pipeline.
type collectingPasser struct {
	messages []*ipfix.Message
}

func (p *collectingPasser) Pass(ctx context.Context, msg *ipfix.Message) error {
	p.messages = append(p.messages, msg)
	return nil
}

func newTestEngine(t *testing.T, cfg Config) (*PairingEngine, *collectingPasser) {
	t.Helper()
	reg := ipfix.NewEphemeralRegistry()
	reg.Add(scalarIE(0, 1000)) // a reversible, byte-counter-ish element
	passer := &collectingPasser{}
	pe := NewPairingEngine(cfg, ipfix.NewDefaultEphemeralCache(), reg, passer)
	return pe, passer
}

const testUniflowTemplateID uint16 = 256

func uniflowTemplateSet(id uint16) *ipfix.Set {
	return &ipfix.Set{
		SetHeader: ipfix.SetHeader{Id: ipfix.IPFIX},
		Kind:      ipfix.KindTemplateSet,
		Set: &ipfix.TemplateSet{
			Records: []ipfix.TemplateRecord{{
				TemplateId: id,
				FieldCount: 6,
				Fields: []ipfix.FieldSpec{
					{FieldKey: ipfix.FieldKey{Id: ieSourceIPv4Address}, Length: 4},
					{FieldKey: ipfix.FieldKey{Id: ieDestinationIPv4Address}, Length: 4},
					{FieldKey: ipfix.FieldKey{Id: ieProtocolIdentifier}, Length: 1},
					{FieldKey: ipfix.FieldKey{Id: ieSourceTransportPort}, Length: 2},
					{FieldKey: ipfix.FieldKey{Id: ieDestinationTransportPort}, Length: 2},
					{FieldKey: ipfix.FieldKey{Id: 1000}, Length: 8},
				},
			}},
		},
	}
}

func dataSet(templateID uint16, records ...ipfix.DataRecord) *ipfix.Set {
	return &ipfix.Set{
		SetHeader: ipfix.SetHeader{Id: templateID},
		Kind:      ipfix.KindDataSet,
		Set:       &ipfix.DataSet{Records: records},
	}
}

func uniflowRecord(templateID uint16, srcIP, dstIP [4]byte, srcPort, dstPort uint16, proto byte, counter uint64) ipfix.DataRecord {
	rb := NewRecordBuilder()
	ip, _ := IPv4FromBytes(srcIP[:])
	dip, _ := IPv4FromBytes(dstIP[:])
	rb.AppendIP(ipfix.FieldSpec{FieldKey: ipfix.FieldKey{Id: ieSourceIPv4Address}, Length: 4}, ip)
	rb.AppendIP(ipfix.FieldSpec{FieldKey: ipfix.FieldKey{Id: ieDestinationIPv4Address}, Length: 4}, dip)
	rb.AppendUint(ipfix.FieldSpec{FieldKey: ipfix.FieldKey{Id: ieProtocolIdentifier}, Length: 1}, uint64(proto))
	rb.AppendUint(ipfix.FieldSpec{FieldKey: ipfix.FieldKey{Id: ieSourceTransportPort}, Length: 2}, uint64(srcPort))
	rb.AppendUint(ipfix.FieldSpec{FieldKey: ipfix.FieldKey{Id: ieDestinationTransportPort}, Length: 2}, uint64(dstPort))
	rb.AppendUint(ipfix.FieldSpec{FieldKey: ipfix.FieldKey{Id: 1000}, Length: 8}, counter)
	return rb.Build(templateID)
}

func withClock(t *testing.T, fixed time.Time) func() {
	t.Helper()
	prev := now
	now = func() time.Time { return fixed }
	return func() { now = prev }
}

// flakyTemplateCache wraps a real template cache but refuses the first
// failNext calls to Add, simulating a downstream template manager that
// rejects a newly synthesized template before recovering.
type flakyTemplateCache struct {
	ipfix.TemplateCache
	mu       sync.Mutex
	failNext int
}

func (f *flakyTemplateCache) Add(ctx context.Context, key ipfix.TemplateKey, tmpl *ipfix.Template) error {
	f.mu.Lock()
	if f.failNext > 0 {
		f.failNext--
		f.mu.Unlock()
		return formatErrorf("downstream template manager refused the template")
	}
	f.mu.Unlock()
	return f.TemplateCache.Add(ctx, key, tmpl)
}

// S1: two records of the same flow, opposite direction, pair into one
// merged biflow record and the pending cache empties.
func TestPairingEngineMergesOppositeDirectionPair(t *testing.T) {
	restore := withClock(t, time.Unix(1000, 0))
	defer restore()

	pe, passer := newTestEngine(t, Config{ODID: 1, TimeoutCache: 5, TimeoutMsg: 0})
	ctx := context.Background()

	fwd := &ipfix.Message{ObservationDomainId: 1, Sets: []ipfix.Set{
		*uniflowTemplateSet(testUniflowTemplateID),
		*dataSet(testUniflowTemplateID, uniflowRecord(testUniflowTemplateID, [4]byte{10, 0, 0, 1}, [4]byte{10, 0, 0, 2}, 1234, 80, 6, 5)),
	}}
	if err := pe.Process(ctx, fwd); err != nil {
		t.Fatalf("unexpected error processing forward message: %v", err)
	}
	if pe.cache.len() != 1 {
		t.Fatalf("expected the forward record to be cached pending its reverse, got %d entries", pe.cache.len())
	}

	rev := &ipfix.Message{ObservationDomainId: 1, Sets: []ipfix.Set{
		*dataSet(testUniflowTemplateID, uniflowRecord(testUniflowTemplateID, [4]byte{10, 0, 0, 2}, [4]byte{10, 0, 0, 1}, 80, 1234, 6, 7)),
	}}
	if err := pe.Process(ctx, rev); err != nil {
		t.Fatalf("unexpected error processing reverse message: %v", err)
	}
	if pe.cache.len() != 0 {
		t.Fatalf("expected the cache to be empty after the pair merged, got %d entries", pe.cache.len())
	}

	if err := pe.Close(ctx); err != nil {
		t.Fatalf("unexpected error closing engine: %v", err)
	}
	if len(passer.messages) == 0 {
		t.Fatalf("expected at least one message to be emitted")
	}

	var found bool
	for _, msg := range passer.messages {
		for _, s := range msg.Sets {
			if s.Kind != ipfix.KindDataSet {
				continue
			}
			ds := s.Set.(*ipfix.DataSet)
			for _, dr := range ds.Records {
				if _, ok := dr.Get(ipfix.FieldKey{Id: biflowDirectionFieldID}); ok {
					found = true
				}
			}
		}
	}
	if !found {
		t.Fatalf("expected a merged biflow record carrying biflowDirection in the emitted messages")
	}
}

// S2: a record with no reverse-direction counterpart is emitted as
// passthrough once its cache entry expires.
func TestPairingEngineExpiresUnpairedRecordAsPassthrough(t *testing.T) {
	restore := withClock(t, time.Unix(2000, 0))
	defer restore()

	pe, passer := newTestEngine(t, Config{ODID: 1, TimeoutCache: 5, TimeoutMsg: 0})
	ctx := context.Background()

	msg := &ipfix.Message{ObservationDomainId: 1, Sets: []ipfix.Set{
		*uniflowTemplateSet(testUniflowTemplateID),
		*dataSet(testUniflowTemplateID, uniflowRecord(testUniflowTemplateID, [4]byte{10, 0, 0, 1}, [4]byte{10, 0, 0, 2}, 1234, 80, 6, 5)),
	}}
	if err := pe.Process(ctx, msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pe.cache.len() != 1 {
		t.Fatalf("expected the record to be cached, got %d entries", pe.cache.len())
	}

	now = func() time.Time { return time.Unix(2006, 0) }
	if err := pe.Process(ctx, &ipfix.Message{ObservationDomainId: 1}); err != nil {
		t.Fatalf("unexpected error sweeping: %v", err)
	}
	if pe.cache.len() != 0 {
		t.Fatalf("expected the cache entry to expire, got %d entries remaining", pe.cache.len())
	}

	found := false
	for _, m := range passer.messages {
		for _, s := range m.Sets {
			if s.Kind != ipfix.KindDataSet {
				continue
			}
			ds := s.Set.(*ipfix.DataSet)
			for _, dr := range ds.Records {
				if _, ok := dr.Get(ipfix.FieldKey{Id: biflowDirectionFieldID}); !ok {
					found = true
				}
			}
		}
	}
	if !found {
		t.Fatalf("expected the expired record to be emitted as passthrough (no biflowDirection field)")
	}
}

// S3: pair_missing_ports lets a record with no transport ports pair with a
// counterpart that does carry ports, by dropping ports from the key
// entirely rather than defaulting them to zero on only one side.
func TestPairingEnginePairMissingPortsMatchesAsymmetricPorts(t *testing.T) {
	restore := withClock(t, time.Unix(3000, 0))
	defer restore()

	pe, _ := newTestEngine(t, Config{ODID: 1, TimeoutCache: 5, TimeoutMsg: 0, PairMissingPorts: true})
	ctx := context.Background()

	noPortsTemplate := &ipfix.Set{
		SetHeader: ipfix.SetHeader{Id: ipfix.IPFIX},
		Kind:      ipfix.KindTemplateSet,
		Set: &ipfix.TemplateSet{Records: []ipfix.TemplateRecord{{
			TemplateId: 257,
			FieldCount: 3,
			Fields: []ipfix.FieldSpec{
				{FieldKey: ipfix.FieldKey{Id: ieSourceIPv4Address}, Length: 4},
				{FieldKey: ipfix.FieldKey{Id: ieDestinationIPv4Address}, Length: 4},
				{FieldKey: ipfix.FieldKey{Id: ieProtocolIdentifier}, Length: 1},
			},
		}}},
	}

	rb := NewRecordBuilder()
	ip, _ := IPv4FromBytes([]byte{10, 0, 0, 1})
	dip, _ := IPv4FromBytes([]byte{10, 0, 0, 2})
	rb.AppendIP(ipfix.FieldSpec{FieldKey: ipfix.FieldKey{Id: ieSourceIPv4Address}, Length: 4}, ip)
	rb.AppendIP(ipfix.FieldSpec{FieldKey: ipfix.FieldKey{Id: ieDestinationIPv4Address}, Length: 4}, dip)
	rb.AppendUint(ipfix.FieldSpec{FieldKey: ipfix.FieldKey{Id: ieProtocolIdentifier}, Length: 1}, 1)
	noPortsRecord := rb.Build(257)

	fwd := &ipfix.Message{ObservationDomainId: 1, Sets: []ipfix.Set{*noPortsTemplate, *dataSet(257, noPortsRecord)}}
	if err := pe.Process(ctx, fwd); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pe.cache.len() != 1 {
		t.Fatalf("expected the portless record to be cached, got %d", pe.cache.len())
	}

	rev := &ipfix.Message{ObservationDomainId: 1, Sets: []ipfix.Set{
		*uniflowTemplateSet(testUniflowTemplateID),
		*dataSet(testUniflowTemplateID, uniflowRecord(testUniflowTemplateID, [4]byte{10, 0, 0, 2}, [4]byte{10, 0, 0, 1}, 4444, 5555, 1, 9)),
	}}
	if err := pe.Process(ctx, rev); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pe.cache.len() != 0 {
		t.Fatalf("expected the asymmetric-port pair to merge despite one side lacking ports, got %d entries remaining", pe.cache.len())
	}
}

// S4: a record that already carries RFC 5103 biflow fields is passed
// through untouched rather than being paired again.
func TestPairingEngineAlreadyBiflowPassesThrough(t *testing.T) {
	restore := withClock(t, time.Unix(4000, 0))
	defer restore()

	pe, passer := newTestEngine(t, Config{ODID: 1, TimeoutCache: 5, TimeoutMsg: 0})
	ctx := context.Background()

	rb := NewRecordBuilder()
	rb.AppendUint(ipfix.FieldSpec{FieldKey: ipfix.FieldKey{EnterpriseId: ipfix.ReversePEN, Id: 1000}, Length: 8}, 3)
	rec := rb.Build(300)

	tmplSet := &ipfix.Set{
		SetHeader: ipfix.SetHeader{Id: ipfix.IPFIX},
		Kind:      ipfix.KindTemplateSet,
		Set: &ipfix.TemplateSet{Records: []ipfix.TemplateRecord{{
			TemplateId: 300,
			FieldCount: 1,
			Fields:     []ipfix.FieldSpec{{FieldKey: ipfix.FieldKey{EnterpriseId: ipfix.ReversePEN, Id: 1000}, Length: 8}},
		}}},
	}
	msg := &ipfix.Message{ObservationDomainId: 1, Sets: []ipfix.Set{*tmplSet, *dataSet(300, rec)}}
	if err := pe.Process(ctx, msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pe.cache.len() != 0 {
		t.Fatalf("expected an already-biflow record to bypass the cache entirely, got %d entries", pe.cache.len())
	}
	if err := pe.Close(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(passer.messages) == 0 {
		t.Fatalf("expected the already-biflow record to have been flushed")
	}
}

// S5: options template records are mirrored verbatim under their own
// uniflow template, never run through pairing.
func TestPairingEngineOptionsTemplatePassesThrough(t *testing.T) {
	restore := withClock(t, time.Unix(5000, 0))
	defer restore()

	pe, passer := newTestEngine(t, Config{ODID: 1, TimeoutCache: 5, TimeoutMsg: 0})
	ctx := context.Background()

	otSet := &ipfix.Set{
		SetHeader: ipfix.SetHeader{Id: ipfix.IPFIXOptions},
		Kind:      ipfix.KindOptionsTemplateSet,
		Set: &ipfix.OptionsTemplateSet{Records: []ipfix.OptionsTemplateRecord{{
			TemplateId:      400,
			FieldCount:      2,
			ScopeFieldCount: 1,
			Scopes:          []ipfix.FieldSpec{{FieldKey: ipfix.FieldKey{Id: 145}, Length: 2}},
			Options:         []ipfix.FieldSpec{{FieldKey: ipfix.FieldKey{Id: 1000}, Length: 8}},
		}}},
	}
	rb := NewRecordBuilder()
	rb.AppendUint(ipfix.FieldSpec{FieldKey: ipfix.FieldKey{Id: 145}, Length: 2}, 256)
	rb.AppendUint(ipfix.FieldSpec{FieldKey: ipfix.FieldKey{Id: 1000}, Length: 8}, 42)
	rec := rb.Build(400)

	msg := &ipfix.Message{ObservationDomainId: 1, Sets: []ipfix.Set{*otSet, *dataSet(400, rec)}}
	if err := pe.Process(ctx, msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := pe.Close(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(passer.messages) == 0 {
		t.Fatalf("expected the options record to be flushed")
	}

	var sawOptionsSet bool
	for _, m := range passer.messages {
		for _, s := range m.Sets {
			if s.Kind == ipfix.KindOptionsTemplateSet {
				sawOptionsSet = true
			}
		}
	}
	if !sawOptionsSet {
		t.Fatalf("expected an options template set to be announced in the outbound message")
	}
}

// A newer arrival at the same (unreversed) key supersedes a still-pending
// cache entry, which is flushed as passthrough rather than silently
// dropped (spec §4.7 step 5).
func TestPairingEngineSupersededEntryFlushesAsPassthrough(t *testing.T) {
	restore := withClock(t, time.Unix(6000, 0))
	defer restore()

	pe, passer := newTestEngine(t, Config{ODID: 1, TimeoutCache: 5, TimeoutMsg: 0})
	ctx := context.Background()

	first := &ipfix.Message{ObservationDomainId: 1, Sets: []ipfix.Set{
		*uniflowTemplateSet(testUniflowTemplateID),
		*dataSet(testUniflowTemplateID, uniflowRecord(testUniflowTemplateID, [4]byte{10, 0, 0, 1}, [4]byte{10, 0, 0, 2}, 1234, 80, 6, 1)),
	}}
	if err := pe.Process(ctx, first); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	second := &ipfix.Message{ObservationDomainId: 1, Sets: []ipfix.Set{
		*dataSet(testUniflowTemplateID, uniflowRecord(testUniflowTemplateID, [4]byte{10, 0, 0, 1}, [4]byte{10, 0, 0, 2}, 1234, 80, 6, 2)),
	}}
	if err := pe.Process(ctx, second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pe.cache.len() != 1 {
		t.Fatalf("expected exactly the second arrival to remain cached, got %d entries", pe.cache.len())
	}

	if err := pe.Close(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(passer.messages) == 0 {
		t.Fatalf("expected the superseded entry and the final drain to have been flushed")
	}
}

// spec §4.7 step 4b / §7: a downstream template manager that refuses the
// synthesized biflow template is a format error, not a fatal one. The
// engine must emit the newly arrived record as passthrough and continue,
// rather than propagating the error up through Process.
func TestPairingEngineBiflowTemplateConstructionFailureFallsBackToPassthrough(t *testing.T) {
	restore := withClock(t, time.Unix(7000, 0))
	defer restore()

	reg := ipfix.NewEphemeralRegistry()
	reg.Add(scalarIE(0, 1000))
	passer := &collectingPasser{}
	cache := &flakyTemplateCache{TemplateCache: ipfix.NewDefaultEphemeralCache(), failNext: 1}
	pe := NewPairingEngine(Config{ODID: 1, TimeoutCache: 5, TimeoutMsg: 0}, cache, reg, passer)
	ctx := context.Background()

	fwd := &ipfix.Message{ObservationDomainId: 1, Sets: []ipfix.Set{
		*uniflowTemplateSet(testUniflowTemplateID),
		*dataSet(testUniflowTemplateID, uniflowRecord(testUniflowTemplateID, [4]byte{10, 0, 0, 1}, [4]byte{10, 0, 0, 2}, 1234, 80, 6, 5)),
	}}
	if err := pe.Process(ctx, fwd); err != nil {
		t.Fatalf("unexpected error processing forward message: %v", err)
	}

	rev := &ipfix.Message{ObservationDomainId: 1, Sets: []ipfix.Set{
		*dataSet(testUniflowTemplateID, uniflowRecord(testUniflowTemplateID, [4]byte{10, 0, 0, 2}, [4]byte{10, 0, 0, 1}, 80, 1234, 6, 7)),
	}}
	if err := pe.Process(ctx, rev); err != nil {
		t.Fatalf("expected the biflow template construction failure to be handled as passthrough, not propagated: %v", err)
	}
	if pe.cache.len() != 0 {
		t.Fatalf("expected the cached forward entry to be dropped regardless of the construction failure, got %d entries", pe.cache.len())
	}

	if err := pe.Close(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(passer.messages) == 0 {
		t.Fatalf("expected the reverse record to have been emitted as passthrough")
	}

	var sawPassthrough bool
	for _, msg := range passer.messages {
		for _, s := range msg.Sets {
			if s.Kind != ipfix.KindDataSet {
				continue
			}
			ds := s.Set.(*ipfix.DataSet)
			for _, dr := range ds.Records {
				if _, ok := dr.Get(ipfix.FieldKey{Id: biflowDirectionFieldID}); !ok {
					sawPassthrough = true
				}
			}
		}
	}
	if !sawPassthrough {
		t.Fatalf("expected a passthrough record (no biflowDirection field) in the emitted messages")
	}
}
