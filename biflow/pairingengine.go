package biflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"github.com/zoomoid/ipfix-biflow/ipfix"
)

// MessagePasser hands a fully assembled outbound message to the host
// pipeline. A single inbound message can yield zero, one, or several
// outbound messages - a flush can be forced mid-message by overflow or by
// the wall-clock timer - so the engine pushes messages out through this
// callback rather than returning them from Process.
type MessagePasser interface {
	Pass(ctx context.Context, msg *ipfix.Message) error
}

// PairingEngine is the plugin's central orchestration component. For
// every inbound data record it decides whether to cache it pending its
// reverse-direction counterpart, merge it with one already cached, or
// pass it through unmodified, and assembles the results into outbound
// IPFIX messages (spec §3, §4.7-§4.10).
type PairingEngine struct {
	cfg        Config
	ieRegistry ipfix.Registry

	// inboundTemplates mirrors every template observed on the wire, so a
	// data record's binding (in particular, whether it was declared by an
	// options template) can be recovered from its template id alone.
	inboundTemplates ipfix.TemplateCache

	registry *TemplateRegistry
	cache    *flowCache
	wheel    TimeWheel

	mb           *MessageBuilder
	seq          uint32
	recordsInMsg uint32
	lastFlush    time.Time

	session *Session
	passer  MessagePasser
	log     logr.Logger
}

// NewPairingEngine wires up one engine instance. outputTemplates is the
// template manager the host uses to resolve templates it receives from
// this plugin; ieRegistry resolves information elements for the
// admissibility rules in merge.go.
func NewPairingEngine(cfg Config, outputTemplates ipfix.TemplateCache, ieRegistry ipfix.Registry, passer MessagePasser) *PairingEngine {
	return &PairingEngine{
		cfg:              cfg,
		ieRegistry:       ieRegistry,
		inboundTemplates: ipfix.NewDefaultEphemeralCache(),
		registry:         NewTemplateRegistry(outputTemplates, ieRegistry, cfg.ODID),
		cache:            newFlowCache(),
		mb:               NewMessageBuilder(),
		session:          NewSession(),
		passer:           passer,
		log:              ipfix.Log.WithName("biflow"),
	}
}

// Process implements spec §4.8: it learns any templates the message
// carries, runs every data record through process_record in source
// order, sweeps expired cache entries, and applies the message-age flush
// policy - in that order, regardless of which step actually produced
// outbound messages.
func (pe *PairingEngine) Process(ctx context.Context, msg *ipfix.Message) error {
	for i := range msg.Sets {
		s := &msg.Sets[i]
		switch s.Kind {
		case ipfix.KindTemplateSet:
			pe.learnTemplates(ctx, msg.ObservationDomainId, s)
		case ipfix.KindOptionsTemplateSet:
			pe.learnOptionsTemplates(ctx, msg.ObservationDomainId, s)
		case ipfix.KindDataSet:
			if err := pe.processDataSet(ctx, msg.ObservationDomainId, s); err != nil {
				return err
			}
		}
	}

	if err := pe.sweepExpired(ctx); err != nil {
		return err
	}
	return pe.checkFlushTimer(ctx)
}

func (pe *PairingEngine) learnTemplates(ctx context.Context, odid uint32, s *ipfix.Set) {
	ts, ok := s.Set.(*ipfix.TemplateSet)
	if !ok {
		return
	}
	for i := range ts.Records {
		tr := ts.Records[i]
		key := ipfix.NewKey(odid, tr.TemplateId)
		_ = pe.inboundTemplates.Add(ctx, key, &ipfix.Template{Record: &tr})
	}
}

func (pe *PairingEngine) learnOptionsTemplates(ctx context.Context, odid uint32, s *ipfix.Set) {
	ots, ok := s.Set.(*ipfix.OptionsTemplateSet)
	if !ok {
		return
	}
	for i := range ots.Records {
		otr := ots.Records[i]
		key := ipfix.NewKey(odid, otr.TemplateId)
		_ = pe.inboundTemplates.Add(ctx, key, &ipfix.Template{Record: &otr})
	}
}

func (pe *PairingEngine) processDataSet(ctx context.Context, odid uint32, s *ipfix.Set) error {
	ds, ok := s.Set.(*ipfix.DataSet)
	if !ok {
		return nil
	}
	for i := range ds.Records {
		if err := pe.processRecord(ctx, odid, &ds.Records[i]); err != nil {
			return err
		}
	}
	return nil
}

// isOptionsRecord reports whether dr was declared by an options template,
// by consulting the template observed earlier in the stream. A template
// the engine never saw (e.g. the stream began mid-session) is assumed to
// be a regular template; there is no other source of truth for it.
func (pe *PairingEngine) isOptionsRecord(ctx context.Context, odid uint32, templateID uint16) *ipfix.OptionsTemplateRecord {
	tmpl, err := pe.inboundTemplates.Get(ctx, ipfix.NewKey(odid, templateID))
	if err != nil {
		return nil
	}
	otr, ok := tmpl.Record.(*ipfix.OptionsTemplateRecord)
	if !ok {
		return nil
	}
	return otr
}

// isAlreadyBiflow reports whether dr already carries RFC 5103 biflow
// fields (the reverse PEN, or the biflowDirection element), in which case
// the engine must not attempt to pair it further (spec §4.7 step 1).
func isAlreadyBiflow(dr *ipfix.DataRecord) bool {
	for _, f := range dr.Fields {
		if f.EnterpriseId == ipfix.ReversePEN || f.FieldKey == (ipfix.FieldKey{Id: biflowDirectionFieldID}) {
			return true
		}
	}
	return false
}

// processRecord implements spec §4.7: passthrough checks, key extraction,
// cache lookup, and either merge-on-match or cache-and-wait.
func (pe *PairingEngine) processRecord(ctx context.Context, odid uint32, dr *ipfix.DataRecord) error {
	if otr := pe.isOptionsRecord(ctx, odid, dr.TemplateId); otr != nil {
		return pe.passthroughOptions(ctx, dr.Fields, otr)
	}
	if isAlreadyBiflow(dr) {
		return pe.passthrough(ctx, dr.Fields, ReasonAlreadyBiflow)
	}

	key, err := extractKey(dr, pe.cfg.PairMissingPorts)
	if err != nil {
		if errors.Is(err, ErrFormat) {
			return pe.passthrough(ctx, dr.Fields, ReasonKeyExtractionFailed)
		}
		return err
	}

	reverseKey := key.Reverse()
	if entry, found := pe.cache.get(reverseKey); found {
		return pe.merge(ctx, entry, reverseKey, dr)
	}

	if old, superseded := pe.cache.get(key); superseded {
		pe.cache.delete(key)
		if err := pe.passthrough(ctx, old.buf.Fields, ReasonSuperseded); err != nil {
			return err
		}
	}

	pe.cache.put(key, newRecordBuffer(dr))
	pe.wheel.Add(key)
	CacheSize.Set(float64(pe.cache.len()))
	return nil
}

// merge combines a cached uniflow (entry, stored under reverseKey) with
// the newly arrived record dr into one biflow record, consuming the
// cache entry in the process (spec §4.6, §4.7 step 2).
func (pe *PairingEngine) merge(ctx context.Context, entry cacheEntry, reverseKey FlowKey, dr *ipfix.DataRecord) error {
	pe.cache.delete(reverseKey)
	CacheSize.Set(float64(pe.cache.len()))

	fwdTemplateID := entry.buf.TemplateID
	revTemplateID := dr.TemplateId

	outID, tmplExists := pe.registry.FindBiflow(fwdTemplateID, revTemplateID)
	merged, newFields := buildBiflow(entry.buf.Fields, dr.Fields, entry.key, pe.ieRegistry, pe.cfg.IgnoreMissingReverse, tmplExists)

	if !tmplExists {
		id, err := pe.registry.CreateBiflow(ctx, fwdTemplateID, revTemplateID, newFields)
		if err != nil {
			// Biflow template construction failing is a format error, not a
			// fatal one (spec §4.7 step 4b, §7): the cached entry is already
			// gone, so just emit the newly arrived record as passthrough
			// instead of aborting the stream.
			return pe.passthrough(ctx, dr.Fields, ReasonTemplateBuildFailed)
		}
		outID = id
		if err := pe.appendTemplate(ctx, newFields, outID); err != nil {
			return err
		}
	}

	merged.TemplateId = outID
	PairsMerged.Inc()
	return pe.appendRecord(ctx, outID, merged)
}

// passthrough emits fields unmodified under a mirrored uniflow template,
// announcing the template in the outbound message the first time it is
// used (spec §4.5, §4.9).
func (pe *PairingEngine) passthrough(ctx context.Context, fields []ipfix.Field, reason string) error {
	specs := make([]ipfix.FieldSpec, len(fields))
	for i, f := range fields {
		specs[i] = f.FieldSpec
	}
	outID, created, err := pe.registry.EnsureUniflow(ctx, specs)
	if err != nil {
		return err
	}
	if created {
		if err := pe.appendTemplate(ctx, specs, outID); err != nil {
			return err
		}
	}
	Passthrough.WithLabelValues(reason).Inc()
	pe.log.V(1).Info("passthrough", "reason", reason)
	return pe.appendRecord(ctx, outID, ipfix.DataRecord{
		TemplateId: outID,
		FieldCount: uint16(len(fields)),
		Fields:     fields,
	})
}

// passthroughOptions is passthrough's options-template counterpart: the
// scope/option split only exists on the inbound template definition, not
// on the decoded record, so it is threaded through separately.
func (pe *PairingEngine) passthroughOptions(ctx context.Context, fields []ipfix.Field, otr *ipfix.OptionsTemplateRecord) error {
	outID, created, err := pe.registry.EnsureOptionsUniflow(ctx, otr.Scopes, otr.Options)
	if err != nil {
		return err
	}
	if created {
		out := ipfix.OptionsTemplateRecord{
			TemplateId:      outID,
			FieldCount:      uint16(len(otr.Scopes) + len(otr.Options)),
			ScopeFieldCount: uint16(len(otr.Scopes)),
			Scopes:          otr.Scopes,
			Options:         otr.Options,
		}
		if err := pe.ensureMessageBuilder(); err != nil {
			return err
		}
		if err := pe.mb.AddOptionsTemplate(out); err != nil {
			if err := pe.retryAfterOverflow(ctx, err, func() error { return pe.mb.AddOptionsTemplate(out) }); err != nil {
				return err
			}
		}
	}
	Passthrough.WithLabelValues(ReasonOptionsTemplate).Inc()
	pe.log.V(1).Info("passthrough", "reason", ReasonOptionsTemplate)
	return pe.appendRecord(ctx, outID, ipfix.DataRecord{
		TemplateId: outID,
		FieldCount: uint16(len(fields)),
		Fields:     fields,
	})
}

// appendTemplate announces a regular (non-options) template in the
// outbound message currently being built.
func (pe *PairingEngine) appendTemplate(ctx context.Context, fields []ipfix.FieldSpec, id uint16) error {
	if err := pe.ensureMessageBuilder(); err != nil {
		return err
	}
	tr := ipfix.TemplateRecord{TemplateId: id, FieldCount: uint16(len(fields)), Fields: fields}
	if err := pe.mb.AddTemplate(tr); err != nil {
		return pe.retryAfterOverflow(ctx, err, func() error { return pe.mb.AddTemplate(tr) })
	}
	return nil
}

// appendRecord appends a fully built output record, flushing and retrying
// once if the current message would overflow (spec §7's Overflow
// recovery).
func (pe *PairingEngine) appendRecord(ctx context.Context, templateID uint16, dr ipfix.DataRecord) error {
	if err := pe.ensureMessageBuilder(); err != nil {
		return err
	}
	if err := pe.mb.AddRecord(templateID, dr); err != nil {
		if err := pe.retryAfterOverflow(ctx, err, func() error { return pe.mb.AddRecord(templateID, dr) }); err != nil {
			return err
		}
	}
	pe.recordsInMsg++
	return nil
}

// retryAfterOverflow flushes the current message and retries op once if
// err is an overflow; any other error, or a second overflow, propagates.
func (pe *PairingEngine) retryAfterOverflow(ctx context.Context, err error, op func() error) error {
	if !errors.Is(err, ErrOverflow) {
		return err
	}
	if err := pe.flush(ctx); err != nil {
		return err
	}
	if err := pe.ensureMessageBuilder(); err != nil {
		return err
	}
	return op()
}

func (pe *PairingEngine) ensureMessageBuilder() error {
	if pe.mb.state != stateEmpty {
		return nil
	}
	return pe.mb.Init(pe.cfg.ODID, uint32(now().Unix()), pe.seq)
}

// sweepExpired implements spec §4.9: every key the time wheel reports as
// past timeout_cache is emitted as passthrough, unless the cache slot it
// named has since been superseded by a newer arrival at the same key (in
// which case the wheel entry is simply stale and is dropped silently).
func (pe *PairingEngine) sweepExpired(ctx context.Context) error {
	expired := pe.wheel.CollectExpired(now().Unix(), pe.cfg.TimeoutCache)
	for _, k := range expired {
		entry, ok := pe.cache.get(k)
		if !ok {
			continue
		}
		if entry.key.ArrivalTS != k.ArrivalTS {
			continue
		}
		pe.cache.delete(k)
		if err := pe.passthrough(ctx, entry.buf.Fields, ReasonExpired); err != nil {
			return err
		}
	}
	CacheSize.Set(float64(pe.cache.len()))
	return nil
}

// checkFlushTimer implements spec §4.10's wall-clock flush policy:
// timeout_msg == 0 flushes after every sweep, otherwise the current
// message is flushed once it has been open longer than timeout_msg.
func (pe *PairingEngine) checkFlushTimer(ctx context.Context) error {
	if pe.cfg.TimeoutMsg == 0 {
		return pe.flush(ctx)
	}
	if pe.lastFlush.IsZero() {
		pe.lastFlush = now()
		return nil
	}
	if now().Sub(pe.lastFlush) > time.Duration(pe.cfg.TimeoutMsg)*time.Second {
		return pe.flush(ctx)
	}
	return nil
}

// flush builds the current message (if it carries anything) and hands it
// to the host. The builder is discarded and replaced, per spec §4.4.
func (pe *PairingEngine) flush(ctx context.Context) error {
	if pe.mb.state == stateEmpty {
		pe.lastFlush = now()
		return nil
	}
	msg, err := pe.mb.Build()
	if err != nil {
		return err
	}
	if pe.session.Open() {
		pe.log.V(1).Info("opened session", "name", sessionName)
	}
	if err := pe.passer.Pass(ctx, msg); err != nil {
		return fmt.Errorf("biflow: host refused message, %w", err)
	}
	MessagesEmitted.Inc()
	MessageBytes.Observe(float64(msg.Length))

	pe.seq += pe.recordsInMsg
	pe.recordsInMsg = 0
	pe.mb = NewMessageBuilder()
	pe.lastFlush = now()
	return nil
}

// Close drains every still-pending cached uniflow as passthrough and
// flushes whatever remains, per spec §4.10's destroy-time behavior.
func (pe *PairingEngine) Close(ctx context.Context) error {
	for _, entry := range pe.cache.entries {
		if err := pe.passthrough(ctx, entry.buf.Fields, ReasonExpired); err != nil {
			return err
		}
	}
	pe.cache.entries = make(map[FlowKey]cacheEntry)
	CacheSize.Set(0)

	if err := pe.flush(ctx); err != nil {
		return err
	}
	if pe.session.Close() {
		pe.log.V(1).Info("closed session", "name", sessionName)
	}
	return nil
}
