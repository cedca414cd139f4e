package biflow

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/zoomoid/ipfix-biflow/ipfix"
)

// firstDynamicTemplateID is the first id the registry hands out; ids
// below 256 are reserved by the IPFIX set-id range (RFC 7011 §3.3.2).
const firstDynamicTemplateID uint16 = 256

// pairKey identifies a biflow template by the pair of inbound uniflow
// template ids it was built from, per spec §4.5.
type pairKey struct {
	fwdTemplateId uint16
	revTemplateId uint16
}

// TemplateRegistry tracks the output templates the engine has handed to
// the downstream template manager: passthrough uniflow templates (mirrored
// unchanged) and synthesized biflow templates (deduplicated by the pair of
// inbound ids that produced them). Output template ids are allocated from
// [256, 65535]; once exhausted the id space wraps and the oldest allocation
// is evicted to make room (spec §4.5, §9 Open Question).
type TemplateRegistry struct {
	mu       sync.Mutex
	cache    ipfix.TemplateCache
	registry ipfix.Registry
	odid     uint32

	nextID uint16
	inUse  map[uint16]struct{}
	order  []uint16 // FIFO allocation order, oldest first

	uniflowIDs map[string]uint16
	biflowIDs  map[pairKey]uint16
}

func NewTemplateRegistry(cache ipfix.TemplateCache, registry ipfix.Registry, odid uint32) *TemplateRegistry {
	return &TemplateRegistry{
		cache:      cache,
		registry:   registry,
		odid:       odid,
		nextID:     firstDynamicTemplateID,
		inUse:      make(map[uint16]struct{}),
		uniflowIDs: make(map[string]uint16),
		biflowIDs:  make(map[pairKey]uint16),
	}
}

// fieldSpecsKey serializes a field list into a string suitable for
// content-based deduplication: two templates with the same fields in the
// same order, regardless of which inbound id they arrived under, map to
// the same passthrough output template (spec §4.5).
func fieldSpecsKey(fields []ipfix.FieldSpec) string {
	var sb strings.Builder
	for _, f := range fields {
		fmt.Fprintf(&sb, "%d:%d:%d;", f.EnterpriseId, f.Id, f.Length)
	}
	return sb.String()
}

// allocateID hands out the next free id, wrapping from 65535 back to
// firstDynamicTemplateID. If the wrapped id is still in use, the oldest
// allocation is evicted first so the id can be reused.
func (tr *TemplateRegistry) allocateID() uint16 {
	id := tr.nextID
	if _, taken := tr.inUse[id]; taken {
		tr.evictOldestLocked()
	}
	tr.inUse[id] = struct{}{}
	tr.order = append(tr.order, id)

	if tr.nextID == math.MaxUint16 {
		tr.nextID = firstDynamicTemplateID
	} else {
		tr.nextID++
	}
	return id
}

func (tr *TemplateRegistry) evictOldestLocked() {
	if len(tr.order) == 0 {
		return
	}
	oldest := tr.order[0]
	tr.order = tr.order[1:]
	delete(tr.inUse, oldest)
	_ = tr.cache.Delete(context.Background(), ipfix.NewKey(tr.odid, oldest))
	for k, v := range tr.biflowIDs {
		if v == oldest {
			delete(tr.biflowIDs, k)
		}
	}
	for k, v := range tr.uniflowIDs {
		if v == oldest {
			delete(tr.uniflowIDs, k)
		}
	}
}

// EnsureUniflow mirrors a passthrough template verbatim, deduplicated by
// its field list: a byte-identical template seen under a different inbound
// id (even from a different observation domain) reuses the same output
// id, per spec §4.5. It allocates a fresh id from the dynamic range on
// first sight and registers the mirrored template with the downstream
// template manager; created reports whether this call is the one that
// just allocated it, so the caller knows whether it still needs to
// announce the template in the outbound message it is currently building.
func (tr *TemplateRegistry) EnsureUniflow(ctx context.Context, fields []ipfix.FieldSpec) (id uint16, created bool, err error) {
	key := fieldSpecsKey(fields)

	tr.mu.Lock()
	if id, ok := tr.uniflowIDs[key]; ok {
		tr.mu.Unlock()
		return id, false, nil
	}
	id = tr.allocateID()
	tr.uniflowIDs[key] = id
	tr.mu.Unlock()

	tmpl := &ipfix.Template{Record: &ipfix.TemplateRecord{
		TemplateId: id,
		FieldCount: uint16(len(fields)),
		Fields:     fields,
	}}
	if err := tr.cache.Add(ctx, ipfix.NewKey(tr.odid, id), tmpl); err != nil {
		return 0, false, err
	}
	Templates.WithLabelValues("uniflow").Inc()
	return id, true, nil
}

// EnsureOptionsUniflow is EnsureUniflow's counterpart for options
// templates, whose content key covers both the scope and option fields.
func (tr *TemplateRegistry) EnsureOptionsUniflow(ctx context.Context, scopes, options []ipfix.FieldSpec) (id uint16, created bool, err error) {
	key := "scopes:" + fieldSpecsKey(scopes) + "|options:" + fieldSpecsKey(options)

	tr.mu.Lock()
	if id, ok := tr.uniflowIDs[key]; ok {
		tr.mu.Unlock()
		return id, false, nil
	}
	id = tr.allocateID()
	tr.uniflowIDs[key] = id
	tr.mu.Unlock()

	tmpl := &ipfix.Template{Record: &ipfix.OptionsTemplateRecord{
		TemplateId:      id,
		FieldCount:      uint16(len(scopes) + len(options)),
		ScopeFieldCount: uint16(len(scopes)),
		Scopes:          scopes,
		Options:         options,
	}}
	if err := tr.cache.Add(ctx, ipfix.NewKey(tr.odid, id), tmpl); err != nil {
		return 0, false, err
	}
	Templates.WithLabelValues("options").Inc()
	return id, true, nil
}

// FindBiflow looks up a previously synthesized biflow template by the pair
// of inbound template ids that produced it.
func (tr *TemplateRegistry) FindBiflow(fwdID, revID uint16) (uint16, bool) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	id, ok := tr.biflowIDs[pairKey{fwdTemplateId: fwdID, revTemplateId: revID}]
	return id, ok
}

// CreateBiflow allocates a new output id for a synthesized biflow
// template's fields, registers it with the downstream template manager,
// and remembers it against the (fwdID, revID) pair for future reuse. The
// id is only known once allocation happens here, so the fields - not a
// pre-built Template - are what the caller supplies.
func (tr *TemplateRegistry) CreateBiflow(ctx context.Context, fwdID, revID uint16, fields []ipfix.FieldSpec) (uint16, error) {
	tr.mu.Lock()
	id := tr.allocateID()
	tr.biflowIDs[pairKey{fwdTemplateId: fwdID, revTemplateId: revID}] = id
	tr.mu.Unlock()

	tmpl := &ipfix.Template{Record: &ipfix.TemplateRecord{
		TemplateId: id,
		FieldCount: uint16(len(fields)),
		Fields:     fields,
	}}
	if err := tr.cache.Add(ctx, ipfix.NewKey(tr.odid, id), tmpl); err != nil {
		return 0, err
	}
	Templates.WithLabelValues("biflow").Inc()
	return id, nil
}

// Count reports the number of distinct output template ids currently
// allocated. The biflow_templates_total metric is incremented separately,
// once per template created.
func (tr *TemplateRegistry) Count() int {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return len(tr.inUse)
}
