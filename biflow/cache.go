package biflow

// cacheEntry pairs the full FlowKey (including the arrival timestamp it
// was inserted under) with the owned record body it was cached for. The
// full key is kept so that expiry sweeps can tell a superseded entry (see
// §4.7 step 5) apart from the one the TimeWheel bucket was built for,
// without deleting the stale TimeWheel entry up front.
type cacheEntry struct {
	key FlowKey
	buf RecordBuffer
}

// canonical strips ArrivalTS so FlowKey can be used as a Go map key without
// two arrivals of the same 5-tuple hashing to different buckets.
func canonical(k FlowKey) FlowKey {
	c := k
	c.ArrivalTS = 0
	return c
}

// flowCache is the content-addressed cache of pending uniflow records,
// keyed by the 5-tuple (not including arrival time).
type flowCache struct {
	entries map[FlowKey]cacheEntry
}

func newFlowCache() *flowCache {
	return &flowCache{entries: make(map[FlowKey]cacheEntry)}
}

func (c *flowCache) get(key FlowKey) (cacheEntry, bool) {
	e, ok := c.entries[canonical(key)]
	return e, ok
}

func (c *flowCache) put(key FlowKey, buf RecordBuffer) {
	c.entries[canonical(key)] = cacheEntry{key: key, buf: buf}
}

func (c *flowCache) delete(key FlowKey) {
	delete(c.entries, canonical(key))
}

func (c *flowCache) len() int {
	return len(c.entries)
}
