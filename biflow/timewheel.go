package biflow

// timeBucket groups the flow keys that arrived during one wall-clock
// second, in arrival order.
type timeBucket struct {
	ts   int64
	keys []FlowKey
}

// TimeWheel buckets pending cache keys by arrival second so that expiry
// can sweep whole seconds worth of keys at once instead of scanning the
// entire cache. Buckets are a deque with a tail pointer (REDESIGN FLAG:
// this replaces the source's forward-linked bucket list with a manually
// tracked "current" iterator); "is this key old" reduces to comparing
// against the tail bucket's timestamp, per spec §9.
//
// No deletion of individual keys is supported - a key superseded before
// its bucket expires is simply left in place and filtered out at sweep
// time by cross-checking cache membership (see pairingengine.go).
type TimeWheel struct {
	buckets []timeBucket
}

// Add appends key to the newest bucket if its timestamp matches, or opens
// a new bucket after the current tail otherwise. The tail pointer only
// ever advances forward (append-only).
func (tw *TimeWheel) Add(key FlowKey) {
	if n := len(tw.buckets); n > 0 && tw.buckets[n-1].ts == key.ArrivalTS {
		tw.buckets[n-1].keys = append(tw.buckets[n-1].keys, key)
		return
	}
	tw.buckets = append(tw.buckets, timeBucket{ts: key.ArrivalTS, keys: []FlowKey{key}})
}

// CollectExpired pops buckets from the head while nowS - timeoutS is
// strictly greater than the bucket's timestamp, and returns their keys
// concatenated in bucket (then arrival) order.
func (tw *TimeWheel) CollectExpired(nowS int64, timeoutS uint32) []FlowKey {
	cutoff := nowS - int64(timeoutS)
	var expired []FlowKey

	i := 0
	for ; i < len(tw.buckets); i++ {
		if !(cutoff > tw.buckets[i].ts) {
			break
		}
		expired = append(expired, tw.buckets[i].keys...)
	}
	tw.buckets = tw.buckets[i:]
	return expired
}

// Len reports the number of distinct buckets currently held, for tests and
// diagnostics.
func (tw *TimeWheel) Len() int {
	return len(tw.buckets)
}
