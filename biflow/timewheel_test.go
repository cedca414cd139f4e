package biflow

import "testing"

func key(ts int64) FlowKey {
	return FlowKey{SrcIP: IPv4(1, 2, 3, 4), DstIP: IPv4(5, 6, 7, 8), SrcPort: 1, DstPort: 2, Protocol: 6, ArrivalTS: ts}
}

func TestTimeWheelAddGroupsBySecond(t *testing.T) {
	var tw TimeWheel
	tw.Add(key(100))
	tw.Add(key(100))
	tw.Add(key(101))

	if got := tw.Len(); got != 2 {
		t.Fatalf("expected 2 buckets, got %d", got)
	}
}

func TestTimeWheelCollectExpiredIsExclusiveOfTimeout(t *testing.T) {
	var tw TimeWheel
	tw.Add(key(100))
	tw.Add(key(105))

	// now=110, timeout=10 -> cutoff=100; bucket ts=100 is NOT strictly
	// older (100 > 100 is false), so nothing expires yet.
	expired := tw.CollectExpired(110, 10)
	if len(expired) != 0 {
		t.Fatalf("expected no expired keys at exact cutoff, got %d", len(expired))
	}

	// now=111, timeout=10 -> cutoff=101; bucket ts=100 is older (101>100).
	expired = tw.CollectExpired(111, 10)
	if len(expired) != 1 {
		t.Fatalf("expected 1 expired key, got %d", len(expired))
	}
	if tw.Len() != 1 {
		t.Fatalf("expected 1 bucket remaining, got %d", tw.Len())
	}
}

func TestTimeWheelCollectExpiredOrdersByBucket(t *testing.T) {
	var tw TimeWheel
	k1, k2, k3 := key(1), key(1), key(2)
	tw.Add(k1)
	tw.Add(k2)
	tw.Add(k3)

	expired := tw.CollectExpired(1000, 0)
	if len(expired) != 3 || expired[2] != k3 {
		t.Fatalf("expected keys in bucket order ending with k3, got %v", expired)
	}
}
