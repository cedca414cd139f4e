package biflow

import "testing"

func TestPassthroughReasonsAreDistinct(t *testing.T) {
	reasons := []string{
		ReasonKeyExtractionFailed,
		ReasonAlreadyBiflow,
		ReasonOptionsTemplate,
		ReasonExpired,
		ReasonSuperseded,
		ReasonTemplateBuildFailed,
	}
	seen := make(map[string]bool, len(reasons))
	for _, r := range reasons {
		if seen[r] {
			t.Fatalf("duplicate passthrough reason label: %q", r)
		}
		seen[r] = true
	}
}

func TestMetricsCollectorsAreRegistered(t *testing.T) {
	if PairsMerged == nil || CacheSize == nil || MessagesEmitted == nil || MessageBytes == nil {
		t.Fatalf("expected all package-level collectors to be constructed")
	}
	if _, err := Passthrough.GetMetricWithLabelValues(ReasonExpired); err != nil {
		t.Fatalf("unexpected error labeling Passthrough: %v", err)
	}
	if _, err := Templates.GetMetricWithLabelValues("uniflow"); err != nil {
		t.Fatalf("unexpected error labeling Templates: %v", err)
	}
}
