package biflow

import (
	"strings"
	"testing"
)

func TestLoadConfigAppliesDefaults(t *testing.T) {
	cfg, err := LoadConfig(strings.NewReader("odid: 7\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ODID != 7 {
		t.Fatalf("expected odid 7, got %d", cfg.ODID)
	}
	if cfg.TimeoutCache != defaultTimeoutCacheSeconds {
		t.Fatalf("expected default timeoutCache %d, got %d", defaultTimeoutCacheSeconds, cfg.TimeoutCache)
	}
	if cfg.TimeoutMsg != defaultTimeoutMsgSeconds {
		t.Fatalf("expected default timeoutMsg %d, got %d", defaultTimeoutMsgSeconds, cfg.TimeoutMsg)
	}
	if cfg.IgnoreMissingReverse || cfg.PairMissingPorts {
		t.Fatalf("expected bool defaults to be false")
	}
}

func TestLoadConfigRequiresODID(t *testing.T) {
	_, err := LoadConfig(strings.NewReader("timeoutCache: 9\n"))
	if err == nil {
		t.Fatalf("expected an error when odid is missing")
	}
}

func TestLoadConfigOverridesDefaults(t *testing.T) {
	cfg, err := LoadConfig(strings.NewReader("odid: 1\ntimeoutCache: 30\ntimeoutMsg: 0\nignoreMissingReverse: true\npairMissingPorts: true\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.TimeoutCache != 30 || cfg.TimeoutMsg != 0 || !cfg.IgnoreMissingReverse || !cfg.PairMissingPorts {
		t.Fatalf("expected overrides to apply, got %+v", cfg)
	}
}
