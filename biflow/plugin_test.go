package biflow

import (
	"context"
	"testing"
	"time"

	"github.com/zoomoid/ipfix-biflow/ipfix"
)

func TestNewPluginRejectsMissingDependencies(t *testing.T) {
	cfg := Config{ODID: 1, TimeoutCache: 5, TimeoutMsg: 10}
	reg := ipfix.NewEphemeralRegistry()
	cache := ipfix.NewDefaultEphemeralCache()
	passer := &collectingPasser{}

	if _, err := NewPlugin(cfg, nil, reg, passer); err == nil {
		t.Fatalf("expected an error with a nil template manager")
	}
	if _, err := NewPlugin(cfg, cache, nil, passer); err == nil {
		t.Fatalf("expected an error with a nil registry")
	}
	if _, err := NewPlugin(cfg, cache, reg, nil); err == nil {
		t.Fatalf("expected an error with a nil message passer")
	}
	if _, err := NewPlugin(cfg, cache, reg, passer); err != nil {
		t.Fatalf("unexpected error with all dependencies supplied: %v", err)
	}
}

func TestPluginProcessAndClose(t *testing.T) {
	restore := withClock(t, time.Unix(9000, 0))
	defer restore()

	cfg := Config{ODID: 1, TimeoutCache: 5, TimeoutMsg: 0}
	reg := ipfix.NewEphemeralRegistry()
	reg.Add(scalarIE(0, 1000))
	cache := ipfix.NewDefaultEphemeralCache()
	passer := &collectingPasser{}

	plugin, err := NewPlugin(cfg, cache, reg, passer)
	if err != nil {
		t.Fatalf("unexpected error constructing plugin: %v", err)
	}

	ctx := context.Background()
	msg := &ipfix.Message{ObservationDomainId: 1, Sets: []ipfix.Set{
		*uniflowTemplateSet(testUniflowTemplateID),
		*dataSet(testUniflowTemplateID, uniflowRecord(testUniflowTemplateID, [4]byte{10, 0, 0, 1}, [4]byte{10, 0, 0, 2}, 1234, 80, 6, 5)),
	}}
	if err := plugin.Process(ctx, msg); err != nil {
		t.Fatalf("unexpected error processing message: %v", err)
	}
	if err := plugin.Close(ctx); err != nil {
		t.Fatalf("unexpected error closing plugin: %v", err)
	}
	if len(passer.messages) == 0 {
		t.Fatalf("expected the unpaired record to be flushed as passthrough on close")
	}
}
