package biflow

import (
	"context"

	"github.com/go-logr/logr"
	"github.com/zoomoid/ipfix-biflow/ipfix"
)

// Plugin is the top-level entry a host pipeline calls: one Process call
// per inbound message, output messages delivered through passer as they
// become ready, and a final Close to drain whatever is still pending.
type Plugin struct {
	engine *PairingEngine
	log    logr.Logger
}

// NewPlugin constructs a plugin instance against templateManager (the
// host's downstream template cache, spec §4.5/§6) and registry (the
// information element registry used by the field admissibility rules,
// spec §4.6). passer receives every message the engine assembles.
func NewPlugin(cfg Config, templateManager ipfix.TemplateCache, registry ipfix.Registry, passer MessagePasser) (*Plugin, error) {
	if templateManager == nil || registry == nil || passer == nil {
		return nil, invariantErrorf("new_plugin requires a template manager, a registry, and a message passer")
	}
	return &Plugin{
		engine: NewPairingEngine(cfg, templateManager, registry, passer),
		log:    ipfix.Log.WithName("biflow"),
	}, nil
}

// Process runs one inbound message through the pairing engine. Fatal
// errors (ErrOutOfMemory, ErrInvariant, or a refused msg_pass) are logged
// here before being propagated, since the host only sees a denial status
// once this returns; ErrFormat never reaches this layer, the engine
// already converts it to a passthrough emission internally.
func (p *Plugin) Process(ctx context.Context, msg *ipfix.Message) error {
	err := p.engine.Process(ctx, msg)
	return p.logFatal(err)
}

// Close drains every still-pending cached record as a passthrough, emits
// whatever remains of the current message, and closes the session.
func (p *Plugin) Close(ctx context.Context) error {
	return p.logFatal(p.engine.Close(ctx))
}

func (p *Plugin) logFatal(err error) error {
	if err == nil {
		return nil
	}
	p.log.Error(err, "fatal error, propagating to host")
	return err
}
