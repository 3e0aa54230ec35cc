// Package mixcore is the audio routing core itself: the graph manager,
// routing engine, mute engine, volume engine, physical-device binder and
// coordinator described across the expanded specification. Everything here
// runs on one logical thread - the coordinator's dispatch loop - and talks
// to the host audio service only through hostgraph.Adapter.
package mixcore

import (
	"context"
	"fmt"

	"github.com/shaban/mixcore/errs"
	"github.com/shaban/mixcore/filter"
	"github.com/shaban/mixcore/hostgraph"
	"github.com/shaban/mixcore/ids"
	"github.com/shaban/mixcore/profile"
)

// Adapter is the subset of hostgraph.QueueAdapter the engine depends on.
// Declaring it as an interface (rather than depending on the concrete type)
// keeps Engine testable against an in-process fake that skips the queue hop
// entirely, the way the teacher keeps Engine decoupled from *Dispatcher's
// concrete operations channel.
type Adapter interface {
	CreateDeviceNode(ctx context.Context, props hostgraph.NodeProps) (hostgraph.HostID, error)
	CreateFilterNode(ctx context.Context, props hostgraph.FilterProps) (hostgraph.HostID, error)
	CreateLink(ctx context.Context, src, dst hostgraph.Endpoint) error
	RemoveDeviceNode(ctx context.Context, id hostgraph.HostID) error
	RemoveFilterNode(ctx context.Context, id hostgraph.HostID) error
	RemoveLink(ctx context.Context, src, dst hostgraph.Endpoint) error
	SetFilterValue(ctx context.Context, filterID hostgraph.HostID, propertyID string, value filter.Value) error
	SetNodeVolume(ctx context.Context, nodeID hostgraph.HostID, v uint8) error
	SetNodeMute(ctx context.Context, nodeID hostgraph.HostID, muted bool) error
	SetApplicationTarget(ctx context.Context, appHostID, targetHost hostgraph.HostID) error
	Events() <-chan hostgraph.Event
	Quit()
}

// mixPair is the pair of A/B mix-volume filter host ids every source owns
// for the lifetime of the source (§3 invariant: sourceMap is injective into
// filter ids).
type mixPair struct {
	A, B hostgraph.HostID
}

// sourceEntry is the bookkeeping the graph manager keeps per logical source,
// mapping the logical id onto the concrete host topology created for it.
type sourceEntry struct {
	head  hostgraph.HostID // pass-through filter (physical) or sink node (virtual); equals filter id for physical
	mix   mixPair
	meter hostgraph.HostID
}

// targetEntry is the equivalent bookkeeping for a logical target.
type targetEntry struct {
	head  hostgraph.HostID // volume filter (physical) or source node (virtual)
	meter hostgraph.HostID
}

// Engine owns the profile and the adapter-side bookkeeping maps described in
// §3 and §4.4. It has no internal locking: the coordinator is the single
// writer and every method here assumes it is called from that one logical
// thread, matching §5's scheduling model.
type Engine struct {
	Profile *profile.Profile
	adapter Adapter

	sources map[ids.ID]*sourceEntry
	targets map[ids.ID]*targetEntry

	sampleRateHz int
	meterSamples chan filter.MeterSample

	errSink errs.BackgroundSink
}

// NewEngine constructs an Engine around an existing or freshly-loaded
// profile. meterSamples is the shared channel every meter filter created by
// this engine emits onto; the caller (typically the coordinator) drains it
// and republishes onto the meter broadcast stream (§6).
func NewEngine(p *profile.Profile, adapter Adapter, sampleRateHz int, meterSamples chan filter.MeterSample, sink errs.BackgroundSink) *Engine {
	return &Engine{
		Profile:      p,
		adapter:      adapter,
		sources:      map[ids.ID]*sourceEntry{},
		targets:      map[ids.ID]*targetEntry{},
		sampleRateHz: sampleRateHz,
		meterSamples: meterSamples,
		errSink:      sink,
	}
}

// targetFilterNode is the endpoint a route link's far side connects to: the
// physical target's volume filter id, or the virtual target's node id
// (§4.5).
func (e *Engine) targetFilterNode(tgt ids.ID) (hostgraph.Endpoint, error) {
	entry, ok := e.targets[tgt]
	if !ok {
		return hostgraph.Endpoint{}, errs.New(errs.NotFound, "targetFilterNode", "unknown target")
	}
	t := e.Profile.Targets[tgt]
	if t == nil {
		return hostgraph.Endpoint{}, errs.New(errs.NotFound, "targetFilterNode", "unknown target profile entry")
	}
	if t.Physical {
		return hostgraph.ManagedFilter(tgt), nil
	}
	_ = entry
	return hostgraph.HostNode(entry.head), nil
}

// sourceMixEndpoint is the near side of a route link: the source's selected
// mix filter, addressed by its host id (an EndpointHostNode endpoint), since
// the A and B mix filters of a source have distinct host ids and no logical
// id of their own.
func (e *Engine) sourceMixEndpoint(src ids.ID, side profile.MixSide) (hostgraph.Endpoint, error) {
	entry, ok := e.sources[src]
	if !ok {
		return hostgraph.Endpoint{}, errs.New(errs.NotFound, "sourceMixEndpoint", "unknown source")
	}
	if side == profile.MixA {
		return hostgraph.Endpoint{Kind: hostgraph.EndpointHostNode, Host: entry.mix.A}, nil
	}
	return hostgraph.Endpoint{Kind: hostgraph.EndpointHostNode, Host: entry.mix.B}, nil
}

func (e *Engine) logBackgroundError(source string, err error) {
	if err == nil || e.errSink == nil {
		return
	}
	e.errSink.HandleBackgroundError(source, err)
}

func opErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}
