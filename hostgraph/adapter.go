package hostgraph

import (
	"context"
	"errors"
	"fmt"

	"github.com/shaban/mixcore/filter"
)

// Host is the synchronous API a concrete host-service binding implements
// (§4.2 outgoing messages). Every method is expected to run on the host's
// own main-loop thread; QueueAdapter is what gives callers the async,
// thread-hopped surface the rest of the core actually calls.
type Host interface {
	CreateDeviceNode(props NodeProps) (HostID, error)
	CreateFilterNode(props FilterProps) (HostID, error)
	CreateLink(src, dst Endpoint) error
	RemoveDeviceNode(id HostID) error
	RemoveFilterNode(id HostID) error
	RemoveLink(src, dst Endpoint) error
	SetFilterValue(filterID HostID, propertyID string, value filter.Value) error
	SetNodeVolume(nodeID HostID, v uint8) error
	SetNodeMute(nodeID HostID, muted bool) error
	SetApplicationTarget(appHostID HostID, targetHost HostID) error
	// Events returns the channel the host emits DeviceAdded/DeviceRemoved/
	// ManagedLinkDropped/ApplicationNodeAdded on. Closed when the host
	// loop exits.
	Events() <-chan Event
	// Quit asks the host loop to exit; the Events channel is closed
	// afterward.
	Quit()
}

// ErrHostUnavailable is returned (wrapped) when a call could not reach the
// host loop - the queue was full, the loop already exited, or the context
// was canceled while waiting for a reply. §7 treats this as HostUnavailable
// and fatal for the issuing command.
var ErrHostUnavailable = errors.New("hostgraph: host unavailable")

// job is one unit of work handed to the dedicated host-loop goroutine.
type job struct {
	run  func(h Host) (any, error)
	resp chan jobResult
}

type jobResult struct {
	value any
	err   error
}

// QueueAdapter wraps a Host's synchronous main loop behind a bounded queue
// (§4.2 Thread model, §5: "Control messages cross from (1) to (2) through a
// bounded queue whose depth is tuned to survive a profile-load burst"). Its
// own goroutine is the only one that ever calls into Host; every other
// caller goes through Submit-family methods and awaits a one-shot reply,
// matching §9's "request/response with a one-shot return channel" note.
type QueueAdapter struct {
	host  Host
	queue chan job
	done  chan struct{}
}

// DefaultQueueDepth is the minimum depth §5 requires ("≥256").
const DefaultQueueDepth = 256

// NewQueueAdapter constructs an adapter around host with the given queue
// depth (clamped up to DefaultQueueDepth) and starts its dedicated loop.
func NewQueueAdapter(host Host, depth int) *QueueAdapter {
	if depth < DefaultQueueDepth {
		depth = DefaultQueueDepth
	}
	a := &QueueAdapter{host: host, queue: make(chan job, depth), done: make(chan struct{})}
	go a.loop()
	return a
}

func (a *QueueAdapter) loop() {
	defer close(a.done)
	for j := range a.queue {
		v, err := j.run(a.host)
		j.resp <- jobResult{value: v, err: err}
	}
}

// submit enqueues fn and awaits its result, surfacing ErrHostUnavailable if
// ctx is canceled or the queue is saturated. The job itself still runs to
// completion on the host thread even if the caller gives up waiting -
// mirroring a host that cannot be asked to abort mid-operation.
func (a *QueueAdapter) submit(ctx context.Context, fn func(h Host) (any, error)) (any, error) {
	j := job{run: fn, resp: make(chan jobResult, 1)}
	select {
	case a.queue <- j:
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: queue full: %w", ErrHostUnavailable, ctx.Err())
	}
	select {
	case r := <-j.resp:
		return r.value, r.err
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", ErrHostUnavailable, ctx.Err())
	}
}

// CreateDeviceNode creates a virtual node and awaits the ready handshake -
// in this synchronous-Host model, "ready" is simply the call returning,
// since Host.CreateDeviceNode does not return until the host has assigned
// an integer id and enumerated both stereo ports (§4.2 Ready handshake).
func (a *QueueAdapter) CreateDeviceNode(ctx context.Context, props NodeProps) (HostID, error) {
	v, err := a.submit(ctx, func(h Host) (any, error) { return h.CreateDeviceNode(props) })
	if err != nil {
		return 0, err
	}
	return v.(HostID), nil
}

func (a *QueueAdapter) CreateFilterNode(ctx context.Context, props FilterProps) (HostID, error) {
	v, err := a.submit(ctx, func(h Host) (any, error) { return h.CreateFilterNode(props) })
	if err != nil {
		return 0, err
	}
	return v.(HostID), nil
}

func (a *QueueAdapter) CreateLink(ctx context.Context, src, dst Endpoint) error {
	_, err := a.submit(ctx, func(h Host) (any, error) { return nil, h.CreateLink(src, dst) })
	return err
}

func (a *QueueAdapter) RemoveDeviceNode(ctx context.Context, id HostID) error {
	_, err := a.submit(ctx, func(h Host) (any, error) { return nil, h.RemoveDeviceNode(id) })
	return err
}

func (a *QueueAdapter) RemoveFilterNode(ctx context.Context, id HostID) error {
	_, err := a.submit(ctx, func(h Host) (any, error) { return nil, h.RemoveFilterNode(id) })
	return err
}

func (a *QueueAdapter) RemoveLink(ctx context.Context, src, dst Endpoint) error {
	_, err := a.submit(ctx, func(h Host) (any, error) { return nil, h.RemoveLink(src, dst) })
	return err
}

func (a *QueueAdapter) SetFilterValue(ctx context.Context, filterID HostID, propertyID string, value filter.Value) error {
	_, err := a.submit(ctx, func(h Host) (any, error) { return nil, h.SetFilterValue(filterID, propertyID, value) })
	return err
}

func (a *QueueAdapter) SetNodeVolume(ctx context.Context, nodeID HostID, v uint8) error {
	_, err := a.submit(ctx, func(h Host) (any, error) { return nil, h.SetNodeVolume(nodeID, v) })
	return err
}

func (a *QueueAdapter) SetNodeMute(ctx context.Context, nodeID HostID, muted bool) error {
	_, err := a.submit(ctx, func(h Host) (any, error) { return nil, h.SetNodeMute(nodeID, muted) })
	return err
}

func (a *QueueAdapter) SetApplicationTarget(ctx context.Context, appHostID, targetHost HostID) error {
	_, err := a.submit(ctx, func(h Host) (any, error) { return nil, h.SetApplicationTarget(appHostID, targetHost) })
	return err
}

// Events exposes the underlying host's event stream directly; events flow
// from the host loop's own goroutine without needing a queue round trip.
func (a *QueueAdapter) Events() <-chan Event {
	return a.host.Events()
}

// Quit asks the host to stop and waits for the dedicated loop to drain,
// per §5's shutdown discipline ("the adapter is asked to Quit last").
func (a *QueueAdapter) Quit() {
	a.host.Quit()
	close(a.queue)
	<-a.done
}
