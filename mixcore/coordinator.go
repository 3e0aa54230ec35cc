package mixcore

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/shaban/mixcore/errs"
	"github.com/shaban/mixcore/filter"
	"github.com/shaban/mixcore/hostgraph"
	"github.com/shaban/mixcore/ids"
	"github.com/shaban/mixcore/profile"
)

// DispatchTarget is the sub-300ms-per-command performance target the
// coordinator tracks and warns past (§4.9, grounded on the teacher's own
// dispatcher performance budget).
const DispatchTarget = 300 * time.Millisecond

// SaveInterval is the periodic persistence tick (§4.9 "a periodic (e.g. 5s)
// tick persists the profile when a dirty flag is set").
const SaveInterval = 5 * time.Second

// ProfileStore is the persistence boundary (§1 explicitly out of scope,
// wired here only as the narrow interface the coordinator calls through).
type ProfileStore interface {
	Save(p *profile.Profile) error
}

// Coordinator is the single async task of §4.9: it owns the Engine and
// Binder, serializes commands and adapter events into one stream, and
// drives status diffing, change broadcasts, and the persistence tick. Its
// dispatch loop follows the same shape as the teacher's Dispatcher -
// buffered operation channel, one loop goroutine, sub-target performance
// tracking - generalized from topology operations to the full command
// surface of §6.
type Coordinator struct {
	engine *Engine
	binder *Binder
	store  ProfileStore
	logger *log.Logger

	commands chan Command
	bindable chan hostgraph.HostID
	stop     chan struct{}
	ready    chan struct{}
	readyOnce sync.Once

	lastStatus *Status
	knownDevices map[hostgraph.HostID]hostgraph.DeviceInfo

	statusSubsMu sync.Mutex
	statusSubs   []chan StatusPatch

	meterSubsMu sync.Mutex
	meterSubs   []chan filter.MeterSample

	saveInterval      time.Duration
	statusBufferDepth int

	dirty bool

	perfMu      sync.RWMutex
	lastDispatch time.Duration
	maxDispatch  time.Duration
}

// NewCoordinator wires an Engine, a Binder built over the same engine, a
// persistence store, and a structured logger into a ready-to-Run
// Coordinator.
func NewCoordinator(engine *Engine, binder *Binder, store ProfileStore, logger *log.Logger) *Coordinator {
	if logger == nil {
		logger = log.Default()
	}
	c := &Coordinator{
		engine:       engine,
		binder:       binder,
		store:        store,
		logger:       logger,
		commands:     make(chan Command, 256),
		bindable:     make(chan hostgraph.HostID, 64),
		stop:         make(chan struct{}),
		ready:        make(chan struct{}),
		knownDevices: map[hostgraph.HostID]hostgraph.DeviceInfo{},
		saveInterval: SaveInterval,
		statusBufferDepth: 32,
	}
	engine.errSink = c
	return c
}

// SetSaveInterval overrides the persistence tick from its 5s default
// (bootstrap config's saveIntervalSeconds). Call before Run.
func (c *Coordinator) SetSaveInterval(d time.Duration) {
	if d > 0 {
		c.saveInterval = d
	}
}

// SetStatusBufferDepth overrides each status-patch subscriber channel's
// buffer depth from its default of 32 (bootstrap config's
// statusBufferDepth). Call before SubscribeStatus.
func (c *Coordinator) SetStatusBufferDepth(depth int) {
	if depth > 0 {
		c.statusBufferDepth = depth
	}
}

// OnDeviceBindable returns the callback to pass as Binder's onBindable: the
// debounce timer's own goroutine calls this, which only ever hands the host
// id back onto the coordinator's single-writer loop rather than touching
// Engine/Binder state directly (§4.8, §5 single-writer discipline).
func (c *Coordinator) OnDeviceBindable() func(hostgraph.HostID) {
	return func(hostID hostgraph.HostID) {
		select {
		case c.bindable <- hostID:
		case <-c.stop:
		}
	}
}

// HandleBackgroundError implements errs.BackgroundSink: background tasks
// (metering overflow, device debounce, persistence) log and continue rather
// than failing a command (§7 Propagation policy).
func (c *Coordinator) HandleBackgroundError(source string, err error) {
	c.logger.Error("background task error", "source", source, "err", err)
}

// Ready returns a channel that Run closes as soon as its dispatch loop
// starts (§4.9 Ready handshake to start). Run applies no volumes, routes or
// bindings itself: whatever the caller applied before Run (such as
// Engine.LoadRoutes) is in place when the channel closes, and device
// bindings happen later, as devices appear.
func (c *Coordinator) Ready() <-chan struct{} { return c.ready }

func (c *Coordinator) markReady() {
	c.readyOnce.Do(func() { close(c.ready) })
}

// SubscribeStatus registers a channel that receives non-empty status
// patches as they are produced (§4.9, §6 Patch stream). Late subscribers
// are not caught up (§5 Ordering guarantees); callers should request a full
// GetStatus on connect.
func (c *Coordinator) SubscribeStatus() <-chan StatusPatch {
	ch := make(chan StatusPatch, c.statusBufferDepth)
	c.statusSubsMu.Lock()
	c.statusSubs = append(c.statusSubs, ch)
	c.statusSubsMu.Unlock()
	return ch
}

func (c *Coordinator) broadcastStatus(patch StatusPatch) {
	if patch.Empty() {
		return
	}
	c.statusSubsMu.Lock()
	defer c.statusSubsMu.Unlock()
	for _, ch := range c.statusSubs {
		select {
		case ch <- patch:
		default:
			// slow subscriber: drop rather than block the single writer.
		}
	}
}

// Run drives the coordinator's dispatch loop until ctx is canceled or Stop
// is called (§5 Scheduling model, domain 1). It is meant to run in its own
// goroutine; Submit, SubscribeStatus and SubscribeMeters are how every other
// caller talks to it.
func (c *Coordinator) Run(ctx context.Context) {
	saveTicker := time.NewTicker(c.saveInterval)
	defer saveTicker.Stop()

	events := c.engine.adapter.Events()
	meterCh := c.drainMeters()

	c.markReady()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stop:
			return
		case cmd := <-c.commands:
			c.dispatch(ctx, cmd)
		case hostID := <-c.bindable:
			c.bindBurst(ctx, hostID)
		case ev, ok := <-events:
			if !ok {
				return
			}
			c.handleEvent(ctx, ev)
		case sample := <-meterCh:
			c.broadcastMeter(sample)
		case <-saveTicker.C:
			c.maybeSave()
		}
	}
}

// coalesceWindow bounds how long bindBurst waits for sibling devices to
// arrive on the bindable channel before matching the whole batch. Several
// ports on one physical interface debounce-expire within microseconds of
// each other; coalescing their BindDevice calls into one status broadcast
// is the teacher's device-monitor adaptive idea repurposed for bursts of
// device events, and never changes the canonical 500ms single-device
// debounce in Binder.
const coalesceWindow = 10 * time.Millisecond

// bindBurst binds hostID and drains any further devices that become
// bindable within coalesceWindow, then recomputes status once for the
// whole batch rather than once per device.
func (c *Coordinator) bindBurst(ctx context.Context, hostID hostgraph.HostID) {
	bound := false
	if _, ok := c.binder.BindDevice(ctx, hostID); ok {
		bound = true
	}

	deadline := time.NewTimer(coalesceWindow)
	defer deadline.Stop()
drain:
	for {
		select {
		case next := <-c.bindable:
			if _, ok := c.binder.BindDevice(ctx, next); ok {
				bound = true
			}
		case <-deadline.C:
			break drain
		}
	}

	if bound {
		c.dirty = true
		c.recomputeAndBroadcast()
	}
}

// Stop asks Run to exit at the next select iteration.
func (c *Coordinator) Stop() { close(c.stop) }

// Submit enqueues a command and awaits its result (§4.9, modeled on the
// teacher's per-operation dispatcher wrappers generalized to one entry
// point since §6 names two dozen distinct commands).
func (c *Coordinator) Submit(kind CommandKind, data any) (any, error) {
	resp := make(chan CommandResult, 1)
	c.commands <- Command{Kind: kind, Data: data, Response: resp}
	result := <-resp
	return result.Value, result.Err
}

func (c *Coordinator) dispatch(ctx context.Context, cmd Command) {
	start := time.Now()
	value, err := c.execute(ctx, cmd)
	duration := time.Since(start)

	c.perfMu.Lock()
	c.lastDispatch = duration
	if duration > c.maxDispatch {
		c.maxDispatch = duration
	}
	c.perfMu.Unlock()

	if duration > DispatchTarget {
		c.logger.Warn("command exceeded dispatch target", "kind", cmd.Kind, "duration", duration, "target", DispatchTarget)
	}

	if err == nil || errs.IsAlreadyInState(err) {
		c.recomputeAndBroadcast()
		if err == nil {
			c.dirty = true
		}
	}
	cmd.Response <- CommandResult{Value: value, Err: err}
}

// execute is the per-kind switch, grounded on the teacher's
// executeOperation: one case per CommandKind, each delegating to the
// Engine/Binder method that actually implements it.
func (c *Coordinator) execute(ctx context.Context, cmd Command) (any, error) {
	switch cmd.Kind {
	case CmdPing:
		return "pong", nil

	case CmdGetStatus:
		return c.snapshot(), nil

	case CmdCreateNode:
		d := cmd.Data.(CreateNodeData)
		if d.Kind == profile.KindSource {
			return c.engine.CreateSource(ctx, d.Name, d.Physical, d.Group)
		}
		return c.engine.CreateTarget(ctx, d.Name, d.Physical, d.Group)

	case CmdRenameNode:
		d := cmd.Data.(RenameNodeData)
		return nil, c.engine.RenameNode(ctx, d.ID, d.Name)

	case CmdSetNodeColour:
		d := cmd.Data.(SetNodeColourData)
		return nil, c.setNodeColour(d.ID, d.Colour)

	case CmdRemoveNode:
		d := cmd.Data.(RemoveNodeData)
		if _, ok := c.engine.Profile.Sources[d.ID]; ok {
			return nil, c.engine.RemoveSource(ctx, d.ID)
		}
		return nil, c.engine.RemoveTarget(ctx, d.ID)

	case CmdSetSourceVolume:
		d := cmd.Data.(SetSourceVolumeData)
		return nil, c.engine.SetSourceVolume(ctx, d.ID, d.Mix, d.Volume, d.FromHostUI)

	case CmdSetSourceVolumeLinked:
		d := cmd.Data.(SetSourceVolumeLinkedData)
		return nil, c.engine.SetSourceVolumeLinked(d.ID, d.Enabled)

	case CmdSetTargetVolume:
		d := cmd.Data.(SetTargetVolumeData)
		return nil, c.engine.SetTargetVolume(ctx, d.ID, d.Volume)

	case CmdSetTargetMix:
		d := cmd.Data.(SetTargetMixData)
		return nil, c.engine.SetTargetMix(ctx, d.ID, d.Mix)

	case CmdSetRoute:
		d := cmd.Data.(SetRouteData)
		return nil, c.engine.SetRoute(ctx, d.Src, d.Tgt, d.Enabled)

	case CmdAddSourceMuteTarget:
		d := cmd.Data.(SourceMuteSlotData)
		return nil, c.engine.AddSourceMuteTarget(ctx, d.ID, d.Side)

	case CmdDelSourceMuteTarget:
		d := cmd.Data.(SourceMuteSlotData)
		return nil, c.engine.DelSourceMuteTarget(ctx, d.ID, d.Side)

	case CmdAddMuteTargetNode:
		d := cmd.Data.(MuteTargetNodeData)
		return nil, c.engine.AddMuteTargetNode(ctx, d.ID, d.Side, d.Target)

	case CmdDelMuteTargetNode:
		d := cmd.Data.(MuteTargetNodeData)
		return nil, c.engine.DelMuteTargetNode(ctx, d.ID, d.Side, d.Target)

	case CmdClearMuteTargetNodes:
		d := cmd.Data.(SourceMuteSlotData)
		return nil, c.engine.ClearMuteTargetNodes(ctx, d.ID, d.Side)

	case CmdSetTargetMuteState:
		d := cmd.Data.(SetTargetMuteStateData)
		return nil, c.engine.SetTargetMuteState(ctx, d.ID, d.State)

	case CmdAttachPhysicalNode:
		d := cmd.Data.(AttachPhysicalNodeData)
		return nil, c.binder.AttachPhysicalNode(ctx, d.ID, d.DeviceHostID, d.Name, d.Description)

	case CmdRemovePhysicalNode:
		d := cmd.Data.(RemovePhysicalNodeData)
		return nil, c.binder.RemovePhysicalNode(d.ID, d.Index)

	case CmdSetOrderGroup:
		d := cmd.Data.(SetOrderGroupData)
		return nil, c.engine.SetGroup(d.ID, d.Group)

	case CmdSetOrder:
		d := cmd.Data.(SetOrderData)
		return nil, c.engine.SetPosition(d.ID, d.Position)

	case CmdSetMetering:
		d := cmd.Data.(SetMeteringData)
		return nil, c.engine.SetMetering(ctx, d.Enabled)

	case CmdSetApplicationRoute:
		d := cmd.Data.(ApplicationRouteData)
		c.engine.Profile.ApplicationRoutes = append(c.engine.Profile.ApplicationRoutes, profile.ApplicationRoute{
			Pattern: d.Pattern, IsGlob: d.IsGlob, TargetID: d.TargetID,
		})
		return nil, nil

	case CmdClearApplicationRoute:
		d := cmd.Data.(ClearApplicationRouteData)
		return nil, c.clearApplicationRoute(d.Pattern, d.IsGlob)

	case CmdSetTransientApplicationRoute:
		d := cmd.Data.(TransientApplicationRouteData)
		key := appHostIDKey(d.HostAppID)
		c.engine.Profile.TransientApplicationRoutes[key] = d.TargetID
		return nil, nil

	case CmdClearTransientApplicationRoute:
		d := cmd.Data.(ClearTransientApplicationRouteData)
		key := appHostIDKey(d.HostAppID)
		delete(c.engine.Profile.TransientApplicationRoutes, key)
		return nil, nil

	default:
		return nil, errs.New(errs.InvalidArgument, "dispatch", "unknown command kind")
	}
}

func (c *Coordinator) setNodeColour(id ids.ID, colour profile.Colour) error {
	if s, ok := c.engine.Profile.Sources[id]; ok {
		s.Description.Colour = colour
		return nil
	}
	if t, ok := c.engine.Profile.Targets[id]; ok {
		t.Description.Colour = colour
		return nil
	}
	return errs.New(errs.NotFound, "SetNodeColour", "unknown node")
}

func (c *Coordinator) clearApplicationRoute(pattern string, isGlob bool) error {
	routes := c.engine.Profile.ApplicationRoutes
	for i, r := range routes {
		if r.Pattern == pattern && r.IsGlob == isGlob {
			c.engine.Profile.ApplicationRoutes = append(routes[:i], routes[i+1:]...)
			return nil
		}
	}
	return errs.New(errs.NotFound, "ClearApplicationRoute", "no such application route")
}

func (c *Coordinator) snapshot() *Status {
	devices := make([]hostgraph.DeviceInfo, 0, len(c.knownDevices))
	for _, d := range c.knownDevices {
		devices = append(devices, d)
	}
	return &Status{Profile: c.engine.Profile.Clone(), Devices: devices}
}

func (c *Coordinator) recomputeAndBroadcast() {
	next := c.snapshot()
	patch := diffStatus(c.lastStatus, next)
	c.lastStatus = next
	c.broadcastStatus(patch)
}

func (c *Coordinator) maybeSave() {
	if !c.dirty || c.store == nil {
		return
	}
	if err := c.store.Save(c.engine.Profile); err != nil {
		c.HandleBackgroundError("persistence", err)
		return
	}
	c.dirty = false
}

// handleEvent processes one hostgraph.Event arriving from the adapter (§5
// domain 2 -> domain 1 handoff).
func (c *Coordinator) handleEvent(ctx context.Context, ev hostgraph.Event) {
	switch e := ev.(type) {
	case hostgraph.DeviceAdded:
		c.knownDevices[e.Device.HostID] = e.Device
		c.binder.DeviceAppeared(e.Device)
		c.recomputeAndBroadcast()
	case hostgraph.DeviceRemoved:
		delete(c.knownDevices, e.HostID)
		c.binder.DeviceDisappeared(ctx, e.HostID)
		c.recomputeAndBroadcast()
	case hostgraph.ManagedLinkDropped:
		c.logger.Warn("host dropped a managed link", "src", e.Src, "dst", e.Dst)
	case hostgraph.ApplicationNodeAdded:
		if err := c.binder.ApplicationNodeAppeared(ctx, e.HostID, e.Name); err != nil {
			c.HandleBackgroundError("application-routing", err)
		}
	}
}

func (c *Coordinator) drainMeters() <-chan filter.MeterSample {
	out := make(chan filter.MeterSample, 64)
	go func() {
		for sample := range c.engine.meterSamples {
			select {
			case out <- sample:
			default:
			}
		}
	}()
	return out
}

// SubscribeMeters registers a channel receiving meter samples as the host's
// audio callback threads emit them (§6 Meter stream, "≤10Hz per source when
// enabled").
func (c *Coordinator) SubscribeMeters() <-chan filter.MeterSample {
	ch := make(chan filter.MeterSample, 64)
	c.meterSubsMu.Lock()
	c.meterSubs = append(c.meterSubs, ch)
	c.meterSubsMu.Unlock()
	return ch
}

func (c *Coordinator) broadcastMeter(sample filter.MeterSample) {
	c.meterSubsMu.Lock()
	defer c.meterSubsMu.Unlock()
	for _, ch := range c.meterSubs {
		select {
		case ch <- sample:
		default:
		}
	}
}

// PerformanceStats reports the last and peak dispatch durations, mirroring
// the teacher's dispatcher performance tracking (§4.9).
func (c *Coordinator) PerformanceStats() (last, max time.Duration) {
	c.perfMu.RLock()
	defer c.perfMu.RUnlock()
	return c.lastDispatch, c.maxDispatch
}
