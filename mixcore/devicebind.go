package mixcore

import (
	"context"
	"path"
	"strconv"
	"time"

	"github.com/shaban/mixcore/errs"
	"github.com/shaban/mixcore/hostgraph"
	"github.com/shaban/mixcore/ids"
	"github.com/shaban/mixcore/profile"
)

// DebounceWindow is the §4.8 appearance debounce ("a 500ms debounce timer").
const DebounceWindow = 500 * time.Millisecond

// pendingDevice is one device sitting in the debounce window, waiting to see
// whether a matching DeviceRemoved arrives before the timer fires.
type pendingDevice struct {
	info   hostgraph.DeviceInfo
	timer  *time.Timer
	cancel chan struct{}
}

// Binder implements §4.8: it matches appearing physical devices to profile
// slots, debounces appearance/removal churn, and tracks manual overrides to
// application routing. It shares the Engine's single-writer discipline -
// every method here assumes it runs on the coordinator's one logical
// thread; the debounce timer's callback only calls onBindable, which the
// coordinator wires back through its own bindable channel rather than
// letting the timer goroutine touch Engine state directly.
type Binder struct {
	engine  *Engine
	pending map[hostgraph.HostID]*pendingDevice

	onBindable     func(hostgraph.HostID)
	debounceWindow time.Duration

	matchCount   int64
	avgMatchTime time.Duration
	maxMatchTime time.Duration
}

// NewBinder constructs a Binder for engine. onBindable is called (from the
// debounce timer's own goroutine) with a device's host id once it survives
// the debounce window; the caller re-enters the single-writer loop and
// calls BindDevice from there.
func NewBinder(engine *Engine, onBindable func(hostgraph.HostID)) *Binder {
	return &Binder{
		engine:         engine,
		pending:        map[hostgraph.HostID]*pendingDevice{},
		onBindable:     onBindable,
		debounceWindow: DebounceWindow,
	}
}

// SetDebounceWindow overrides the §4.8 debounce window from its 500ms
// default (bootstrap config's deviceDebounceMs). Safe to call only before
// any device has been offered to DeviceAppeared.
func (b *Binder) SetDebounceWindow(d time.Duration) {
	if d > 0 {
		b.debounceWindow = d
	}
}

// DeviceAppeared handles a host DeviceAdded event (§4.8 Appearance): the
// device is held pending for DebounceWindow before being offered to the
// profile.
func (b *Binder) DeviceAppeared(info hostgraph.DeviceInfo) {
	cancel := make(chan struct{})
	p := &pendingDevice{info: info, cancel: cancel}
	p.timer = time.AfterFunc(b.debounceWindow, func() {
		select {
		case <-cancel:
			return
		default:
		}
		if b.onBindable != nil {
			b.onBindable(info.HostID)
		}
	})
	b.pending[info.HostID] = p
}

// DeviceDisappeared handles a host DeviceRemoved event. If the device was
// still pending (within its debounce window), the pending entry is silently
// discarded with no binding attempt ever made (§8 S5). Otherwise it tears
// down the links from an already-bound device without forgetting the
// profile binding, so the next appearance can rebind (§4.8 Removal).
func (b *Binder) DeviceDisappeared(ctx context.Context, hostID hostgraph.HostID) {
	if p, ok := b.pending[hostID]; ok {
		p.timer.Stop()
		close(p.cancel)
		delete(b.pending, hostID)
		return
	}
	b.unlinkDevice(ctx, hostID)
}

// BindDevice is invoked once a pending device survives its debounce window
// (§4.8 Appearance). It runs the two-pass name-then-description match over
// physical source slots, then physical target slots, binding at most one
// slot.
func (b *Binder) BindDevice(ctx context.Context, hostID hostgraph.HostID) (ids.ID, bool) {
	start := time.Now()
	defer func() { b.recordMatch(time.Since(start)) }()

	p, ok := b.pending[hostID]
	if !ok {
		return ids.Nil, false
	}
	delete(b.pending, hostID)

	if id, ok := b.matchPass(ctx, p.info, nameField, p.info.Name, true); ok {
		return id, true
	}
	if id, ok := b.matchPass(ctx, p.info, descriptionField, p.info.Description, false); ok {
		return id, true
	}
	return ids.Nil, false
}

// matchEMAAlpha is the smoothing factor for the match-latency running
// average, the same weight the teacher's device monitor uses for its own
// adaptive polling stats.
const matchEMAAlpha = 0.1

// recordMatch folds one BindDevice call's duration into the running
// average and peak, adapting the teacher's device_monitor.go performance
// tracker to profile-slot matching instead of poll-loop timing.
func (b *Binder) recordMatch(d time.Duration) {
	b.matchCount++
	if b.matchCount == 1 {
		b.avgMatchTime = d
	} else {
		b.avgMatchTime = time.Duration(float64(b.avgMatchTime)*(1-matchEMAAlpha) + float64(d)*matchEMAAlpha)
	}
	if d > b.maxMatchTime {
		b.maxMatchTime = d
	}
}

// MatchStats reports the running average and peak BindDevice latency and
// the number of matches performed, for diagnostics and logging.
func (b *Binder) MatchStats() (avg, max time.Duration, count int64) {
	return b.avgMatchTime, b.maxMatchTime, b.matchCount
}

// appHostIDKey is the string form used to key the application-routing maps,
// which are JSON-shaped (profile.Profile) and so cannot key directly on
// hostgraph.HostID (a plain int64).
func appHostIDKey(id hostgraph.HostID) string {
	return strconv.FormatInt(int64(id), 10)
}

func nameField(d profile.PhysicalDescriptor) string        { return d.Name }
func descriptionField(d profile.PhysicalDescriptor) string { return d.Description }

// matchPass scans sources then targets for a slot with a matching
// descriptor field, binds the first hit, and overwrites the other field
// (name or description) with the host's current value. byName selects which
// field gets overwritten: a name-pass hit overwrites the stored
// description, a description-pass hit overwrites the stored name (§4.8
// "names are stable; descriptions may drift").
func (b *Binder) matchPass(ctx context.Context, info hostgraph.DeviceInfo, field func(profile.PhysicalDescriptor) string, want string, byName bool) (ids.ID, bool) {
	if want == "" {
		return ids.Nil, false
	}
	p := b.engine.Profile

	for id, s := range p.Sources {
		if !s.Physical {
			continue
		}
		for i, d := range s.AttachedDevices {
			if field(d) != want {
				continue
			}
			if byName {
				s.AttachedDevices[i].Description = info.Description
			} else {
				s.AttachedDevices[i].Name = info.Name
			}
			b.linkDevice(ctx, id, info.HostID, true)
			return id, true
		}
	}
	for id, t := range p.Targets {
		if !t.Physical {
			continue
		}
		for i, d := range t.AttachedDevices {
			if field(d) != want {
				continue
			}
			if byName {
				t.AttachedDevices[i].Description = info.Description
			} else {
				t.AttachedDevices[i].Name = info.Name
			}
			b.linkDevice(ctx, id, info.HostID, false)
			return id, true
		}
	}
	return ids.Nil, false
}

// linkDevice wires the host device node to the bound logical entity's
// managed filter. isSource controls link direction: device->filter for
// sources, filter->device for targets, mirroring the signal flow.
func (b *Binder) linkDevice(ctx context.Context, logicalID ids.ID, deviceHostID hostgraph.HostID, isSource bool) {
	device := hostgraph.HostNode(deviceHostID)
	filterEnd := hostgraph.ManagedFilter(logicalID)
	if isSource {
		_ = b.engine.adapter.CreateLink(ctx, device, filterEnd)
	} else {
		_ = b.engine.adapter.CreateLink(ctx, filterEnd, device)
	}
}

// unlinkDevice tears down whichever link a previously-bound device held,
// without removing the profile's attached-device record (§4.8 Removal).
func (b *Binder) unlinkDevice(ctx context.Context, deviceHostID hostgraph.HostID) {
	device := hostgraph.HostNode(deviceHostID)
	for id, s := range b.engine.Profile.Sources {
		if s.Physical {
			_ = b.engine.adapter.RemoveLink(ctx, device, hostgraph.ManagedFilter(id))
		}
	}
	for id, t := range b.engine.Profile.Targets {
		if t.Physical {
			_ = b.engine.adapter.RemoveLink(ctx, hostgraph.ManagedFilter(id), device)
		}
	}
}

// AttachPhysicalNode implements §6's manual-binding command: attach a
// specific host node id to a specific logical id.
func (b *Binder) AttachPhysicalNode(ctx context.Context, id ids.ID, deviceHostID hostgraph.HostID, name, description string) error {
	isSource := false
	switch {
	case b.engine.Profile.Sources[id] != nil:
		s := b.engine.Profile.Sources[id]
		if !s.Physical {
			return errs.New(errs.WrongKind, "AttachPhysicalNode", "not a physical source")
		}
		s.AttachedDevices = append(s.AttachedDevices, profile.PhysicalDescriptor{Name: name, Description: description})
		isSource = true
	case b.engine.Profile.Targets[id] != nil:
		t := b.engine.Profile.Targets[id]
		if !t.Physical {
			return errs.New(errs.WrongKind, "AttachPhysicalNode", "not a physical target")
		}
		t.AttachedDevices = append(t.AttachedDevices, profile.PhysicalDescriptor{Name: name, Description: description})
	default:
		return errs.New(errs.NotFound, "AttachPhysicalNode", "unknown node")
	}
	b.linkDevice(ctx, id, deviceHostID, isSource)
	return nil
}

// RemovePhysicalNode implements §6's manual-unbinding command: detach the
// descriptor at index.
func (b *Binder) RemovePhysicalNode(id ids.ID, index int) error {
	if s, ok := b.engine.Profile.Sources[id]; ok {
		if index < 0 || index >= len(s.AttachedDevices) {
			return errs.New(errs.InvalidArgument, "RemovePhysicalNode", "index out of range")
		}
		s.AttachedDevices = append(s.AttachedDevices[:index], s.AttachedDevices[index+1:]...)
		return nil
	}
	if t, ok := b.engine.Profile.Targets[id]; ok {
		if index < 0 || index >= len(t.AttachedDevices) {
			return errs.New(errs.InvalidArgument, "RemovePhysicalNode", "index out of range")
		}
		t.AttachedDevices = append(t.AttachedDevices[:index], t.AttachedDevices[index+1:]...)
		return nil
	}
	return errs.New(errs.NotFound, "RemovePhysicalNode", "unknown node")
}

// ApplicationNodeAppeared implements §4.8 Application routing: a new host
// "application" node is matched against the profile's application mapping
// (exact string or glob) unless the node is in the manual-override ignore
// set.
func (b *Binder) ApplicationNodeAppeared(ctx context.Context, appHostID hostgraph.HostID, name string) error {
	p := b.engine.Profile
	key := appHostIDKey(appHostID)
	if _, ignored := p.ApplicationIgnoreSet[key]; ignored {
		return nil
	}
	if tgt, ok := p.TransientApplicationRoutes[key]; ok {
		return b.sendApplicationTarget(ctx, appHostID, tgt)
	}
	for _, route := range p.ApplicationRoutes {
		if matchApplicationRoute(route, name) {
			return b.sendApplicationTarget(ctx, appHostID, route.TargetID)
		}
	}
	return nil
}

func (b *Binder) sendApplicationTarget(ctx context.Context, appHostID hostgraph.HostID, tgt ids.ID) error {
	entry, ok := b.engine.targets[tgt]
	if !ok {
		return nil
	}
	return opErr("ApplicationNodeAppeared", b.engine.adapter.SetApplicationTarget(ctx, appHostID, entry.head))
}

func matchApplicationRoute(route profile.ApplicationRoute, name string) bool {
	if !route.IsGlob {
		return route.Pattern == name
	}
	ok, err := path.Match(route.Pattern, name)
	return err == nil && ok
}

// ObserveApplicationRedirect implements the ignore-set half of §4.8
// Application routing: if the user manually redirects an app node away from
// its matched target, remember the override; if they redirect it back, the
// override is forgotten.
func (b *Binder) ObserveApplicationRedirect(appHostID hostgraph.HostID, appName string, newTarget ids.ID) {
	p := b.engine.Profile
	key := appHostIDKey(appHostID)
	want, hasMatch := b.resolveIntendedTarget(appName, key)
	if hasMatch && newTarget == want {
		delete(p.ApplicationIgnoreSet, key)
		return
	}
	p.ApplicationIgnoreSet[key] = struct{}{}
}

func (b *Binder) resolveIntendedTarget(appName, key string) (ids.ID, bool) {
	p := b.engine.Profile
	if tgt, ok := p.TransientApplicationRoutes[key]; ok {
		return tgt, true
	}
	for _, route := range p.ApplicationRoutes {
		if matchApplicationRoute(route, appName) {
			return route.TargetID, true
		}
	}
	return ids.Nil, false
}
