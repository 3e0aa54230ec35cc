package mixcore

import (
	"context"

	"github.com/shaban/mixcore/errs"
	"github.com/shaban/mixcore/filter"
	"github.com/shaban/mixcore/hostgraph"
	"github.com/shaban/mixcore/ids"
	"github.com/shaban/mixcore/profile"
)

// shiftSourcesFront makes room for a new entry at position 0 of group by
// incrementing the position of every existing source already in it.
func (e *Engine) shiftSourcesFront(group profile.OrderGroup) {
	for _, s := range e.Profile.Sources {
		if s.Group == group {
			s.Position++
		}
	}
}

func (e *Engine) shiftTargetsFront(group profile.OrderGroup) {
	for _, t := range e.Profile.Targets {
		if t.Group == group {
			t.Position++
		}
	}
}

// CreateSource implements §4.4 Create source: allocate an id, install the
// profile record at the front of its order group, then build the host
// topology (head + meter + A/B mix filters) and load initial volumes.
func (e *Engine) CreateSource(ctx context.Context, name string, physical bool, group profile.OrderGroup) (ids.ID, error) {
	id, err := ids.New()
	if err != nil {
		return ids.Nil, errs.Wrap(errs.InternalInvariant, "CreateSource", "id generation failed", err)
	}

	e.shiftSourcesFront(group)
	src := &profile.Source{
		Description: profile.Description{ID: id, Name: name},
		Physical:    physical,
		Volumes:     profile.DefaultVolumes(),
		Group:       group,
		Position:    0,
	}
	e.Profile.Sources[id] = src

	if err := e.buildSourceTopology(ctx, id, name, physical); err != nil {
		// Undo the partial create: nothing host-side survives a failed
		// build (§4.4 Failure policy), and the profile record comes out
		// too so no zombie source is left referenced.
		e.teardownSourceTopology(ctx, id)
		delete(e.Profile.Sources, id)
		return ids.Nil, opErr("CreateSource", err)
	}
	return id, nil
}

func (e *Engine) buildSourceTopology(ctx context.Context, id ids.ID, name string, physical bool) error {
	var headHostID hostgraph.HostID
	var headEndpoint hostgraph.Endpoint
	var err error
	if physical {
		headHostID, err = e.adapter.CreateFilterNode(ctx, hostgraph.FilterProps{Name: name, Filter: filter.NewPassThroughFilter()})
		headEndpoint = hostgraph.ManagedFilter(id)
	} else {
		headHostID, err = e.adapter.CreateDeviceNode(ctx, hostgraph.NodeProps{Name: name, Class: hostgraph.ClassSink})
		headEndpoint = hostgraph.ManagedNode(id)
	}
	if err != nil {
		return err
	}

	// Register the entry as soon as the head exists, so a failure in any
	// later step leaves teardownSourceTopology something to undo.
	entry := &sourceEntry{head: headHostID}
	e.sources[id] = entry

	meterHostID, err := e.adapter.CreateFilterNode(ctx, hostgraph.FilterProps{
		Name:   name + " meter",
		Filter: filter.NewMeterFilter(id, e.sampleRateHz, e.meterSamples),
	})
	if err != nil {
		return err
	}
	entry.meter = meterHostID
	mixAHostID, err := e.adapter.CreateFilterNode(ctx, hostgraph.FilterProps{Name: name + " mix A", Filter: filter.NewVolumeFilter()})
	if err != nil {
		return err
	}
	entry.mix.A = mixAHostID
	mixBHostID, err := e.adapter.CreateFilterNode(ctx, hostgraph.FilterProps{Name: name + " mix B", Filter: filter.NewVolumeFilter()})
	if err != nil {
		return err
	}
	entry.mix.B = mixBHostID

	if e.Profile.MeteringEnabled {
		if err := e.adapter.CreateLink(ctx, headEndpoint, hostgraph.HostNode(meterHostID)); err != nil {
			return err
		}
		if err := e.adapter.SetFilterValue(ctx, meterHostID, filter.PropertyEnabled, filter.BoolValue(true)); err != nil {
			return err
		}
	}
	if err := e.adapter.CreateLink(ctx, headEndpoint, hostgraph.HostNode(mixAHostID)); err != nil {
		return err
	}
	if err := e.adapter.CreateLink(ctx, headEndpoint, hostgraph.HostNode(mixBHostID)); err != nil {
		return err
	}

	return e.applySourceVolumes(ctx, id)
}

// teardownSourceTopology best-effort removes whatever was created so far for
// id; used both by CreateSource's failure path and by RemoveSource.
func (e *Engine) teardownSourceTopology(ctx context.Context, id ids.ID) {
	entry, ok := e.sources[id]
	if !ok {
		return
	}
	src := e.Profile.Sources[id]
	var headEndpoint hostgraph.Endpoint
	if src != nil && src.Physical {
		headEndpoint = hostgraph.ManagedFilter(id)
	} else {
		headEndpoint = hostgraph.ManagedNode(id)
	}

	_ = e.adapter.RemoveLink(ctx, headEndpoint, hostgraph.HostNode(entry.meter))
	_ = e.adapter.RemoveLink(ctx, headEndpoint, hostgraph.HostNode(entry.mix.A))
	_ = e.adapter.RemoveLink(ctx, headEndpoint, hostgraph.HostNode(entry.mix.B))
	for tgt := range e.Profile.RouteSet(id) {
		if ep, err := e.targetFilterNode(tgt); err == nil {
			_ = e.adapter.RemoveLink(ctx, hostgraph.HostNode(entry.mix.A), ep)
			_ = e.adapter.RemoveLink(ctx, hostgraph.HostNode(entry.mix.B), ep)
		}
	}
	_ = e.adapter.RemoveFilterNode(ctx, entry.meter)
	_ = e.adapter.RemoveFilterNode(ctx, entry.mix.A)
	_ = e.adapter.RemoveFilterNode(ctx, entry.mix.B)
	if src != nil && src.Physical {
		_ = e.adapter.RemoveFilterNode(ctx, entry.head)
	} else {
		_ = e.adapter.RemoveDeviceNode(ctx, entry.head)
	}
	delete(e.sources, id)
}

// applySourceVolumes loads the profile's current A/B volumes (or zeroes,
// while muted-to-all) onto the host mix filters.
func (e *Engine) applySourceVolumes(ctx context.Context, id ids.ID) error {
	entry, ok := e.sources[id]
	if !ok {
		return errs.New(errs.NotFound, "applySourceVolumes", "unknown source")
	}
	src := e.Profile.Sources[id]
	eff := profile.EffectiveMuteTargets(src.MuteStates)
	a, b := src.Volumes.A, src.Volumes.B
	if eff.All {
		a, b = 0, 0
	}
	if err := e.adapter.SetFilterValue(ctx, entry.mix.A, filter.PropertyVolume, filter.U8Value(a)); err != nil {
		return err
	}
	return e.adapter.SetFilterValue(ctx, entry.mix.B, filter.PropertyVolume, filter.U8Value(b))
}

// CreateTarget implements §4.4 Create target.
func (e *Engine) CreateTarget(ctx context.Context, name string, physical bool, group profile.OrderGroup) (ids.ID, error) {
	id, err := ids.New()
	if err != nil {
		return ids.Nil, errs.Wrap(errs.InternalInvariant, "CreateTarget", "id generation failed", err)
	}

	e.shiftTargetsFront(group)
	tgt := &profile.Target{
		Description: profile.Description{ID: id, Name: name},
		Physical:    physical,
		MuteState:   profile.Unmuted,
		Volume:      100,
		Mix:         profile.MixA,
		Group:       group,
		Position:    0,
	}
	e.Profile.Targets[id] = tgt

	if err := e.buildTargetTopology(ctx, id, name, physical); err != nil {
		e.teardownTargetTopology(ctx, id)
		delete(e.Profile.Targets, id)
		return ids.Nil, opErr("CreateTarget", err)
	}
	return id, nil
}

func (e *Engine) buildTargetTopology(ctx context.Context, id ids.ID, name string, physical bool) error {
	var headHostID hostgraph.HostID
	var headEndpoint hostgraph.Endpoint
	var err error
	if physical {
		headHostID, err = e.adapter.CreateFilterNode(ctx, hostgraph.FilterProps{Name: name, Filter: filter.NewVolumeFilter()})
		headEndpoint = hostgraph.ManagedFilter(id)
	} else {
		headHostID, err = e.adapter.CreateDeviceNode(ctx, hostgraph.NodeProps{Name: name, Class: hostgraph.ClassSource})
		headEndpoint = hostgraph.ManagedNode(id)
	}
	if err != nil {
		return err
	}

	meterHostID, err := e.adapter.CreateFilterNode(ctx, hostgraph.FilterProps{
		Name:   name + " meter",
		Filter: filter.NewMeterFilter(id, e.sampleRateHz, e.meterSamples),
	})
	if err != nil {
		return err
	}
	if e.Profile.MeteringEnabled {
		if err := e.adapter.CreateLink(ctx, headEndpoint, hostgraph.HostNode(meterHostID)); err != nil {
			return err
		}
		if err := e.adapter.SetFilterValue(ctx, meterHostID, filter.PropertyEnabled, filter.BoolValue(true)); err != nil {
			return err
		}
	}

	e.targets[id] = &targetEntry{head: headHostID, meter: meterHostID}

	tgt := e.Profile.Targets[id]
	if physical {
		return e.adapter.SetFilterValue(ctx, headHostID, filter.PropertyVolume, filter.U8Value(tgt.Volume))
	}
	return e.adapter.SetNodeVolume(ctx, headHostID, tgt.Volume)
}

func (e *Engine) teardownTargetTopology(ctx context.Context, id ids.ID) {
	entry, ok := e.targets[id]
	if !ok {
		return
	}
	tgt := e.Profile.Targets[id]
	var headEndpoint hostgraph.Endpoint
	if tgt != nil && tgt.Physical {
		headEndpoint = hostgraph.ManagedFilter(id)
	} else {
		headEndpoint = hostgraph.ManagedNode(id)
	}
	_ = e.adapter.RemoveLink(ctx, headEndpoint, hostgraph.HostNode(entry.meter))
	for src := range e.Profile.Sources {
		if e.Profile.HasRoute(src, id) {
			if se, ok := e.sources[src]; ok {
				_ = e.adapter.RemoveLink(ctx, hostgraph.HostNode(se.mix.A), headEndpoint)
				_ = e.adapter.RemoveLink(ctx, hostgraph.HostNode(se.mix.B), headEndpoint)
			}
		}
	}
	_ = e.adapter.RemoveFilterNode(ctx, entry.meter)
	if tgt != nil && tgt.Physical {
		_ = e.adapter.RemoveFilterNode(ctx, entry.head)
	} else {
		_ = e.adapter.RemoveDeviceNode(ctx, entry.head)
	}
	delete(e.targets, id)
}

// RemoveSource implements §4.4 Remove source.
func (e *Engine) RemoveSource(ctx context.Context, id ids.ID) error {
	src := e.Profile.Sources[id]
	if src == nil {
		return errs.New(errs.NotFound, "RemoveSource", "unknown source")
	}
	e.teardownSourceTopology(ctx, id)
	delete(e.Profile.Sources, id)
	delete(e.Profile.Routes, id)
	return nil
}

// RemoveTarget implements §4.4 Remove target.
func (e *Engine) RemoveTarget(ctx context.Context, id ids.ID) error {
	tgt := e.Profile.Targets[id]
	if tgt == nil {
		return errs.New(errs.NotFound, "RemoveTarget", "unknown target")
	}
	e.teardownTargetTopology(ctx, id)
	for _, set := range e.Profile.Routes {
		delete(set, id)
	}
	for key, tgt := range e.Profile.TransientApplicationRoutes {
		if tgt == id {
			delete(e.Profile.TransientApplicationRoutes, key)
			delete(e.Profile.ApplicationIgnoreSet, key)
		}
	}
	delete(e.Profile.Targets, id)
	return nil
}

// RenameNode implements §4.4 Rename: teardown-then-recreate, preserving the
// profile id and every other field (routes, mute states, volumes, attached
// descriptors) bitwise (§8 invariant 7).
func (e *Engine) RenameNode(ctx context.Context, id ids.ID, name string) error {
	if src, ok := e.Profile.Sources[id]; ok {
		e.teardownSourceTopology(ctx, id)
		src.Description.Name = name
		if err := e.buildSourceTopology(ctx, id, name, src.Physical); err != nil {
			return opErr("RenameNode", err)
		}
		return e.loadSourceRoutes(ctx, id)
	}
	if tgt, ok := e.Profile.Targets[id]; ok {
		e.teardownTargetTopology(ctx, id)
		tgt.Description.Name = name
		if err := e.buildTargetTopology(ctx, id, name, tgt.Physical); err != nil {
			return opErr("RenameNode", err)
		}
		return e.loadRoutesToTarget(ctx, id)
	}
	return errs.New(errs.NotFound, "RenameNode", "unknown node")
}

// SetMetering implements §4.4 Metering toggle: idempotent per §8 invariant 6.
func (e *Engine) SetMetering(ctx context.Context, enabled bool) error {
	if e.Profile.MeteringEnabled == enabled {
		return errs.New(errs.AlreadyInState, "SetMetering", "metering already in requested state")
	}
	e.Profile.MeteringEnabled = enabled

	apply := func(headEndpoint hostgraph.Endpoint, meterHost hostgraph.HostID) error {
		if enabled {
			if err := e.adapter.CreateLink(ctx, headEndpoint, hostgraph.HostNode(meterHost)); err != nil {
				return err
			}
		} else {
			if err := e.adapter.RemoveLink(ctx, headEndpoint, hostgraph.HostNode(meterHost)); err != nil {
				return err
			}
		}
		return e.adapter.SetFilterValue(ctx, meterHost, filter.PropertyEnabled, filter.BoolValue(enabled))
	}

	for id, entry := range e.sources {
		src := e.Profile.Sources[id]
		var ep hostgraph.Endpoint
		if src.Physical {
			ep = hostgraph.ManagedFilter(id)
		} else {
			ep = hostgraph.ManagedNode(id)
		}
		if err := apply(ep, entry.meter); err != nil {
			return opErr("SetMetering", err)
		}
	}
	for id, entry := range e.targets {
		tgt := e.Profile.Targets[id]
		var ep hostgraph.Endpoint
		if tgt.Physical {
			ep = hostgraph.ManagedFilter(id)
		} else {
			ep = hostgraph.ManagedNode(id)
		}
		if err := apply(ep, entry.meter); err != nil {
			return opErr("SetMetering", err)
		}
	}
	return nil
}

// SetGroup implements §4.4 Ordering: removes id from its current group and
// prepends it to the new one.
func (e *Engine) SetGroup(id ids.ID, group profile.OrderGroup) error {
	if src, ok := e.Profile.Sources[id]; ok {
		e.shiftSourcesFront(group)
		src.Group = group
		src.Position = 0
		return nil
	}
	if tgt, ok := e.Profile.Targets[id]; ok {
		e.shiftTargetsFront(group)
		tgt.Group = group
		tgt.Position = 0
		return nil
	}
	return errs.New(errs.NotFound, "SetGroup", "unknown node")
}

// SetPosition implements §4.4 Ordering: moves id to pos within its current
// group, clamped to the group's length.
func (e *Engine) SetPosition(id ids.ID, pos int) error {
	if src, ok := e.Profile.Sources[id]; ok {
		n := e.countSourcesInGroup(src.Group)
		src.Position = clampPosition(pos, n)
		return nil
	}
	if tgt, ok := e.Profile.Targets[id]; ok {
		n := e.countTargetsInGroup(tgt.Group)
		tgt.Position = clampPosition(pos, n)
		return nil
	}
	return errs.New(errs.NotFound, "SetPosition", "unknown node")
}

func clampPosition(pos, groupLen int) int {
	if groupLen == 0 {
		return 0
	}
	if pos < 0 {
		return 0
	}
	if pos > groupLen-1 {
		return groupLen - 1
	}
	return pos
}

func (e *Engine) countSourcesInGroup(group profile.OrderGroup) int {
	n := 0
	for _, s := range e.Profile.Sources {
		if s.Group == group {
			n++
		}
	}
	return n
}

func (e *Engine) countTargetsInGroup(group profile.OrderGroup) int {
	n := 0
	for _, t := range e.Profile.Targets {
		if t.Group == group {
			n++
		}
	}
	return n
}
