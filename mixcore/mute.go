package mixcore

import (
	"context"

	"github.com/shaban/mixcore/errs"
	"github.com/shaban/mixcore/filter"
	"github.com/shaban/mixcore/ids"
	"github.com/shaban/mixcore/profile"
)

// muteTri is the three-way "active state" the §4.6 transition table is
// indexed on: no slot engaged, an engaged slot muting everything, or an
// engaged slot muting a specific (non-empty) target set.
type muteTri int

const (
	triNone muteTri = iota
	triAll
	triSome
)

// classifyMute derives the transition-table row/column for m: whether any
// slot is engaged, and if so whether the effective mute is "all" or a
// specific union of target sets (§4.6 Per-source model).
func classifyMute(m profile.MuteState) (muteTri, map[ids.ID]struct{}) {
	if !m.A.Engaged && !m.B.Engaged {
		return triNone, nil
	}
	if (m.A.Engaged && m.A.IsAll()) || (m.B.Engaged && m.B.IsAll()) {
		return triAll, nil
	}
	union := map[ids.ID]struct{}{}
	if m.A.Engaged {
		for _, t := range m.A.Targets {
			union[t] = struct{}{}
		}
	}
	if m.B.Engaged {
		for _, t := range m.B.Targets {
			union[t] = struct{}{}
		}
	}
	return triSome, union
}

// setSourceMixVolumes zeroes (or restores from the profile) both of src's
// mix filters, used by the "zero both mix volumes" / "restore both mix
// volumes" actions of §4.6's transition table.
func (e *Engine) setSourceMixVolumes(ctx context.Context, src ids.ID, zero bool) error {
	entry, ok := e.sources[src]
	if !ok {
		return errs.New(errs.NotFound, "setSourceMixVolumes", "unknown source")
	}
	s := e.Profile.Sources[src]
	a, b := s.Volumes.A, s.Volumes.B
	if zero {
		a, b = 0, 0
	}
	if err := e.adapter.SetFilterValue(ctx, entry.mix.A, filter.PropertyVolume, filter.U8Value(a)); err != nil {
		return err
	}
	return e.adapter.SetFilterValue(ctx, entry.mix.B, filter.PropertyVolume, filter.U8Value(b))
}

// removeRouteLink removes the link for src->tgt if (and only if) the route
// is actually present; absence is not an error (§4.6 "skipped when the
// corresponding route isn't present at all").
func (e *Engine) removeRouteLink(ctx context.Context, src, tgt ids.ID) error {
	if !e.Profile.HasRoute(src, tgt) {
		return nil
	}
	t := e.Profile.Targets[tgt]
	if t == nil {
		return nil
	}
	endpoint, err := e.sourceMixEndpoint(src, t.Mix)
	if err != nil {
		return err
	}
	dst, err := e.targetFilterNode(tgt)
	if err != nil {
		return err
	}
	return e.adapter.RemoveLink(ctx, endpoint, dst)
}

// restoreRouteLink creates the link for src->tgt if the route is present.
func (e *Engine) restoreRouteLink(ctx context.Context, src, tgt ids.ID) error {
	if !e.Profile.HasRoute(src, tgt) {
		return nil
	}
	t := e.Profile.Targets[tgt]
	if t == nil {
		return nil
	}
	endpoint, err := e.sourceMixEndpoint(src, t.Mix)
	if err != nil {
		return err
	}
	dst, err := e.targetFilterNode(tgt)
	if err != nil {
		return err
	}
	return e.adapter.CreateLink(ctx, endpoint, dst)
}

// applyMuteTransition executes the single matching row of §4.6's nine-case
// transition table for a move from (oldState, oldSet) to (newState, newSet).
func (e *Engine) applyMuteTransition(ctx context.Context, src ids.ID, oldState muteTri, oldSet map[ids.ID]struct{}, newState muteTri, newSet map[ids.ID]struct{}) error {
	switch {
	case oldState == triNone && newState == triNone:
		return nil
	case oldState == triNone && newState == triAll:
		return e.setSourceMixVolumes(ctx, src, true)
	case oldState == triNone && newState == triSome:
		for t := range newSet {
			if err := e.removeRouteLink(ctx, src, t); err != nil {
				return err
			}
		}
		return nil
	case oldState == triAll && newState == triNone:
		return e.setSourceMixVolumes(ctx, src, false)
	case oldState == triSome && newState == triNone:
		for t := range oldSet {
			if err := e.restoreRouteLink(ctx, src, t); err != nil {
				return err
			}
		}
		return nil
	case oldState == triAll && newState == triAll:
		return nil
	case oldState == triAll && newState == triSome:
		for t := range newSet {
			if err := e.removeRouteLink(ctx, src, t); err != nil {
				return err
			}
		}
		return e.setSourceMixVolumes(ctx, src, false)
	case oldState == triSome && newState == triAll:
		if err := e.setSourceMixVolumes(ctx, src, true); err != nil {
			return err
		}
		for t := range oldSet {
			if err := e.restoreRouteLink(ctx, src, t); err != nil {
				return err
			}
		}
		return nil
	default: // triSome -> triSome
		for t := range oldSet {
			if _, stillMuted := newSet[t]; !stillMuted {
				if err := e.restoreRouteLink(ctx, src, t); err != nil {
					return err
				}
			}
		}
		for t := range newSet {
			if _, wasMuted := oldSet[t]; !wasMuted {
				if err := e.removeRouteLink(ctx, src, t); err != nil {
					return err
				}
			}
		}
		return nil
	}
}

// AddSourceMuteTarget engages a mute slot (§6 command table), applying
// whatever transition results from the new active-state union.
func (e *Engine) AddSourceMuteTarget(ctx context.Context, src ids.ID, side profile.MixSide) error {
	s := e.Profile.Sources[src]
	if s == nil {
		return errs.New(errs.NotFound, "AddSourceMuteTarget", "unknown source")
	}
	slot := s.MuteStates.Slot(side)
	if slot.Engaged {
		return errs.New(errs.AlreadyInState, "AddSourceMuteTarget", "slot already engaged")
	}
	oldState, oldSet := classifyMute(s.MuteStates)
	slot.Engaged = true
	newState, newSet := classifyMute(s.MuteStates)
	return opErr("AddSourceMuteTarget", e.applyMuteTransition(ctx, src, oldState, oldSet, newState, newSet))
}

// DelSourceMuteTarget disengages a mute slot.
func (e *Engine) DelSourceMuteTarget(ctx context.Context, src ids.ID, side profile.MixSide) error {
	s := e.Profile.Sources[src]
	if s == nil {
		return errs.New(errs.NotFound, "DelSourceMuteTarget", "unknown source")
	}
	slot := s.MuteStates.Slot(side)
	if !slot.Engaged {
		return errs.New(errs.AlreadyInState, "DelSourceMuteTarget", "slot already disengaged")
	}
	oldState, oldSet := classifyMute(s.MuteStates)
	slot.Engaged = false
	newState, newSet := classifyMute(s.MuteStates)
	return opErr("DelSourceMuteTarget", e.applyMuteTransition(ctx, src, oldState, oldSet, newState, newSet))
}

// unmuteSlotFirst is the shared "if the slot is currently engaged, the
// engine first unmutes that slot before committing the membership change"
// step from §4.6 Target membership management. It leaves the slot
// disengaged - AddMuteTargetNode/DelMuteTargetNode never re-engage it
// themselves (§8 S1).
func (e *Engine) unmuteSlotFirst(ctx context.Context, src ids.ID, side profile.MixSide) error {
	s := e.Profile.Sources[src]
	slot := s.MuteStates.Slot(side)
	if !slot.Engaged {
		return nil
	}
	oldState, oldSet := classifyMute(s.MuteStates)
	slot.Engaged = false
	newState, newSet := classifyMute(s.MuteStates)
	return e.applyMuteTransition(ctx, src, oldState, oldSet, newState, newSet)
}

// normalizeMuteSlot implements §4.6's "if the new total equals the number
// of configured targets, normalize to the empty set (mute to all)".
func (e *Engine) normalizeMuteSlot(slot *profile.MuteSlot) {
	if len(e.Profile.Targets) > 0 && len(slot.Targets) >= len(e.Profile.Targets) {
		slot.Targets = nil
	}
}

// AddMuteTargetNode implements §4.6 Target membership management / §6's
// AddMuteTargetNode command.
func (e *Engine) AddMuteTargetNode(ctx context.Context, src ids.ID, side profile.MixSide, tgt ids.ID) error {
	s := e.Profile.Sources[src]
	if s == nil {
		return errs.New(errs.NotFound, "AddMuteTargetNode", "unknown source")
	}
	if _, ok := e.Profile.Targets[tgt]; !ok {
		return errs.New(errs.NotFound, "AddMuteTargetNode", "unknown target")
	}
	if err := e.unmuteSlotFirst(ctx, src, side); err != nil {
		return opErr("AddMuteTargetNode", err)
	}
	slot := s.MuteStates.Slot(side)
	if !slot.Has(tgt) {
		slot.Targets = append(slot.Targets, tgt)
	}
	e.normalizeMuteSlot(slot)
	return nil
}

// DelMuteTargetNode implements §6's DelMuteTargetNode command.
func (e *Engine) DelMuteTargetNode(ctx context.Context, src ids.ID, side profile.MixSide, tgt ids.ID) error {
	s := e.Profile.Sources[src]
	if s == nil {
		return errs.New(errs.NotFound, "DelMuteTargetNode", "unknown source")
	}
	if err := e.unmuteSlotFirst(ctx, src, side); err != nil {
		return opErr("DelMuteTargetNode", err)
	}
	slot := s.MuteStates.Slot(side)
	filtered := slot.Targets[:0]
	for _, t := range slot.Targets {
		if t != tgt {
			filtered = append(filtered, t)
		}
	}
	slot.Targets = filtered
	return nil
}

// ClearMuteTargetNodes implements §6's ClearMuteTargetNodes command.
func (e *Engine) ClearMuteTargetNodes(ctx context.Context, src ids.ID, side profile.MixSide) error {
	s := e.Profile.Sources[src]
	if s == nil {
		return errs.New(errs.NotFound, "ClearMuteTargetNodes", "unknown source")
	}
	if err := e.unmuteSlotFirst(ctx, src, side); err != nil {
		return opErr("ClearMuteTargetNodes", err)
	}
	s.MuteStates.Slot(side).Targets = nil
	return nil
}

// SetTargetMuteState implements §4.6 Per-target model / §6's
// SetTargetMuteState command.
func (e *Engine) SetTargetMuteState(ctx context.Context, tgt ids.ID, state profile.TargetMuteState) error {
	t := e.Profile.Targets[tgt]
	if t == nil {
		return errs.New(errs.NotFound, "SetTargetMuteState", "unknown target")
	}
	if t.MuteState == state {
		return errs.New(errs.AlreadyInState, "SetTargetMuteState", "target already in requested mute state")
	}
	t.MuteState = state
	entry, ok := e.targets[tgt]
	if !ok {
		return errs.New(errs.InternalInvariant, "SetTargetMuteState", "target missing host bookkeeping")
	}
	if t.Physical {
		vol := t.Volume
		if state == profile.Muted {
			vol = 0
		}
		return opErr("SetTargetMuteState", e.adapter.SetFilterValue(ctx, entry.head, filter.PropertyVolume, filter.U8Value(vol)))
	}
	return opErr("SetTargetMuteState", e.adapter.SetNodeMute(ctx, entry.head, state == profile.Muted))
}
