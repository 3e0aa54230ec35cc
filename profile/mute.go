package profile

import "github.com/shaban/mixcore/ids"

// EffectiveMute describes the derived effective-mute state of a source
// (§3 invariants, §4.6): either "all" (every target muted) or an explicit
// set of muted target ids.
type EffectiveMute struct {
	All     bool
	Targets map[ids.ID]struct{}
}

// NoneMuted is the effective-mute value when neither slot is engaged.
func NoneMuted() EffectiveMute {
	return EffectiveMute{Targets: map[ids.ID]struct{}{}}
}

// Contains reports whether tgt is muted under this effective state.
func (e EffectiveMute) Contains(tgt ids.ID) bool {
	if e.All {
		return true
	}
	_, ok := e.Targets[tgt]
	return ok
}

// EffectiveMuteTargets derives the effective mute state for a source from
// its two independent mute slots, per §4.6: if any engaged slot has an
// empty set, the effective state is "all"; otherwise it's the union of
// engaged slots' target sets.
func EffectiveMuteTargets(m MuteState) EffectiveMute {
	out := EffectiveMute{Targets: map[ids.ID]struct{}{}}
	any := false
	for _, slot := range []MuteSlot{m.A, m.B} {
		if !slot.Engaged {
			continue
		}
		any = true
		if slot.IsAll() {
			return EffectiveMute{All: true}
		}
		for _, t := range slot.Targets {
			out.Targets[t] = struct{}{}
		}
	}
	if !any {
		return NoneMuted()
	}
	return out
}
