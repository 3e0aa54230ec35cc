package mixcore

import (
	"context"
	"math"

	"github.com/shaban/mixcore/errs"
	"github.com/shaban/mixcore/filter"
	"github.com/shaban/mixcore/hostgraph"
	"github.com/shaban/mixcore/ids"
	"github.com/shaban/mixcore/profile"
)

// clampRound rounds f to the nearest integer and clamps it into [0,100],
// used by the linked-ratio math of §4.7.
func clampRound(f float64) uint8 {
	r := math.Round(f)
	if r < 0 {
		return 0
	}
	if r > 100 {
		return 100
	}
	return uint8(r)
}

// SetSourceVolume implements §4.7 Source volumes. fromHostUI marks a volume
// change that originated on the host's own mixer UI rather than ours; per
// §4.7 that forwards the resulting value onto the virtual source's host
// node so the host's fader stays in sync (a no-op for physical sources,
// which have no separate host-UI fader).
func (e *Engine) SetSourceVolume(ctx context.Context, src ids.ID, mix profile.MixSide, v uint8, fromHostUI bool) error {
	if v > 100 {
		return errs.New(errs.InvalidArgument, "SetSourceVolume", "volume out of range")
	}
	s := e.Profile.Sources[src]
	if s == nil {
		return errs.New(errs.NotFound, "SetSourceVolume", "unknown source")
	}
	if s.Volumes.Get(mix) == v {
		return errs.New(errs.AlreadyInState, "SetSourceVolume", "volume unchanged")
	}
	entry, ok := e.sources[src]
	if !ok {
		return errs.New(errs.InternalInvariant, "SetSourceVolume", "source missing host bookkeeping")
	}

	s.Volumes = s.Volumes.Set(mix, v)
	eff := profile.EffectiveMuteTargets(s.MuteStates)
	applyToFilter := !eff.All

	mixFilter := func(side profile.MixSide) hostgraph.HostID {
		if side == profile.MixA {
			return entry.mix.A
		}
		return entry.mix.B
	}
	if applyToFilter {
		if err := e.adapter.SetFilterValue(ctx, mixFilter(mix), filter.PropertyVolume, filter.U8Value(v)); err != nil {
			return opErr("SetSourceVolume", err)
		}
	}

	if s.Volumes.VolumesLinked != nil {
		ratio := *s.Volumes.VolumesLinked
		var otherVal uint8
		if mix == profile.MixA {
			otherVal = clampRound(float64(v) * ratio)
		} else {
			otherVal = clampRound(float64(v) / ratio)
		}
		s.Volumes = s.Volumes.Set(mix.Other(), otherVal)
		if applyToFilter {
			if err := e.adapter.SetFilterValue(ctx, mixFilter(mix.Other()), filter.PropertyVolume, filter.U8Value(otherVal)); err != nil {
				return opErr("SetSourceVolume", err)
			}
		}
	}

	if fromHostUI && !s.Physical {
		switch mix {
		case profile.MixA:
			if err := e.adapter.SetNodeVolume(ctx, entry.head, v); err != nil {
				return opErr("SetSourceVolume", err)
			}
		case profile.MixB:
			if s.Volumes.A < 100 {
				if err := e.adapter.SetNodeVolume(ctx, entry.head, s.Volumes.A); err != nil {
					return opErr("SetSourceVolume", err)
				}
			}
		}
	}
	return nil
}

// SetSourceVolumeLinked implements §4.7 Link/unlink volumes.
func (e *Engine) SetSourceVolumeLinked(src ids.ID, enabled bool) error {
	s := e.Profile.Sources[src]
	if s == nil {
		return errs.New(errs.NotFound, "SetSourceVolumeLinked", "unknown source")
	}
	if enabled == (s.Volumes.VolumesLinked != nil) {
		return errs.New(errs.AlreadyInState, "SetSourceVolumeLinked", "link already in requested state")
	}
	if !enabled {
		s.Volumes.VolumesLinked = nil
		return nil
	}
	a, b := s.Volumes.A, s.Volumes.B
	if a == 0 {
		a = 1
	}
	if b == 0 {
		b = 1
	}
	ratio := float64(b) / float64(a)
	s.Volumes.VolumesLinked = &ratio
	return nil
}

// SetTargetVolume implements §4.7 Target volumes.
func (e *Engine) SetTargetVolume(ctx context.Context, tgt ids.ID, v uint8) error {
	if v > 100 {
		return errs.New(errs.InvalidArgument, "SetTargetVolume", "volume out of range")
	}
	t := e.Profile.Targets[tgt]
	if t == nil {
		return errs.New(errs.NotFound, "SetTargetVolume", "unknown target")
	}
	if t.Volume == v {
		return errs.New(errs.AlreadyInState, "SetTargetVolume", "volume unchanged")
	}
	t.Volume = v
	entry, ok := e.targets[tgt]
	if !ok {
		return errs.New(errs.InternalInvariant, "SetTargetVolume", "target missing host bookkeeping")
	}

	if !t.Physical {
		return opErr("SetTargetVolume", e.adapter.SetNodeVolume(ctx, entry.head, v))
	}
	if t.MuteState == profile.Unmuted {
		return opErr("SetTargetVolume", e.adapter.SetFilterValue(ctx, entry.head, filter.PropertyVolume, filter.U8Value(v)))
	}
	return nil
}
