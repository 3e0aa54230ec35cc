package mixcore

import (
	"context"

	"github.com/shaban/mixcore/errs"
	"github.com/shaban/mixcore/ids"
	"github.com/shaban/mixcore/profile"
)

// SetRoute implements §4.5 Set route: validates both ids, treats a
// membership-preserving call as AlreadyInState, and otherwise updates the
// route set and materializes or removes the corresponding link unless the
// source is currently muted toward tgt.
func (e *Engine) SetRoute(ctx context.Context, src, tgt ids.ID, enabled bool) error {
	if _, ok := e.Profile.Sources[src]; !ok {
		return errs.New(errs.NotFound, "SetRoute", "unknown source")
	}
	targetProfile, ok := e.Profile.Targets[tgt]
	if !ok {
		return errs.New(errs.NotFound, "SetRoute", "unknown target")
	}

	if enabled == e.Profile.HasRoute(src, tgt) {
		return errs.New(errs.AlreadyInState, "SetRoute", "route already in requested state")
	}
	e.Profile.SetRoute(src, tgt, enabled)

	if e.isMutedToward(src, tgt) {
		// Route membership changed, but the link stays absent/absent: the
		// mute engine owns the link while the route is muted (§4.5).
		return nil
	}

	endpoint, err := e.sourceMixEndpoint(src, targetProfile.Mix)
	if err != nil {
		return opErr("SetRoute", err)
	}
	dst, err := e.targetFilterNode(tgt)
	if err != nil {
		return opErr("SetRoute", err)
	}
	if enabled {
		return opErr("SetRoute", e.adapter.CreateLink(ctx, endpoint, dst))
	}
	return opErr("SetRoute", e.adapter.RemoveLink(ctx, endpoint, dst))
}

// isMutedToward reports whether src is currently muted toward tgt, per the
// effective-mute derivation in §4.6.
func (e *Engine) isMutedToward(src, tgt ids.ID) bool {
	s := e.Profile.Sources[src]
	if s == nil {
		return false
	}
	eff := profile.EffectiveMuteTargets(s.MuteStates)
	if eff.All {
		return true
	}
	return eff.Contains(tgt)
}

// SetTargetMix implements §4.5 Set target mix: for every source routed to
// tgt and not muted toward it, atomically swap the link from the old mix
// side to the new one before updating the profile field.
func (e *Engine) SetTargetMix(ctx context.Context, tgt ids.ID, newMix profile.MixSide) error {
	t, ok := e.Profile.Targets[tgt]
	if !ok {
		return errs.New(errs.NotFound, "SetTargetMix", "unknown target")
	}
	if t.Mix == newMix {
		return errs.New(errs.AlreadyInState, "SetTargetMix", "target already on requested mix")
	}
	oldMix := t.Mix

	dst, err := e.targetFilterNode(tgt)
	if err != nil {
		return opErr("SetTargetMix", err)
	}

	for src := range e.Profile.Sources {
		if !e.Profile.HasRoute(src, tgt) || e.isMutedToward(src, tgt) {
			continue
		}
		oldEndpoint, err := e.sourceMixEndpoint(src, oldMix)
		if err != nil {
			return opErr("SetTargetMix", err)
		}
		if err := e.adapter.RemoveLink(ctx, oldEndpoint, dst); err != nil {
			return opErr("SetTargetMix", err)
		}
		newEndpoint, err := e.sourceMixEndpoint(src, newMix)
		if err != nil {
			return opErr("SetTargetMix", err)
		}
		if err := e.adapter.CreateLink(ctx, newEndpoint, dst); err != nil {
			return opErr("SetTargetMix", err)
		}
	}
	t.Mix = newMix
	return nil
}

// LoadRoutes implements §4.5 Load routes: called once all nodes exist (e.g.
// after startup profile load), it materializes links for every route
// respecting current mute state.
func (e *Engine) LoadRoutes(ctx context.Context) error {
	for src := range e.Profile.Sources {
		if err := e.loadSourceRoutes(ctx, src); err != nil {
			return err
		}
	}
	return nil
}

// loadSourceRoutes materializes every unmuted route out of src. Used both by
// LoadRoutes and by RenameNode's teardown-then-recreate.
func (e *Engine) loadSourceRoutes(ctx context.Context, src ids.ID) error {
	for tgt := range e.Profile.RouteSet(src) {
		if e.isMutedToward(src, tgt) {
			continue
		}
		t := e.Profile.Targets[tgt]
		if t == nil {
			continue
		}
		endpoint, err := e.sourceMixEndpoint(src, t.Mix)
		if err != nil {
			return opErr("loadSourceRoutes", err)
		}
		dst, err := e.targetFilterNode(tgt)
		if err != nil {
			return opErr("loadSourceRoutes", err)
		}
		if err := e.adapter.CreateLink(ctx, endpoint, dst); err != nil {
			return opErr("loadSourceRoutes", err)
		}
	}
	return nil
}

// loadRoutesToTarget materializes every unmuted route from any source into
// tgt. Used by RenameNode's teardown-then-recreate of a target.
func (e *Engine) loadRoutesToTarget(ctx context.Context, tgt ids.ID) error {
	dst, err := e.targetFilterNode(tgt)
	if err != nil {
		return opErr("loadRoutesToTarget", err)
	}
	t := e.Profile.Targets[tgt]
	for src := range e.Profile.Sources {
		if !e.Profile.HasRoute(src, tgt) || e.isMutedToward(src, tgt) {
			continue
		}
		endpoint, err := e.sourceMixEndpoint(src, t.Mix)
		if err != nil {
			return opErr("loadRoutesToTarget", err)
		}
		if err := e.adapter.CreateLink(ctx, endpoint, dst); err != nil {
			return opErr("loadRoutesToTarget", err)
		}
	}
	return nil
}
