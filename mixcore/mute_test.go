package mixcore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaban/mixcore/filter"
	"github.com/shaban/mixcore/profile"
)

func TestAddSourceMuteTargetAllZeroesBothMixVolumes(t *testing.T) {
	ctx := context.Background()
	e, host, _ := newTestEngine(t)
	src, err := e.CreateSource(ctx, "Src", false, profile.OrderDefault)
	require.NoError(t, err)
	require.NoError(t, e.SetSourceVolume(ctx, src, profile.MixA, 80, false))

	require.NoError(t, e.AddSourceMuteTarget(ctx, src, profile.MixA))

	entry := e.sources[src]
	v, err := host.FilterValue(entry.mix.A, filter.PropertyVolume)
	require.NoError(t, err)
	assert.Equal(t, uint8(0), v.U8)

	err = e.AddSourceMuteTarget(ctx, src, profile.MixA)
	assert.ErrorIs(t, err, errAlreadyInState)
}

func TestDelSourceMuteTargetRestoresVolumes(t *testing.T) {
	ctx := context.Background()
	e, host, _ := newTestEngine(t)
	src, err := e.CreateSource(ctx, "Src", false, profile.OrderDefault)
	require.NoError(t, err)
	require.NoError(t, e.SetSourceVolume(ctx, src, profile.MixA, 80, false))
	require.NoError(t, e.AddSourceMuteTarget(ctx, src, profile.MixA))

	require.NoError(t, e.DelSourceMuteTarget(ctx, src, profile.MixA))

	entry := e.sources[src]
	v, err := host.FilterValue(entry.mix.A, filter.PropertyVolume)
	require.NoError(t, err)
	assert.Equal(t, uint8(80), v.U8)
}

func TestEngagedMuteSlotWithOneTargetRemovesOnlyThatRouteLink(t *testing.T) {
	ctx := context.Background()
	e, host, _ := newTestEngine(t)
	src, err := e.CreateSource(ctx, "Src", false, profile.OrderDefault)
	require.NoError(t, err)
	t1, err := e.CreateTarget(ctx, "T1", false, profile.OrderDefault)
	require.NoError(t, err)
	t2, err := e.CreateTarget(ctx, "T2", false, profile.OrderDefault)
	require.NoError(t, err)
	require.NoError(t, e.SetRoute(ctx, src, t1, true))
	require.NoError(t, e.SetRoute(ctx, src, t2, true))

	require.NoError(t, e.AddMuteTargetNode(ctx, src, profile.MixA, t1))
	// Membership alone touches no link; engaging the slot applies it.
	require.NoError(t, e.AddSourceMuteTarget(ctx, src, profile.MixA))

	srcEndpoint, err := e.sourceMixEndpoint(src, profile.MixA)
	require.NoError(t, err)
	d1, err := e.targetFilterNode(t1)
	require.NoError(t, err)
	d2, err := e.targetFilterNode(t2)
	require.NoError(t, err)
	assert.False(t, host.HasLink(srcEndpoint, d1))
	assert.True(t, host.HasLink(srcEndpoint, d2))
}

func TestAddMuteTargetNodeUnmutesEngagedSlotFirstWithoutReengaging(t *testing.T) {
	ctx := context.Background()
	e, _, _ := newTestEngine(t)
	src, err := e.CreateSource(ctx, "Src", false, profile.OrderDefault)
	require.NoError(t, err)
	tgt, err := e.CreateTarget(ctx, "T", false, profile.OrderDefault)
	require.NoError(t, err)

	require.NoError(t, e.AddSourceMuteTarget(ctx, src, profile.MixA))
	require.NoError(t, e.AddMuteTargetNode(ctx, src, profile.MixA, tgt))

	assert.False(t, e.Profile.Sources[src].MuteStates.A.Engaged)
}

func TestMuteSlotNormalizesToAllWhenEveryTargetMuted(t *testing.T) {
	ctx := context.Background()
	e, _, _ := newTestEngine(t)
	src, err := e.CreateSource(ctx, "Src", false, profile.OrderDefault)
	require.NoError(t, err)
	tgt, err := e.CreateTarget(ctx, "T", false, profile.OrderDefault)
	require.NoError(t, err)

	require.NoError(t, e.AddMuteTargetNode(ctx, src, profile.MixA, tgt))

	assert.True(t, e.Profile.Sources[src].MuteStates.A.IsAll())
}

func TestSetTargetMuteStateZeroesPhysicalVolumeFilter(t *testing.T) {
	ctx := context.Background()
	e, host, _ := newTestEngine(t)
	tgt, err := e.CreateTarget(ctx, "Speakers", true, profile.OrderDefault)
	require.NoError(t, err)
	require.NoError(t, e.SetTargetVolume(ctx, tgt, 70))

	require.NoError(t, e.SetTargetMuteState(ctx, tgt, profile.Muted))

	entry := e.targets[tgt]
	v, err := host.FilterValue(entry.head, filter.PropertyVolume)
	require.NoError(t, err)
	assert.Equal(t, uint8(0), v.U8)

	err = e.SetTargetMuteState(ctx, tgt, profile.Muted)
	assert.ErrorIs(t, err, errAlreadyInState)
}

func TestSetTargetMuteStateVirtualUsesNodeMute(t *testing.T) {
	ctx := context.Background()
	e, host, _ := newTestEngine(t)
	tgt, err := e.CreateTarget(ctx, "App", false, profile.OrderDefault)
	require.NoError(t, err)

	require.NoError(t, e.SetTargetMuteState(ctx, tgt, profile.Muted))

	entry := e.targets[tgt]
	assert.True(t, host.Muted(entry.head))
}
