package mixcore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaban/mixcore/filter"
	"github.com/shaban/mixcore/profile"
)

func TestSetSourceVolumeAppliesToFilterAndRejectsOutOfRange(t *testing.T) {
	ctx := context.Background()
	e, host, _ := newTestEngine(t)
	src, err := e.CreateSource(ctx, "Src", false, profile.OrderDefault)
	require.NoError(t, err)

	require.NoError(t, e.SetSourceVolume(ctx, src, profile.MixA, 55, false))
	entry := e.sources[src]
	v, err := host.FilterValue(entry.mix.A, filter.PropertyVolume)
	require.NoError(t, err)
	assert.Equal(t, uint8(55), v.U8)

	err = e.SetSourceVolume(ctx, src, profile.MixA, 101, false)
	assert.ErrorIs(t, err, errInvalidArgument)

	err = e.SetSourceVolume(ctx, src, profile.MixA, 55, false)
	assert.ErrorIs(t, err, errAlreadyInState)
}

func TestSetSourceVolumeLinkedFollowsRatio(t *testing.T) {
	ctx := context.Background()
	e, host, _ := newTestEngine(t)
	src, err := e.CreateSource(ctx, "Src", false, profile.OrderDefault)
	require.NoError(t, err)
	require.NoError(t, e.SetSourceVolume(ctx, src, profile.MixA, 40, false))
	require.NoError(t, e.SetSourceVolume(ctx, src, profile.MixB, 80, false))

	require.NoError(t, e.SetSourceVolumeLinked(src, true))
	require.NoError(t, e.SetSourceVolume(ctx, src, profile.MixA, 25, false))

	assert.Equal(t, uint8(50), e.Profile.Sources[src].Volumes.B)
	entry := e.sources[src]
	v, err := host.FilterValue(entry.mix.B, filter.PropertyVolume)
	require.NoError(t, err)
	assert.Equal(t, uint8(50), v.U8)
}

func TestSetSourceVolumeMutedToAllSkipsFilterWrite(t *testing.T) {
	ctx := context.Background()
	e, host, _ := newTestEngine(t)
	src, err := e.CreateSource(ctx, "Src", false, profile.OrderDefault)
	require.NoError(t, err)
	require.NoError(t, e.AddSourceMuteTarget(ctx, src, profile.MixA))

	require.NoError(t, e.SetSourceVolume(ctx, src, profile.MixA, 60, false))

	entry := e.sources[src]
	v, err := host.FilterValue(entry.mix.A, filter.PropertyVolume)
	require.NoError(t, err)
	assert.Equal(t, uint8(0), v.U8, "mix filter stays at the muted zero until unmute restores it")
	assert.Equal(t, uint8(60), e.Profile.Sources[src].Volumes.A, "profile value still updates")
}

func TestSetSourceVolumeFromHostUIForwardsToVirtualNode(t *testing.T) {
	ctx := context.Background()
	e, host, _ := newTestEngine(t)
	src, err := e.CreateSource(ctx, "Src", false, profile.OrderDefault)
	require.NoError(t, err)

	require.NoError(t, e.SetSourceVolume(ctx, src, profile.MixA, 33, true))

	entry := e.sources[src]
	assert.Equal(t, uint8(33), host.Volume(entry.head))
}

func TestSetTargetVolumeUnmutedAppliesRespectsMute(t *testing.T) {
	ctx := context.Background()
	e, host, _ := newTestEngine(t)
	tgt, err := e.CreateTarget(ctx, "Speakers", true, profile.OrderDefault)
	require.NoError(t, err)

	require.NoError(t, e.SetTargetVolume(ctx, tgt, 70))
	entry := e.targets[tgt]
	v, err := host.FilterValue(entry.head, filter.PropertyVolume)
	require.NoError(t, err)
	assert.Equal(t, uint8(70), v.U8)

	require.NoError(t, e.SetTargetMuteState(ctx, tgt, profile.Muted))
	require.NoError(t, e.SetTargetVolume(ctx, tgt, 90))
	v, err = host.FilterValue(entry.head, filter.PropertyVolume)
	require.NoError(t, err)
	assert.Equal(t, uint8(0), v.U8, "muted target's filter stays silent despite the profile volume change")
	assert.Equal(t, uint8(90), e.Profile.Targets[tgt].Volume)
}
