package mixcore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaban/mixcore/profile"
)

func TestSetRouteCreatesAndRemovesLink(t *testing.T) {
	ctx := context.Background()
	e, host, _ := newTestEngine(t)
	src, err := e.CreateSource(ctx, "Src", false, profile.OrderDefault)
	require.NoError(t, err)
	tgt, err := e.CreateTarget(ctx, "Tgt", false, profile.OrderDefault)
	require.NoError(t, err)

	require.NoError(t, e.SetRoute(ctx, src, tgt, true))
	assert.True(t, e.Profile.HasRoute(src, tgt))

	srcEndpoint, err := e.sourceMixEndpoint(src, profile.MixA)
	require.NoError(t, err)
	dstEndpoint, err := e.targetFilterNode(tgt)
	require.NoError(t, err)
	assert.True(t, host.HasLink(srcEndpoint, dstEndpoint))

	err = e.SetRoute(ctx, src, tgt, true)
	assert.ErrorIs(t, err, errAlreadyInState)

	require.NoError(t, e.SetRoute(ctx, src, tgt, false))
	assert.False(t, host.HasLink(srcEndpoint, dstEndpoint))
}

func TestSetRouteWhileMutedLeavesLinkAbsent(t *testing.T) {
	ctx := context.Background()
	e, host, _ := newTestEngine(t)
	src, err := e.CreateSource(ctx, "Src", false, profile.OrderDefault)
	require.NoError(t, err)
	tgt, err := e.CreateTarget(ctx, "Tgt", false, profile.OrderDefault)
	require.NoError(t, err)

	require.NoError(t, e.AddSourceMuteTarget(ctx, src, profile.MixA))
	require.NoError(t, e.SetRoute(ctx, src, tgt, true))

	srcEndpoint, err := e.sourceMixEndpoint(src, profile.MixA)
	require.NoError(t, err)
	dstEndpoint, err := e.targetFilterNode(tgt)
	require.NoError(t, err)
	assert.False(t, host.HasLink(srcEndpoint, dstEndpoint))
	assert.True(t, e.Profile.HasRoute(src, tgt))
}

func TestSetTargetMixMovesLiveLinks(t *testing.T) {
	ctx := context.Background()
	e, host, _ := newTestEngine(t)
	src, err := e.CreateSource(ctx, "Src", false, profile.OrderDefault)
	require.NoError(t, err)
	tgt, err := e.CreateTarget(ctx, "Tgt", false, profile.OrderDefault)
	require.NoError(t, err)
	require.NoError(t, e.SetRoute(ctx, src, tgt, true))

	require.NoError(t, e.SetTargetMix(ctx, tgt, profile.MixB))
	assert.Equal(t, profile.MixB, e.Profile.Targets[tgt].Mix)

	oldEndpoint, err := e.sourceMixEndpoint(src, profile.MixA)
	require.NoError(t, err)
	newEndpoint, err := e.sourceMixEndpoint(src, profile.MixB)
	require.NoError(t, err)
	dst, err := e.targetFilterNode(tgt)
	require.NoError(t, err)
	assert.False(t, host.HasLink(oldEndpoint, dst))
	assert.True(t, host.HasLink(newEndpoint, dst))

	err = e.SetTargetMix(ctx, tgt, profile.MixB)
	assert.ErrorIs(t, err, errAlreadyInState)
}

func TestLoadRoutesMaterializesUnmutedRoutesOnly(t *testing.T) {
	ctx := context.Background()
	e, host, _ := newTestEngine(t)
	src, err := e.CreateSource(ctx, "Src", false, profile.OrderDefault)
	require.NoError(t, err)
	tgt, err := e.CreateTarget(ctx, "Tgt", false, profile.OrderDefault)
	require.NoError(t, err)
	e.Profile.SetRoute(src, tgt, true)

	require.NoError(t, e.LoadRoutes(ctx))

	srcEndpoint, err := e.sourceMixEndpoint(src, profile.MixA)
	require.NoError(t, err)
	dst, err := e.targetFilterNode(tgt)
	require.NoError(t, err)
	assert.True(t, host.HasLink(srcEndpoint, dst))
}
