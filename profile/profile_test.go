package profile

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaban/mixcore/ids"
)

func TestSetRouteIdempotent(t *testing.T) {
	p := New()
	src, tgt := ids.MustNew(), ids.MustNew()

	assert.True(t, p.SetRoute(src, tgt, true))
	assert.False(t, p.SetRoute(src, tgt, true), "second enable should be a no-op")
	assert.True(t, p.HasRoute(src, tgt))

	assert.True(t, p.SetRoute(src, tgt, false))
	assert.False(t, p.HasRoute(src, tgt))
}

func TestProfileJSONRoundTrip(t *testing.T) {
	p := New()
	src, tgt := ids.MustNew(), ids.MustNew()
	p.Sources[src] = &Source{Description: Description{ID: src, Name: "Mic"}, Volumes: DefaultVolumes()}
	p.Targets[tgt] = &Target{Description: Description{ID: tgt, Name: "Headphones"}, Volume: 80}
	p.SetRoute(src, tgt, true)

	data, err := json.Marshal(p)
	require.NoError(t, err)

	var decoded Profile
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.True(t, decoded.HasRoute(src, tgt))
	assert.Equal(t, "Mic", decoded.Sources[src].Description.Name)
	assert.Equal(t, uint8(80), decoded.Targets[tgt].Volume)

	// Fixed point: serialize -> deserialize -> serialize is stable (§8).
	data2, err := json.Marshal(&decoded)
	require.NoError(t, err)
	assert.JSONEq(t, string(data), string(data2))
}

func TestEffectiveMuteTargetsAllWinsOverSome(t *testing.T) {
	tgt1, tgt2 := ids.MustNew(), ids.MustNew()
	m := MuteState{
		A: MuteSlot{Engaged: true, Targets: []ids.ID{tgt1}},
		B: MuteSlot{Engaged: true, Targets: nil}, // empty = all
	}
	eff := EffectiveMuteTargets(m)
	assert.True(t, eff.All)
	assert.True(t, eff.Contains(tgt1))
	assert.True(t, eff.Contains(tgt2))
}

func TestEffectiveMuteTargetsUnion(t *testing.T) {
	tgt1, tgt2, tgt3 := ids.MustNew(), ids.MustNew(), ids.MustNew()
	m := MuteState{
		A: MuteSlot{Engaged: true, Targets: []ids.ID{tgt1}},
		B: MuteSlot{Engaged: true, Targets: []ids.ID{tgt2}},
	}
	eff := EffectiveMuteTargets(m)
	assert.False(t, eff.All)
	assert.True(t, eff.Contains(tgt1))
	assert.True(t, eff.Contains(tgt2))
	assert.False(t, eff.Contains(tgt3))
}

func TestEffectiveMuteTargetsNoneEngaged(t *testing.T) {
	eff := EffectiveMuteTargets(MuteState{})
	assert.False(t, eff.All)
	assert.False(t, eff.Contains(ids.MustNew()))
}

func TestCloneIsIndependent(t *testing.T) {
	p := New()
	src := ids.MustNew()
	p.Sources[src] = &Source{Description: Description{ID: src, Name: "Mic"}}

	clone := p.Clone()
	clone.Sources[src].Description.Name = "Renamed"

	assert.Equal(t, "Mic", p.Sources[src].Description.Name)
	assert.Equal(t, "Renamed", clone.Sources[src].Description.Name)
}
