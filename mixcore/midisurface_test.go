package mixcore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/gomidi/midi/v2"

	"github.com/shaban/mixcore/ids"
	"github.com/shaban/mixcore/profile"
)

type recordingSubmitter struct {
	kinds []CommandKind
	data  []any
}

func (r *recordingSubmitter) Submit(kind CommandKind, data any) (any, error) {
	r.kinds = append(r.kinds, kind)
	r.data = append(r.data, data)
	return nil, nil
}

func newTestSurface(t *testing.T) (*MIDISurface, *recordingSubmitter) {
	t.Helper()
	sub := &recordingSubmitter{}
	return &MIDISurface{
		submit:       sub,
		ccBindings:   map[uint8]ccBinding{},
		noteBindings: map[uint8]noteBinding{},
		engaged:      map[uint8]bool{},
	}, sub
}

func TestHandleCCScalesValueAndSubmitsVolume(t *testing.T) {
	m, sub := newTestSurface(t)
	src := ids.MustNew()
	m.BindCC(7, src, profile.MixA)

	m.handle(midi.ControlChange(0, 7, 127), 0)

	require.Len(t, sub.kinds, 1)
	assert.Equal(t, CmdSetSourceVolume, sub.kinds[0])
	v, ok := sub.data[0].(SetSourceVolumeData)
	require.True(t, ok)
	assert.Equal(t, src, v.ID)
	assert.Equal(t, profile.MixA, v.Mix)
	assert.Equal(t, uint8(100), v.Volume)
	assert.False(t, v.FromHostUI)
}

func TestHandleCCUnboundControllerIsIgnored(t *testing.T) {
	m, sub := newTestSurface(t)
	m.handle(midi.ControlChange(0, 99, 64), 0)
	assert.Empty(t, sub.kinds)
}

func TestHandleNoteTogglesMuteAddThenDel(t *testing.T) {
	m, sub := newTestSurface(t)
	src := ids.MustNew()
	m.BindNote(60, src, profile.MixB)

	m.handle(midi.NoteOn(0, 60, 100), 0)
	require.Len(t, sub.kinds, 1)
	assert.Equal(t, CmdAddSourceMuteTarget, sub.kinds[0])
	slot, ok := sub.data[0].(SourceMuteSlotData)
	require.True(t, ok)
	assert.Equal(t, src, slot.ID)
	assert.Equal(t, profile.MixB, slot.Side)

	m.handle(midi.NoteOn(0, 60, 100), 0)
	require.Len(t, sub.kinds, 2)
	assert.Equal(t, CmdDelSourceMuteTarget, sub.kinds[1])

	m.handle(midi.NoteOn(0, 60, 100), 0)
	require.Len(t, sub.kinds, 3)
	assert.Equal(t, CmdAddSourceMuteTarget, sub.kinds[2])
}

func TestHandleNoteUnboundIsIgnored(t *testing.T) {
	m, sub := newTestSurface(t)
	m.handle(midi.NoteOn(0, 10, 100), 0)
	assert.Empty(t, sub.kinds)
}
