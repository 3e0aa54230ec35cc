package mixcore

import (
	"fmt"
	"strings"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/portmididrv"

	"github.com/shaban/mixcore/ids"
	"github.com/shaban/mixcore/profile"
)

// ccBinding maps one MIDI CC controller number to a source's mix-side
// volume (§12 Supplemented features: MIDI control-surface binding).
type ccBinding struct {
	source ids.ID
	side   profile.MixSide
}

// noteBinding maps one MIDI note number to a source mute-slot toggle.
type noteBinding struct {
	source ids.ID
	side   profile.MixSide
}

// Submitter is the narrow surface MIDISurface needs from a Coordinator:
// enqueue a command and await its result.
type Submitter interface {
	Submit(kind CommandKind, data any) (any, error)
}

// MIDISurface listens to a class-compliant MIDI control surface and
// translates its CC and note messages into coordinator commands: CC nudges
// a bound source's volume, a note toggles the engagement of a bound source's
// mute slot. This is optional, off by default, and never touches the audio
// path itself - it is a second, independent command producer feeding the
// same coordinator a hardware fader bank would otherwise need a full UI to
// drive (§12).
type MIDISurface struct {
	submit Submitter

	ccBindings   map[uint8]ccBinding
	noteBindings map[uint8]noteBinding
	engaged      map[uint8]bool

	driver drivers.Driver
	in     drivers.In
	stop   func()
}

// OpenMIDISurface opens the first input port whose name contains
// nameSubstring (case-insensitive). An empty nameSubstring matches the first
// available input port.
func OpenMIDISurface(submit Submitter, nameSubstring string) (*MIDISurface, error) {
	drv, err := portmididrv.New()
	if err != nil {
		return nil, fmt.Errorf("midisurface: open portmidi driver: %w", err)
	}

	ins, err := drv.Ins()
	if err != nil {
		drv.Close()
		return nil, fmt.Errorf("midisurface: list input ports: %w", err)
	}

	var selected drivers.In
	for _, in := range ins {
		if nameSubstring == "" || strings.Contains(strings.ToLower(in.String()), strings.ToLower(nameSubstring)) {
			selected = in
			break
		}
	}
	if selected == nil {
		drv.Close()
		return nil, fmt.Errorf("midisurface: no input port matching %q", nameSubstring)
	}
	if err := selected.Open(); err != nil {
		drv.Close()
		return nil, fmt.Errorf("midisurface: open input port: %w", err)
	}

	return &MIDISurface{
		submit:       submit,
		ccBindings:   map[uint8]ccBinding{},
		noteBindings: map[uint8]noteBinding{},
		engaged:      map[uint8]bool{},
		driver:       drv,
		in:           selected,
	}, nil
}

// BindCC maps controller to a source's mix-side volume: CC value 0..127
// scales linearly onto volume 0..100.
func (m *MIDISurface) BindCC(controller uint8, source ids.ID, side profile.MixSide) {
	m.ccBindings[controller] = ccBinding{source: source, side: side}
}

// BindNote maps a note number to a toggle of the given mute slot of a
// source: note-on alternates the slot between engaged and disengaged, with
// whatever target set the slot holds.
func (m *MIDISurface) BindNote(note uint8, source ids.ID, side profile.MixSide) {
	m.noteBindings[note] = noteBinding{source: source, side: side}
}

// Start begins listening; messages are translated and submitted to the
// coordinator from the listener's own goroutine via Submit (which is safe
// to call from any goroutine - it only enqueues onto the command channel).
func (m *MIDISurface) Start() error {
	stop, err := midi.ListenTo(m.in, m.handle)
	if err != nil {
		return fmt.Errorf("midisurface: listen: %w", err)
	}
	m.stop = stop
	return nil
}

// Stop ends the listener and closes the port and driver.
func (m *MIDISurface) Stop() {
	if m.stop != nil {
		m.stop()
	}
	m.in.Close()
	m.driver.Close()
}

func (m *MIDISurface) handle(msg midi.Message, _ int32) {
	var channel, controller, value uint8
	if msg.GetControlChange(&channel, &controller, &value) {
		binding, ok := m.ccBindings[controller]
		if !ok {
			return
		}
		volume := uint8((int(value) * 100) / 127)
		_, _ = m.submit.Submit(CmdSetSourceVolume, SetSourceVolumeData{
			ID: binding.source, Mix: binding.side, Volume: volume, FromHostUI: false,
		})
		return
	}

	var note, velocity uint8
	if msg.GetNoteOn(&channel, &note, &velocity) {
		binding, ok := m.noteBindings[note]
		if !ok {
			return
		}
		kind := CmdAddSourceMuteTarget
		if m.engaged[note] {
			kind = CmdDelSourceMuteTarget
		}
		m.engaged[note] = !m.engaged[note]
		_, _ = m.submit.Submit(kind, SourceMuteSlotData{ID: binding.source, Side: binding.side})
	}
}
