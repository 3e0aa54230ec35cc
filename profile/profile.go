// Package profile is the typed in-memory representation of §3: sources,
// targets, routes, mute state, volumes, and device order. It is the
// contract the core expects on load, and what the coordinator serializes
// back out; persistence itself (file IO) is someone else's job.
package profile

import (
	"encoding/json"

	"github.com/shaban/mixcore/ids"
)

// NodeKind distinguishes a source from a target; physical versus virtual is
// the separate Physical field.
type NodeKind int

const (
	KindSource NodeKind = iota
	KindTarget
)

// MixSide selects one of the two parallel gain stages (§4.5, GLOSSARY).
type MixSide string

const (
	MixA MixSide = "A"
	MixB MixSide = "B"
)

// Other returns the opposite mix side.
func (m MixSide) Other() MixSide {
	if m == MixA {
		return MixB
	}
	return MixA
}

// OrderGroup is one of the three device-order buckets (§3 Order).
type OrderGroup string

const (
	OrderDefault OrderGroup = "default"
	OrderPinned  OrderGroup = "pinned"
	OrderHidden  OrderGroup = "hidden"
)

// Colour is an RGB device-description colour (§3 Device description).
type Colour struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

// Description is the common `{id, name, colour}` device description shared
// by sources and targets.
type Description struct {
	ID     ids.ID `json:"id"`
	Name   string `json:"name"`
	Colour Colour `json:"colour"`
}

// PhysicalDescriptor matches an appearing host device to a profile slot by
// name and/or description (§3, §4.8). At least one of Name/Description must
// be set; the binder treats an empty field as "not a match criterion".
type PhysicalDescriptor struct {
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
}

// Volumes is the per-source A/B volume pair with optional linked ratio
// (§3 Volumes, §4.7).
type Volumes struct {
	A             uint8    `json:"a"`
	B             uint8    `json:"b"`
	VolumesLinked *float64 `json:"volumesLinked,omitempty"`
}

// Get returns the volume for the given mix side.
func (v Volumes) Get(side MixSide) uint8 {
	if side == MixA {
		return v.A
	}
	return v.B
}

// Set returns a copy of v with the given mix side's volume updated.
func (v Volumes) Set(side MixSide, value uint8) Volumes {
	if side == MixA {
		v.A = value
	} else {
		v.B = value
	}
	return v
}

// DefaultVolumes is the documented default: both sides at full, no link.
func DefaultVolumes() Volumes {
	return Volumes{A: 100, B: 100}
}

// MuteSlot is one of the two independent per-source mute slots (§3 Mute
// target key, §4.6). Targets is the subset of target ids the slot mutes;
// an empty set (nil or zero-length) is interpreted as "mute to all".
// Engaged records whether this slot is currently an active member of the
// source's active-state set.
type MuteSlot struct {
	Targets []ids.ID `json:"targets"`
	Engaged bool     `json:"engaged"`
}

// IsAll reports whether this slot, when engaged, mutes every target.
func (s MuteSlot) IsAll() bool {
	return len(s.Targets) == 0
}

// Has reports whether tgt is a member of this slot's target set. Meaningless
// (and always false) for an IsAll slot; callers check IsAll first.
func (s MuteSlot) Has(tgt ids.ID) bool {
	for _, t := range s.Targets {
		if t == tgt {
			return true
		}
	}
	return false
}

// MuteState is the full per-source mute model: two independent slots.
type MuteState struct {
	A MuteSlot `json:"a"`
	B MuteSlot `json:"b"`
}

// Slot returns a pointer to the requested slot for in-place mutation.
func (m *MuteState) Slot(side MixSide) *MuteSlot {
	if side == MixA {
		return &m.A
	}
	return &m.B
}

// TargetMuteState is the simple two-state mute model for targets (§3, §4.6).
type TargetMuteState string

const (
	Unmuted TargetMuteState = "unmuted"
	Muted   TargetMuteState = "muted"
)

// Source is a logical audio input (§3 Source node).
type Source struct {
	Description Description `json:"description"`
	Physical    bool        `json:"physical"`
	MuteStates  MuteState   `json:"muteStates"`
	Volumes     Volumes     `json:"volumes"`

	// AttachedDevices are the name/description descriptors the physical
	// device binder matches appearing host devices against; absent/empty for
	// virtual sources.
	AttachedDevices []PhysicalDescriptor `json:"attachedDevices,omitempty"`

	Group    OrderGroup `json:"group"`
	Position int        `json:"position"`
}

// Target is a logical audio output (§3 Target node).
type Target struct {
	Description Description     `json:"description"`
	Physical    bool            `json:"physical"`
	MuteState   TargetMuteState `json:"muteState"`
	Volume      uint8           `json:"volume"`
	Mix         MixSide         `json:"mix"`

	AttachedDevices []PhysicalDescriptor `json:"attachedDevices,omitempty"`

	Group    OrderGroup `json:"group"`
	Position int        `json:"position"`
}

// ApplicationRoute maps an exact string or glob pattern to a target source
// id (§3 Application mapping).
type ApplicationRoute struct {
	Pattern  string `json:"pattern"`
	IsGlob   bool   `json:"isGlob"`
	TargetID ids.ID `json:"targetId"`
}

// Profile is the complete logical state the core owns: §3's entities plus
// the routing matrix. It is the unit that gets serialized for persistence
// and diffed for status broadcast (§4.9, §6).
type Profile struct {
	Sources map[ids.ID]*Source `json:"sources"`
	Targets map[ids.ID]*Target `json:"targets"`

	// Routes maps a source id to the set of target ids it is routed to,
	// independent of mute state (§3 Route, §4.5).
	Routes map[ids.ID]map[ids.ID]struct{} `json:"routes"`

	ApplicationRoutes []ApplicationRoute `json:"applicationRoutes,omitempty"`
	// TransientApplicationRoutes are host app-node-id scoped overrides that
	// do not survive a profile reload (§4.8); kept out of the serialized
	// form deliberately.
	TransientApplicationRoutes map[string]ids.ID `json:"-"`
	// ApplicationIgnoreSet holds host app-node ids the user has manually
	// redirected away from their matched application route (§4.8).
	ApplicationIgnoreSet map[string]struct{} `json:"-"`

	MeteringEnabled bool `json:"meteringEnabled"`
}

// New returns an empty, well-formed profile ready for use.
func New() *Profile {
	return &Profile{
		Sources:                    map[ids.ID]*Source{},
		Targets:                    map[ids.ID]*Target{},
		Routes:                     map[ids.ID]map[ids.ID]struct{}{},
		TransientApplicationRoutes: map[string]ids.ID{},
		ApplicationIgnoreSet:       map[string]struct{}{},
	}
}

// RouteSet returns the (possibly nil) target set for src, never allocating.
func (p *Profile) RouteSet(src ids.ID) map[ids.ID]struct{} {
	return p.Routes[src]
}

// HasRoute reports whether src is routed to tgt.
func (p *Profile) HasRoute(src, tgt ids.ID) bool {
	set, ok := p.Routes[src]
	if !ok {
		return false
	}
	_, ok = set[tgt]
	return ok
}

// SetRoute adds or removes tgt from src's route set, allocating the set on
// first use. Returns true if the membership actually changed.
func (p *Profile) SetRoute(src, tgt ids.ID, enabled bool) bool {
	already := p.HasRoute(src, tgt)
	if already == enabled {
		return false
	}
	if enabled {
		if p.Routes[src] == nil {
			p.Routes[src] = map[ids.ID]struct{}{}
		}
		p.Routes[src][tgt] = struct{}{}
	} else {
		delete(p.Routes[src], tgt)
	}
	return true
}

// MarshalJSON and UnmarshalJSON round-trip the Routes map (whose key is a
// struct-valued ids.ID, and whose value is a set) through a JSON-friendly
// shape, since encoding/json cannot marshal a map[ids.ID]struct{} as an
// array-valued set directly.
type jsonProfile struct {
	Sources           map[ids.ID]*Source  `json:"sources"`
	Targets           map[ids.ID]*Target  `json:"targets"`
	Routes            map[string][]ids.ID `json:"routes"`
	ApplicationRoutes []ApplicationRoute  `json:"applicationRoutes,omitempty"`
	MeteringEnabled   bool                `json:"meteringEnabled"`
}

func (p *Profile) MarshalJSON() ([]byte, error) {
	jp := jsonProfile{
		Sources:           p.Sources,
		Targets:           p.Targets,
		Routes:            map[string][]ids.ID{},
		ApplicationRoutes: p.ApplicationRoutes,
		MeteringEnabled:   p.MeteringEnabled,
	}
	for src, set := range p.Routes {
		list := make([]ids.ID, 0, len(set))
		for tgt := range set {
			list = append(list, tgt)
		}
		jp.Routes[src.String()] = list
	}
	return json.Marshal(jp)
}

func (p *Profile) UnmarshalJSON(data []byte) error {
	var jp jsonProfile
	if err := json.Unmarshal(data, &jp); err != nil {
		return err
	}
	*p = *New()
	p.Sources = jp.Sources
	if p.Sources == nil {
		p.Sources = map[ids.ID]*Source{}
	}
	p.Targets = jp.Targets
	if p.Targets == nil {
		p.Targets = map[ids.ID]*Target{}
	}
	p.ApplicationRoutes = jp.ApplicationRoutes
	p.MeteringEnabled = jp.MeteringEnabled
	for srcStr, list := range jp.Routes {
		src, err := ids.Parse(srcStr)
		if err != nil {
			return err
		}
		set := make(map[ids.ID]struct{}, len(list))
		for _, tgt := range list {
			set[tgt] = struct{}{}
		}
		p.Routes[src] = set
	}
	return nil
}

// Clone returns a deep copy of the profile, used by the coordinator to take
// a consistent snapshot for status diffing without holding a borrow across
// an await (§5 Suspension points).
func (p *Profile) Clone() *Profile {
	out := New()
	out.MeteringEnabled = p.MeteringEnabled
	for id, s := range p.Sources {
		cp := *s
		cp.AttachedDevices = append([]PhysicalDescriptor(nil), s.AttachedDevices...)
		cp.MuteStates.A.Targets = append([]ids.ID(nil), s.MuteStates.A.Targets...)
		cp.MuteStates.B.Targets = append([]ids.ID(nil), s.MuteStates.B.Targets...)
		out.Sources[id] = &cp
	}
	for id, t := range p.Targets {
		cp := *t
		cp.AttachedDevices = append([]PhysicalDescriptor(nil), t.AttachedDevices...)
		out.Targets[id] = &cp
	}
	for src, set := range p.Routes {
		clone := make(map[ids.ID]struct{}, len(set))
		for tgt := range set {
			clone[tgt] = struct{}{}
		}
		out.Routes[src] = clone
	}
	out.ApplicationRoutes = append([]ApplicationRoute(nil), p.ApplicationRoutes...)
	for k, v := range p.TransientApplicationRoutes {
		out.TransientApplicationRoutes[k] = v
	}
	for k := range p.ApplicationIgnoreSet {
		out.ApplicationIgnoreSet[k] = struct{}{}
	}
	return out
}
