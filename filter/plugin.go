package filter

import (
	"fmt"
	"math"
)

// PortKind is the type of a plugin control port (§4.1 Plugin-hosted filter).
type PortKind int

const (
	PortBool PortKind = iota
	PortInt
	PortFloat
	PortEnum
)

// ControlPort describes one typed control-input port a plugin exposes.
type ControlPort struct {
	Symbol      string
	Name        string
	Kind        PortKind
	Min, Max    float32
	Default     float32
	ScalePoints []string // populated only for PortEnum
}

// Descriptor is everything the filter needs at construction time: the
// control port layout and the audio channel/block-size contract.
type Descriptor struct {
	URI          string
	ControlPorts []ControlPort
	AudioIn      int
	AudioOut     int
	MaxBlockSize int
}

// Instance is the plugin-discovery-framework side of the contract; only
// this abstract shape matters here (§1 "only the abstract filter contract
// matters"; discovery/hosting itself is out of scope).
type Instance interface {
	// Process runs one block. controls is the filter's pre-allocated,
	// stable-address control-value vector - the instance must treat it as
	// read-only input, matching "connect control-input ports to host-owned
	// storage once" at construction.
	Process(inputs, outputs Buffers, controls []float32)
	// Deactivate releases any resources the instance holds. Called exactly
	// once, from Close.
	Deactivate()
}

// Resolver resolves a plugin by URI and returns both its descriptor and a
// ready-to-use instance. A resolver failure is a fatal construction error,
// surfaced to the creator per §4.1.
type Resolver interface {
	Resolve(uri string) (Descriptor, Instance, error)
}

// PluginHostedFilter adapts an external DSP plugin instance to the Filter
// capability set (§4.1 Plugin-hosted filter). Its control-value vector is
// allocated once at construction and never resized, so element addresses
// stay valid for the plugin's lifetime, matching the "pre-allocate a stable
// control-value vector" requirement.
type PluginHostedFilter struct {
	desc     Descriptor
	instance Instance
	values   []float32
	symbolToIndex map[string]int
}

// New resolves uri via r and returns a ready-to-process filter, or a fatal
// error if resolution/instantiation fails.
func New(r Resolver, uri string) (*PluginHostedFilter, error) {
	desc, instance, err := r.Resolve(uri)
	if err != nil {
		return nil, fmt.Errorf("filter: resolve plugin %q: %w", uri, err)
	}

	values := make([]float32, len(desc.ControlPorts))
	index := make(map[string]int, len(desc.ControlPorts))
	for i, p := range desc.ControlPorts {
		values[i] = p.Default
		index[p.Symbol] = i
	}

	return &PluginHostedFilter{desc: desc, instance: instance, values: values, symbolToIndex: index}, nil
}

func (f *PluginHostedFilter) Properties() []PropertyDescriptor {
	out := make([]PropertyDescriptor, len(f.desc.ControlPorts))
	for i, p := range f.desc.ControlPorts {
		out[i] = PropertyDescriptor{
			ID: p.Symbol, Name: p.Name, Symbol: p.Symbol,
			Value: F32Value(f.values[i]), Min: F32Value(p.Min), Max: F32Value(p.Max),
			Enum: p.ScalePoints,
		}
	}
	return out
}

func (f *PluginHostedFilter) Get(propertyID string) (Value, error) {
	idx, ok := f.symbolToIndex[propertyID]
	if !ok {
		return Value{}, &ErrUnknownProperty{PropertyID: propertyID}
	}
	return F32Value(f.values[idx]), nil
}

// Set rounds to integer if the port is integer-typed, clamps to the port's
// min/max, and writes to the pre-allocated storage - §4.1's three Set rules.
func (f *PluginHostedFilter) Set(propertyID string, value Value) error {
	idx, ok := f.symbolToIndex[propertyID]
	if !ok {
		return &ErrUnknownProperty{PropertyID: propertyID}
	}
	if value.Kind != KindF32 {
		return &ErrTypeMismatch{PropertyID: propertyID, Want: KindF32, Got: value.Kind}
	}
	port := f.desc.ControlPorts[idx]
	v := value.F
	if port.Kind == PortInt || port.Kind == PortEnum {
		v = float32(math.Round(float64(v)))
	}
	if v < port.Min {
		v = port.Min
	}
	if v > port.Max {
		v = port.Max
	}
	f.values[idx] = v
	return nil
}

// Process validates channel counts and block size before invoking the
// plugin; an invalid call (zero channels, zero block size, or a block
// larger than MaxBlockSize) is a silent no-op per §4.1.
func (f *PluginHostedFilter) Process(inputs, outputs Buffers) {
	if len(inputs) != f.desc.AudioIn || len(outputs) != f.desc.AudioOut {
		return
	}
	n, ok := blockLength(inputs, outputs)
	if !ok {
		return
	}
	if f.desc.MaxBlockSize > 0 && n > f.desc.MaxBlockSize {
		return
	}
	f.instance.Process(inputs, outputs, f.values)
}

// Close disconnects control ports and deactivates the instance (§4.1
// "On destruction"). Safe to call once; a second call is a no-op.
func (f *PluginHostedFilter) Close() {
	if f.instance == nil {
		return
	}
	f.instance.Deactivate()
	f.instance = nil
}
