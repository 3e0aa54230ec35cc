package filter

import (
	"math"
	"sync/atomic"
)

// PerceptualExponent is the P in the volume law from §4.1:
// g = (v/100)^P, clamped to 1.0 at v=100 and 0.0 at v=0.
const PerceptualExponent = 3.8

// Gain converts a 0..100 volume byte into the linear gain applied to
// samples, per §4.1's perceptual law.
func Gain(volume uint8) float32 {
	if volume >= 100 {
		return 1.0
	}
	if volume == 0 {
		return 0.0
	}
	ratio := float64(volume) / 100.0
	return float32(math.Pow(ratio, PerceptualExponent))
}

// zeroChunk is the preallocated static buffer used to write silence without
// allocating on the hot path (§5 "zero-filled output uses a preallocated
// static buffer").
var zeroChunk = make([]float32, 4096)

// VolumeFilter is the per-source A/B mix gain stage (§4.4 Create source) and
// the physical-target volume filter (§4.4 Create target). Gain is stored as
// raw IEEE-754 bits in an atomic.Uint32 so the audio thread always observes
// a whole value from Set, never a torn one (§5 Shared-resource policy).
type VolumeFilter struct {
	volume uint8 // last-set 0..100 value, for Get(); written only from Set
	gainBits atomic.Uint32
}

// NewVolumeFilter returns a filter initialized to full volume.
func NewVolumeFilter() *VolumeFilter {
	f := &VolumeFilter{volume: 100}
	f.gainBits.Store(math.Float32bits(1.0))
	return f
}

// PropertyVolume is the VolumeFilter property id accepted by Get/Set.
const PropertyVolume = "volume"

const propVolume = PropertyVolume

func (f *VolumeFilter) Properties() []PropertyDescriptor {
	return []PropertyDescriptor{{
		ID: propVolume, Name: "Volume", Symbol: "vol",
		Value: U8Value(f.volume), Min: U8Value(0), Max: U8Value(100),
	}}
}

func (f *VolumeFilter) Get(propertyID string) (Value, error) {
	if propertyID != propVolume {
		return Value{}, &ErrUnknownProperty{PropertyID: propertyID}
	}
	return U8Value(f.volume), nil
}

func (f *VolumeFilter) Set(propertyID string, value Value) error {
	if propertyID != propVolume {
		return &ErrUnknownProperty{PropertyID: propertyID}
	}
	if value.Kind != KindU8 {
		return &ErrTypeMismatch{PropertyID: propertyID, Want: KindU8, Got: value.Kind}
	}
	v := value.U8
	if v > 100 {
		v = 100
	}
	f.volume = v
	f.gainBits.Store(math.Float32bits(Gain(v)))
	return nil
}

// Process implements the three branches of §4.1: unity-gain copy,
// zero-write, and scalar-multiply. Buffer-length mismatch or empty buffers
// are a silent no-op.
func (f *VolumeFilter) Process(inputs, outputs Buffers) {
	n, ok := sameLength(inputs, outputs)
	if !ok {
		return
	}
	g := math.Float32frombits(f.gainBits.Load())

	switch {
	case g == 1.0:
		for ch := range inputs {
			copy(outputs[ch], inputs[ch])
		}
	case g == 0.0:
		for ch := range outputs {
			writeZero(outputs[ch])
		}
	default:
		for ch := range inputs {
			in, out := inputs[ch], outputs[ch]
			for i := 0; i < n; i++ {
				out[i] = in[i] * g
			}
		}
	}
}

func writeZero(out []float32) {
	for len(out) > 0 {
		n := copy(out, zeroChunk)
		out = out[n:]
	}
}
