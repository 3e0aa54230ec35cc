package filter

import (
	"math"

	"github.com/shaban/mixcore/ids"
)

// MeterPeriodMS is the window §4.1 specifies for the rolling peak ("100ms").
const MeterPeriodMS = 100

// MeterStride is the decimation step used when scanning for peak. A stride
// of 1 scans every sample, so the reported peak is the true peak of the
// window and lies within [true_peak/sqrt(2), true_peak] on steady signals,
// per §4.1.
const MeterStride = 1

// MeterSample is what the meter filter emits toward the control plane
// (§4.1 step 5): one summarized peak per source, per period.
type MeterSample struct {
	SourceID ids.ID
	Value    uint8
}

// MeterFilter implements §4.1's meter: a rolling peak taken across all input
// channels over a 100ms window, reported as a perceptual 0..100 byte. The dBFS law is
// deliberately not implemented - §9 Open Question 1 calls for picking one
// and documenting it; this module picks the perceptual law, matching the
// scenarios in §8.
type MeterFilter struct {
	sourceID  ids.ID
	chunkSize int
	enabled   bool

	peak    float32
	counter int

	// out is the non-blocking emission queue toward the control plane. A
	// full queue drops the sample (§4.1 step 5, §5 "best-effort").
	out chan<- MeterSample
}

// NewMeterFilter returns a meter filter for sourceID, sized for the given
// sample rate, emitting onto out (which the caller should make reasonably
// buffered; sends never block - see Process).
func NewMeterFilter(sourceID ids.ID, sampleRateHz int, out chan<- MeterSample) *MeterFilter {
	chunk := sampleRateHz * MeterPeriodMS / 1000
	if chunk < 1 {
		chunk = 1
	}
	return &MeterFilter{sourceID: sourceID, chunkSize: chunk, out: out}
}

// PropertyEnabled is the MeterFilter property id accepted by Get/Set.
const PropertyEnabled = "enabled"

const propEnabled = PropertyEnabled

func (f *MeterFilter) Properties() []PropertyDescriptor {
	return []PropertyDescriptor{{ID: propEnabled, Name: "Enabled", Symbol: "en", Value: BoolValue(f.enabled)}}
}

func (f *MeterFilter) Get(propertyID string) (Value, error) {
	if propertyID != propEnabled {
		return Value{}, &ErrUnknownProperty{PropertyID: propertyID}
	}
	return BoolValue(f.enabled), nil
}

func (f *MeterFilter) Set(propertyID string, value Value) error {
	if propertyID != propEnabled {
		return &ErrUnknownProperty{PropertyID: propertyID}
	}
	if value.Kind != KindBool {
		return &ErrTypeMismatch{PropertyID: propertyID, Want: KindBool, Got: value.Kind}
	}
	f.enabled = value.B
	if !f.enabled {
		f.peak = 0
		f.counter = 0
	}
	return nil
}

// Process implements §4.1's five numbered steps.
func (f *MeterFilter) Process(inputs, outputs Buffers) {
	if !f.enabled || len(inputs) == 0 {
		return
	}

	n := len(inputs[0])
	for _, ch := range inputs {
		for i := 0; i < len(ch); i += MeterStride {
			v := ch[i]
			if v < 0 {
				v = -v
			}
			if v > f.peak {
				f.peak = v
			}
		}
	}
	f.counter += n

	for f.counter >= f.chunkSize {
		f.emit()
		f.counter -= f.chunkSize
	}
}

func (f *MeterFilter) emit() {
	meter := perceptualMeterByte(f.peak)
	select {
	case f.out <- MeterSample{SourceID: f.sourceID, Value: meter}:
	default:
		// queue full: drop, per §4.1 step 5.
	}
	f.peak = 0
}

// perceptualMeterByte applies the perceptual law from §4.1 step 4:
// meter = clamp(round(100 * peak^(1/P)), 0, 100).
func perceptualMeterByte(peak float32) uint8 {
	if peak <= 0 {
		return 0
	}
	if peak > 1 {
		peak = 1
	}
	v := 100.0 * math.Pow(float64(peak), 1.0/PerceptualExponent)
	rounded := math.Round(v)
	if rounded < 0 {
		rounded = 0
	}
	if rounded > 100 {
		rounded = 100
	}
	return uint8(rounded)
}
