package filter

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/shaban/mixcore/ids"
)

func TestGainLawBoundaries(t *testing.T) {
	assert.Equal(t, float32(1.0), Gain(100))
	assert.Equal(t, float32(0.0), Gain(0))
	// S3: volume 80 -> gain (0.8)^3.8 ~0.428
	assert.InDelta(t, 0.428, Gain(80), 0.001)
	// S3: volume 20 -> gain ~0.00216
	assert.InDelta(t, 0.00216, Gain(20), 0.0001)
}

func TestGainMonotonic(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := uint8(rapid.IntRange(0, 100).Draw(t, "a"))
		b := uint8(rapid.IntRange(0, 100).Draw(t, "b"))
		if a > b {
			a, b = b, a
		}
		assert.LessOrEqual(t, Gain(a), Gain(b))
	})
}

func TestVolumeFilterUnityCopiesInput(t *testing.T) {
	f := NewVolumeFilter()
	require.NoError(t, f.Set(propVolume, U8Value(100)))

	in := Buffers{{1, 2, 3}, {4, 5, 6}}
	out := Buffers{{0, 0, 0}, {0, 0, 0}}
	f.Process(in, out)
	assert.Equal(t, []float32{1, 2, 3}, out[0])
	assert.Equal(t, []float32{4, 5, 6}, out[1])
}

func TestVolumeFilterZeroWritesSilence(t *testing.T) {
	f := NewVolumeFilter()
	require.NoError(t, f.Set(propVolume, U8Value(0)))

	in := Buffers{{1, 2, 3}}
	out := Buffers{{9, 9, 9}}
	f.Process(in, out)
	assert.Equal(t, []float32{0, 0, 0}, out[0])
}

func TestVolumeFilterScalarGain(t *testing.T) {
	f := NewVolumeFilter()
	require.NoError(t, f.Set(propVolume, U8Value(50)))

	in := Buffers{{1, 1}}
	out := Buffers{{0, 0}}
	f.Process(in, out)
	expected := Gain(50)
	assert.InDelta(t, float64(expected), float64(out[0][0]), 1e-6)
}

func TestVolumeFilterMismatchedBuffersNoOp(t *testing.T) {
	f := NewVolumeFilter()
	in := Buffers{{1, 2, 3}}
	out := Buffers{{9, 9}} // mismatched length
	f.Process(in, out)
	assert.Equal(t, []float32{9, 9}, out[0])
}

func TestVolumeFilterTypeMismatch(t *testing.T) {
	f := NewVolumeFilter()
	err := f.Set(propVolume, BoolValue(true))
	var mismatch *ErrTypeMismatch
	assert.ErrorAs(t, err, &mismatch)
}

func TestPassThroughCopiesAndSkipsMismatched(t *testing.T) {
	f := NewPassThroughFilter()
	in := Buffers{{1, 2}, {3, 4, 5}}
	out := Buffers{{0, 0}, {0, 0}} // channel 1 length mismatch
	f.Process(in, out)
	assert.Equal(t, []float32{1, 2}, out[0])
	assert.Equal(t, []float32{0, 0}, out[1]) // untouched
}

func TestMeterEmitsWithinChunk(t *testing.T) {
	out := make(chan MeterSample, 4)
	src := ids.MustNew()
	m := NewMeterFilter(src, 1000, out) // chunk = 100 samples
	require.NoError(t, m.Set(propEnabled, BoolValue(true)))

	buf := make([]float32, 100)
	for i := range buf {
		buf[i] = 0.5
	}
	m.Process(Buffers{buf}, nil)

	select {
	case sample := <-out:
		assert.Equal(t, src, sample.SourceID)
		assert.Greater(t, sample.Value, uint8(0))
	default:
		t.Fatal("expected a meter sample to have been emitted")
	}
}

func TestMeterDisabledIsNoOp(t *testing.T) {
	out := make(chan MeterSample, 4)
	m := NewMeterFilter(ids.MustNew(), 1000, out)
	m.Process(Buffers{{1, 1, 1}}, nil)
	select {
	case <-out:
		t.Fatal("disabled meter must not emit")
	default:
	}
}

func TestMeterDropsOnFullQueue(t *testing.T) {
	out := make(chan MeterSample) // unbuffered, nobody reading
	m := NewMeterFilter(ids.MustNew(), 1000, out)
	require.NoError(t, m.Set(propEnabled, BoolValue(true)))
	buf := make([]float32, 100)
	// Should not block even though nothing drains `out`.
	done := make(chan struct{})
	go func() {
		m.Process(Buffers{buf}, nil)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("meter Process blocked on a full queue")
	}
}

func TestPerceptualMeterByteClampsToRange(t *testing.T) {
	assert.Equal(t, uint8(0), perceptualMeterByte(0))
	assert.Equal(t, uint8(100), perceptualMeterByte(1))
	assert.Equal(t, uint8(100), perceptualMeterByte(float32(math.Inf(1))))
}

type fakeInstance struct {
	processed bool
	lastCtrl  []float32
}

func (f *fakeInstance) Process(inputs, outputs Buffers, controls []float32) {
	f.processed = true
	f.lastCtrl = append([]float32(nil), controls...)
	for ch := range inputs {
		copy(outputs[ch], inputs[ch])
	}
}
func (f *fakeInstance) Deactivate() {}

type fakeResolver struct {
	desc Descriptor
	inst *fakeInstance
	err  error
}

func (r *fakeResolver) Resolve(uri string) (Descriptor, Instance, error) {
	return r.desc, r.inst, r.err
}

func TestPluginHostedFilterRoundTrip(t *testing.T) {
	inst := &fakeInstance{}
	resolver := &fakeResolver{
		desc: Descriptor{
			URI:          "test:gain",
			ControlPorts: []ControlPort{{Symbol: "gain", Kind: PortFloat, Min: 0, Max: 2, Default: 1}},
			AudioIn:      1, AudioOut: 1, MaxBlockSize: 256,
		},
		inst: inst,
	}

	f, err := New(resolver, "test:gain")
	require.NoError(t, err)

	require.NoError(t, f.Set("gain", F32Value(1.5)))
	v, err := f.Get("gain")
	require.NoError(t, err)
	assert.Equal(t, float32(1.5), v.F)

	in := Buffers{make([]float32, 64)}
	out := Buffers{make([]float32, 64)}
	f.Process(in, out)
	assert.True(t, inst.processed)
	assert.Equal(t, []float32{1.5}, inst.lastCtrl)

	f.Close()
	f.Close() // idempotent
}

func TestPluginHostedFilterRejectsOversizedBlock(t *testing.T) {
	inst := &fakeInstance{}
	resolver := &fakeResolver{
		desc: Descriptor{URI: "test:x", AudioIn: 1, AudioOut: 1, MaxBlockSize: 8},
		inst: inst,
	}
	f, err := New(resolver, "test:x")
	require.NoError(t, err)

	in := Buffers{make([]float32, 16)}
	out := Buffers{make([]float32, 16)}
	f.Process(in, out)
	assert.False(t, inst.processed)
}

func TestResolveFailureIsFatal(t *testing.T) {
	resolver := &fakeResolver{err: assertErr{}}
	_, err := New(resolver, "test:missing")
	assert.Error(t, err)
}

type assertErr struct{}

func (assertErr) Error() string { return "resolution failed" }
