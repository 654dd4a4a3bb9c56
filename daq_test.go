package pitch_compliance

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.viam.com/rdk/components/sensor"
	"go.viam.com/rdk/resource"
)

func TestParseVolts(t *testing.T) {
	v, err := parseVolts("-3.1, -3.05,-2.9")
	require.NoError(t, err)
	assert.Equal(t, []float64{-3.1, -3.05, -2.9}, v)

	_, err = parseVolts("ERR channel busy")
	assert.ErrorContains(t, err, "channel busy")

	_, err = parseVolts("")
	assert.ErrorIs(t, err, errNoSamples)

	_, err = parseVolts("1.0,abc")
	assert.Error(t, err)
}

// chunkReader returns one chunk per Read and times out once drained.
type chunkReader struct {
	chunks []string
}

func (r *chunkReader) Read(b []byte) (int, error) {
	if len(r.chunks) == 0 {
		time.Sleep(time.Millisecond)
		return 0, timeoutErr{}
	}
	n := copy(b, r.chunks[0])
	r.chunks = r.chunks[1:]
	return n, nil
}

func TestReadLine(t *testing.T) {
	line, err := readLine(t.Context(), &chunkReader{chunks: []string{"-3.1,", "-3.0\r\nextra"}}, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "-3.1,-3.0", line)

	_, err = readLine(t.Context(), &chunkReader{chunks: []string{"-3.1"}}, 10*time.Millisecond)
	assert.ErrorContains(t, err, "timed out")

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	_, err = readLine(ctx, &chunkReader{}, time.Second)
	assert.ErrorIs(t, err, context.Canceled)

	_, err = readLine(t.Context(), strings.NewReader("no newline"), time.Second)
	assert.ErrorIs(t, err, io.EOF)
}

// adcBridge answers READ requests with a fixed reply line.
type adcBridge struct {
	mu      sync.Mutex
	reply   string
	out     bytes.Buffer
	pending bool
	closed  bool
}

func (b *adcBridge) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.out.Write(p)
	b.pending = true
	return len(p), nil
}

func (b *adcBridge) Read(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.pending {
		return 0, nil
	}
	b.pending = false
	return copy(p, b.reply+"\n"), nil
}

func (b *adcBridge) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

func TestSerialADC(t *testing.T) {
	bridge := &adcBridge{reply: "-3.2,-3.1"}
	adc := NewSerialADC(SerialADCConfig{Port: "/dev/ttyACM0"})
	adc.open = func(name string, baud int) (io.ReadWriteCloser, error) {
		assert.Equal(t, "/dev/ttyACM0", name)
		assert.Equal(t, DefaultBaudRate, baud)
		return bridge, nil
	}

	samples, err := Sample(t.Context(), adc, "Dev1/ai1", 2)
	require.NoError(t, err)
	assert.Equal(t, []float64{-3.2, -3.1}, samples)
	assert.Equal(t, "READ Dev1/ai1 2\n", bridge.out.String())
	assert.True(t, bridge.closed)

	bridge.reply = "ERR overrange"
	bridge.closed = false
	_, err = Sample(t.Context(), adc, "Dev1/ai1", 1)
	var acqErr *AcquisitionError
	require.ErrorAs(t, err, &acqErr)
	assert.ErrorContains(t, err, "overrange")
	assert.True(t, bridge.closed)

	adc.open = func(string, int) (io.ReadWriteCloser, error) { return nil, errMockIO }
	_, err = Sample(t.Context(), adc, "Dev1/ai1", 1)
	assert.ErrorIs(t, err, errMockIO)
}

type fakeSensor struct {
	sensor.Sensor
	mu       sync.Mutex
	readings map[string]interface{}
	err      error
	calls    int
}

func (s *fakeSensor) Name() resource.Name { return sensor.Named("adc") }

func (s *fakeSensor) Readings(ctx context.Context, extra map[string]interface{}) (map[string]interface{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.readings, s.err
}

func TestSensorDAQ(t *testing.T) {
	s := &fakeSensor{readings: map[string]interface{}{"a0": -2.5, "a1": []interface{}{-1.0, -1.5}}}
	daq := NewSensorDAQ(s)

	samples, err := Sample(t.Context(), daq, "a0", 3)
	require.NoError(t, err)
	assert.Equal(t, []float64{-2.5, -2.5, -2.5}, samples)
	assert.Equal(t, 3, s.calls)

	samples, err = Sample(t.Context(), daq, "a1", 3)
	require.NoError(t, err)
	assert.Equal(t, []float64{-1.0, -1.5, -1.0}, samples)

	_, err = Sample(t.Context(), daq, "missing", 1)
	assert.ErrorContains(t, err, `no reading "missing"`)

	s.readings["empty"] = []interface{}{}
	_, err = Sample(t.Context(), daq, "empty", 1)
	assert.ErrorIs(t, err, errNoSamples)

	s.err = errMockIO
	_, err = Sample(t.Context(), daq, "a0", 1)
	assert.ErrorIs(t, err, errMockIO)
}

func TestToFloats(t *testing.T) {
	tests := []struct {
		in   any
		want []float64
	}{
		{1.5, []float64{1.5}},
		{float32(0.5), []float64{0.5}},
		{3, []float64{3}},
		{int64(-2), []float64{-2}},
		{[]float64{1, 2}, []float64{1, 2}},
		{[]any{1.0, []any{2.0, 3}}, []float64{1, 2, 3}},
	}
	for _, tt := range tests {
		got, err := toFloats(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := toFloats("3.3")
	assert.Error(t, err)
}
