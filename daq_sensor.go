package pitch_compliance

import (
	"context"

	"github.com/pkg/errors"
	"go.viam.com/rdk/components/sensor"
)

// SensorDAQ reads voltages from another sensor resource, such as a board analog reader.
// The channel names the readings key.
type SensorDAQ struct {
	sensor sensor.Sensor
}

// NewSensorDAQ wraps s.
func NewSensorDAQ(s sensor.Sensor) *SensorDAQ {
	return &SensorDAQ{sensor: s}
}

// OpenTask returns a task bound to channel. Sensors have nothing to open.
func (d *SensorDAQ) OpenTask(ctx context.Context, channel string) (AnalogTask, error) {
	return &sensorTask{sensor: d.sensor, channel: channel}, nil
}

type sensorTask struct {
	sensor  sensor.Sensor
	channel string
}

// Read takes one Readings call per sample.
func (t *sensorTask) Read(ctx context.Context, samples int) ([]float64, error) {
	out := make([]float64, 0, samples)
	for len(out) < samples {
		readings, err := t.sensor.Readings(ctx, nil)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read sensor %s", t.sensor.Name().ShortName())
		}
		raw, ok := readings[t.channel]
		if !ok {
			return nil, errors.Errorf("sensor %s has no reading %q", t.sensor.Name().ShortName(), t.channel)
		}
		vals, err := toFloats(raw)
		if err != nil {
			return nil, errors.Wrapf(err, "reading %q", t.channel)
		}
		if len(vals) == 0 {
			return nil, errNoSamples
		}
		out = append(out, vals...)
	}
	return out[:samples], nil
}

func (t *sensorTask) Close() error { return nil }

func toFloats(v any) ([]float64, error) {
	switch x := v.(type) {
	case float64:
		return []float64{x}, nil
	case float32:
		return []float64{float64(x)}, nil
	case int:
		return []float64{float64(x)}, nil
	case int64:
		return []float64{float64(x)}, nil
	case []float64:
		return x, nil
	case []any:
		out := make([]float64, 0, len(x))
		for _, e := range x {
			f, err := toFloats(e)
			if err != nil {
				return nil, err
			}
			out = append(out, f...)
		}
		return out, nil
	}
	return nil, errors.Errorf("unsupported reading type %T", v)
}
