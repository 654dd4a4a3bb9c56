package pitch_compliance

import (
	"time"

	"github.com/golang/geo/s1"
)

// LogRecord pairs the latest joint positions and voltage with the time they were read.
// The two values are not sampled together: each is whatever its producer published last.
type LogRecord struct {
	Timestamp      time.Time
	JointPositions JointPositions
	Voltage        VoltageReading
	HasVoltage     bool
	Pitch          s1.Angle
	HasPitch       bool
}

// VoltageValue returns the latest voltage sample and whether one was available.
func (r LogRecord) VoltageValue() (float64, bool) {
	if !r.HasVoltage || len(r.Voltage.Samples) == 0 {
		return 0, false
	}
	return r.Voltage.Value(), true
}

// recordJSON is the wire form used by the live publisher and module readings.
type recordJSON struct {
	Timestamp      float64   `json:"timestamp"`
	JointPositions []float64 `json:"joint_positions"`
	Voltage        *float64  `json:"voltage"`
	PitchDeg       *float64  `json:"pitch_deg"`
}

func (r LogRecord) toJSON() recordJSON {
	out := recordJSON{
		Timestamp:      float64(r.Timestamp.UnixNano()) / float64(time.Second),
		JointPositions: append([]float64(nil), r.JointPositions[:]...),
	}
	if v, ok := r.VoltageValue(); ok {
		out.Voltage = &v
	}
	if r.HasPitch {
		deg := r.Pitch.Degrees()
		out.PitchDeg = &deg
	}
	return out
}

// RecordSink receives one record per control tick.
type RecordSink interface {
	Append(LogRecord) error
	Close() error
}
