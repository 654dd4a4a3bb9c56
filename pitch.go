package pitch_compliance

import (
	"math"

	"github.com/golang/geo/s1"
)

// PitchModel maps the linear potentiometer voltage to frame pitch. The potentiometer is
// mounted MountHeight above the pivot, so its extension is the arc length swept by the
// frame.
type PitchModel struct {
	VoltMin      float64 `json:"volt_min" yaml:"volt_min"`
	VoltMax      float64 `json:"volt_max" yaml:"volt_max"`
	ExtensionMin float64 `json:"extension_min_in" yaml:"extension_min_in"`
	ExtensionMax float64 `json:"extension_max_in" yaml:"extension_max_in"`
	MountHeight  float64 `json:"mount_height_in" yaml:"mount_height_in"`
}

// DefaultPitchModel is the calibration of the test frame potentiometer, in inches.
var DefaultPitchModel = PitchModel{
	VoltMin:      -4.262,
	VoltMax:      -1.48,
	ExtensionMin: 0,
	ExtensionMax: 11.25,
	MountHeight:  27.75,
}

func (m PitchModel) isZero() bool {
	return m == PitchModel{}
}

// Extension interpolates the potentiometer extension for a voltage. Voltages outside
// [VoltMin, VoltMax] clamp to the end of the range.
func (m PitchModel) Extension(volts float64) float64 {
	if math.IsNaN(volts) || m.VoltMax == m.VoltMin {
		return math.NaN()
	}
	lo, hi := m.VoltMin, m.VoltMax
	elo, ehi := m.ExtensionMin, m.ExtensionMax
	if lo > hi {
		lo, hi = hi, lo
		elo, ehi = ehi, elo
	}
	switch {
	case volts <= lo:
		return elo
	case volts >= hi:
		return ehi
	}
	return elo + (volts-lo)*(ehi-elo)/(hi-lo)
}

// Pitch returns the frame pitch for a voltage.
func (m PitchModel) Pitch(volts float64) s1.Angle {
	if m.MountHeight == 0 {
		return s1.Angle(math.NaN())
	}
	return s1.Angle(m.Extension(volts)/m.MountHeight) * s1.Radian
}
