package pitch_compliance

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/pkg/errors"
)

// ArmConfiguration is a target position for every joint, indexed by DeviceID-1. Angles are
// radians; the linear jaws use the units the controller expects on the wire.
type ArmConfiguration [NumJoints]float64

// HomeConfiguration is the fixed start pose, always preset 0.
var HomeConfiguration = ArmConfiguration{0, 1.57, 2.64, 0, 0.6, 3.04, 3.14}

// PresetOptions controls how a preset file is turned into a preset table.
type PresetOptions struct {
	// FlipJointOrder reverses every row. Preset files list joints base first.
	FlipJointOrder bool `json:"flip_joint_order" yaml:"flip_joint_order"`
	// AddHome prepends HomeConfiguration as preset 0.
	AddHome bool `json:"add_home" yaml:"add_home"`
}

// DefaultPresetOptions matches the layout of the hardware configuration exports.
var DefaultPresetOptions = PresetOptions{FlipJointOrder: true, AddHome: true}

type presetFileFormat struct {
	Configs [][]float64 `json:"configs"`
}

// Presets is the table of configurations an experiment can select from.
type Presets []ArmConfiguration

// LoadPresets reads a preset file. A missing path yields a table holding only the home
// configuration when AddHome is set.
func LoadPresets(path string, opts PresetOptions) (Presets, error) {
	var rows [][]float64
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(err, "failed to read preset file")
		}
		var file presetFileFormat
		if err := json.Unmarshal(data, &file); err != nil {
			return nil, errors.Wrap(err, "failed to parse preset JSON")
		}
		rows = file.Configs
	}
	return BuildPresets(rows, opts)
}

// BuildPresets converts raw rows into a preset table.
func BuildPresets(rows [][]float64, opts PresetOptions) (Presets, error) {
	presets := make(Presets, 0, len(rows)+1)
	if opts.AddHome {
		presets = append(presets, HomeConfiguration)
	}
	for i, row := range rows {
		if len(row) != NumJoints {
			return nil, fmt.Errorf("preset row %d: expected %d joint values, got %d", i, NumJoints, len(row))
		}
		var cfg ArmConfiguration
		for j, v := range row {
			if opts.FlipJointOrder {
				cfg[NumJoints-1-j] = v
			} else {
				cfg[j] = v
			}
		}
		presets = append(presets, cfg)
	}
	if len(presets) == 0 {
		return nil, errors.New("no presets available")
	}
	return presets, nil
}

// Select returns preset index.
func (p Presets) Select(index int) (ArmConfiguration, error) {
	if index < 0 || index >= len(p) {
		return ArmConfiguration{}, errors.Wrapf(ErrPresetIndex, "index %d, have 0-%d", index, len(p)-1)
	}
	return p[index], nil
}

// SavePresets writes presets in the file format LoadPresets reads, undoing opts.
func SavePresets(path string, presets Presets, opts PresetOptions) error {
	rows := make([][]float64, 0, len(presets))
	for i, cfg := range presets {
		if i == 0 && opts.AddHome {
			continue
		}
		row := make([]float64, NumJoints)
		for j, v := range cfg {
			if opts.FlipJointOrder {
				row[NumJoints-1-j] = v
			} else {
				row[j] = v
			}
		}
		rows = append(rows, row)
	}

	data, err := json.MarshalIndent(presetFileFormat{Configs: rows}, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal presets")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrap(err, "failed to write preset file")
	}
	return nil
}
