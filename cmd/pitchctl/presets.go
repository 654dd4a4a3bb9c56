package main

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	pitch "pitch_compliance"
)

type PresetsCommand struct {
	File       string `long:"file" description:"Preset file, overrides the config"`
	NoFlip     bool   `long:"no-flip" description:"Keep the joint order of the file"`
	NoHome     bool   `long:"no-home" description:"Do not prepend the home configuration"`
	Standalone bool   `long:"standalone" description:"Ignore the config file"`
}

var headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))

func (c *PresetsCommand) Execute(args []string) error {
	file := c.File
	presetOpts := pitch.DefaultPresetOptions
	if !c.Standalone {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if file == "" {
			file = pitch.ResolvePath(cfg.PresetFile)
		}
		if cfg.PresetOptions != nil {
			presetOpts = *cfg.PresetOptions
		}
	}
	if c.NoFlip {
		presetOpts.FlipJointOrder = false
	}
	if c.NoHome {
		presetOpts.AddHome = false
	}

	presets, err := pitch.LoadPresets(file, presetOpts)
	if err != nil {
		return err
	}
	fmt.Println(presetTable(presets))
	return nil
}

func presetTable(presets pitch.Presets) string {
	headers := []string{"#"}
	for i := 0; i < pitch.NumJoints; i++ {
		id, _ := pitch.JointID(i)
		headers = append(headers, id.String())
	}
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("240"))).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return lipgloss.NewStyle().Padding(0, 1)
		}).
		Headers(headers...)
	for i, cfg := range presets {
		row := []string{strconv.Itoa(i)}
		for _, v := range cfg {
			row = append(row, strconv.FormatFloat(v, 'f', 3, 64))
		}
		t.Row(row...)
	}
	return t.Render()
}

// choosePreset asks which preset to run.
func choosePreset(presets pitch.Presets) (int, error) {
	options := make([]huh.Option[int], 0, len(presets))
	for i, cfg := range presets {
		label := fmt.Sprintf("%d: %v", i, [pitch.NumJoints]float64(cfg))
		if cfg == pitch.HomeConfiguration {
			label += " (home)"
		}
		options = append(options, huh.NewOption(label, i))
	}

	var index int
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[int]().
				Title("Which configuration should the arm move to?").
				Description(fmt.Sprintf("%d presets loaded", len(presets))).
				Options(options...).
				Value(&index),
		),
	)
	if err := form.Run(); err != nil {
		return 0, err
	}
	return index, nil
}
