package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	pitch "pitch_compliance"
)

type RunCommand struct {
	Preset   int           `short:"p" long:"preset" default:"-1" description:"Preset index, overrides the config"`
	Choose   bool          `long:"choose" description:"Pick the preset interactively"`
	Mode     string        `long:"mode" choice:"none" choice:"once" choice:"continuous" description:"Override the command mode"`
	Duration time.Duration `long:"duration" description:"Stop after this long instead of waiting for Ctrl-C"`
	Plot     bool          `long:"plot" description:"Show a live pitch chart"`
}

func (c *RunCommand) Execute(args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger()

	presets, err := cfg.LoadPresets()
	if err != nil {
		return err
	}
	index, err := resolvePreset(c.Preset, c.Choose, cfg.Preset, func() (int, error) {
		return choosePreset(presets)
	})
	if err != nil {
		return err
	}
	target, err := presets.Select(index)
	if err != nil {
		return err
	}
	if c.Mode != "" {
		cfg.CommandMode = pitch.CommandMode(c.Mode)
	}
	if cfg.DAQ.Type == pitch.DAQSensor {
		return errors.New("sensor DAQ is only available when running as a module")
	}

	transport, err := cfg.NewTransport(logger)
	if err != nil {
		return err
	}
	daq, err := cfg.NewDAQ(nil)
	if err != nil {
		return err
	}
	sinks, err := cfg.NewSinks(logger)
	if err != nil {
		return err
	}
	if cfg.PublishAddr != "" {
		pub := pitch.NewPublisher(logger)
		srv, err := pub.Serve(cfg.PublishAddr)
		if err != nil {
			for _, s := range sinks {
				s.Close()
			}
			return err
		}
		defer srv.Close()
		sinks = append(sinks, pub)
	}

	orch := pitch.NewOrchestrator(cfg.OrchestratorConfig(target), transport, daq, logger, pitch.WithSinks(sinks...))
	defer orch.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if c.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Duration)
		defer cancel()
	}

	release, err := orch.Enable(ctx)
	if err != nil {
		return err
	}
	defer release()
	fmt.Printf("Running preset %d %v (mode %s). Press Ctrl-C to stop.\n", index, [pitch.NumJoints]float64(target), cfg.CommandMode)

	if c.Plot {
		return runPlot(ctx, orch, cfg.OrchestratorConfig(target).TickPeriod)
	}
	<-ctx.Done()
	st := orch.Status()
	fmt.Printf("Stopped after %d ticks (%d sample failures, %d decode errors)\n", st.Ticks, st.SampleFailures, st.DecodeErrors)
	return nil
}

// resolvePreset picks the preset index: --choose prompts, an explicit --preset wins next,
// and the config's preset applies otherwise.
func resolvePreset(flag int, choose bool, configured int, prompt func() (int, error)) (int, error) {
	switch {
	case choose:
		return prompt()
	case flag >= 0:
		return flag, nil
	default:
		return configured, nil
	}
}
