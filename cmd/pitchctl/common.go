package main

import (
	"fmt"

	"go.viam.com/rdk/logging"
	pitch "pitch_compliance"
)

func newLogger() logging.Logger {
	logger := logging.NewLogger("pitchctl")
	if opts.Debug {
		logger.SetLevel(logging.DEBUG)
	}
	return logger
}

func loadConfig() (*pitch.ExperimentConfig, error) {
	cfg, err := pitch.LoadExperimentConfig(opts.Config)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", opts.Config, err)
	}
	return cfg, nil
}
