package main

import (
	"os"

	"github.com/jessevdk/go-flags"
)

type Options struct {
	Config string `short:"c" long:"config" default:"pitch_compliance.yaml" description:"Experiment config file"`
	Debug  bool   `long:"debug" description:"Enable debug logging"`

	Run     RunCommand     `command:"run" description:"Run a pitch compliance experiment"`
	Presets PresetsCommand `command:"presets" description:"List the preset joint configurations"`
	Send    SendCommand    `command:"send" description:"Command a single joint and exit"`
	Ports   PortsCommand   `command:"ports" description:"List serial ports"`
}

var opts Options
var parser = flags.NewParser(&opts, flags.Default)

func main() {
	parser.LongDescription = "pitchctl - Bravo 7 pitch compliance experiment controller"

	_, err := parser.Parse()
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				os.Exit(0)
			}
		}
		os.Exit(1)
	}
}
