package main

import (
	"context"
	"fmt"
	"time"

	pitch "pitch_compliance"
)

type PortsCommand struct {
	All   bool `long:"all" description:"Include ports that do not look like USB serial adapters"`
	Probe bool `long:"probe" description:"Ask each candidate port for joint positions"`
	Baud  int  `long:"baud" default:"115200" description:"Baud rate used when probing"`
}

func (c *PortsCommand) Execute(args []string) error {
	ports, err := pitch.ListPorts()
	if err != nil {
		return err
	}
	logger := newLogger()

	shown := 0
	for _, p := range ports {
		if !p.Candidate && !c.All {
			continue
		}
		shown++
		line := p.Name
		if p.IsUSB {
			line += fmt.Sprintf("  usb %s:%s", p.VID, p.PID)
			if p.Serial != "" {
				line += " serial " + p.Serial
			}
		}
		if c.Probe && p.Candidate {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			found := pitch.ProbeSerialArm(ctx, pitch.SerialConfig{Port: p.Name, BaudRate: c.Baud}, 300*time.Millisecond, logger)
			cancel()
			if found {
				line += "  <- arm answered"
			}
		}
		fmt.Println(line)
	}
	if shown == 0 {
		fmt.Println("No serial ports found")
	}
	return nil
}
