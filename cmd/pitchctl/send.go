package main

import (
	"context"
	"fmt"

	pitch "pitch_compliance"
)

type SendCommand struct {
	Args struct {
		Joint    uint8   `positional-arg-name:"joint" description:"Device ID, 1 (jaws) to 7 (base)"`
		Position float64 `positional-arg-name:"position" description:"Target position (radians, jaws in controller units)"`
	} `positional-args:"yes" required:"yes"`
}

func (c *SendCommand) Execute(args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger()

	id := pitch.DeviceID(c.Args.Joint)
	if !id.IsJoint() {
		return fmt.Errorf("joint must be 1-%d, got %d", pitch.NumJoints, c.Args.Joint)
	}

	transport, err := cfg.NewTransport(logger)
	if err != nil {
		return err
	}
	if err := transport.Connect(context.Background()); err != nil {
		return err
	}
	defer transport.Disconnect()

	if err := pitch.NewCommandSender(transport, logger).SendJoint(id, c.Args.Position); err != nil {
		return err
	}
	fmt.Printf("Sent %s -> %.4f\n", id, c.Args.Position)
	return nil
}
