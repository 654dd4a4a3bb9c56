package pitch_compliance

import (
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/rdk/logging"
)

// CommandSender drives the arm to joint configurations, one POSITION packet per joint.
//
// Values are sent as given. In particular the linear jaws are commanded in the same units
// the configuration uses; the mm to m conversion is only applied to telemetry.
type CommandSender struct {
	sender Sender
	logger logging.Logger
}

// NewCommandSender creates a command sender on top of sender.
func NewCommandSender(sender Sender, logger logging.Logger) *CommandSender {
	return &CommandSender{sender: sender, logger: logger}
}

// Apply sends every joint of cfg in ascending address order. A failed send does not stop
// the remaining joints and nothing is rolled back, so the arm may end up partially
// commanded. Each failure is reported as a *SendFailedError in the returned error.
func (c *CommandSender) Apply(cfg ArmConfiguration) error {
	var errs error
	for i, position := range cfg {
		id, err := JointID(i)
		if err != nil {
			return err
		}
		if err := c.SendJoint(id, position); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	if errs != nil {
		c.logger.Warnf("configuration applied partially: %v", errs)
	}
	return errs
}

// SendJoint commands a single joint.
func (c *CommandSender) SendJoint(id DeviceID, position float64) error {
	packet, err := Encode(id, PacketPosition, float32(position))
	if err != nil {
		return errors.Wrapf(err, "encode command for %s", id)
	}
	if err := c.sender.Send(packet); err != nil {
		return &SendFailedError{Address: id, Err: err}
	}
	return nil
}

// FailedJoints lists the addresses named by the SendFailedErrors in err.
func FailedJoints(err error) []DeviceID {
	var ids []DeviceID
	for _, e := range multierr.Errors(err) {
		var sendErr *SendFailedError
		if errors.As(e, &sendErr) {
			ids = append(ids, sendErr.Address)
		}
	}
	return ids
}
