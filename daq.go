package pitch_compliance

import (
	"context"
)

// DefaultChannel is the potentiometer input on the NI USB DAQ.
const DefaultChannel = "Dev1/ai1"

// DAQ opens acquisition tasks on an analog input device.
type DAQ interface {
	OpenTask(ctx context.Context, channel string) (AnalogTask, error)
}

// AnalogTask is a single acquisition on one channel. It must be closed after use; the
// device may be shared with other processes between tasks.
type AnalogTask interface {
	Read(ctx context.Context, samples int) ([]float64, error)
	Close() error
}

// Sample opens a task on channel, reads count samples and closes the task, whether or not
// the read succeeded.
func Sample(ctx context.Context, daq DAQ, channel string, count int) (samples []float64, err error) {
	task, err := daq.OpenTask(ctx, channel)
	if err != nil {
		return nil, &AcquisitionError{Channel: channel, Err: err}
	}
	defer func() {
		if closeErr := task.Close(); closeErr != nil && err == nil {
			err = &AcquisitionError{Channel: channel, Err: closeErr}
		}
	}()

	samples, err = task.Read(ctx, count)
	if err != nil {
		return nil, &AcquisitionError{Channel: channel, Err: err}
	}
	if len(samples) == 0 {
		return nil, &AcquisitionError{Channel: channel, Err: errNoSamples}
	}
	return samples, nil
}
