package pitch_compliance

import (
	"context"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/pkg/errors"
)

// InfluxConfig selects the InfluxDB bucket records are written to.
type InfluxConfig struct {
	URL         string `json:"url" yaml:"url"`
	Token       string `json:"token" yaml:"token"`
	Org         string `json:"org" yaml:"org"`
	Bucket      string `json:"bucket" yaml:"bucket"`
	Measurement string `json:"measurement,omitempty" yaml:"measurement"`
	Experiment  string `json:"experiment,omitempty" yaml:"experiment"`
}

type pointWriter interface {
	WritePoint(ctx context.Context, point ...*write.Point) error
}

// InfluxSink writes each record as one point.
type InfluxSink struct {
	client      influxdb2.Client
	writer      pointWriter
	measurement string
	tags        map[string]string
	timeout     time.Duration
}

// NewInfluxSink connects a blocking write API for cfg.
func NewInfluxSink(cfg InfluxConfig) (*InfluxSink, error) {
	if cfg.URL == "" || cfg.Bucket == "" {
		return nil, errors.New("influx sink needs url and bucket")
	}
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	sink := newInfluxSink(client.WriteAPIBlocking(cfg.Org, cfg.Bucket), cfg)
	sink.client = client
	return sink, nil
}

func newInfluxSink(w pointWriter, cfg InfluxConfig) *InfluxSink {
	measurement := cfg.Measurement
	if measurement == "" {
		measurement = "pitch_compliance"
	}
	tags := map[string]string{}
	if cfg.Experiment != "" {
		tags["experiment"] = cfg.Experiment
	}
	return &InfluxSink{writer: w, measurement: measurement, tags: tags, timeout: time.Second}
}

// Append writes r. Fields that have no value yet are omitted from the point.
func (s *InfluxSink) Append(r LogRecord) error {
	fields := make(map[string]interface{}, NumJoints+2)
	for i, p := range r.JointPositions {
		fields[fmt.Sprintf("joint_%d", i+1)] = p
	}
	if v, ok := r.VoltageValue(); ok {
		fields["voltage"] = v
	}
	if r.HasPitch {
		fields["pitch_deg"] = r.Pitch.Degrees()
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	point := influxdb2.NewPoint(s.measurement, s.tags, fields, r.Timestamp)
	if err := s.writer.WritePoint(ctx, point); err != nil {
		return errors.Wrap(err, "failed to write point to InfluxDB")
	}
	return nil
}

// Close releases the client.
func (s *InfluxSink) Close() error {
	if s.client != nil {
		s.client.Close()
	}
	return nil
}
