package pitch_compliance

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// csvHeader names the columns written by CSVSink.
var csvHeader = []string{
	"timestamp",
	"joint_1", "joint_2", "joint_3", "joint_4", "joint_5", "joint_6", "joint_7",
	"linear_potentiometer",
	"pitch_deg",
}

// CSVSink appends records to a CSV file. Missing voltage or pitch values are written as
// empty fields.
type CSVSink struct {
	mu   sync.Mutex
	file *os.File
	w    *csv.Writer
	path string
}

// NewCSVSink creates dir if needed and opens name inside it. An empty name selects a
// timestamped file name.
func NewCSVSink(dir, name string) (*CSVSink, error) {
	if dir == "" {
		dir = "logs"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "failed to create log directory %s", dir)
	}
	if name == "" {
		name = time.Now().Format("2006-01-02-15-04-05") + ".csv"
	}
	path := filepath.Join(dir, name)

	file, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create log file %s", path)
	}
	s := &CSVSink{file: file, w: csv.NewWriter(file), path: path}
	if err := s.write(csvHeader); err != nil {
		file.Close()
		return nil, err
	}
	return s, nil
}

// Path returns the file being written.
func (s *CSVSink) Path() string { return s.path }

// Append writes one row and flushes it.
func (s *CSVSink) Append(r LogRecord) error {
	row := make([]string, 0, len(csvHeader))
	row = append(row, strconv.FormatFloat(float64(r.Timestamp.UnixNano())/float64(time.Second), 'f', 6, 64))
	for _, p := range r.JointPositions {
		row = append(row, strconv.FormatFloat(p, 'g', -1, 64))
	}
	if v, ok := r.VoltageValue(); ok {
		row = append(row, strconv.FormatFloat(v, 'g', -1, 64))
	} else {
		row = append(row, "")
	}
	if r.HasPitch {
		row = append(row, strconv.FormatFloat(r.Pitch.Degrees(), 'f', 4, 64))
	} else {
		row = append(row, "")
	}
	return s.write(row)
}

func (s *CSVSink) write(row []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return fmt.Errorf("csv sink %s is closed", s.path)
	}
	if err := s.w.Write(row); err != nil {
		return errors.Wrap(err, "failed to write log row")
	}
	s.w.Flush()
	return errors.Wrap(s.w.Error(), "failed to flush log row")
}

// Close flushes and closes the file.
func (s *CSVSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	s.w.Flush()
	err := s.file.Close()
	s.file = nil
	return err
}
