// Package summary records step-keyed scalar time series for later inspection.
//
// A Writer appends one JSON object per value to an event file in its
// directory. Each process opens its own event file, so the training and
// evaluation processes never write to the same file.
package summary

import "bufio"
import "encoding/json"
import "fmt"
import "os"
import "path/filepath"
import "sync"
import "time"

import "github.com/google/uuid"
import "github.com/pkg/errors"

// Value is a single named scalar.
type Value struct {
	Tag   string  `json:"tag"`
	Value float64 `json:"value"`
}

// Summary is a merged set of values produced together.
type Summary []Value

// Scalar returns a summary holding one value.
func Scalar(tag string, v float64) Summary {
	return Summary{{Tag: tag, Value: v}}
}

// Merge concatenates summaries.
func Merge(s ...Summary) (out Summary) {
	for _, v := range s {
		out = append(out, v...)
	}
	return out
}

// Get returns the value of tag.
func (s Summary) Get(tag string) (float64, bool) {
	for _, v := range s {
		if v.Tag == tag {
			return v.Value, true
		}
	}
	return 0, false
}

// Event is one line of an event file.
type Event struct {
	WallTime float64 `json:"wall_time"`
	Step     int64   `json:"step"`
	Tag      string  `json:"tag"`
	Value    float64 `json:"value"`
}

// Writer appends events to a file in a directory. Events are buffered until
// Flush.
type Writer struct {
	mut  sync.Mutex
	file *os.File
	buf  *bufio.Writer
	enc  *json.Encoder
	now  func() time.Time
}

// NewWriter creates dir if needed and opens a new event file in it.
func NewWriter(dir string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create summary dir %s", dir)
	}
	host, err := os.Hostname()
	if err != nil {
		host = "localhost"
	}
	name := fmt.Sprintf("events.out.%d.%s.%s.jsonl", time.Now().Unix(), host, uuid.NewString())
	f, err := os.OpenFile(filepath.Join(dir, name), os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, "open event file in %s", dir)
	}
	buf := bufio.NewWriter(f)
	return &Writer{file: f, buf: buf, enc: json.NewEncoder(buf), now: time.Now}, nil
}

// Path is the event file name.
func (w *Writer) Path() string {
	return w.file.Name()
}

// Add records every value of s at step.
func (w *Writer) Add(s Summary, step int64) error {
	w.mut.Lock()
	defer w.mut.Unlock()
	wall := float64(w.now().UnixNano()) / 1e9
	for _, v := range s {
		if err := w.enc.Encode(Event{WallTime: wall, Step: step, Tag: v.Tag, Value: v.Value}); err != nil {
			return errors.Wrapf(err, "write %s", v.Tag)
		}
	}
	return nil
}

// AddScalar records one value at step.
func (w *Writer) AddScalar(tag string, v float64, step int64) error {
	return w.Add(Scalar(tag, v), step)
}

// Flush makes the buffered events visible to readers.
func (w *Writer) Flush() error {
	w.mut.Lock()
	defer w.mut.Unlock()
	return errors.Wrap(w.buf.Flush(), "flush events")
}

// Close flushes and closes the event file.
func (w *Writer) Close() error {
	w.mut.Lock()
	defer w.mut.Unlock()
	if err := w.buf.Flush(); err != nil {
		w.file.Close()
		return errors.Wrap(err, "flush events")
	}
	return w.file.Close()
}
