package sse

import (
	"encoding/json"
	"io"
	"time"
)

// Pre-computed field prefixes to avoid allocations
var (
	idPrefix    = []byte("id: ")
	eventPrefix = []byte("event: ")
	dataPrefix  = []byte("data: ")
	lineEnd     = []byte("\n")
	frameEnd    = []byte("\n\n")
)

// isoMillis matches the millisecond ISO-8601 layout browsers produce for Date.toISOString.
const isoMillis = "2006-01-02T15:04:05.000Z"

// Frame is a single Server-Sent Event ready to be written to a stream.
// Empty ID and Event fields are omitted from the wire format.
type Frame struct {
	ID    string
	Event string
	Data  []byte
}

// NewJSONFrame marshals v as the frame payload.
func NewJSONFrame(id, event string, v interface{}) (Frame, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Frame{}, err
	}
	return Frame{ID: id, Event: event, Data: data}, nil
}

// Format returns the frame in text/event-stream layout, terminated by a blank line.
func (f Frame) Format() []byte {
	b := make([]byte, 0, len(idPrefix)+len(f.ID)+len(eventPrefix)+len(f.Event)+len(dataPrefix)+len(f.Data)+4)
	if f.ID != "" {
		b = append(b, idPrefix...)
		b = append(b, f.ID...)
		b = append(b, lineEnd...)
	}
	if f.Event != "" {
		b = append(b, eventPrefix...)
		b = append(b, f.Event...)
		b = append(b, lineEnd...)
	}
	b = append(b, dataPrefix...)
	b = append(b, f.Data...)
	b = append(b, frameEnd...)
	return b
}

// WriteTo writes the formatted frame to w.
func (f Frame) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(f.Format())
	return int64(n), err
}

// Timestamp renders t in UTC with millisecond precision.
func Timestamp(t time.Time) string {
	return t.UTC().Format(isoMillis)
}
