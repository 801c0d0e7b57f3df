// Package audit implements the build orchestrator's audit log: one JSON
// object per lifecycle event, fanned out to one or more sinks.
package audit

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Level mirrors common structured-logging severities.
type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// EventType distinguishes the audit events a lifecycle stage may emit.
type EventType string

const (
	EventStart      EventType = "START"
	EventComplete   EventType = "COMPLETE"
	EventFail       EventType = "FAIL"
	EventAnnotation EventType = "ANNOTATION"
)

// Event is a single audit log entry. Timestamp is ISO-8601 UTC.
type Event struct {
	EventID        string         `json:"event_id"`
	EventType      EventType      `json:"event_type"`
	Level          Level          `json:"level"`
	Stage          string         `json:"stage"`
	Substage       string         `json:"substage,omitempty"`
	AnnotationType string         `json:"annotation_type,omitempty"`
	Timestamp      string         `json:"timestamp"`
	Message        string         `json:"message"`
	Payload        map[string]any `json:"payload,omitempty"`
}

// Sink receives every appended event in program order.
type Sink interface {
	Write(e Event) error
}

// Clock lets tests control event timestamps.
type Clock func() time.Time

// Log is the audit log owned by a single build invocation. It buffers
// events in memory (for persistence alongside the BuildPlan) while also
// fanning each one out synchronously to its configured sinks.
type Log struct {
	mu     sync.Mutex
	sinks  []Sink
	events []Event
	clock  Clock
	newID  func() string
}

// Option configures a Log.
type Option func(*Log)

func WithSink(s Sink) Option {
	return func(l *Log) { l.sinks = append(l.sinks, s) }
}

func WithClock(c Clock) Option {
	return func(l *Log) {
		if c != nil {
			l.clock = c
		}
	}
}

func withIDFunc(f func() string) Option {
	return func(l *Log) {
		if f != nil {
			l.newID = f
		}
	}
}

// New builds an audit Log with the given sinks.
func New(opts ...Option) *Log {
	l := &Log{
		clock: time.Now,
		newID: func() string { return uuid.NewString() },
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Append records an event, stamping it with a fresh UUID and the current
// time, and writes it to every configured sink. Sink errors are joined and
// returned but do not prevent the event from being buffered in memory.
func (l *Log) Append(eventType EventType, level Level, stage, substage, message string, payload map[string]any) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	e := Event{
		EventID:   l.newID(),
		EventType: eventType,
		Level:     level,
		Stage:     stage,
		Substage:  substage,
		Timestamp: l.clock().UTC().Format(time.RFC3339),
		Message:   message,
		Payload:   payload,
	}

	l.events = append(l.events, e)

	var writeErr error

	for _, s := range l.sinks {
		if err := s.Write(e); err != nil {
			writeErr = errors.Join(writeErr, fmt.Errorf("audit sink write: %w", err))
		}
	}

	return writeErr
}

// Annotate records an ANNOTATION event carrying a free-form annotation type
// (e.g. "compatibility-analysis", "project-save").
func (l *Log) Annotate(stage, annotationType, message string, payload map[string]any) error {
	l.mu.Lock()

	e := Event{
		EventID:        l.newID(),
		EventType:      EventAnnotation,
		Level:          LevelInfo,
		Stage:          stage,
		AnnotationType: annotationType,
		Timestamp:      l.clock().UTC().Format(time.RFC3339),
		Message:        message,
		Payload:        payload,
	}

	l.events = append(l.events, e)
	sinks := l.sinks

	l.mu.Unlock()

	var writeErr error

	for _, s := range sinks {
		if err := s.Write(e); err != nil {
			writeErr = fmt.Errorf("audit sink write: %w", err)
		}
	}

	return writeErr
}

// Start appends a START event for stage/substage.
func (l *Log) Start(stage, substage, message string) error {
	return l.Append(EventStart, LevelInfo, stage, substage, message, nil)
}

// Complete appends a COMPLETE event for stage/substage.
func (l *Log) Complete(stage, substage, message string) error {
	return l.Append(EventComplete, LevelInfo, stage, substage, message, nil)
}

// Fail appends a FAIL event for stage/substage, carrying the error text in
// the payload under "error".
func (l *Log) Fail(stage, substage string, cause error) error {
	return l.Append(EventFail, LevelError, stage, substage, cause.Error(), map[string]any{
		"error": cause.Error(),
	})
}

// Events returns a snapshot of every event appended so far, in order.
func (l *Log) Events() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Event, len(l.events))
	copy(out, l.events)

	return out
}

// MarshalJSON renders the buffered events as a JSON array, the shape
// BuildPlan.Persist writes to build.audit.json beside buildplan.json.
func (l *Log) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.Events())
}

// writerSink adapts any io.Writer (stdout, stderr, an open file) into a
// Sink, writing one JSON object per line.
type writerSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterSink wraps w as a newline-delimited JSON Sink.
func NewWriterSink(w io.Writer) Sink {
	return &writerSink{w: w}
}

func (s *writerSink) Write(e Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshaling audit event: %w", err)
	}

	b = append(b, '\n')

	if _, err := s.w.Write(b); err != nil {
		return fmt.Errorf("writing audit event: %w", err)
	}

	return nil
}
