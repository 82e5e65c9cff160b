package console

import (
	"sync"

	"coldcall/internal/events"
)

// Reporter receives the user-visible messages of a call cycle.
type Reporter interface {
	Success(msg string)
	Info(msg string)
	Warn(msg string)
	Error(msg string)
}

// Message is one reported line.
type Message struct {
	Level events.Level `json:"level"`
	Text  string       `json:"text"`
}

// RecordingReporter keeps messages in order so a response can render them.
type RecordingReporter struct {
	mu       sync.Mutex
	messages []Message
}

func (r *RecordingReporter) Success(msg string) { r.add(events.LevelSuccess, msg) }
func (r *RecordingReporter) Info(msg string)    { r.add(events.LevelInfo, msg) }
func (r *RecordingReporter) Warn(msg string)    { r.add(events.LevelWarn, msg) }
func (r *RecordingReporter) Error(msg string)   { r.add(events.LevelError, msg) }

func (r *RecordingReporter) add(level events.Level, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, Message{Level: level, Text: msg})
}

// Messages returns a copy of everything reported so far.
func (r *RecordingReporter) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Message, len(r.messages))
	copy(out, r.messages)
	return out
}

// BusReporter publishes each message as an events.Event.
type BusReporter struct {
	Bus     *events.Bus
	CycleID string
}

func (b BusReporter) Success(msg string) { b.publish(events.LevelSuccess, msg) }
func (b BusReporter) Info(msg string)    { b.publish(events.LevelInfo, msg) }
func (b BusReporter) Warn(msg string)    { b.publish(events.LevelWarn, msg) }
func (b BusReporter) Error(msg string)   { b.publish(events.LevelError, msg) }

func (b BusReporter) publish(level events.Level, msg string) {
	if b.Bus == nil {
		return
	}
	b.Bus.Publish(events.Event{CycleID: b.CycleID, Level: level, Message: msg})
}

type multi []Reporter

// Multi fans every message out to each non-nil reporter.
func Multi(reporters ...Reporter) Reporter {
	var m multi
	for _, r := range reporters {
		if r != nil {
			m = append(m, r)
		}
	}
	return m
}

func (m multi) Success(msg string) {
	for _, r := range m {
		r.Success(msg)
	}
}

func (m multi) Info(msg string) {
	for _, r := range m {
		r.Info(msg)
	}
}

func (m multi) Warn(msg string) {
	for _, r := range m {
		r.Warn(msg)
	}
}

func (m multi) Error(msg string) {
	for _, r := range m {
		r.Error(msg)
	}
}
