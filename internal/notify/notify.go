// Package notify carries user-visible status messages from the core to the
// presentation layer.
package notify

import (
	"log/slog"
	"sync"
	"time"
)

type Severity string

const (
	Info    Severity = "info"
	Success Severity = "success"
	Warning Severity = "warning"
	Error   Severity = "error"
)

type Event struct {
	Seq      uint64    `json:"seq"`
	Time     time.Time `json:"time"`
	Message  string    `json:"message"`
	Severity Severity  `json:"severity"`
}

// Notifier receives status messages.
type Notifier interface {
	Notify(message string, severity Severity)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(message string, severity Severity)

func (f NotifierFunc) Notify(message string, severity Severity) { f(message, severity) }

// Nop discards every message.
var Nop Notifier = NotifierFunc(func(string, Severity) {})

// Feed keeps the most recent events in a bounded buffer and logs each one.
type Feed struct {
	mu     sync.Mutex
	events []Event
	size   int
	seq    uint64
	logger *slog.Logger
}

// NewFeed keeps up to size events; a non-positive size means 100.
func NewFeed(size int, logger *slog.Logger) *Feed {
	if size <= 0 {
		size = 100
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Feed{size: size, logger: logger}
}

func (f *Feed) Notify(message string, severity Severity) {
	f.mu.Lock()
	f.seq++
	ev := Event{Seq: f.seq, Time: time.Now(), Message: message, Severity: severity}
	f.events = append(f.events, ev)
	if len(f.events) > f.size {
		f.events = append(f.events[:0:0], f.events[len(f.events)-f.size:]...)
	}
	f.mu.Unlock()

	switch severity {
	case Error:
		f.logger.Error(message, slog.String("severity", string(severity)))
	case Warning:
		f.logger.Warn(message, slog.String("severity", string(severity)))
	default:
		f.logger.Info(message, slog.String("severity", string(severity)))
	}
}

// Since returns the buffered events with a sequence number greater than seq,
// oldest first.
func (f *Feed) Since(seq uint64) []Event {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]Event, 0, len(f.events))
	for _, ev := range f.events {
		if ev.Seq > seq {
			out = append(out, ev)
		}
	}
	return out
}
