// Package notify delivers the short, non-blocking messages ("toasts") that
// report the outcome of every console action.
package notify

import (
	"sync"
	"time"

	"hermandad.org/internal/obs"
)

type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
	LevelWarning Level = "warning"
	LevelInfo    Level = "info"
)

type Notification struct {
	Level   Level     `json:"level"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Notifier receives notifications.
type Notifier interface {
	Notify(n Notification)
}

func Success(n Notifier, msg string) { send(n, LevelSuccess, msg) }
func Error(n Notifier, msg string)   { send(n, LevelError, msg) }
func Warning(n Notifier, msg string) { send(n, LevelWarning, msg) }
func Info(n Notifier, msg string)    { send(n, LevelInfo, msg) }

func send(n Notifier, level Level, msg string) {
	if n == nil {
		return
	}
	n.Notify(Notification{Level: level, Message: msg, At: time.Now().UTC()})
}

// Recorder queues notifications until they are drained.
type Recorder struct {
	mu    sync.Mutex
	items []Notification
	max   int
}

// NewRecorder keeps at most max pending notifications, dropping the oldest.
func NewRecorder(max int) *Recorder {
	if max <= 0 {
		max = 50
	}
	return &Recorder{max: max}
}

func (r *Recorder) Notify(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, n)
	if over := len(r.items) - r.max; over > 0 {
		r.items = append([]Notification(nil), r.items[over:]...)
	}
}

// Drain returns and forgets every pending notification.
func (r *Recorder) Drain() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.items
	r.items = nil
	return out
}

// Pending returns a copy of the queue without draining it.
func (r *Recorder) Pending() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.items...)
}

// Log writes notifications to the shared JSON logger.
type Log struct {
	Fields map[string]any
}

func (l Log) Notify(n Notification) {
	fields := map[string]any{"notification": string(n.Level)}
	for k, v := range l.Fields {
		fields[k] = v
	}
	level := "info"
	if n.Level == LevelError {
		level = "warn"
	}
	obs.Log(level, n.Message, fields)
}

// Tee fans a notification out to every notifier.
type Tee []Notifier

func (t Tee) Notify(n Notification) {
	for _, x := range t {
		if x != nil {
			x.Notify(n)
		}
	}
}
