// Package notify carries user-facing notices from workflow code to whichever
// surface is showing them. Surfaces inject a Notifier; nothing is global.
package notify

import (
	"context"
	"log"
	"sync"
)

// Level is the severity of a Notice.
type Level string

const (
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Notice is the immutable options bundle for one dialog or message.
type Notice struct {
	Level   Level
	Title   string
	Message string
	// Blocking notices must be dismissed by the user before they continue.
	Blocking bool
	// Confirm and Cancel label the dialog buttons. Empty means a single OK.
	Confirm string
	Cancel  string
}

// Error builds a blocking error notice.
func Error(title, message string) Notice {
	return Notice{Level: LevelError, Title: title, Message: message, Blocking: true, Confirm: "OK"}
}

// Info builds a non-blocking informational notice.
func Info(title, message string) Notice {
	return Notice{Level: LevelInfo, Title: title, Message: message}
}

// Notifier shows notices to the user.
type Notifier interface {
	Notify(ctx context.Context, n Notice)
}

// Func adapts a function to Notifier.
type Func func(ctx context.Context, n Notice)

func (f Func) Notify(ctx context.Context, n Notice) { f(ctx, n) }

// Log writes notices to the standard logger.
type Log struct{}

func (Log) Notify(_ context.Context, n Notice) {
	log.Printf("[%s] %s: %s", n.Level, n.Title, n.Message)
}

// Discard drops every notice.
type Discard struct{}

func (Discard) Notify(context.Context, Notice) {}

// Recorder keeps every notice it receives. Useful for tests and for
// surfaces that render notices after the fact.
type Recorder struct {
	mu      sync.Mutex
	notices []Notice
}

func (r *Recorder) Notify(_ context.Context, n Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
}

// Notices returns a copy of the recorded notices.
func (r *Recorder) Notices() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notice, len(r.notices))
	copy(out, r.notices)
	return out
}

// Bus fans a notice out to every subscriber.
type Bus struct {
	mu   sync.RWMutex
	subs []Notifier
}

// Subscribe adds a notifier to the bus.
func (b *Bus) Subscribe(n Notifier) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, n)
}

func (b *Bus) Notify(ctx context.Context, n Notice) {
	b.mu.RLock()
	subs := append([]Notifier(nil), b.subs...)
	b.mu.RUnlock()

	for _, s := range subs {
		s.Notify(ctx, n)
	}
}
