// Package notify shows short-lived messages to the user.
package notify

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	// DefaultDuration is how long a toast stays visible in the Mini
	// Program and H5 clients. Repeats inside that window are coalesced.
	DefaultDuration = 2 * time.Second

	// recentCapacity bounds how many distinct messages are remembered
	// for coalescing.
	recentCapacity = 64
)

// Notifier displays a transient message. Implementations must not block
// and must not panic.
type Notifier interface {
	Notify(message string)
}

// Func adapts a plain function to Notifier.
type Func func(message string)

// Notify calls f.
func (f Func) Notify(message string) { f(message) }

// Discard drops every message.
var Discard Notifier = Func(func(string) {})

// Toast writes messages to w, one per line. The same message shown
// again while still "on screen" is swallowed.
type Toast struct {
	mu     sync.Mutex
	w      io.Writer
	recent *expirable.LRU[string, struct{}]
}

// NewToast creates a Toast writing to w. A non-positive duration selects
// DefaultDuration.
func NewToast(w io.Writer, duration time.Duration) *Toast {
	if duration <= 0 {
		duration = DefaultDuration
	}

	return &Toast{
		w:      w,
		recent: expirable.NewLRU[string, struct{}](recentCapacity, nil, duration),
	}
}

// Notify prints message unless it is empty or already showing. Write
// errors are ignored.
func (t *Toast) Notify(message string) {
	if message == "" {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	// Peek rather than Contains: Contains does not check expiry.
	if _, showing := t.recent.Peek(message); showing {
		return
	}

	t.recent.Add(message, struct{}{})

	_, _ = fmt.Fprintln(t.w, message)
}
