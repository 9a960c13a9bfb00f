package model

import (
	"sync"
	"time"
)

// Flash holds a transient status-bar notification. Failed chat actions
// flash as errors so the bar can render them apart from plain notices.
type Flash struct {
	mu      sync.RWMutex
	message string
	isErr   bool
	expires time.Time
}

// Set stores a notice that expires after the given duration.
func (f *Flash) Set(msg string, d time.Duration) {
	f.set(msg, d, false)
}

// SetError stores a failure message that expires after the given duration.
func (f *Flash) SetError(msg string, d time.Duration) {
	f.set(msg, d, true)
}

func (f *Flash) set(msg string, d time.Duration, isErr bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.message = msg
	f.isErr = isErr
	f.expires = time.Now().Add(d)
}

// Get returns the current message and whether it reports a failure.
// Expired messages read as empty.
func (f *Flash) Get() (string, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if time.Now().After(f.expires) {
		return "", false
	}
	return f.message, f.isErr
}
