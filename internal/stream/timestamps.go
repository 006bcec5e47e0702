package stream

import (
	"sync"
	"time"
)

// Timestamps assigns and memoizes a stable creation time per message id for
// the lifetime of a conversation view. Re-deriving the view must not move
// message timestamps around.
type Timestamps struct {
	mu   sync.Mutex
	seen map[string]time.Time
	now  func() time.Time
}

func NewTimestamps() *Timestamps {
	return &Timestamps{
		seen: make(map[string]time.Time),
		now:  time.Now,
	}
}

// At returns the memoized creation time for id, assigning one on first sight.
func (t *Timestamps) At(id string) time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()

	if ts, ok := t.seen[id]; ok {
		return ts
	}
	ts := t.now()
	t.seen[id] = ts
	return ts
}

// Reset drops all memoized times. Called when the conversation view changes.
func (t *Timestamps) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.seen = make(map[string]time.Time)
}
