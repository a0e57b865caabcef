package storage

import (
	"strconv"
	"sync"
	"time"
)

// IDGenerator mints stable task identifiers.
type IDGenerator interface {
	NewID() string
}

// clockIDGenerator derives IDs from the wall clock in milliseconds. IDs are
// strictly increasing within a process even when the clock stalls or steps
// backwards.
type clockIDGenerator struct {
	mu   sync.Mutex
	now  func() time.Time
	last int64
}

// NewIDGenerator returns an IDGenerator backed by the system clock.
func NewIDGenerator() IDGenerator {
	return &clockIDGenerator{now: time.Now}
}

func (g *clockIDGenerator) NewID() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	next := g.now().UnixMilli()
	if next <= g.last {
		next = g.last + 1
	}
	g.last = next
	return strconv.FormatInt(next, 10)
}

// idFromTime synthesises an ID from a timestamp, bumping it until it does not
// collide with any ID in used. The chosen ID is recorded in used.
func idFromTime(ts time.Time, used map[string]bool) string {
	n := ts.UnixMilli()
	for {
		id := strconv.FormatInt(n, 10)
		if !used[id] {
			used[id] = true
			return id
		}
		n++
	}
}
