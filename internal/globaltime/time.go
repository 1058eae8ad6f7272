// Package globaltime is the process-wide clock. Production code reads
// it through UTC; tests pin it with Freeze.
package globaltime

import (
	"sync"
	"time"
)

var (
	mu     sync.RWMutex
	frozen *time.Time
)

// Now returns the current clock reading, honoring a frozen clock.
func Now() time.Time {
	mu.RLock()
	defer mu.RUnlock()
	if frozen != nil {
		return *frozen
	}
	return time.Now()
}

// UTC is the timestamp source for every persisted row.
func UTC() time.Time {
	return Now().UTC()
}

// Freeze pins the clock to t until Unfreeze is called.
func Freeze(t time.Time) {
	mu.Lock()
	defer mu.Unlock()
	frozen = &t
}

// Unfreeze restores the wall clock.
func Unfreeze() {
	mu.Lock()
	defer mu.Unlock()
	frozen = nil
}
