package tokencache

import (
	"sync"

	"pkt.systems/todosync/schema"
)

// Locks hands out one read/write lock per identity so unrelated users do not
// serialize on each other.
type Locks struct {
	mu    sync.Mutex
	locks map[schema.Identity]*sync.RWMutex
}

// NewLocks returns an empty lock registry.
func NewLocks() *Locks {
	return &Locks{locks: make(map[schema.Identity]*sync.RWMutex)}
}

// For returns the lock guarding identity's cache entry.
func (l *Locks) For(identity schema.Identity) *sync.RWMutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	lock, ok := l.locks[identity]
	if !ok {
		lock = &sync.RWMutex{}
		l.locks[identity] = lock
	}
	return lock
}

var processLocks = NewLocks()
