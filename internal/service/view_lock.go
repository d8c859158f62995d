package service

import "sync"

// viewLocks serialises state reads and writes per view id. Entries are
// dropped once no goroutine holds or waits for them.
type viewLocks struct {
	mu    sync.Mutex
	locks map[string]*viewLock
}

type viewLock struct {
	mu   sync.Mutex
	refs int
}

func newViewLocks() *viewLocks {
	return &viewLocks{locks: make(map[string]*viewLock)}
}

// lock blocks until id is free and returns the matching unlock.
func (l *viewLocks) lock(id string) func() {
	l.mu.Lock()
	entry, ok := l.locks[id]
	if !ok {
		entry = &viewLock{}
		l.locks[id] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}

func (l *viewLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
