package internal

import "sync"

// KeyLock serializes work per key inside one process. Entries are reference
// counted and dropped once no goroutine holds or waits for them.
type KeyLock[K comparable] struct {
	mu    sync.Mutex
	locks map[K]*keyLockEntry
}

type keyLockEntry struct {
	mu   sync.Mutex
	refs int
}

func NewKeyLock[K comparable]() *KeyLock[K] {
	return &KeyLock[K]{locks: make(map[K]*keyLockEntry)}
}

// Lock blocks until key is free and returns the matching unlock function.
func (l *KeyLock[K]) Lock(key K) (unlock func()) {
	l.mu.Lock()
	e, ok := l.locks[key]
	if !ok {
		e = &keyLockEntry{}
		l.locks[key] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		l.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}
}

// Len reports how many keys are currently held or awaited.
func (l *KeyLock[K]) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
