package engine

import "sync"

// addressLocks hands out one mutex per key, serializing the conflict
// check-then-insert window per (multisig, network). Entries are never
// freed; the set is bounded by the number of multisigs the process serves.
type addressLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newAddressLocks() *addressLocks {
	return &addressLocks{locks: make(map[string]*sync.Mutex)}
}

func (l *addressLocks) get(key string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	return m
}
