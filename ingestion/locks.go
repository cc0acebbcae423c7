package ingestion

import (
	"sync"

	"github.com/poiesic/sibyl/core"
)

// docLocks serializes work on the same document id.
type docLocks struct {
	mu    sync.Mutex
	locks map[core.DocumentID]*docLock
}

type docLock struct {
	mu   sync.Mutex
	refs int
}

func newDocLocks() *docLocks {
	return &docLocks{locks: make(map[core.DocumentID]*docLock)}
}

// lock acquires the lock for id and returns its release function.
func (l *docLocks) lock(id core.DocumentID) func() {
	l.mu.Lock()
	dl, ok := l.locks[id]
	if !ok {
		dl = &docLock{}
		l.locks[id] = dl
	}
	dl.refs++
	l.mu.Unlock()

	dl.mu.Lock()
	return func() {
		dl.mu.Unlock()
		l.mu.Lock()
		dl.refs--
		if dl.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}
