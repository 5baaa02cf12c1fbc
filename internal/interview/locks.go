package interview

import (
	"context"
	"sync"
)

// sessionLocks serialises work on a single session id. Entries are reference
// counted and removed once nobody holds or waits on them.
type sessionLocks struct {
	mu    sync.Mutex
	locks map[string]*sessionLock
}

type sessionLock struct {
	ch   chan struct{}
	refs int
}

func newSessionLocks() *sessionLocks {
	return &sessionLocks{locks: make(map[string]*sessionLock)}
}

// acquire blocks until the lock for id is held or ctx is done. The returned
// func releases it and must be called exactly once.
func (l *sessionLocks) acquire(ctx context.Context, id string) (func(), error) {
	l.mu.Lock()
	lk, ok := l.locks[id]
	if !ok {
		lk = &sessionLock{ch: make(chan struct{}, 1)}
		l.locks[id] = lk
	}
	lk.refs++
	l.mu.Unlock()

	select {
	case lk.ch <- struct{}{}:
		return func() {
			<-lk.ch
			l.release(id, lk)
		}, nil
	case <-ctx.Done():
		l.release(id, lk)
		return nil, ctx.Err()
	}
}

func (l *sessionLocks) release(id string, lk *sessionLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	lk.refs--
	if lk.refs == 0 {
		delete(l.locks, id)
	}
}

// held returns the number of ids with a live lock entry.
func (l *sessionLocks) held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
