package conversation

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/PabloGalante/chat-relay/internal/domain"
)

// Locker serializes work per identity. Distinct identities never wait on
// each other; entries are dropped once no caller holds or awaits them.
type Locker struct {
	mu    sync.Mutex
	locks map[domain.Identity]*identityLock
}

type identityLock struct {
	sem  *semaphore.Weighted
	refs int
}

func NewLocker() *Locker {
	return &Locker{locks: make(map[domain.Identity]*identityLock)}
}

// Lock blocks until id is free or ctx is done. The returned func releases it
// and must be called exactly once.
func (l *Locker) Lock(ctx context.Context, id domain.Identity) (func(), error) {
	l.mu.Lock()
	il, ok := l.locks[id]
	if !ok {
		il = &identityLock{sem: semaphore.NewWeighted(1)}
		l.locks[id] = il
	}
	il.refs++
	l.mu.Unlock()

	if err := il.sem.Acquire(ctx, 1); err != nil {
		l.unref(id, il)
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			il.sem.Release(1)
			l.unref(id, il)
		})
	}, nil
}

func (l *Locker) unref(id domain.Identity, il *identityLock) {
	l.mu.Lock()
	defer l.mu.Unlock()

	il.refs--
	if il.refs == 0 {
		delete(l.locks, id)
	}
}

// Len reports how many identities currently hold or await a lock.
func (l *Locker) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
