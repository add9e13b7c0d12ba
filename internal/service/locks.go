package service

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/raphaelgruber/legalchat/internal/models"
)

// keyedMutex serializes work per conversation. Entries are reference counted
// and removed once no goroutine holds or waits for them.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[models.ConversationID]*keyedEntry
}

type keyedEntry struct {
	sem  *semaphore.Weighted
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[models.ConversationID]*keyedEntry)}
}

// Lock waits until the key is free or ctx is done. On success it returns the
// unlock function.
func (k *keyedMutex) Lock(ctx context.Context, key models.ConversationID) (func(), error) {
	k.mu.Lock()
	e, ok := k.locks[key]
	if !ok {
		e = &keyedEntry{sem: semaphore.NewWeighted(1)}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	if err := e.sem.Acquire(ctx, 1); err != nil {
		k.release(key, e)
		return nil, err
	}
	return func() {
		e.sem.Release(1)
		k.release(key, e)
	}, nil
}

func (k *keyedMutex) release(key models.ConversationID, e *keyedEntry) {
	k.mu.Lock()
	defer k.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(k.locks, key)
	}
}

// Len returns the number of keys currently held or awaited.
func (k *keyedMutex) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
