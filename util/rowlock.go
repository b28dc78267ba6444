// util/rowlock.go

package util

import (
	"context"
	"sync"
)

// RowLocker serializes all row mutations for a given email so a verification
// and a concurrent reconciliation cycle cannot race on the same row.
// Implemented here as an in-process keyed mutex; db.RedisRowLocker provides
// a cross-instance variant.
type RowLocker interface {
	// Lock acquires the lock for key and returns its release func.
	Lock(ctx context.Context, key string) (func(), error)
}

// KeyedMutex is the in-process RowLocker. Entries are ref-counted and
// dropped once the last holder releases, so the map stays bounded by the
// number of keys locked concurrently rather than ever seen.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	sync.Mutex
	refs int
}

var _ RowLocker = &KeyedMutex{}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*keyedLock)}
}

func (k *KeyedMutex) Lock(ctx context.Context, key string) (func(), error) {
	k.mu.Lock()
	lock, ok := k.locks[key]
	if !ok {
		lock = &keyedLock{}
		k.locks[key] = lock
	}
	lock.refs++
	k.mu.Unlock()

	lock.Lock()
	release := func() {
		lock.Unlock()
		k.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
	return release, nil
}

// Len reports how many keys currently have a live lock entry.
func (k *KeyedMutex) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
