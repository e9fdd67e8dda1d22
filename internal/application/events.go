// Package application contains use-case orchestration services.
package application

import (
	"sync"

	"github.com/ericfisherdev/bountywatch/internal/domain/model"
)

// EventSink receives committed domain events for dispatch. Publish must not
// block the caller indefinitely; the dispatcher buffers internally.
type EventSink interface {
	Publish(ev model.DomainEvent)
}

// keyedMutex serializes work per string key. Lock blocks until the key is
// free; TryLock reports false without blocking when it is held.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*sync.Mutex)}
}

func (k *keyedMutex) get(key string) *sync.Mutex {
	k.mu.Lock()
	defer k.mu.Unlock()
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	return m
}

func (k *keyedMutex) Lock(key string) {
	k.get(key).Lock()
}

func (k *keyedMutex) TryLock(key string) bool {
	return k.get(key).TryLock()
}

func (k *keyedMutex) Unlock(key string) {
	k.get(key).Unlock()
}
