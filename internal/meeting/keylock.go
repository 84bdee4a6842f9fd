package meeting

import "sync"

// KeyLock serializes critical sections per string key. The session
// store has no compare-and-swap, so every read-modify-write for one
// meeting id must run under that id's lock.
//
// Lock entries are never removed; they are bounded by the number of
// distinct meeting ids seen over the process lifetime.
type KeyLock struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewKeyLock() *KeyLock {
	return &KeyLock{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the mutex for key and returns its unlock function.
func (k *KeyLock) Lock(key string) func() {
	k.mu.Lock()
	lock, ok := k.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		k.locks[key] = lock
	}
	k.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}
