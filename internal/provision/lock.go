package provision

import "sync"

// keyedMutex hands out one mutex per key.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (k *keyedMutex) get(key string) *sync.Mutex {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.locks == nil {
		k.locks = make(map[string]*sync.Mutex)
	}
	if m := k.locks[key]; m != nil {
		return m
	}
	m := &sync.Mutex{}
	k.locks[key] = m
	return m
}

// lock acquires every key in order and returns the matching unlock.
// Callers must pass keys in a consistent order.
func (k *keyedMutex) lock(keys ...string) func() {
	held := make([]*sync.Mutex, 0, len(keys))
	for _, key := range keys {
		m := k.get(key)
		m.Lock()
		held = append(held, m)
	}
	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}
}
