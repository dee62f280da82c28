package bridge

import "sync"

// defaultLockStripes is the number of stripes used when none is configured
const defaultLockStripes = 64

// KeyedMutex serializes work per order id using a fixed set of striped
// mutexes. Distinct ids may share a stripe; the same id always does.
type KeyedMutex struct {
	stripes []sync.Mutex
}

// NewKeyedMutex creates a KeyedMutex with n stripes
func NewKeyedMutex(n int) *KeyedMutex {
	if n <= 0 {
		n = defaultLockStripes
	}
	return &KeyedMutex{stripes: make([]sync.Mutex, n)}
}

// Lock acquires the stripe for key and returns its unlock function
func (k *KeyedMutex) Lock(key int64) func() {
	m := &k.stripes[uint64(key)%uint64(len(k.stripes))]
	m.Lock()
	return m.Unlock
}
