package scheduler

import (
	"context"
	"sync"
)

// Locker serialises check-and-commit sections per resource key.
// The returned unlock function releases every key acquired by the call.
type Locker interface {
	Lock(ctx context.Context, keys ...Key) (unlock func(), err error)
}

// KeyedMutex is an in-process Locker holding one mutex per resource key.
// Entries are reference counted and dropped once nobody waits on them.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[Key]*keyLock
}

type keyLock struct {
	sem  chan struct{}
	refs int
}

// NewKeyedMutex constructs an empty keyed mutex.
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[Key]*keyLock)}
}

// Lock acquires every key in sorted order. If ctx ends while waiting, the keys
// acquired so far are released and ctx.Err() is returned.
func (m *KeyedMutex) Lock(ctx context.Context, keys ...Key) (func(), error) {
	ordered := SortKeys(keys)
	acquired := make([]Key, 0, len(ordered))

	release := func() {
		for i := len(acquired) - 1; i >= 0; i-- {
			m.release(acquired[i])
		}
	}

	for _, key := range ordered {
		if err := m.acquire(ctx, key); err != nil {
			release()
			return func() {}, err
		}
		acquired = append(acquired, key)
	}

	var once sync.Once
	return func() { once.Do(release) }, nil
}

func (m *KeyedMutex) acquire(ctx context.Context, key Key) error {
	m.mu.Lock()
	if m.locks == nil {
		m.locks = make(map[Key]*keyLock)
	}
	l, ok := m.locks[key]
	if !ok {
		l = &keyLock{sem: make(chan struct{}, 1)}
		m.locks[key] = l
	}
	l.refs++
	m.mu.Unlock()

	select {
	case l.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		m.drop(key, l)
		return ctx.Err()
	}
}

func (m *KeyedMutex) release(key Key) {
	m.mu.Lock()
	l, ok := m.locks[key]
	m.mu.Unlock()
	if !ok {
		return
	}
	<-l.sem
	m.drop(key, l)
}

func (m *KeyedMutex) drop(key Key, l *keyLock) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(m.locks, key)
	}
}

// held reports how many keys currently have waiters or holders.
func (m *KeyedMutex) held() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}
