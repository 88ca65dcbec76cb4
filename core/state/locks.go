package state

import (
	"sort"
	"sync"
)

// Locker hands out exclusive per-record locks. Operations that mutate a set of
// records lock all of them up front; invocations over disjoint records never
// contend.
type Locker struct {
	mu    sync.Mutex
	locks map[string]*recordLock
}

type recordLock struct {
	mu   sync.Mutex
	refs int
}

// NewLocker returns an empty Locker.
func NewLocker() *Locker {
	return &Locker{locks: make(map[string]*recordLock)}
}

// Lock blocks until every key is held and returns the function releasing them.
// Keys are acquired in sorted order and duplicates are collapsed, so two
// callers locking overlapping sets cannot deadlock.
func (l *Locker) Lock(keys ...[]byte) (unlock func()) {
	names := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		name := string(key)
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	sort.Strings(names)

	held := make([]*recordLock, 0, len(names))
	for _, name := range names {
		lock := l.acquire(name)
		lock.mu.Lock()
		held = append(held, lock)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			for i := len(held) - 1; i >= 0; i-- {
				held[i].mu.Unlock()
				l.release(names[i])
			}
		})
	}
}

func (l *Locker) acquire(name string) *recordLock {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.locks == nil {
		l.locks = make(map[string]*recordLock)
	}
	lock, ok := l.locks[name]
	if !ok {
		lock = &recordLock{}
		l.locks[name] = lock
	}
	lock.refs++
	return lock
}

func (l *Locker) release(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	lock, ok := l.locks[name]
	if !ok {
		return
	}
	lock.refs--
	if lock.refs <= 0 {
		delete(l.locks, name)
	}
}

// Held reports how many distinct records are currently locked or awaited.
func (l *Locker) Held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
