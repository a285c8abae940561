package reconcile

import "sync"

// keyedMutex hands out one mutex per key and frees it when no holder or
// waiter remains.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*refMutex)}
}

// Lock blocks until key is held and returns the matching unlock.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

func (k *keyedMutex) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}

// Locks serializes work per assignment and per student. Callers outside the
// reconciler take the assignment lock to read a consistent log and board.
type Locks struct {
	keys *keyedMutex
}

// NewLocks creates an empty lock table.
func NewLocks() *Locks {
	return &Locks{keys: newKeyedMutex()}
}

// Assignment blocks until assignmentID is held and returns the unlock.
func (l *Locks) Assignment(assignmentID string) func() {
	return l.keys.Lock("assignment:" + assignmentID)
}

// Student blocks until studentID is held and returns the unlock.
func (l *Locks) Student(studentID string) func() {
	return l.keys.Lock("student:" + studentID)
}
