package canvas

import (
	"context"
	"sync"
	"time"
)

// Locker serializes writers of one session.
type Locker interface {
	Lock(ctx context.Context, sessionID string) error
	Unlock(sessionID string)
}

// DefaultLockTimeout bounds how long a writer waits for a session lock.
const DefaultLockTimeout = 10 * time.Second

// LocalLocker is an in-process per-session lock. It does not coordinate
// writers running in other processes.
//
// LocalLocker is safe for concurrent use.
type LocalLocker struct {
	timeout time.Duration

	mu    sync.Mutex
	locks map[string]*sessionLock
}

type sessionLock struct {
	held chan struct{}
	refs int
}

// NewLocalLocker creates a locker; timeout <= 0 uses DefaultLockTimeout.
func NewLocalLocker(timeout time.Duration) *LocalLocker {
	if timeout <= 0 {
		timeout = DefaultLockTimeout
	}
	return &LocalLocker{timeout: timeout, locks: make(map[string]*sessionLock)}
}

// Lock blocks until the session lock is held, ctx is done, or the timeout
// elapses, in which case ErrLockTimeout is returned.
func (l *LocalLocker) Lock(ctx context.Context, sessionID string) error {
	l.mu.Lock()
	lock, ok := l.locks[sessionID]
	if !ok {
		lock = &sessionLock{held: make(chan struct{}, 1)}
		l.locks[sessionID] = lock
	}
	lock.refs++
	l.mu.Unlock()

	timer := time.NewTimer(l.timeout)
	defer timer.Stop()

	select {
	case lock.held <- struct{}{}:
		return nil
	case <-ctx.Done():
		l.release(sessionID, lock)
		return ctx.Err()
	case <-timer.C:
		l.release(sessionID, lock)
		return ErrLockTimeout
	}
}

// Unlock releases a lock acquired with Lock.
func (l *LocalLocker) Unlock(sessionID string) {
	l.mu.Lock()
	lock, ok := l.locks[sessionID]
	l.mu.Unlock()
	if !ok {
		return
	}
	select {
	case <-lock.held:
	default:
		return
	}
	l.release(sessionID, lock)
}

func (l *LocalLocker) release(sessionID string, lock *sessionLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	lock.refs--
	if lock.refs <= 0 {
		delete(l.locks, sessionID)
	}
}
