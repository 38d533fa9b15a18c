// Package lock provides keyed locking for concurrent transaction
// coordination. Operations sharing a resource key (one buyer+product,
// one user's balance) are serialized; unrelated keys proceed
// concurrently.
package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultTimeout is the bounded wait for interactive lock acquisition.
const DefaultTimeout = 3 * time.Second

// keyMutex wraps a mutex with bookkeeping for the sweeper.
type keyMutex struct {
	mu       sync.Mutex
	refCount atomic.Int32
	touched  atomic.Int64 // unix nano of last acquisition
}

// KeyLock is a registry of per-key mutexes. Entries are created lazily
// and evicted by a background sweep once idle, so the map stays bounded
// under many distinct users and products.
type KeyLock struct {
	mu    sync.Mutex
	locks map[string]*keyMutex

	maxIdle time.Duration
	stop    chan struct{}
	done    chan struct{}
}

// NewKeyLock creates a KeyLock. If sweepInterval is positive a
// background sweeper evicts entries that have been unlocked and
// untouched for maxIdle; Close stops it.
func NewKeyLock(sweepInterval, maxIdle time.Duration) *KeyLock {
	kl := &KeyLock{
		locks:   make(map[string]*keyMutex),
		maxIdle: maxIdle,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	if sweepInterval > 0 {
		go kl.sweepLoop(sweepInterval)
	} else {
		close(kl.done)
	}
	return kl
}

// get retrieves or creates the mutex for key. The reference count is
// incremented under the registry mutex so the sweeper never evicts an
// entry a caller is about to lock.
func (kl *KeyLock) get(key string) *keyMutex {
	kl.mu.Lock()
	defer kl.mu.Unlock()

	km, ok := kl.locks[key]
	if !ok {
		km = &keyMutex{}
		kl.locks[key] = km
	}
	km.refCount.Add(1)
	return km
}

// Acquire blocks until the lock for key is held or the timeout elapses.
// A non-positive timeout uses DefaultTimeout. On timeout or context
// cancellation it returns ErrLockTimeout and no lock is held; the
// caller may retry, no state has been touched.
func (kl *KeyLock) Acquire(ctx context.Context, key string, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	km := kl.get(key)

	acquired := make(chan struct{})
	go func() {
		km.mu.Lock()
		close(acquired)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-acquired:
		km.touched.Store(time.Now().UnixNano())
		return nil
	case <-ctx.Done():
	case <-timer.C:
	}

	// The waiter goroutine will still acquire eventually; hand the
	// lock straight back and drop our reference.
	go func() {
		<-acquired
		km.refCount.Add(-1)
		km.mu.Unlock()
	}()
	return ErrLockTimeout
}

// TryAcquire acquires the lock for key without blocking.
func (kl *KeyLock) TryAcquire(key string) bool {
	km := kl.get(key)
	if km.mu.TryLock() {
		km.touched.Store(time.Now().UnixNano())
		return true
	}
	km.refCount.Add(-1)
	return false
}

// Release releases the lock for key. It must pair with a successful
// Acquire or TryAcquire.
func (kl *KeyLock) Release(key string) {
	kl.mu.Lock()
	km, ok := kl.locks[key]
	kl.mu.Unlock()
	if !ok {
		return
	}
	km.refCount.Add(-1)
	km.mu.Unlock()
}

// WithLock runs fn while holding the lock for key, releasing it on
// every exit path including panics.
func (kl *KeyLock) WithLock(ctx context.Context, key string, timeout time.Duration, fn func() error) error {
	if err := kl.Acquire(ctx, key, timeout); err != nil {
		return err
	}
	defer kl.Release(key)
	return fn()
}

// Len reports the number of registered lock entries.
func (kl *KeyLock) Len() int {
	kl.mu.Lock()
	defer kl.mu.Unlock()
	return len(kl.locks)
}

// Close stops the background sweeper.
func (kl *KeyLock) Close() {
	select {
	case <-kl.stop:
	default:
		close(kl.stop)
	}
	<-kl.done
}

func (kl *KeyLock) sweepLoop(interval time.Duration) {
	defer close(kl.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			kl.sweep(time.Now())
		case <-kl.stop:
			return
		}
	}
}

// sweep evicts entries with no holders or waiters that have been idle
// longer than maxIdle.
func (kl *KeyLock) sweep(now time.Time) {
	cutoff := now.Add(-kl.maxIdle).UnixNano()

	kl.mu.Lock()
	defer kl.mu.Unlock()

	for key, km := range kl.locks {
		if km.refCount.Load() != 0 {
			continue
		}
		if km.touched.Load() > cutoff {
			continue
		}
		if !km.mu.TryLock() {
			continue
		}
		delete(kl.locks, key)
		km.mu.Unlock()
	}
}
