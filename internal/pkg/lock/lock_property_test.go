// Property-based tests for keyed lock serialization.
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"pgregory.net/rapid"
)

// TestSerializedCounterProperty checks that concurrent read-modify-write
// cycles under the same key always produce the sequential result.
func TestSerializedCounterProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		initial := rapid.Int64Range(1000, 100000).Draw(rt, "initial")
		numOps := rapid.IntRange(2, 20).Draw(rt, "numOps")
		key := fmt.Sprintf("purchase:%d:P1", rapid.Int64Range(1, 1_000_000).Draw(rt, "buyer"))

		amounts := make([]int64, numOps)
		expected := initial
		for i := range amounts {
			amounts[i] = rapid.Int64Range(-500, 500).Draw(rt, "amount")
			expected += amounts[i]
		}

		kl := NewKeyLock(0, 0)
		balance := initial

		var wg sync.WaitGroup
		wg.Add(numOps)
		for _, amount := range amounts {
			go func(amount int64) {
				defer wg.Done()
				_ = kl.WithLock(context.Background(), key, time.Second, func() error {
					balance += amount
					return nil
				})
			}(amount)
		}
		wg.Wait()

		if balance != expected {
			rt.Fatalf("balance mismatch: expected %d, got %d", expected, balance)
		}
	})
}

// TestIndependentKeysProperty checks that distinct keys do not serialize
// against each other and each key's operations stay consistent.
func TestIndependentKeysProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		numKeys := rapid.IntRange(2, 10).Draw(rt, "numKeys")
		opsPerKey := rapid.IntRange(5, 20).Draw(rt, "opsPerKey")

		kl := NewKeyLock(0, 0)
		counters := make([]int64, numKeys)

		var wg sync.WaitGroup
		wg.Add(numKeys * opsPerKey)
		for k := 0; k < numKeys; k++ {
			key := fmt.Sprintf("withdrawal:user-%d", k)
			for j := 0; j < opsPerKey; j++ {
				go func(k int, key string) {
					defer wg.Done()
					_ = kl.WithLock(context.Background(), key, time.Second, func() error {
						counters[k] += 10
						return nil
					})
				}(k, key)
			}
		}
		wg.Wait()

		for k := 0; k < numKeys; k++ {
			if counters[k] != int64(opsPerKey)*10 {
				rt.Fatalf("key %d counter mismatch: expected %d, got %d",
					k, int64(opsPerKey)*10, counters[k])
			}
		}
	})
}

// TestAcquireReleaseSymmetryProperty checks the lock is always
// available again after matched acquire/release cycles.
func TestAcquireReleaseSymmetryProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		key := rapid.StringMatching(`[a-z]{1,10}:[0-9]{1,8}`).Draw(rt, "key")
		numCycles := rapid.IntRange(1, 50).Draw(rt, "numCycles")

		kl := NewKeyLock(0, 0)
		for i := 0; i < numCycles; i++ {
			if err := kl.Acquire(context.Background(), key, time.Second); err != nil {
				rt.Fatalf("acquire %d failed: %v", i, err)
			}
			kl.Release(key)
		}

		if !kl.TryAcquire(key) {
			rt.Fatal("lock should be available after symmetric cycles")
		}
		kl.Release(key)
	})
}

func TestAcquireTimeout(t *testing.T) {
	kl := NewKeyLock(0, 0)
	const key = "purchase:123:P1"

	if err := kl.Acquire(context.Background(), key, time.Second); err != nil {
		t.Fatalf("first acquire failed: %v", err)
	}

	err := kl.Acquire(context.Background(), key, 20*time.Millisecond)
	if !errors.Is(err, ErrLockTimeout) {
		t.Fatalf("expected ErrLockTimeout, got %v", err)
	}

	kl.Release(key)

	// The abandoned waiter hands the lock back; it must become
	// acquirable again.
	deadline := time.Now().Add(time.Second)
	for {
		if kl.TryAcquire(key) {
			kl.Release(key)
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("lock never became available after timed-out waiter")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestAcquireContextCancelled(t *testing.T) {
	kl := NewKeyLock(0, 0)
	const key = "withdrawal:u1"

	if err := kl.Acquire(context.Background(), key, time.Second); err != nil {
		t.Fatalf("first acquire failed: %v", err)
	}
	defer kl.Release(key)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := kl.Acquire(ctx, key, time.Second); !errors.Is(err, ErrLockTimeout) {
		t.Fatalf("expected ErrLockTimeout on cancelled context, got %v", err)
	}
}

func TestSweepEvictsIdleEntries(t *testing.T) {
	kl := NewKeyLock(0, 10*time.Millisecond)

	for i := 0; i < 32; i++ {
		key := fmt.Sprintf("purchase:%d:P1", i)
		if err := kl.Acquire(context.Background(), key, time.Second); err != nil {
			t.Fatalf("acquire failed: %v", err)
		}
		kl.Release(key)
	}
	if kl.Len() != 32 {
		t.Fatalf("expected 32 entries before sweep, got %d", kl.Len())
	}

	// Held entries must survive the sweep.
	if err := kl.Acquire(context.Background(), "held", time.Second); err != nil {
		t.Fatalf("acquire failed: %v", err)
	}

	time.Sleep(20 * time.Millisecond)
	kl.sweep(time.Now())

	if kl.Len() != 1 {
		t.Fatalf("expected only the held entry after sweep, got %d", kl.Len())
	}
	kl.Release("held")
}

func TestSweepKeepsWaitedOnEntries(t *testing.T) {
	kl := NewKeyLock(0, 0)
	const key = "purchase:1:P1"

	if err := kl.Acquire(context.Background(), key, time.Second); err != nil {
		t.Fatalf("acquire failed: %v", err)
	}

	var waited atomic.Bool
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := kl.Acquire(context.Background(), key, 5*time.Second); err == nil {
			waited.Store(true)
			kl.Release(key)
		}
	}()

	time.Sleep(10 * time.Millisecond)
	kl.sweep(time.Now())
	if kl.Len() != 1 {
		t.Fatalf("sweep evicted an entry with a waiter")
	}

	kl.Release(key)
	<-done
	if !waited.Load() {
		t.Fatal("waiter never acquired the lock")
	}
}
