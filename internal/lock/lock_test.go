package lock

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestLockSerializesSameKey(t *testing.T) {
	r := New(t.TempDir(), 5*time.Millisecond)
	ctx := context.Background()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := r.Lock(ctx, "list-a")
			if err != nil {
				t.Errorf("Lock: %v", err)
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			unlock()
		}()
	}
	wg.Wait()

	if maxInside != 1 {
		t.Errorf("max concurrent holders = %d, want 1", maxInside)
	}
	if len(r.sems) != 0 {
		t.Errorf("semaphores left after release: %d", len(r.sems))
	}
}

func TestLockCreatesLockFiles(t *testing.T) {
	dir := t.TempDir()
	r := New(dir, 0)

	unlock, err := r.Lock(context.Background(), "b", "a", "b")
	if err != nil {
		t.Fatalf("Lock: %v", err)
	}
	defer unlock()

	for _, name := range []string{"list-a.lock", "list-b.lock"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("expected lock file %s: %v", name, err)
		}
	}
}

func TestLockHonorsContext(t *testing.T) {
	r := New("", 0)
	unlock, err := r.Lock(context.Background(), "a")
	if err != nil {
		t.Fatalf("Lock: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := r.Lock(ctx, "a"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Lock while held error = %v, want deadline exceeded", err)
	}

	unlock()
	unlock() // second call is a no-op

	again, err := r.Lock(context.Background(), "a")
	if err != nil {
		t.Fatalf("Lock after release: %v", err)
	}
	again()
}

func TestLockDifferentKeysDoNotBlock(t *testing.T) {
	r := New("", 0)
	unlockA, err := r.Lock(context.Background(), "a")
	if err != nil {
		t.Fatalf("Lock(a): %v", err)
	}
	defer unlockA()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	unlockB, err := r.Lock(ctx, "b")
	if err != nil {
		t.Fatalf("Lock(b) while a held: %v", err)
	}
	unlockB()
}

type failingLock struct{}

func (failingLock) TryLockContext(context.Context, time.Duration) (bool, error) {
	return false, errors.New("disk on fire")
}
func (failingLock) Unlock() error { return nil }

func TestLockReleasesOnFileLockFailure(t *testing.T) {
	r := New(t.TempDir(), 0)
	r.open = func(string) FileLock { return failingLock{} }

	if _, err := r.Lock(context.Background(), "a", "b"); err == nil {
		t.Fatal("expected error from failing lock file")
	}
	if len(r.sems) != 0 {
		t.Errorf("semaphores left after failure: %d", len(r.sems))
	}
}

func TestLockPathSanitizesKey(t *testing.T) {
	r := New("/locks", 0)
	if got := r.path("../etc/passwd"); got != filepath.Join("/locks", "list-___etc_passwd.lock") {
		t.Errorf("path = %q", got)
	}
}
