// Package lock provides per-list advisory locks that serialize dependency
// mutations within a process and across processes sharing a database.
package lock

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/marcus/trellis/internal/logging"
)

// DefaultRetryInterval is how often a contended lock file is retried.
const DefaultRetryInterval = 50 * time.Millisecond

// FileLock is the cross-process half of a key lock.
type FileLock interface {
	TryLockContext(ctx context.Context, retryInterval time.Duration) (bool, error)
	Unlock() error
}

// Registry hands out locks keyed by list id. Each key is guarded by an
// in-process semaphore and, when a directory is configured, a lock file.
type Registry struct {
	dir   string
	retry time.Duration
	open  func(path string) FileLock
	log   *logging.Logger

	mu   sync.Mutex
	sems map[string]*semaphore
}

type semaphore struct {
	ch   chan struct{}
	refs int
}

// New creates a registry keeping lock files in dir. An empty dir disables
// cross-process locking.
func New(dir string, retry time.Duration) *Registry {
	if retry <= 0 {
		retry = DefaultRetryInterval
	}
	return &Registry{
		dir:   dir,
		retry: retry,
		open:  func(path string) FileLock { return flock.New(path) },
		log:   logging.Component("lock"),
		sems:  make(map[string]*semaphore),
	}
}

// Lock acquires every key in sorted order and returns a function releasing
// them. Duplicate keys are acquired once. Waiting stops when ctx is done.
func (r *Registry) Lock(ctx context.Context, keys ...string) (func(), error) {
	keys = slices.Clone(keys)
	slices.Sort(keys)
	keys = slices.Compact(keys)

	if r.dir != "" {
		if err := os.MkdirAll(r.dir, 0755); err != nil {
			return nil, fmt.Errorf("creating lock dir: %w", err)
		}
	}

	var held []func()
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i]()
		}
	}
	for _, key := range keys {
		unlock, err := r.lockKey(ctx, key)
		if err != nil {
			release()
			return nil, err
		}
		held = append(held, unlock)
	}

	var once sync.Once
	return func() { once.Do(release) }, nil
}

func (r *Registry) lockKey(ctx context.Context, key string) (func(), error) {
	sem := r.acquireRef(key)
	select {
	case sem.ch <- struct{}{}:
	case <-ctx.Done():
		r.releaseRef(key)
		return nil, fmt.Errorf("waiting for lock %s: %w", key, ctx.Err())
	}

	unlockSem := func() {
		<-sem.ch
		r.releaseRef(key)
	}
	if r.dir == "" {
		return unlockSem, nil
	}

	fl := r.open(r.path(key))
	ok, err := fl.TryLockContext(ctx, r.retry)
	if err != nil || !ok {
		unlockSem()
		if err == nil {
			err = ctx.Err()
		}
		return nil, fmt.Errorf("acquiring lock file for %s: %w", key, err)
	}
	r.log.Debug().Str("key", key).Msg("lock acquired")

	return func() {
		if err := fl.Unlock(); err != nil {
			r.log.Warn().Err(err).Str("key", key).Msg("releasing lock file")
		}
		unlockSem()
	}, nil
}

func (r *Registry) acquireRef(key string) *semaphore {
	r.mu.Lock()
	defer r.mu.Unlock()
	sem, ok := r.sems[key]
	if !ok {
		sem = &semaphore{ch: make(chan struct{}, 1)}
		r.sems[key] = sem
	}
	sem.refs++
	return sem
}

func (r *Registry) releaseRef(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sem := r.sems[key]
	sem.refs--
	if sem.refs == 0 {
		delete(r.sems, key)
	}
}

func (r *Registry) path(key string) string {
	safe := strings.Map(func(c rune) rune {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
			return c
		}
		return '_'
	}, key)
	return filepath.Join(r.dir, "list-"+safe+".lock")
}
