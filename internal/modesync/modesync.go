// Package modesync debounces and coalesces thread permission-mode changes
// before syncing them to the backend: rapid toggles for the same thread
// collapse to the last intent, and the actual sync call fires one debounce
// window after the first queued change; later changes inside that window
// join the same batch and do not extend it.
package modesync

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spoq-dev/spoq/internal/cache"
	"github.com/spoq-dev/spoq/internal/spoqerr"
)

// DefaultDebounce matches the backend's own tolerance for rapid toggles.
const DefaultDebounce = 200 * time.Millisecond

// Syncer pushes a thread's mode to the backend over its two related
// endpoints. Implementations should treat failures as non-fatal: local
// state stays authoritative regardless of sync outcome.
type Syncer interface {
	SyncThreadMode(ctx context.Context, threadID string, mode cache.PermissionMode) error
	SyncPermissionMode(ctx context.Context, threadID string, mode cache.PermissionMode) error
}

// Coordinator coalesces per-thread mode changes and syncs them to the
// backend on a debounce timer, matching spec §4.11.
type Coordinator struct {
	mu           sync.Mutex
	pending      map[string]cache.PermissionMode
	taskRunning  bool
	debounce     time.Duration
	syncer       Syncer
	logger       *zap.Logger
	retryDelay   time.Duration
	backgroundWg sync.WaitGroup
}

// New constructs a Coordinator with the default 200ms debounce window.
func New(syncer Syncer, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		pending:    make(map[string]cache.PermissionMode),
		debounce:   DefaultDebounce,
		syncer:     syncer,
		logger:     logger,
		retryDelay: 100 * time.Millisecond,
	}
}

// WithDebounce overrides the debounce window (tests use a short one).
func (c *Coordinator) WithDebounce(d time.Duration) *Coordinator {
	c.debounce = d
	return c
}

// RequestModeChange queues a mode change for threadID, coalescing with any
// not-yet-synced change for the same thread (last-intent-wins), and starts
// the debounce task if one isn't already running. Fire-and-forget: returns
// immediately.
func (c *Coordinator) RequestModeChange(threadID string, mode cache.PermissionMode) {
	c.mu.Lock()
	c.pending[threadID] = mode
	shouldSpawn := !c.taskRunning
	if shouldSpawn {
		c.taskRunning = true
	}
	c.mu.Unlock()

	if shouldSpawn {
		c.backgroundWg.Add(1)
		go c.runDebounceLoop()
	}
}

// PendingCount reports how many thread mode changes are queued, for tests.
func (c *Coordinator) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// IsTaskRunning reports whether a debounce task is currently active, for tests.
func (c *Coordinator) IsTaskRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.taskRunning
}

// Wait blocks until every in-flight debounce loop has exited, for tests.
func (c *Coordinator) Wait() {
	c.backgroundWg.Wait()
}

func (c *Coordinator) runDebounceLoop() {
	defer c.backgroundWg.Done()
	for {
		time.Sleep(c.debounce)

		toSync := c.drain()
		if len(toSync) == 0 {
			c.mu.Lock()
			c.taskRunning = false
			c.mu.Unlock()
			return
		}

		for threadID, mode := range toSync {
			c.syncOne(threadID, mode)
		}

		c.mu.Lock()
		empty := len(c.pending) == 0
		if empty {
			c.taskRunning = false
		}
		c.mu.Unlock()
		if empty {
			return
		}
	}
}

func (c *Coordinator) drain() map[string]cache.PermissionMode {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.pending) == 0 {
		return nil
	}
	drained := c.pending
	c.pending = make(map[string]cache.PermissionMode)
	return drained
}

// syncOne issues both the thread-mode and permission-mode endpoint calls
// concurrently, retrying each once after a short delay on a retryable
// failure (spoqerr.Retryable), then
// logs and drops any remaining error: local state stays authoritative
// regardless of backend sync outcome.
func (c *Coordinator) syncOne(threadID string, mode cache.PermissionMode) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		c.callWithRetry("thread_mode", threadID, mode, c.syncer.SyncThreadMode)
	}()
	go func() {
		defer wg.Done()
		c.callWithRetry("permission_mode", threadID, mode, c.syncer.SyncPermissionMode)
	}()
	wg.Wait()
}

func (c *Coordinator) callWithRetry(endpoint, threadID string, mode cache.PermissionMode, call func(context.Context, string, cache.PermissionMode) error) {
	ctx := context.Background()
	err := call(ctx, threadID, mode)
	if err == nil {
		return
	}
	if !spoqerr.Retryable(err) {
		c.logger.Debug("mode sync failed, not retrying",
			zap.String("endpoint", endpoint),
			zap.String("thread_id", threadID),
			zap.String("mode", string(mode)),
			zap.Error(err))
		return
	}
	time.Sleep(c.retryDelay)
	if err := call(ctx, threadID, mode); err != nil {
		c.logger.Debug("mode sync failed after retry",
			zap.String("endpoint", endpoint),
			zap.String("thread_id", threadID),
			zap.String("mode", string(mode)),
			zap.Error(err))
	}
}
