package fingerprint

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"
)

var errEmptyFingerprint = errors.New("collector returned empty fingerprint")

// CollectFunc produces a fingerprint from the primary source.
type CollectFunc func(ctx context.Context) (string, error)

// Cache memoizes the primary fingerprint. Concurrent callers share one
// in-flight collection; a successful result is kept for the Cache's lifetime.
// Failures are not remembered.
type Cache struct {
	group singleflight.Group
	mu    sync.RWMutex
	value string
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{}
}

// Get returns the memoized value or runs collect once on behalf of all waiters.
// The shared collection keeps the first caller's deadline but not its
// cancellation, so a waiter that gives up does not fail the others.
func (c *Cache) Get(ctx context.Context, collect CollectFunc) (string, error) {
	c.mu.RLock()
	cached := c.value
	c.mu.RUnlock()
	if cached != "" {
		return cached, nil
	}

	ch := c.group.DoChan("primary", func() (_ interface{}, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("fingerprint collector panicked: %v", r)
			}
		}()
		runCtx := context.WithoutCancel(ctx)
		if deadline, ok := ctx.Deadline(); ok {
			var cancel context.CancelFunc
			runCtx, cancel = context.WithDeadline(runCtx, deadline)
			defer cancel()
		}
		value, err := collect(runCtx)
		if err != nil {
			return "", err
		}
		if value == "" {
			return "", errEmptyFingerprint
		}
		c.mu.Lock()
		c.value = value
		c.mu.Unlock()
		return value, nil
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

// Reset drops the memoized value.
func (c *Cache) Reset() {
	c.mu.Lock()
	c.value = ""
	c.mu.Unlock()
}
