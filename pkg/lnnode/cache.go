package lnnode

import (
	"context"
	"golang.org/x/sync/singleflight"
	"sync"
)

// IdentityCache memoizes a node's public key for the lifetime of the node. Concurrent first
// lookups share a single fetch; failures are not cached.
type IdentityCache struct {
	mu     sync.RWMutex
	pubkey string
	group  singleflight.Group
}

// Cached returns the stored key without fetching.
func (c *IdentityCache) Cached() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pubkey, c.pubkey != ""
}

// Get returns the cached key or fetches it. The shared fetch is detached from the caller's
// cancellation so that one caller giving up does not fail the others waiting on it; each
// caller still returns as soon as its own ctx is done.
func (c *IdentityCache) Get(ctx context.Context, fetch func(ctx context.Context) (string, error)) (string, error) {
	if pubkey, ok := c.Cached(); ok {
		return pubkey, nil
	}

	fetchCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan("pubkey", func() (interface{}, error) {
		if pubkey, ok := c.Cached(); ok {
			return pubkey, nil
		}
		pubkey, err := fetch(fetchCtx)
		if err != nil {
			return "", err
		}

		c.mu.Lock()
		defer c.mu.Unlock()
		// first writer wins
		if c.pubkey == "" {
			c.pubkey = pubkey
		}
		return c.pubkey, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
