package twofactor

import (
	"context"
	"strconv"
	"sync"

	"golang.org/x/sync/singleflight"
)

// CodeCache holds the last fetched backup-code list. Concurrent Gets share
// one request. Invalidate bumps a generation so a fetch that started before
// it can neither be joined nor stored by a later Get.
type CodeCache struct {
	lister CodeLister

	mu    sync.Mutex
	codes []string
	valid bool
	gen   uint64

	group singleflight.Group
}

func NewCodeCache(lister CodeLister) *CodeCache {
	return &CodeCache{lister: lister}
}

// Get returns the cached list, fetching it when the cache is empty.
func (c *CodeCache) Get(ctx context.Context) ([]string, error) {
	c.mu.Lock()
	if c.valid {
		codes := append([]string(nil), c.codes...)
		c.mu.Unlock()
		return codes, nil
	}
	gen := c.gen
	c.mu.Unlock()

	// The shared fetch outlives any one caller; each caller only stops
	// waiting when its own ctx ends.
	fetchCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(strconv.FormatUint(gen, 10), func() (any, error) {
		codes, err := c.lister.ListBackupCodes(fetchCtx)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		if c.gen == gen {
			c.codes = codes
			c.valid = true
		}
		c.mu.Unlock()
		return codes, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return append([]string(nil), res.Val.([]string)...), nil
	}
}

// Peek returns the cached list without fetching.
func (c *CodeCache) Peek() ([]string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.valid {
		return nil, false
	}
	return append([]string(nil), c.codes...), true
}

// Invalidate drops the cached list. The next Get always refetches.
func (c *CodeCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.codes = nil
	c.valid = false
}
