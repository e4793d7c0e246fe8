package gateway

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
)

// Cached remembers terminal statuses per handle so repeated polls after a
// verdict do not hit the vendor again. Pending statuses are never cached.
type Cached struct {
	next  Gateway
	cache *cache.Cache
}

func NewCached(next Gateway, ttl time.Duration) *Cached {
	return &Cached{next: next, cache: cache.New(ttl, 2*ttl)}
}

func (c *Cached) Initiate(ctx context.Context, req InitiateRequest) (*Handle, error) {
	return c.next.Initiate(ctx, req)
}

func (c *Cached) PollStatus(ctx context.Context, handle Handle) (*Status, error) {
	key := cacheKey(handle)
	if v, ok := c.cache.Get(key); ok {
		st := v.(Status)
		return &st, nil
	}
	st, err := c.next.PollStatus(ctx, handle)
	if err != nil {
		return nil, err
	}
	if st.State.IsTerminal() {
		c.cache.SetDefault(key, *st)
	}
	return st, nil
}

func (c *Cached) Cancel(ctx context.Context, handle Handle) error {
	c.cache.Delete(cacheKey(handle))
	if canceler, ok := c.next.(Canceler); ok {
		return canceler.Cancel(ctx, handle)
	}
	return nil
}

func cacheKey(h Handle) string {
	return string(h.Kind) + ":" + h.ID
}
