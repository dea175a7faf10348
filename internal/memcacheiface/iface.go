// Package memcacheiface narrows *memcache.Client to the calls each limiter makes,
// so tests can substitute fakes.
package memcacheiface

import "github.com/bradfitz/gomemcache/memcache"

// Client is what the fixed window counter needs.
type Client interface {
	Add(item *memcache.Item) error
	Increment(key string, delta uint64) (newValue uint64, err error)
}

// WindowClient is what the sliding window counter needs: it reads the previous
// window and takes back a rejected increment.
type WindowClient interface {
	Client
	Get(key string) (*memcache.Item, error)
	Decrement(key string, delta uint64) (newValue uint64, err error)
}

// CASClient is what read-modify-write limiters such as the token bucket need.
type CASClient interface {
	Get(key string) (*memcache.Item, error)
	Add(item *memcache.Item) error
	CompareAndSwap(item *memcache.Item) error
}

var (
	_ Client       = (*memcache.Client)(nil)
	_ WindowClient = (*memcache.Client)(nil)
	_ CASClient    = (*memcache.Client)(nil)
)
