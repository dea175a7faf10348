package memcachetest

import (
	"strconv"
	"sync"

	"github.com/bradfitz/gomemcache/memcache"

	"learn.wordgate/internal/memcacheiface"
)

// Fake is an in-process Memcache for unit tests. Expirations are ignored.
// CompareAndSwap succeeds only for an item returned by Get whose key has not
// been written since.
type Fake struct {
	mu       sync.Mutex
	values   map[string][]byte
	versions map[string]uint64
	issued   map[*memcache.Item]uint64

	// BeforeCAS runs before each CompareAndSwap; tests use it to race a writer.
	BeforeCAS func(item *memcache.Item)
	// Err, when set, is returned by every call.
	Err error
}

func NewFake() *Fake {
	return &Fake{
		values:   make(map[string][]byte),
		versions: make(map[string]uint64),
		issued:   make(map[*memcache.Item]uint64),
	}
}

func (f *Fake) Get(key string) (*memcache.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	v, ok := f.values[key]
	if !ok {
		return nil, memcache.ErrCacheMiss
	}
	item := &memcache.Item{Key: key, Value: append([]byte(nil), v...)}
	f.issued[item] = f.versions[key]
	return item, nil
}

func (f *Fake) Add(item *memcache.Item) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	if _, ok := f.values[item.Key]; ok {
		return memcache.ErrNotStored
	}
	f.store(item.Key, item.Value)
	return nil
}

func (f *Fake) CompareAndSwap(item *memcache.Item) error {
	if f.BeforeCAS != nil {
		f.BeforeCAS(item)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	version, ok := f.issued[item]
	if !ok {
		return memcache.ErrNotStored
	}
	delete(f.issued, item)
	if _, exists := f.values[item.Key]; !exists {
		return memcache.ErrNotStored
	}
	if f.versions[item.Key] != version {
		return memcache.ErrCASConflict
	}
	f.store(item.Key, item.Value)
	return nil
}

func (f *Fake) Increment(key string, delta uint64) (uint64, error) {
	return f.adjust(key, func(n uint64) uint64 { return n + delta })
}

// Decrement floors at zero, like memcached.
func (f *Fake) Decrement(key string, delta uint64) (uint64, error) {
	return f.adjust(key, func(n uint64) uint64 {
		if delta > n {
			return 0
		}
		return n - delta
	})
}

// Set writes key unconditionally, bumping its version.
func (f *Fake) Set(key string, value []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.store(key, value)
}

// Value returns the raw stored value of key.
func (f *Fake) Value(key string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.values[key]
	return v, ok
}

func (f *Fake) adjust(key string, op func(uint64) uint64) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return 0, f.Err
	}
	v, ok := f.values[key]
	if !ok {
		return 0, memcache.ErrCacheMiss
	}
	n, err := strconv.ParseUint(string(v), 10, 64)
	if err != nil {
		return 0, err
	}
	n = op(n)
	f.store(key, []byte(strconv.FormatUint(n, 10)))
	return n, nil
}

func (f *Fake) store(key string, value []byte) {
	f.values[key] = append([]byte(nil), value...)
	f.versions[key]++
}

var (
	_ memcacheiface.WindowClient = (*Fake)(nil)
	_ memcacheiface.CASClient    = (*Fake)(nil)
)
