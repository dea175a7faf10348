package memcachetest

import (
	"errors"
	"os"
	"testing"

	"github.com/bradfitz/gomemcache/memcache"
)

// GetMemcachedAddress returns the Memcached address, defaulting to "localhost:11211".
// If MEMCACHED_ADDR environment variable is set, it's used.
// If CI environment variable is "true", it defaults to "memcached:11211" (common in Docker Compose).
func GetMemcachedAddress() string {
	if addr := os.Getenv("MEMCACHED_ADDR"); addr != "" {
		return addr
	}
	if os.Getenv("CI") == "true" {
		return "memcached:11211"
	}
	return "localhost:11211"
}

// SetupMemcachedClient initializes and returns a real *memcache.Client for integration tests.
// It fails the test if Memcached cannot be reached.
func SetupMemcachedClient(t *testing.T) *memcache.Client {
	t.Helper()
	memcachedAddr := GetMemcachedAddress()
	t.Logf("Connecting to Memcached for integration tests at %s", memcachedAddr)

	mc := memcache.New(memcachedAddr)
	if err := mc.Ping(); err != nil {
		t.Fatalf("Failed to connect to Memcached at %s: %v. Ensure Memcached is running and accessible.", memcachedAddr, err)
	}
	return mc
}

// CleanupMemcachedKeys deletes the specified keys from Memcached.
// It logs errors but doesn't fail the test, as cleanup is best-effort.
func CleanupMemcachedKeys(t *testing.T, client *memcache.Client, keys []string) {
	t.Helper()
	for _, key := range keys {
		// memcache.ErrCacheMiss means the key didn't exist, which is fine for cleanup.
		if err := client.Delete(key); err != nil && !errors.Is(err, memcache.ErrCacheMiss) {
			t.Logf("Warning: Failed to delete Memcached key '%s': %v", key, err)
		}
	}
}
