package fcredis

import "github.com/go-redis/redis/v8"

// redisAllowScript is the Lua script for the Fixed Window Counter algorithm.
// KEYS[1]: The counter key for one epoch-aligned window (e.g., "word_api:10.0.0.1:1700000000000")
// ARGV[1]: Limit
// ARGV[2]: Expiry of the counter in milliseconds
// Returns {allowed, count}. A denied request does not increment the counter.
var redisAllowScript = redis.NewScript(`
	local key = KEYS[1]
	local limit = tonumber(ARGV[1])
	local expiry_ms = tonumber(ARGV[2])

	local count = tonumber(redis.call('GET', key) or '0')
	if count >= limit then
		return {0, count}
	end

	count = redis.call('INCR', key)
	if count == 1 then
		redis.call('PEXPIRE', key, expiry_ms)
	end
	return {1, count}
`)
