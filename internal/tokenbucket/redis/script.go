// Package tbredis provides a Redis implementation of the Token Bucket rate limiting algorithm.
package tbredis

import "github.com/go-redis/redis/v8"

// redisAllowScript atomically refills and draws from one bucket.
// KEYS[1]: bucket key
// ARGV[1]: capacity
// ARGV[2]: window in milliseconds (capacity tokens are refilled per window)
// ARGV[3]: current timestamp in milliseconds
// Returns {allowed, tokens}; tokens is a string so the fractional part survives the reply.
var redisAllowScript = redis.NewScript(`
		local key = KEYS[1]
		local capacity = tonumber(ARGV[1])
		local window_ms = tonumber(ARGV[2])
		local now = tonumber(ARGV[3])

		local bucket_info = redis.call('HMGET', key, 'tokens', 'last_refill_time')
		local tokens = tonumber(bucket_info[1])
		local last_refill_time = tonumber(bucket_info[2])

		if tokens == nil then
			tokens = capacity
			last_refill_time = now
		elseif now > last_refill_time then
			tokens = math.min(capacity, tokens + (now - last_refill_time) * capacity / window_ms)
			last_refill_time = now
		end

		local allowed = 0
		if tokens >= 1 then
			allowed = 1
			tokens = tokens - 1
		end

		redis.call('HMSET', key, 'tokens', tostring(tokens), 'last_refill_time', last_refill_time)
		redis.call('PEXPIRE', key, window_ms * 2)

		return {allowed, tostring(tokens)}
	`)
