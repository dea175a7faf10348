// Package lbredis provides a Redis implementation of the Leaky Bucket rate limiting algorithm.
package lbredis

import "github.com/go-redis/redis/v8"

// redisAllowScript drains the bucket and adds one unit if it fits.
// KEYS[1]: bucket key (e.g., leaky_bucket:limiter_key:identifier)
// ARGV[1]: capacity
// ARGV[2]: window in milliseconds (capacity units drain per window)
// ARGV[3]: current timestamp in milliseconds
// State is a JSON document {level, last_leak}. Returns {allowed, level} with level as a string.
var redisAllowScript = redis.NewScript(`
local capacity = tonumber(ARGV[1])
local window_ms = tonumber(ARGV[2])
local now = tonumber(ARGV[3])

local level = 0
local last_leak = now

local res = redis.call('GET', KEYS[1])
if res then
    local state = cjson.decode(res)
    level = tonumber(state['level'])
    last_leak = tonumber(state['last_leak'])
end

if now > last_leak then
    level = math.max(0, level - (now - last_leak) * capacity / window_ms)
    last_leak = now
end

local allowed = 0
if level + 1 <= capacity then
    level = level + 1
    allowed = 1
end

redis.call('SET', KEYS[1], cjson.encode({level = level, last_leak = last_leak}), 'PX', window_ms * 2)

return {allowed, tostring(level)}
`)
