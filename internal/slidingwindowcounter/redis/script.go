package swredis

import "github.com/go-redis/redis/v8"

// redisAllowScript keeps the previous and current epoch-aligned window counts in a hash.
// KEYS[1]: counter key
// ARGV[1]: current time in milliseconds
// ARGV[2]: window size in milliseconds
// ARGV[3]: limit
// Returns {allowed, estimate}; estimate is a string and already includes an admitted request.
var redisAllowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local windowSizeMillis = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

-- Field names in the Redis Hash
local FIELD_PREV_COUNT = 'pc'
local FIELD_CUR_COUNT = 'cc'
local FIELD_CUR_WINDOW_START = 'cws'

local state = redis.call('HMGET', key, FIELD_PREV_COUNT, FIELD_CUR_COUNT, FIELD_CUR_WINDOW_START)
local previousWindowCount = tonumber(state[1]) or 0
local currentWindowCount = tonumber(state[2]) or 0
local currentWindowStart = tonumber(state[3])

local windowStart = now - (now % windowSizeMillis)
if currentWindowStart == nil then
    currentWindowStart = windowStart
elseif windowStart > currentWindowStart then
    if windowStart - currentWindowStart == windowSizeMillis then
        previousWindowCount = currentWindowCount
    else
        -- Skipped at least one whole window
        previousWindowCount = 0
    end
    currentWindowCount = 0
    currentWindowStart = windowStart
end

local elapsed = now - currentWindowStart
if elapsed < 0 then elapsed = 0 end -- clock went backwards

local estimate = previousWindowCount * (1 - elapsed / windowSizeMillis) + currentWindowCount

if estimate + 1 <= limit then
    currentWindowCount = currentWindowCount + 1
    redis.call('HMSET', key,
               FIELD_PREV_COUNT, previousWindowCount,
               FIELD_CUR_COUNT, currentWindowCount,
               FIELD_CUR_WINDOW_START, currentWindowStart)
    -- Both windows must outlive the current one.
    redis.call('PEXPIRE', key, windowSizeMillis * 2)
    return {1, tostring(estimate + 1)}
end

-- Do not update counts if denied
return {0, tostring(estimate)}
`)
