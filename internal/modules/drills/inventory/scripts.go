package inventory

import goredis "github.com/redis/go-redis/v9"

// KEYS[1] item list, KEYS[2] index set.
// ARGV: payload, word, depth, words, ttl seconds. Returns 1 on push, 0 when full.
var pushBoundedScript = goredis.NewScript(`
local depth = tonumber(ARGV[3])
local words = tonumber(ARGV[4])
local ttl = tonumber(ARGV[5])
if redis.call('LLEN', KEYS[1]) >= depth then
  return 0
end
if redis.call('SISMEMBER', KEYS[2], ARGV[2]) == 0 and redis.call('SCARD', KEYS[2]) >= words then
  return 0
end
redis.call('RPUSH', KEYS[1], ARGV[1])
redis.call('SADD', KEYS[2], ARGV[2])
if ttl > 0 then
  redis.call('EXPIRE', KEYS[1], ttl)
  redis.call('EXPIRE', KEYS[2], ttl)
end
return 1
`)

// KEYS[1] item list, KEYS[2] index set. ARGV[1] word.
// Returns {item, remaining} or nil.
var popScript = goredis.NewScript(`
local v = redis.call('LPOP', KEYS[1])
if not v then
  redis.call('SREM', KEYS[2], ARGV[1])
  return nil
end
local left = redis.call('LLEN', KEYS[1])
if left == 0 then
  redis.call('SREM', KEYS[2], ARGV[1])
end
return {v, left}
`)
