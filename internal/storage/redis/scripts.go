package redis

const (
	// putAssetScript stores an asset hash and indexes it under its version
	putAssetScript = `
local asset_key = KEYS[1]      -- {prefix}:asset:{version}:{name}
local assets_set = KEYS[2]     -- {prefix}:version:{version}:assets
local versions_set = KEYS[3]   -- {prefix}:versions

local version = ARGV[1]
local name = ARGV[2]

redis.call('HSET', asset_key,
  'version', version,
  'name', name,
  'sha256', ARGV[3],
  'data', ARGV[4],
  'cached_at', ARGV[5]
)
redis.call('SADD', assets_set, name)
redis.call('SADD', versions_set, version)

return 1
`

	// setMarkerScript points a version marker at an installed version.
	// Returns 0 when the version is not installed.
	setMarkerScript = `
local versions_set = KEYS[1]   -- {prefix}:versions
local marker_key = KEYS[2]     -- {prefix}:active or {prefix}:waiting
local clear_key = KEYS[3]      -- marker cleared alongside, may equal marker_key

local version = ARGV[1]

if redis.call('SISMEMBER', versions_set, version) == 0 then
  return 0
end

if clear_key ~= marker_key then
  redis.call('DEL', clear_key)
end
redis.call('SET', marker_key, version)

return 1
`

	// deleteVersionScript removes every asset of a version, its index
	// entries and any marker pointing at it. Returns the asset count.
	deleteVersionScript = `
local versions_set = KEYS[1]   -- {prefix}:versions
local assets_set = KEYS[2]     -- {prefix}:version:{version}:assets
local active_key = KEYS[3]     -- {prefix}:active
local waiting_key = KEYS[4]    -- {prefix}:waiting

local version = ARGV[1]
local asset_prefix = ARGV[2]   -- {prefix}:asset:{version}:

local names = redis.call('SMEMBERS', assets_set)
for _, name in ipairs(names) do
  redis.call('DEL', asset_prefix .. name)
end
redis.call('DEL', assets_set)
redis.call('SREM', versions_set, version)

if redis.call('GET', active_key) == version then
  redis.call('DEL', active_key)
end
if redis.call('GET', waiting_key) == version then
  redis.call('DEL', waiting_key)
end

return #names
`
)
