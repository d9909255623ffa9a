package cachedir

import "github.com/pserra/chatcache/internal/config"

const DefaultCacheName = "main"

// Resolve determines the active cache name using precedence:
// 1. override (-cache flag or Params.CacheName)
// 2. config.toml default_cache
// 3. "main"
func Resolve(override string) string {
	if override != "" {
		return override
	}
	cfg, err := config.Load(ConfigPath())
	if err == nil && cfg.DefaultCache != "" {
		return cfg.DefaultCache
	}
	return DefaultCacheName
}
