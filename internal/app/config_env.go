package app

import (
	"os"
	"strings"
	"time"
)

// ApplyEnvOverrides overrides cfg fields whose environment variables are set.
// Env sits above the config file and below flags.
func ApplyEnvOverrides(cfg *Config) {
	if cfg == nil {
		return
	}
	setString := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v := strings.TrimSpace(os.Getenv(k)); v != "" {
				*dst = v
				return
			}
		}
	}
	// RX_BACKEND_URL wins over the generic BACKEND_URL.
	setString(&cfg.BackendURL, "RX_BACKEND_URL", "BACKEND_URL")
	setString(&cfg.PageHost, "PAGE_HOST")
	setString(&cfg.UserAgent, "RX_USER_AGENT")
	setString(&cfg.StreamURL, "STREAM_URL")
	setString(&cfg.ListenAddr, "LISTEN_ADDR")
	setString(&cfg.LLMBaseURL, "LLM_BASE_URL")
	setString(&cfg.LLMModel, "LLM_MODEL")
	setString(&cfg.LLMAPIKey, "LLM_API_KEY")
	setString(&cfg.SystemPrompt, "EXTRACT_SYSTEM_PROMPT")
	setString(&cfg.CacheDir, "CACHE_DIR")

	if s := os.Getenv("CACHE_MAX_AGE"); s != "" {
		if d, err := time.ParseDuration(s); err == nil {
			cfg.CacheMaxAge = d
		}
	}

	setBool := func(dst *bool, key string) {
		switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
		case "1", "true", "yes", "on":
			*dst = true
		case "0", "false", "no", "off":
			*dst = false
		}
	}
	setBool(&cfg.LatestOnly, "LATEST_ONLY")
	setBool(&cfg.Verbose, "VERBOSE")
	setBool(&cfg.CacheClear, "CACHE_CLEAR")
	setBool(&cfg.CacheStrictPerms, "CACHE_STRICT_PERMS")
}
