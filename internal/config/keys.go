package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kDuration
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "HEALTHDESK_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "backend.base_url", typ: kString, env: "HEALTHDESK_BACKEND_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Backend.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Backend.BaseURL },
	},
	{
		key: "backend.timeout", typ: kDuration, env: "HEALTHDESK_BACKEND_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Backend.Timeout = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Backend.Timeout },
	},
	{
		key: "backend.api_key", typ: kString, env: "HEALTHDESK_BACKEND_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Backend.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Backend.APIKey },
	},
	{
		key: "store.driver", typ: kString, env: "HEALTHDESK_STORE_DRIVER",
		apply:   func(cfg *Config, v any) { cfg.Store.Driver = v.(string) },
		extract: func(cfg Config) any { return cfg.Store.Driver },
	},
	{
		key: "storage.data_dir", typ: kString, env: "HEALTHDESK_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "redis.addr", typ: kString, env: "HEALTHDESK_REDIS_ADDR",
		apply:   func(cfg *Config, v any) { cfg.Redis.Addr = v.(string) },
		extract: func(cfg Config) any { return cfg.Redis.Addr },
	},
	{
		key: "redis.prefix", typ: kString, env: "HEALTHDESK_REDIS_PREFIX",
		apply:   func(cfg *Config, v any) { cfg.Redis.Prefix = v.(string) },
		extract: func(cfg Config) any { return cfg.Redis.Prefix },
	},
	{
		key: "identity.issuer", typ: kString, env: "HEALTHDESK_IDENTITY_ISSUER",
		apply:   func(cfg *Config, v any) { cfg.Identity.Issuer = v.(string) },
		extract: func(cfg Config) any { return cfg.Identity.Issuer },
	},
	{
		key: "identity.signing_key", typ: kString, env: "HEALTHDESK_IDENTITY_SIGNING_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Identity.SigningKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Identity.SigningKey },
	},
	{
		key: "identity.token", typ: kString, env: "HEALTHDESK_IDENTITY_TOKEN",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Identity.Token = v.(string) },
		extract: func(cfg Config) any { return cfg.Identity.Token },
	},
	{
		key: "chat.idle_timeout", typ: kDuration, env: "HEALTHDESK_CHAT_IDLE_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Chat.IdleTimeout = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Chat.IdleTimeout },
	},
	{
		key: "log.level", typ: kString, env: "HEALTHDESK_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

func lookupSpec(key string) (keySpec, bool) {
	for _, s := range specs {
		if s.key == key {
			return s, true
		}
	}
	return keySpec{}, false
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kDuration:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok && v != "" {
				if d, err := time.ParseDuration(v); err == nil {
					s.apply(cfg, d)
				} else {
					fmt.Fprintf(os.Stderr, "[WARN] could not parse duration from config key %s=%q: %v. Using default value.\n", s.key, v, err)
				}
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		case kDuration:
			if d, err := time.ParseDuration(raw); err == nil {
				s.apply(cfg, d)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse duration from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}
