package config

import (
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
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
		key: "server.port", typ: kInt, env: "LOGBOOK_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "storage.data_dir", typ: kString, env: "LOGBOOK_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "storage.timezone", typ: kString, env: "LOGBOOK_STORAGE_TIMEZONE",
		apply:   func(cfg *Config, v any) { cfg.Storage.Timezone = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.Timezone },
	},
	{
		key: "log.level", typ: kString, env: "LOGBOOK_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
	{
		key: "analytics.category_order", typ: kString, env: "LOGBOOK_ANALYTICS_CATEGORY_ORDER",
		apply:   func(cfg *Config, v any) { cfg.Analytics.CategoryOrder = v.(string) },
		extract: func(cfg Config) any { return cfg.Analytics.CategoryOrder },
	},
	{
		key: "analytics.explicitness_order", typ: kString, env: "LOGBOOK_ANALYTICS_EXPLICITNESS_ORDER",
		apply:   func(cfg *Config, v any) { cfg.Analytics.ExplicitnessOrder = v.(string) },
		extract: func(cfg Config) any { return cfg.Analytics.ExplicitnessOrder },
	},
	{
		key: "analytics.moisture_order", typ: kString, env: "LOGBOOK_ANALYTICS_MOISTURE_ORDER",
		apply:   func(cfg *Config, v any) { cfg.Analytics.MoistureOrder = v.(string) },
		extract: func(cfg Config) any { return cfg.Analytics.MoistureOrder },
	},
	{
		key: "mcp.stdio", typ: kBool, env: "LOGBOOK_MCP_STDIO",
		apply:   func(cfg *Config, v any) { cfg.MCP.Stdio = v.(bool) },
		extract: func(cfg Config) any { return cfg.MCP.Stdio },
	},
	{
		key: "api.token", typ: kString, env: "LOGBOOK_API_TOKEN",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.API.Token = v.(string) },
		extract: func(cfg Config) any { return cfg.API.Token },
	},
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
		case kBool:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok && v != "" {
				if bv, err := strconv.ParseBool(v); err == nil {
					s.apply(cfg, bv)
				} else {
					fmt.Fprintf(os.Stderr, "[WARN] could not parse bool from config key %s=%q: %v. Using default value.\n", s.key, v, err)
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
		case kBool:
			if b, err := strconv.ParseBool(raw); err == nil {
				s.apply(cfg, b)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse bool from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}
