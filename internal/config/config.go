package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Config struct {
	Server    ServerConfig
	Storage   StorageConfig
	Log       LogConfig
	Analytics AnalyticsConfig
	MCP       MCPConfig
	API       APIConfig
}

type ServerConfig struct {
	Port int
}

type StorageConfig struct {
	DataDir  string
	Timezone string
}

type LogConfig struct {
	Level string
}

// AnalyticsConfig holds comma-separated canonical orders for the stats views.
// An empty order sorts by count.
type AnalyticsConfig struct {
	CategoryOrder     string
	ExplicitnessOrder string
	MoistureOrder     string
}

// MCPConfig controls the MCP server started alongside the HTTP API.
type MCPConfig struct {
	Stdio bool
}

type APIConfig struct {
	Token string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4100,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Log: LogConfig{
			Level: "info",
		},
		MCP: MCPConfig{
			Stdio: true,
		},
	}
}

// Location resolves Storage.Timezone. Empty means the local zone.
func (c Config) Location() (*time.Location, error) {
	if c.Storage.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Storage.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid storage.timezone %q: %w", c.Storage.Timezone, err)
	}
	return loc, nil
}

// SplitOrder parses a comma-separated order, dropping blank items.
// It returns nil for an empty order.
func SplitOrder(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

const (
	keychainService = "logbook"
	tokenAccount    = "api_token"
)

// Load reads configuration from the platform-native backend, environment
// variables, and platform secret store.
//
// On macOS the backend is UserDefaults (domain: com.logbook.app) and the API
// token lives in the Keychain.
// On Linux the backend is a JSON file at $XDG_CONFIG_HOME/logbook/config.json
// and the API token lives in $XDG_DATA_HOME/logbook/secrets.json.
//
// Environment variables (LOGBOOK_*) override backend values on all platforms.
// When no API token exists yet, one is generated and stored.
func Load() (Config, error) {
	return loadWith(newPlatformBackend(), keychainStore{})
}

// keychain abstracts secret storage for testing.
type keychain interface {
	Get(service, account string) (string, error)
	Set(service, account, value string) error
}

func loadWith(b ConfigBackend, kc keychain) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	if cfg.API.Token == "" {
		if tok, err := kc.Get(keychainService, tokenAccount); err == nil && tok != "" {
			cfg.API.Token = tok
		}
	}

	if cfg.API.Token == "" {
		tok := uuid.NewString()
		if err := kc.Set(keychainService, tokenAccount, tok); err != nil {
			return Config{}, fmt.Errorf("storing generated API token: %w. "+
				"Set it via environment variable LOGBOOK_API_TOKEN%s", err, tokenHint())
		}
		cfg.API.Token = tok
	}

	return cfg, nil
}

// keychainStore reads and writes the platform secret store.
type keychainStore struct{}

func (keychainStore) Get(service, account string) (string, error) {
	out, err := keychainGet(service, account)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

func (keychainStore) Set(service, account, value string) error {
	return keychainSet(service, account, value)
}
