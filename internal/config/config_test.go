package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"strconv"
	"strings"
	"testing"
)

// mockKeychain is a test double for the keychain interface.
type mockKeychain struct {
	values map[string]string
	setErr error
	sets   int
}

func (m *mockKeychain) Get(service, account string) (string, error) {
	v, ok := m.values[service+"/"+account]
	if !ok {
		return "", errors.New("not found")
	}
	return v, nil
}

func (m *mockKeychain) Set(service, account, value string) error {
	if m.setErr != nil {
		return m.setErr
	}
	if m.values == nil {
		m.values = map[string]string{}
	}
	m.values[service+"/"+account] = value
	m.sets++
	return nil
}

// memBackend is an in-memory ConfigBackend.
type memBackend struct {
	data map[string]string
}

func newMemBackend(kv map[string]string) *memBackend {
	if kv == nil {
		kv = map[string]string{}
	}
	return &memBackend{data: kv}
}

func (b *memBackend) GetString(key string) (string, bool, error) {
	v, ok := b.data[key]
	return v, ok, nil
}

func (b *memBackend) GetInt(key string) (int, bool, error) {
	v, ok := b.data[key]
	if !ok {
		return 0, false, nil
	}
	i, err := strconv.Atoi(v)
	return i, true, err
}

func (b *memBackend) SetString(key, val string) error {
	b.data[key] = val
	return nil
}

func (b *memBackend) SetInt(key string, val int) error {
	b.data[key] = strconv.Itoa(val)
	return nil
}

func (b *memBackend) Delete(key string) error {
	delete(b.data, key)
	return nil
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, s := range specs {
		t.Setenv(s.env, "")
	}
}

// TestDefaults verifies all default values are applied when the backend is empty.
func TestDefaults(t *testing.T) {
	clearEnv(t)
	kc := &mockKeychain{values: map[string]string{"logbook/api_token": "stored"}}

	cfg, err := loadWith(newMemBackend(nil), kc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 4100 {
		t.Errorf("Server.Port = %d, want 4100", cfg.Server.Port)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want info", cfg.Log.Level)
	}
	if !cfg.MCP.Stdio {
		t.Error("MCP.Stdio = false, want true")
	}
	if cfg.Storage.DataDir == "" {
		t.Error("Storage.DataDir is empty")
	}
	if cfg.Storage.Timezone != "" || cfg.Analytics.CategoryOrder != "" {
		t.Errorf("unexpected non-empty defaults: %+v", cfg)
	}
	if cfg.API.Token != "stored" {
		t.Errorf("API.Token = %q, want stored", cfg.API.Token)
	}
}

// TestBackendValues verifies every key is read from the backend.
func TestBackendValues(t *testing.T) {
	clearEnv(t)
	b := newMemBackend(map[string]string{
		"server.port":                  "5000",
		"storage.data_dir":             "/tmp/logbook-test",
		"storage.timezone":             "Europe/Berlin",
		"log.level":                    "debug",
		"analytics.category_order":     "C1,C2",
		"analytics.explicitness_order": "Mit,Ohne",
		"analytics.moisture_order":     "Feucht,Trocken",
		"mcp.stdio":                    "false",
	})

	cfg, err := loadWith(b, &mockKeychain{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := Config{
		Server:  ServerConfig{Port: 5000},
		Storage: StorageConfig{DataDir: "/tmp/logbook-test", Timezone: "Europe/Berlin"},
		Log:     LogConfig{Level: "debug"},
		Analytics: AnalyticsConfig{
			CategoryOrder:     "C1,C2",
			ExplicitnessOrder: "Mit,Ohne",
			MoistureOrder:     "Feucht,Trocken",
		},
		MCP: MCPConfig{Stdio: false},
		API: cfg.API,
	}
	if !reflect.DeepEqual(cfg, want) {
		t.Errorf("cfg = %+v\nwant %+v", cfg, want)
	}
}

// TestEnvOverride verifies that environment variables override backend values.
func TestEnvOverride(t *testing.T) {
	clearEnv(t)
	t.Setenv("LOGBOOK_SERVER_PORT", "6000")
	t.Setenv("LOGBOOK_API_TOKEN", "env-token")
	t.Setenv("LOGBOOK_MCP_STDIO", "false")

	kc := &mockKeychain{values: map[string]string{"logbook/api_token": "stored"}}
	cfg, err := loadWith(newMemBackend(map[string]string{"server.port": "5000"}), kc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 6000 {
		t.Errorf("Server.Port = %d, want 6000", cfg.Server.Port)
	}
	if cfg.API.Token != "env-token" {
		t.Errorf("API.Token = %q, want env-token", cfg.API.Token)
	}
	if cfg.MCP.Stdio {
		t.Error("MCP.Stdio = true, want false")
	}
}

// TestInvalidEnvKeepsDefault verifies a malformed env value falls back to the default.
func TestInvalidEnvKeepsDefault(t *testing.T) {
	clearEnv(t)
	t.Setenv("LOGBOOK_SERVER_PORT", "abc")

	cfg, err := loadWith(newMemBackend(nil), &mockKeychain{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 4100 {
		t.Errorf("Server.Port = %d, want 4100", cfg.Server.Port)
	}
}

// TestTokenGeneratedOnce verifies a missing token is generated and persisted.
func TestTokenGeneratedOnce(t *testing.T) {
	clearEnv(t)
	kc := &mockKeychain{}

	first, err := loadWith(newMemBackend(nil), kc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(first.API.Token) != 36 {
		t.Errorf("generated token = %q, want a UUID", first.API.Token)
	}

	second, err := loadWith(newMemBackend(nil), kc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second.API.Token != first.API.Token {
		t.Errorf("token changed between loads: %q then %q", first.API.Token, second.API.Token)
	}
	if kc.sets != 1 {
		t.Errorf("keychain writes = %d, want 1", kc.sets)
	}
}

// TestTokenStoreFailure verifies a clear error when the token cannot be persisted.
func TestTokenStoreFailure(t *testing.T) {
	clearEnv(t)
	_, err := loadWith(newMemBackend(nil), &mockKeychain{setErr: errors.New("locked")})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "LOGBOOK_API_TOKEN") {
		t.Errorf("error = %q, want a hint about LOGBOOK_API_TOKEN", err)
	}
}

func TestLocation(t *testing.T) {
	cfg := Config{}
	if loc, err := cfg.Location(); err != nil || loc == nil {
		t.Errorf("Location() = %v, %v", loc, err)
	}
	cfg.Storage.Timezone = "UTC"
	if loc, err := cfg.Location(); err != nil || loc.String() != "UTC" {
		t.Errorf("Location(UTC) = %v, %v", loc, err)
	}
	cfg.Storage.Timezone = "Mars/Olympus"
	if _, err := cfg.Location(); err == nil {
		t.Error("expected error for unknown timezone")
	}
}

func TestSplitOrder(t *testing.T) {
	if got := SplitOrder(" Mon, Tue ,,Wed "); !reflect.DeepEqual(got, []string{"Mon", "Tue", "Wed"}) {
		t.Errorf("SplitOrder = %q", got)
	}
	if got := SplitOrder(""); got != nil {
		t.Errorf("SplitOrder(\"\") = %q, want nil", got)
	}
}

func TestSetKey(t *testing.T) {
	b := newMemBackend(nil)

	if err := setKeyWith(b, "server.port", "4200"); err != nil {
		t.Fatalf("setting port: %v", err)
	}
	if err := setKeyWith(b, "server.port", "high"); err == nil {
		t.Error("expected error for non-integer port")
	}
	if err := setKeyWith(b, "mcp.stdio", "no"); err == nil {
		t.Error("expected error for non-boolean value")
	}
	if err := setKeyWith(b, "api.token", "x"); err == nil {
		t.Error("expected error for secret key")
	}
	if err := setKeyWith(b, "nope", "x"); err == nil {
		t.Error("expected error for unknown key")
	}
	if b.data["server.port"] != "4200" {
		t.Errorf("backend port = %q, want 4200", b.data["server.port"])
	}
}

func TestShowAllHidesSecrets(t *testing.T) {
	cfg := defaults()
	cfg.API.Token = "secret"
	for _, info := range ShowAll(cfg) {
		if info.Key == "api.token" || info.Value == "secret" {
			t.Errorf("ShowAll exposed secret: %+v", info)
		}
	}
	if len(ValidKeys()) != len(specs)-1 {
		t.Errorf("ValidKeys = %v", ValidKeys())
	}
}

// TestSecretsFileRoundTrip exercises the non-macOS secrets file.
func TestSecretsFileRoundTrip(t *testing.T) {
	if runtime.GOOS == "darwin" {
		t.Skip("macOS uses the Keychain")
	}
	t.Setenv("XDG_DATA_HOME", t.TempDir())

	kc := keychainStore{}
	if _, err := kc.Get("logbook", "api_token"); err == nil {
		t.Fatal("expected error before anything is stored")
	}
	if err := kc.Set("logbook", "api_token", "abc"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := kc.Get("logbook", "api_token")
	if err != nil || got != "abc" {
		t.Errorf("Get = %q, %v", got, err)
	}

	info, err := os.Stat(filepath.Join(os.Getenv("XDG_DATA_HOME"), "logbook", "secrets.json"))
	if err != nil {
		t.Fatalf("secrets file: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("secrets file mode = %v, want 0600", info.Mode().Perm())
	}
}
