package config

import (
	"fmt"
	"strings"
	"time"
)

type Config struct {
	Server   ServerConfig
	Backend  BackendConfig
	Store    StoreConfig
	Storage  StorageConfig
	Redis    RedisConfig
	Identity IdentityConfig
	Chat     ChatConfig
	Log      LogConfig
}

type ServerConfig struct {
	Port int
}

type BackendConfig struct {
	BaseURL string
	Timeout time.Duration
	APIKey  string
}

// StoreConfig selects the document store: "sqlite" or "redis".
type StoreConfig struct {
	Driver string
}

type StorageConfig struct {
	DataDir string
}

type RedisConfig struct {
	Addr   string
	Prefix string
}

type IdentityConfig struct {
	Issuer     string
	SigningKey string
	// Token is the id token the CLI and the MCP server present.
	Token string
}

// ChatConfig bounds how long an untouched chat session is kept. Zero keeps
// sessions until they are closed.
type ChatConfig struct {
	IdleTimeout time.Duration
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4100,
		},
		Backend: BackendConfig{
			BaseURL: "http://localhost:5000",
			Timeout: 30 * time.Second,
		},
		Store: StoreConfig{
			Driver: "sqlite",
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Redis: RedisConfig{
			Addr:   "localhost:6379",
			Prefix: "workspaces",
		},
		Identity: IdentityConfig{
			Issuer: "healthdesk",
		},
		Chat: ChatConfig{
			IdleTimeout: 30 * time.Minute,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the platform-native backend, environment
// variables, and platform secret store.
//
// On macOS the backend is UserDefaults (domain: com.healthdesk.app) and
// secrets fall back to macOS Keychain.
// On Linux the backend is a JSON file at $XDG_CONFIG_HOME/healthdesk/config.json
// and secrets fall back to $XDG_DATA_HOME/healthdesk/secrets.json.
//
// Environment variables (HEALTHDESK_*) override backend values on all platforms.
func Load() (Config, error) {
	return loadWith(newPlatformBackend(), keychainStore{})
}

// keychain abstracts Keychain access for testing.
type keychain interface {
	Get(service, account string) (string, error)
}

const keychainService = "healthdesk"

// secretAccount maps "identity.signing_key" to "identity_signing_key".
func secretAccount(key string) string {
	return strings.ReplaceAll(key, ".", "_")
}

func loadWith(b ConfigBackend, kc keychain) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	// Secrets still empty after env come from the platform keychain.
	for _, s := range specs {
		if !s.secret || s.extract(cfg).(string) != "" {
			continue
		}
		if v, err := kc.Get(keychainService, secretAccount(s.key)); err == nil && v != "" {
			s.apply(&cfg, v)
		}
	}

	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validate(cfg Config) error {
	if cfg.Identity.SigningKey == "" {
		msg := "missing required config: identity signing key. " +
			"Set it via environment variable HEALTHDESK_IDENTITY_SIGNING_KEY" +
			secretHint("identity.signing_key")
		return fmt.Errorf("%s", msg)
	}
	switch cfg.Store.Driver {
	case "sqlite", "redis":
	default:
		return fmt.Errorf("invalid store.driver %q: want sqlite or redis", cfg.Store.Driver)
	}
	if cfg.Backend.Timeout <= 0 {
		return fmt.Errorf("invalid backend.timeout %s: must be positive", cfg.Backend.Timeout)
	}
	if cfg.Chat.IdleTimeout < 0 {
		return fmt.Errorf("invalid chat.idle_timeout %s: must not be negative", cfg.Chat.IdleTimeout)
	}
	return nil
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
