//go:build !darwin

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// xdgDir is $env/healthdesk, or ~/fallback/healthdesk when env is unset.
func xdgDir(env, fallback string) string {
	base := os.Getenv(env)
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		base = filepath.Join(home, fallback)
	}
	return filepath.Join(base, "healthdesk")
}

func defaultDataDir() string {
	return xdgDir("XDG_DATA_HOME", filepath.Join(".local", "share"))
}

func configFilePath() string {
	return filepath.Join(xdgDir("XDG_CONFIG_HOME", ".config"), "config.json")
}

func secretHint(key string) string {
	return fmt.Sprintf(" or %s (service %q, key %q)", secretsFilePath(), keychainService, secretAccount(key))
}

func newPlatformBackend() ConfigBackend {
	return newFileBackend(configFilePath())
}

// fileBackend keeps every key as a raw JSON value in one flat object, so
// values written by hand ("4100" or 4100) decode the same way.
type fileBackend struct {
	path   string
	values map[string]json.RawMessage
}

func newFileBackend(path string) *fileBackend {
	b := &fileBackend{path: path, values: map[string]json.RawMessage{}}
	if err := readJSONFile(path, &b.values); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "[WARN] ignoring config file %s: %v\n", path, err)
		b.values = map[string]json.RawMessage{}
	}
	return b
}

func (b *fileBackend) GetString(key string) (string, bool, error) {
	raw, ok := b.values[key]
	if !ok {
		return "", false, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return string(raw), true, nil
	}
	return s, true, nil
}

func (b *fileBackend) GetInt(key string) (int, bool, error) {
	raw, ok := b.values[key]
	if !ok {
		return 0, false, nil
	}
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, true, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if n, err := strconv.Atoi(s); err == nil {
			return n, true, nil
		}
	}
	return 0, true, fmt.Errorf("%s: %s is not an integer", key, raw)
}

func (b *fileBackend) SetString(key, val string) error { return b.set(key, val) }

func (b *fileBackend) SetInt(key string, val int) error { return b.set(key, val) }

func (b *fileBackend) Delete(key string) error {
	delete(b.values, key)
	return writeJSONFile(b.path, b.values)
}

func (b *fileBackend) set(key string, val any) error {
	raw, err := json.Marshal(val)
	if err != nil {
		return err
	}
	b.values[key] = raw
	return writeJSONFile(b.path, b.values)
}

func readJSONFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// writeJSONFile replaces path atomically with v, readable only by the user.
func writeJSONFile(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".healthdesk-*.json")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
