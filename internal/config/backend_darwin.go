//go:build darwin

package config

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

const defaultsDomain = "com.healthdesk.app"

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, "Library", "Application Support", "healthdesk")
}

func secretHint(key string) string {
	return fmt.Sprintf(" or macOS Keychain (service: %s, account: %s)", keychainService, secretAccount(key))
}

func newPlatformBackend() ConfigBackend {
	return defaultsBackend(defaultsDomain)
}

// defaultsBackend stores keys in the UserDefaults domain it names, through
// the defaults(1) tool.
type defaultsBackend string

func (d defaultsBackend) run(verb string, args ...string) (string, error) {
	out, err := exec.Command("defaults", append([]string{verb, string(d)}, args...)...).CombinedOutput()
	return strings.TrimSpace(string(out)), err
}

func (d defaultsBackend) GetString(key string) (string, bool, error) {
	out, err := d.run("read", key)
	if err == nil {
		return out, true, nil
	}
	// defaults exits 1 when the key does not exist.
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
		return "", false, nil
	}
	return "", false, fmt.Errorf("defaults read %s: %w (%s)", key, err, out)
}

func (d defaultsBackend) GetInt(key string) (int, bool, error) {
	s, ok, err := d.GetString(key)
	if !ok || err != nil {
		return 0, ok, err
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, true, fmt.Errorf("%s: %q is not an integer", key, s)
	}
	return n, true, nil
}

func (d defaultsBackend) SetString(key, val string) error {
	_, err := d.run("write", key, "-string", val)
	return err
}

func (d defaultsBackend) SetInt(key string, val int) error {
	_, err := d.run("write", key, "-int", strconv.Itoa(val))
	return err
}

func (d defaultsBackend) Delete(key string) error {
	_, err := d.run("delete", key)
	return err
}
