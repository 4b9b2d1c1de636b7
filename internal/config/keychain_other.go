//go:build !darwin

package config

import (
	"fmt"
	"path/filepath"
)

// Without a system keychain, secrets live in a 0600 JSON file shaped
// {service: {account: value}} under the XDG data dir.
type secretsFile map[string]map[string]string

func secretsFilePath() string {
	return filepath.Join(defaultDataDir(), "secrets.json")
}

func keychainGet(service, account string) ([]byte, error) {
	var secrets secretsFile
	if err := readJSONFile(secretsFilePath(), &secrets); err != nil {
		return nil, fmt.Errorf("keychain not available: %w", err)
	}
	val, ok := secrets[service][account]
	if !ok {
		return nil, fmt.Errorf("account %q not found in service %q", account, service)
	}
	return []byte(val), nil
}

func keychainSet(service, account, value string) error {
	p := secretsFilePath()

	secrets := secretsFile{}
	_ = readJSONFile(p, &secrets) // a missing or corrupt file starts over
	if secrets == nil {
		secrets = secretsFile{}
	}
	if secrets[service] == nil {
		secrets[service] = map[string]string{}
	}
	secrets[service][account] = value
	return writeJSONFile(p, secrets)
}
