package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/eskildsen/stevedore/internal/constants"
	"gopkg.in/yaml.v3"
)

// ServerEntry names the environment variable holding the API token for a
// stevedored server. Tokens themselves are never written to disk.
type ServerEntry struct {
	TokenEnv string `yaml:"token_env"`
}

// ClientConfig is the per-user CLI configuration mapping server URLs to
// token sources.
type ClientConfig struct {
	Servers map[string]ServerEntry `yaml:"servers"`
}

// ConfigDir returns the stevedore directory under the user config dir.
func ConfigDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine user config dir: %w", err)
	}
	return filepath.Join(base, "stevedore"), nil
}

func clientConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, constants.ClientConfigFileName), nil
}

// LoadClientConfig reads the client config, returning nil when none exists.
func LoadClientConfig() (*ClientConfig, error) {
	path, err := clientConfigPath()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read client config: %w", err)
	}
	var cfg ClientConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse client config: %w", err)
	}
	return &cfg, nil
}

// LoadAPIToken resolves the API token for a server. The server's
// configured token env var wins; STEVEDORE_API_TOKEN is the fallback.
func LoadAPIToken(serverURL string) (string, error) {
	tokenEnv := constants.EnvVarAPIToken
	cfg, err := LoadClientConfig()
	if err != nil {
		return "", err
	}
	if cfg != nil {
		if entry, ok := cfg.Servers[serverURL]; ok && entry.TokenEnv != "" {
			tokenEnv = entry.TokenEnv
		}
	}
	token := os.Getenv(tokenEnv)
	if token == "" {
		return "", fmt.Errorf("no API token set: export %s", tokenEnv)
	}
	return token, nil
}

// SaveClientConfig writes the client config, creating the directory.
func SaveClientConfig(cfg *ClientConfig) error {
	path, err := clientConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), constants.ModeDirPrivate); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal client config: %w", err)
	}
	if err := os.WriteFile(path, data, constants.ModeFileDefault); err != nil {
		return fmt.Errorf("failed to write client config: %w", err)
	}
	return nil
}
