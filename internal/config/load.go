package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-viper/mapstructure/v2"
	kjson "github.com/knadh/koanf/parsers/json"
	ktoml "github.com/knadh/koanf/parsers/toml"
	kyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config file names probed when a directory is given.
var configFileNames = []string{
	"stevedore.yaml",
	"stevedore.yml",
	"stevedore.json",
	"stevedore.toml",
}

// FindConfigFile resolves a path that may be a file or a directory into a
// concrete config file path.
func FindConfigFile(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("config path %s: %w", path, err)
	}
	if !info.IsDir() {
		return path, nil
	}
	for _, name := range configFileNames {
		candidate := filepath.Join(path, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no stevedore config file found in %s (looked for %v)", path, configFileNames)
}

func formatForFile(path string) (string, koanf.Parser, error) {
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		return "yaml", kyaml.Parser(), nil
	case ".json":
		return "json", kjson.Parser(), nil
	case ".toml":
		return "toml", ktoml.Parser(), nil
	default:
		return "", nil, fmt.Errorf("unsupported config format %q (want .yaml, .json or .toml)", filepath.Ext(path))
	}
}

// LoadDeploymentConfig reads and decodes a stevedore config file. The
// returned format string names the file format for error messages.
func LoadDeploymentConfig(path string) (*DeploymentConfig, string, error) {
	configFile, err := FindConfigFile(path)
	if err != nil {
		return nil, "", err
	}

	format, parser, err := formatForFile(configFile)
	if err != nil {
		return nil, "", err
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(configFile), parser); err != nil {
		return nil, "", fmt.Errorf("failed to load config file: %w", err)
	}

	var cfg DeploymentConfig
	decoderConfig := &mapstructure.DecoderConfig{
		TagName: format,
		Result:  &cfg,
		Squash:  true,
		// Reject keys the struct does not know about so typos fail
		// loading instead of silently deploying with defaults.
		ErrorUnused: true,
	}
	unmarshalConf := koanf.UnmarshalConf{
		Tag:           format,
		DecoderConfig: decoderConfig,
	}
	if err := k.UnmarshalWithConf("", &cfg, unmarshalConf); err != nil {
		return nil, "", fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, format, nil
}
