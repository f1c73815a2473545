package client

import (
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// ParseConfig reads a YAML client configuration, applies defaults and
// validates it.
func ParseConfig(data []byte) (Config, error) {
	var config Config

	if err := yaml.Unmarshal(data, &config); err != nil {
		return config, errors.Wrap(err, "failed to parse client config")
	}

	if config.SessionPath == "" {
		config.SessionPath = "/api/session"
	}
	if config.ExchangePath == "" {
		config.ExchangePath = "/api/exchange"
	}
	if !strings.HasPrefix(config.SessionPath, "/") {
		config.SessionPath = "/" + config.SessionPath
	}
	if !strings.HasPrefix(config.ExchangePath, "/") {
		config.ExchangePath = "/" + config.ExchangePath
	}

	if err := config.validate(); err != nil {
		return config, err
	}

	return config, nil
}

// Dump generates a YAML string of the Config object.
func (c *Config) Dump() (string, error) {
	d, err := yaml.Marshal(c)
	if err != nil {
		return "", errors.Wrap(err, "failed to generate YAML dump of config")
	}
	return string(d), nil
}
