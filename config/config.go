// Package config handles daemon configuration for connecting to the
// coordination service.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultRoot is the base path of the coordination tree.
const DefaultRoot = "/flock"

// Config describes one daemon's cluster attachment.
type Config struct {
	// Endpoints are the coordination-service servers, host:port.
	Endpoints []string `yaml:"endpoints"`
	// Root overrides the base path of the coordination tree.
	Root string `yaml:"root,omitempty"`
	// Node is this process's cluster identity.
	Node string `yaml:"node,omitempty"`
	// Addr is the address advertised in the member record.
	Addr string `yaml:"addr,omitempty"`
	// Journal is the path of the local event journal; empty disables it.
	Journal string `yaml:"journal,omitempty"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log-level,omitempty"`
}

// Load reads a config file. A missing file yields an empty Config, not
// an error; flags fill in the rest.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}

// ParseEndpoints splits a comma-separated host:port list, dropping
// empty elements.
func ParseEndpoints(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// EndpointString renders the endpoint list back to the comma-separated
// form the driver accepts.
func (c *Config) EndpointString() string {
	return strings.Join(c.Endpoints, ",")
}

// Validate checks that the config can drive a join.
func (c *Config) Validate() error {
	if len(c.Endpoints) == 0 {
		return fmt.Errorf("no coordination endpoints configured")
	}
	if c.Node == "" {
		return fmt.Errorf("node identity is required")
	}
	return nil
}
