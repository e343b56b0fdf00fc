// Package rconf loads the reactor's configuration keys (PortCount,
// Port1..PortN, WorkerConnections) from a YAML document via
// goccy/go-yaml.
package rconf

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
)

// Config is the validated, application-ready configuration.
type Config struct {
	PortCount         int
	Ports             []int
	WorkerConnections int
}

// Load reads and validates a YAML configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse validates a YAML configuration document already in memory.
func Parse(data []byte) (*Config, error) {
	var raw struct {
		PortCount         int `yaml:"PortCount"`
		WorkerConnections int `yaml:"WorkerConnections"`
		// Port1..PortN are decoded individually below via a second pass,
		// since their key names are only known once PortCount is read.
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("rconf: parsing config: %w", err)
	}
	if raw.PortCount < 1 {
		return nil, fmt.Errorf("rconf: PortCount must be >= 1, got %d", raw.PortCount)
	}

	var generic map[string]int
	if err := yaml.Unmarshal(data, &generic); err != nil {
		return nil, fmt.Errorf("rconf: parsing config: %w", err)
	}

	ports := make([]int, raw.PortCount)
	for i := 1; i <= raw.PortCount; i++ {
		key := fmt.Sprintf("Port%d", i)
		port, ok := generic[key]
		if !ok {
			return nil, fmt.Errorf("rconf: missing required key %q", key)
		}
		ports[i-1] = port
	}

	return &Config{
		PortCount:         raw.PortCount,
		Ports:             ports,
		WorkerConnections: raw.WorkerConnections,
	}, nil
}
