package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadFile reads an optional YAML configuration file into target.
//
// A missing file is not an error so deployments can rely on environment
// variables alone. Environment variables are expected to be applied after the
// file so they take precedence.
func LoadFile(path string, target any) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, target); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}
