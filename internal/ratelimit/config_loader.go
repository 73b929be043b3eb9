package ratelimit

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// overridesFile is the top-level YAML structure for limit overrides:
//
//	rate_limits:
//	  order_create:
//	    max_requests: 5
//	    window_ms: 1000
type overridesFile struct {
	RateLimits map[Category]Config `yaml:"rate_limits"`
}

// LoadOverrides reads per-category limit overrides from a YAML file.
// A missing or empty path means no overrides.
func LoadOverrides(path string) (map[Category]Config, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rate limit overrides: %w", err)
	}

	var file overridesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse rate limit overrides: %w", err)
	}
	return file.RateLimits, nil
}
