package config

import (
	"fmt"
	"os"
	"sync/atomic"

	"gopkg.in/yaml.v3"
)

// current holds the process-wide config after Load succeeds. Unlike the
// teacher's instance manager, the gateway reads its config once at startup
// and never hot-reloads it, so a plain atomic.Pointer is enough.
var current atomic.Pointer[Config]

// Load reads and validates the YAML config at path, storing it as the
// process-wide config retrievable via Get.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validate %s: %w", path, err)
	}

	current.Store(cfg)
	return cfg, nil
}

// Get returns the process-wide config loaded by the most recent call to
// Load. It panics if Load has not been called yet, matching the teacher's
// assumption that config is established before any dependent package runs.
func Get() *Config {
	cfg := current.Load()
	if cfg == nil {
		panic("config: Get called before Load")
	}
	return cfg
}
