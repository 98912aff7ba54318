package app

import "errors"

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	PipelinesPath string // directory of pipeline .hcl definitions

	LogFormat   string
	LogLevel    string
	MetricsPort int
}

func NewConfig(cfg Config) (*Config, error) {
	if cfg.PipelinesPath == "" {
		return nil, errors.New("PipelinesPath is a required configuration field and cannot be empty")
	}
	return &cfg, nil
}
