package app

import "errors"

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	InputPath     string // input deck: mesh, driver and parallel blocks
	ManifestsPath string // package declarations

	LogFormat       string
	LogLevel        string
	HealthcheckPort int
	// WorkerCount overrides the driver's worker count when positive.
	WorkerCount int
}

func NewConfig(cfg Config) (*Config, error) {
	if cfg.InputPath == "" {
		return nil, errors.New("InputPath is a required configuration field and cannot be empty")
	}
	return &cfg, nil
}
