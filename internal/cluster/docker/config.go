package docker

import (
	"provisioner/internal/config"
)

// Config holds configuration for the docker resource manager.
type Config struct {
	ManagedLabel string // label selecting driver containers (e.g., "managed-by=h2o-provisioner")
	KillSignal   string // signal sent on Kill
}

// LoadConfigFromEnv loads docker resource manager configuration from environment variables.
func LoadConfigFromEnv() Config {
	return Config{
		ManagedLabel: config.GetEnv("DOCKER_MANAGED_LABEL", "managed-by=h2o-provisioner"),
		KillSignal:   config.GetEnv("DOCKER_KILL_SIGNAL", "SIGKILL"),
	}
}

func (c Config) withDefaults() Config {
	if c.ManagedLabel == "" {
		c.ManagedLabel = "managed-by=h2o-provisioner"
	}
	if c.KillSignal == "" {
		c.KillSignal = "SIGKILL"
	}
	return c
}
