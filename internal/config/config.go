// Package config provides configuration loading from environment variables.
package config

import (
	"fmt"
	"log/slog"
	"provisioner/internal/apperrors"
	"strings"
	"time"
)

// ServiceConfig holds configuration for the provisioner service.
type ServiceConfig struct {
	Port              string
	MetricsPort       string
	APIKey            string
	LogLevel          slog.Level
	ShutdownDrainWait time.Duration // Time to wait for load balancer to drain (0 to skip)

	Driver      DriverConfig
	Credentials CredentialsConfig
	Kerberos    KerberosConfig
	Cluster     ClusterConfig
	Notify      NotifyConfig
}

// DriverConfig describes how the cluster driver is launched.
type DriverConfig struct {
	IP           string
	PortLower    int
	PortUpper    int
	JarPath      string
	Launcher     string        // e.g. "hadoop jar", split into argv before the jar path
	YarnConfDir  string        // base Hadoop configuration, copied for every launch
	NotifyDir    string        // base directory for relative notification paths
	EndpointWait time.Duration // 0 reads the notification file once
}

// CredentialsConfig sets the generated username/password lengths.
type CredentialsConfig struct {
	UsernameLength int
	PasswordLength int
}

// KerberosConfig holds the ticket login settings used in secured mode.
type KerberosConfig struct {
	KDC          string
	Realm        string
	User         string
	Password     string
	ConfTemplate string
	CCache       string
}

// Enabled reports whether enough is configured to attempt a ticket login.
func (k KerberosConfig) Enabled() bool {
	return k.ConfTemplate != "" && k.User != ""
}

// ClusterConfig selects and addresses the resource manager backend.
type ClusterConfig struct {
	Backend     string // "yarn" or "docker"
	YarnAddress string
	Timeout     time.Duration
}

// NotifyConfig configures lifecycle notifications. Empty URL disables them.
type NotifyConfig struct {
	URL        string
	SigningKey string
	Workers    int
	BufferSize int
	Timeout    time.Duration
}

// LoadServiceConfig loads service configuration from environment variables.
func LoadServiceConfig() *ServiceConfig {
	return &ServiceConfig{
		Port:              GetEnv("PORT", "8080"),
		MetricsPort:       GetEnv("METRICS_PORT", "9090"),
		APIKey:            GetSecretFile(GetEnv("API_KEY_FILE", "")),
		LogLevel:          parseLevel(GetEnv("LOG_LEVEL", "info")),
		ShutdownDrainWait: GetDurationEnv("SHUTDOWN_DRAIN_WAIT", 5*time.Second),
		Driver: DriverConfig{
			IP:           GetEnv("H2O_DRIVER_IP", ""),
			PortLower:    GetIntEnv("H2O_DRIVER_PORT_LOWER", 0),
			PortUpper:    GetIntEnv("H2O_DRIVER_PORT_UPPER", 0),
			JarPath:      GetEnv("H2O_DRIVER_JAR_PATH", ""),
			Launcher:     GetEnv("H2O_DRIVER_LAUNCHER", "hadoop jar"),
			YarnConfDir:  GetEnv("YARN_CONF_DIR", ""),
			NotifyDir:    GetEnv("H2O_NOTIFY_DIR", ""),
			EndpointWait: GetDurationEnv("H2O_ENDPOINT_WAIT", 0),
		},
		Credentials: CredentialsConfig{
			UsernameLength: GetIntEnv("H2O_USERNAME_LENGTH", 10),
			PasswordLength: GetIntEnv("H2O_PASSWORD_LENGTH", 16),
		},
		Kerberos: KerberosConfig{
			KDC:          GetEnv("KERBEROS_KDC", ""),
			Realm:        GetEnv("KERBEROS_REALM", ""),
			User:         GetEnv("KERBEROS_USER", ""),
			Password:     GetSecretFile(GetEnv("KERBEROS_PASSWORD_FILE", "")),
			ConfTemplate: GetEnv("KERBEROS_CONF_TEMPLATE", ""),
			CCache:       GetEnv("KERBEROS_CCACHE", "/tmp/krb5cc_provisioner"),
		},
		Cluster: ClusterConfig{
			Backend:     GetEnv("RESOURCE_MANAGER", "yarn"),
			YarnAddress: GetEnv("YARN_RM_ADDRESS", "http://localhost:8088"),
			Timeout:     GetDurationEnv("RESOURCE_MANAGER_TIMEOUT", 30*time.Second),
		},
		Notify: NotifyConfig{
			URL:        GetEnv("NOTIFY_URL", ""),
			SigningKey: GetSecretFile(GetEnv("NOTIFY_SIGNING_KEY_FILE", "")),
			Workers:    GetIntEnv("NOTIFY_WORKERS", 2),
			BufferSize: GetIntEnv("NOTIFY_BUFFER", 256),
			Timeout:    GetDurationEnv("NOTIFY_TIMEOUT", 10*time.Second),
		},
	}
}

// Validate reports the first missing or malformed required setting.
func (c *ServiceConfig) Validate() error {
	required := []struct {
		key, value string
	}{
		{"H2O_DRIVER_IP", c.Driver.IP},
		{"H2O_DRIVER_JAR_PATH", c.Driver.JarPath},
		{"YARN_CONF_DIR", c.Driver.YarnConfDir},
	}
	for _, r := range required {
		if r.value == "" {
			return apperrors.Validation(r.key, r.key+" is required")
		}
	}
	if c.Driver.PortLower == 0 || c.Driver.PortUpper == 0 {
		return apperrors.Validation("H2O_DRIVER_PORT_LOWER", "H2O_DRIVER_PORT_LOWER and H2O_DRIVER_PORT_UPPER are required")
	}
	if c.Credentials.UsernameLength <= 0 || c.Credentials.PasswordLength <= 0 {
		return apperrors.Validation("H2O_USERNAME_LENGTH", "credential lengths must be positive")
	}
	switch c.Cluster.Backend {
	case "yarn", "docker":
	default:
		return apperrors.Validation("RESOURCE_MANAGER", fmt.Sprintf("unknown resource manager %q", c.Cluster.Backend))
	}
	return nil
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
