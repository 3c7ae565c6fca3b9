// provisioner is the HTTP API server that starts and stops H2O clusters on YARN.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"provisioner/internal/api"
	"provisioner/internal/cluster"
	"provisioner/internal/cluster/docker"
	"provisioner/internal/cluster/yarn"
	"provisioner/internal/config"
	"provisioner/internal/credentials"
	"provisioner/internal/hadoopconf"
	"provisioner/internal/health"
	"provisioner/internal/instance"
	"provisioner/internal/kerberos"
	"provisioner/internal/notify"
	"provisioner/internal/observability"
	"provisioner/internal/ports"
	"provisioner/internal/process"
	"syscall"
	"time"
)

// notifier is what the service needs from the lifecycle event publisher.
type notifier interface {
	instance.Notifier
	Close(ctx context.Context) error
}

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	if err := run(); err != nil {
		slog.Error("Service failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	if err := config.LoadDotEnv(os.Getenv("ENV_FILE")); err != nil {
		return fmt.Errorf("failed to load env file: %w", err)
	}

	// Load configuration
	svcCfg := config.LoadServiceConfig()
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: svcCfg.LogLevel})))
	if err := svcCfg.Validate(); err != nil {
		return err
	}

	// Setup metrics
	metrics, metricsHandler, err := observability.NewMetrics(ctx)
	if err != nil {
		return err
	}

	runner := process.NewRunner(process.WithRedactedFlags("-password"))

	portPool, err := ports.NewRangedPool(svcCfg.Driver.PortLower, svcCfg.Driver.PortUpper, ports.SocketChecker{})
	if err != nil {
		return err
	}
	slog.Info("Driver port range ready", "lower", svcCfg.Driver.PortLower, "upper", svcCfg.Driver.PortUpper, "size", portPool.Size())

	usernames, err := credentials.NewRandomAlphanumeric(svcCfg.Credentials.UsernameLength)
	if err != nil {
		return err
	}
	passwords, err := credentials.NewRandomAlphanumeric(svcCfg.Credentials.PasswordLength)
	if err != nil {
		return err
	}

	// Secured calls fail with LoginFailed when kerberos is not configured.
	var auth instance.Authenticator
	krb5Conf := ""
	if svcCfg.Kerberos.Enabled() {
		authenticator, err := kerberos.New(kerberos.Config{
			TemplatePath: svcCfg.Kerberos.ConfTemplate,
			Realm:        svcCfg.Kerberos.Realm,
			KDC:          svcCfg.Kerberos.KDC,
			User:         svcCfg.Kerberos.User,
			Password:     svcCfg.Kerberos.Password,
			CCache:       svcCfg.Kerberos.CCache,
		}, runner)
		if err != nil {
			return err
		}
		auth = authenticator
		krb5Conf = authenticator.ConfigPath()
	} else {
		slog.Warn("Kerberos disabled - secured requests will be rejected")
	}

	clusters, err := newClusterProvider(svcCfg.Cluster, krb5Conf)
	if err != nil {
		return err
	}

	// Lifecycle notifications are optional
	var events notifier = notify.Nop{}
	var webhook *notify.Webhook
	if svcCfg.Notify.URL != "" {
		webhook = notify.NewWebhook(notify.Config{
			URL:         svcCfg.Notify.URL,
			SigningKey:  svcCfg.Notify.SigningKey,
			BufferSize:  svcCfg.Notify.BufferSize,
			Workers:     svcCfg.Notify.Workers,
			HTTPTimeout: svcCfg.Notify.Timeout,
		}, metrics)
		events = webhook
		slog.Info("Lifecycle notifications enabled", "url", svcCfg.Notify.URL)
	}

	driver := hadoopconf.NewDriver(svcCfg.Driver.YarnConfDir, runner)
	slog.Info("Driver launches configured", "launcher", svcCfg.Driver.Launcher, "confDir", driver.ConfDir())

	provisioner, err := instance.New(instance.Config{
		DriverIP:     svcCfg.Driver.IP,
		JarPath:      svcCfg.Driver.JarPath,
		Launcher:     svcCfg.Driver.Launcher,
		NotifyDir:    svcCfg.Driver.NotifyDir,
		EndpointWait: svcCfg.Driver.EndpointWait,
	}, instance.Deps{
		Usernames: usernames,
		Passwords: passwords,
		Ports:     portPool,
		Auth:      auth,
		Launcher:  driver,
		Clusters:  clusters,
		Metrics:   metrics,
		Notifier:  events,
	})
	if err != nil {
		return err
	}

	// Create health checker
	healthChecker := health.NewChecker(map[string]health.ReadinessChecker{
		"driver":          health.FileExists(svcCfg.Driver.JarPath),
		"resourceManager": resourceManagerCheck(clusters),
	})

	// Create API router
	router := api.NewRouter(api.RouterConfig{
		Instances:     provisioner,
		Metrics:       metrics,
		HealthChecker: healthChecker,
		APIKey:        svcCfg.APIKey,
	})

	if svcCfg.APIKey != "" {
		slog.Info("API authentication enabled")
	} else {
		slog.Warn("API authentication disabled - no API_KEY_FILE configured")
	}

	// Provisioning blocks until the driver reports back, so the write
	// timeout has to cover a full launch.
	apiServer := &http.Server{
		Addr:         ":" + svcCfg.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	// Create metrics server
	metricsMux := http.NewServeMux()
	metricsMux.Handle("GET /metrics", metricsHandler)
	metricsServer := &http.Server{
		Addr:         ":" + svcCfg.MetricsPort,
		Handler:      metricsMux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	// Channel to capture server errors
	serverErr := make(chan error, 1)

	go func() {
		slog.Info("Starting API server", "port", svcCfg.Port)
		if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	go func() {
		slog.Info("Starting metrics server", "port", svcCfg.MetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// shutdown closes both servers gracefully
	shutdown := func(timeout time.Duration) {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := apiServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("API server shutdown error", "error", err)
		}
		if err := metricsServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Metrics server shutdown error", "error", err)
		}
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		slog.Info("Received shutdown signal", "signal", sig)
	case err := <-serverErr:
		slog.Error("Server failed to start", "error", err)
		shutdown(5 * time.Second)
		return err
	}

	// Phase 1: Mark service as unhealthy for load balancer draining
	healthChecker.SetShuttingDown()

	if svcCfg.ShutdownDrainWait > 0 {
		slog.Info("Waiting for traffic to drain", "duration", svcCfg.ShutdownDrainWait)
		time.Sleep(svcCfg.ShutdownDrainWait)
	}

	// Phase 2: Let in-flight provisioning calls finish
	slog.Info("Starting graceful shutdown")
	shutdown(5 * time.Minute)

	// Phase 3: Flush pending lifecycle events
	notifyCtx, notifyCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer notifyCancel()
	if err := events.Close(notifyCtx); err != nil {
		slog.Warn("Notifier shutdown error", "error", err)
	}
	if webhook != nil {
		stats := webhook.Stats()
		slog.Info("Notifier stats",
			"delivered", stats.Delivered,
			"failed", stats.Failed,
			"dropped", stats.Dropped,
		)
	}

	// Launched drivers are detached and keep running without the service.
	slog.Info("Shutdown complete")
	return nil
}

// newClusterProvider selects the resource manager backend.
func newClusterProvider(cfg config.ClusterConfig, krb5Conf string) (cluster.Provider, error) {
	switch cfg.Backend {
	case "yarn":
		return yarn.NewProvider(yarn.Config{
			Address:  cfg.YarnAddress,
			Timeout:  cfg.Timeout,
			Krb5Conf: krb5Conf,
		}), nil
	case "docker":
		return docker.NewProvider(docker.LoadConfigFromEnv()), nil
	default:
		return nil, fmt.Errorf("unknown resource manager backend %q", cfg.Backend)
	}
}

// resourceManagerCheck pings the default resource manager with a
// short-lived client.
func resourceManagerCheck(clusters cluster.Provider) health.ReadinessChecker {
	return health.ReadinessFunc(func(ctx context.Context) error {
		rm, err := clusters.Client("", nil)
		if err != nil {
			return err
		}
		defer rm.Close()
		return rm.Ready(ctx)
	})
}
