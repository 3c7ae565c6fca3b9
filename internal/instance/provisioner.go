// Package instance sequences port allocation, credential generation,
// ticket login, driver launch, endpoint discovery and cluster job lookup
// into the provision and deprovision lifecycle calls.
package instance

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"provisioner/internal/apperrors"
	"provisioner/internal/cluster"
	"provisioner/internal/credentials"
	"provisioner/internal/endpoint"
	"provisioner/pkg/cloudevent"
	"strconv"
	"strings"
	"time"

	"github.com/google/shlex"
)

// PortAllocator hands out callback ports for the driver.
type PortAllocator interface {
	Allocate() (int, error)
}

// Authenticator performs the ticket login used in secured mode.
type Authenticator interface {
	Login() error
	Authenticate(conf map[string]string) (map[string]string, error)
	User() string
	ConfigPath() string
	TicketCache() string
}

// Launcher writes the cluster configuration and runs the driver to completion.
type Launcher interface {
	Launch(argv []string, env, conf map[string]string) error
}

// Metrics records lifecycle outcomes.
type Metrics interface {
	RecordProvision(ctx context.Context, secured bool, err error, durationSeconds float64)
	RecordDeprovision(ctx context.Context, secured bool, err error)
	RecordPortAllocationFailure(ctx context.Context)
}

// Notifier publishes lifecycle events. Publishing must not block.
type Notifier interface {
	Publish(eventType, instanceID string, data map[string]any) error
}

// Config holds the driver launch settings.
type Config struct {
	DriverIP     string
	JarPath      string
	Launcher     string        // command preceding the jar, e.g. "hadoop jar"
	NotifyDir    string        // base for the notification file, "" = working directory
	EndpointWait time.Duration // 0 reads the notification file once
	PollInterval time.Duration // Await interval when EndpointWait > 0 (default: 500ms)
}

// Deps are the collaborators of a Provisioner. Auth, Metrics and Notifier
// may be nil.
type Deps struct {
	Usernames credentials.Supplier
	Passwords credentials.Supplier
	Ports     PortAllocator
	Auth      Authenticator
	Launcher  Launcher
	Clusters  cluster.Provider
	Metrics   Metrics
	Notifier  Notifier
}

// Credentials is the outcome of a successful provisioning call.
type Credentials struct {
	Host     string `json:"hostname"`
	Port     string `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// Provisioner runs the lifecycle workflows. It keeps no per-instance
// state: deprovisioning finds the job again through JobName.
type Provisioner struct {
	cfg      Config
	launcher []string
	deps     Deps
	logger   *slog.Logger
}

// New creates a Provisioner. The launcher command is split with shell
// quoting rules and must not be empty.
func New(cfg Config, deps Deps) (*Provisioner, error) {
	launcher, err := shlex.Split(cfg.Launcher)
	if err != nil {
		return nil, apperrors.Validation("launcher", fmt.Sprintf("invalid launcher command: %v", err))
	}
	if len(launcher) == 0 {
		return nil, apperrors.Validation("launcher", "launcher command is required")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 500 * time.Millisecond
	}
	return &Provisioner{
		cfg:      cfg,
		launcher: launcher,
		deps:     deps,
		logger:   slog.With("component", "instance"),
	}, nil
}

// Provision starts a driver for instanceID and returns the endpoint the
// driver reported together with the generated credentials.
//
// Any step failure aborts the call as a ProvisioningFailed error. Nothing is
// rolled back: a failure after the launch can leave a running job behind,
// which Deprovision can still remove by instance id.
func (p *Provisioner) Provision(ctx context.Context, instanceID, memory string, nodes int, secured bool, conf map[string]string) (*Credentials, error) {
	if err := ValidateID(instanceID); err != nil {
		return nil, err
	}
	if err := ValidateMemory(memory); err != nil {
		return nil, err
	}
	if err := ValidateNodes(nodes); err != nil {
		return nil, err
	}

	logger := p.logger.With("instanceId", instanceID, "secured", secured)
	start := time.Now()

	creds, err := p.provision(ctx, logger, instanceID, memory, nodes, secured, conf)
	if err != nil {
		err = apperrors.ProvisioningFailed(instanceID, err)
		logger.Error("Provisioning failed", "error", err)
		p.publish(cloudevent.TypeProvisionFailed, instanceID, failureData(err))
	} else {
		logger.Info("Instance provisioned", "host", creds.Host, "port", creds.Port, "duration", time.Since(start))
		p.publish(cloudevent.TypeProvisioned, instanceID, map[string]any{
			"hostname": creds.Host,
			"port":     creds.Port,
			"nodes":    nodes,
			"memory":   memory,
			"secured":  secured,
		})
	}

	if p.deps.Metrics != nil {
		p.deps.Metrics.RecordProvision(ctx, secured, err, time.Since(start).Seconds())
	}
	return creds, err
}

func (p *Provisioner) provision(ctx context.Context, logger *slog.Logger, instanceID, memory string, nodes int, secured bool, conf map[string]string) (*Credentials, error) {
	username, err := p.deps.Usernames.Supply()
	if err != nil {
		return nil, err
	}
	password, err := p.deps.Passwords.Supply()
	if err != nil {
		return nil, err
	}

	port, err := p.deps.Ports.Allocate()
	if err != nil {
		if p.deps.Metrics != nil && errors.Is(err, apperrors.ErrNoPortAvailable) {
			p.deps.Metrics.RecordPortAllocationFailure(ctx)
		}
		return nil, err
	}
	logger.Debug("Callback port allocated", "port", port)

	notifyPath := NotifyPath(p.cfg.NotifyDir, instanceID)
	argv := p.command(instanceID, memory, nodes, port, notifyPath, username, password)

	var env map[string]string
	if secured {
		if p.deps.Auth == nil {
			return nil, apperrors.LoginFailed("kerberos.login", errors.New("kerberos is not configured"))
		}
		if err := p.deps.Auth.Login(); err != nil {
			return nil, err
		}
		env = p.kerberosEnv()
	}

	// A file left by an earlier run of the same instance would be read as
	// this run's endpoint.
	if err := os.Remove(notifyPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, apperrors.IOFailure("endpoint.reset", err)
	}

	if err := p.deps.Launcher.Launch(argv, env, conf); err != nil {
		return nil, err
	}

	addr, err := p.discover(ctx, notifyPath)
	if err != nil {
		return nil, err
	}

	host, hostPort, ok := splitEndpoint(addr)
	if !ok {
		return nil, apperrors.IOFailure("endpoint.parse", fmt.Errorf("malformed endpoint %q in %s", addr, notifyPath))
	}

	return &Credentials{
		Host:     host,
		Port:     hostPort,
		Username: username,
		Password: password,
	}, nil
}

// command builds the driver argument vector.
func (p *Provisioner) command(instanceID, memory string, nodes, port int, notifyPath, username, password string) []string {
	argv := make([]string, 0, len(p.launcher)+22)
	argv = append(argv, p.launcher...)
	return append(argv,
		p.cfg.JarPath,
		"-driverif", p.cfg.DriverIP,
		"-driverport", strconv.Itoa(port),
		"-mapperXmx", memory,
		"-nodes", strconv.Itoa(nodes),
		"-output", OutputPath(instanceID),
		"-jobname", JobName(instanceID),
		"-notify", notifyPath,
		"-username", username,
		"-password", password,
		"-disown",
	)
}

// kerberosEnv points the driver at the ticket obtained by Login.
func (p *Provisioner) kerberosEnv() map[string]string {
	env := map[string]string{"KRB5_CONFIG": p.deps.Auth.ConfigPath()}
	if cache := p.deps.Auth.TicketCache(); cache != "" {
		env["KRB5CCNAME"] = cache
	}
	return env
}

// discover reads the notification file once, or polls for it when an
// endpoint wait is configured.
func (p *Provisioner) discover(ctx context.Context, path string) (string, error) {
	if p.cfg.EndpointWait <= 0 {
		return endpoint.ReadEndpoint(path)
	}
	ctx, cancel := context.WithTimeout(ctx, p.cfg.EndpointWait)
	defer cancel()
	return endpoint.Await(ctx, path, p.cfg.PollInterval)
}

// splitEndpoint splits host:port at the last colon.
func splitEndpoint(addr string) (host, port string, ok bool) {
	i := strings.LastIndexByte(addr, ':')
	if i < 0 {
		return "", "", false
	}
	return addr[:i], addr[i+1:], true
}

// Deprovision kills the running job of instanceID and returns its
// application id. A missing job is returned as a bare NotFound error;
// every other failure is a DeprovisioningFailed error.
func (p *Provisioner) Deprovision(ctx context.Context, instanceID string, conf map[string]string, secured bool) (string, error) {
	if err := ValidateID(instanceID); err != nil {
		return "", err
	}

	logger := p.logger.With("instanceId", instanceID, "secured", secured)

	// A kill that reached the resource manager must not be abandoned
	// because the caller went away.
	jobID, err := p.deprovision(context.WithoutCancel(ctx), logger, instanceID, conf, secured)
	switch {
	case err == nil:
		logger.Info("Instance deprovisioned", "applicationId", jobID)
		p.publish(cloudevent.TypeDeprovisioned, instanceID, map[string]any{"applicationId": jobID})
	case isNotFound(err):
		logger.Info("No running job for instance", "jobName", JobName(instanceID))
	default:
		err = apperrors.DeprovisioningFailed(instanceID, err)
		logger.Error("Deprovisioning failed", "error", err)
		p.publish(cloudevent.TypeDeprovisionFailed, instanceID, failureData(err))
	}

	if p.deps.Metrics != nil {
		p.deps.Metrics.RecordDeprovision(ctx, secured, err)
	}
	return jobID, err
}

func (p *Provisioner) deprovision(ctx context.Context, logger *slog.Logger, instanceID string, conf map[string]string, secured bool) (string, error) {
	var user string
	if secured {
		if p.deps.Auth == nil {
			return "", apperrors.LoginFailed("kerberos.login", errors.New("kerberos is not configured"))
		}
		authed, err := p.deps.Auth.Authenticate(conf)
		if err != nil {
			return "", err
		}
		conf = authed
		user = p.deps.Auth.User()
	}

	rm, err := p.deps.Clusters.Client(user, conf)
	if err != nil {
		return "", apperrors.QueryFailed("cluster.client", err)
	}
	defer func() {
		if err := rm.Close(); err != nil {
			logger.Warn("Failed to close resource manager client", "error", err)
		}
	}()

	if err := rm.Start(ctx); err != nil {
		return "", apperrors.QueryFailed("cluster.start", err)
	}

	locator := cluster.NewLocator(rm)
	jobID, err := locator.FindByName(ctx, JobName(instanceID))
	if err != nil {
		return "", err
	}
	if err := locator.Terminate(ctx, jobID); err != nil {
		return "", err
	}
	return jobID, nil
}

// isNotFound reports a locator miss, not a not-found buried in a query failure.
func isNotFound(err error) bool {
	return errors.Is(err, apperrors.ErrNotFound) && !errors.Is(err, apperrors.ErrQueryFailed)
}

func (p *Provisioner) publish(eventType, instanceID string, data map[string]any) {
	if p.deps.Notifier == nil {
		return
	}
	if err := p.deps.Notifier.Publish(eventType, instanceID, data); err != nil {
		p.logger.Warn("Lifecycle event not queued", "type", eventType, "instanceId", instanceID, "error", err)
	}
}

func failureData(err error) map[string]any {
	return map[string]any{
		"reason": apperrors.Kind(err),
		"error":  err.Error(),
	}
}
