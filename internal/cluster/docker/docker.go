// Package docker implements cluster.ResourceManager on a Docker daemon.
// Driver jobs are containers carrying application name and type labels,
// which lets a single host stand in for a YARN cluster.
package docker

import (
	"context"
	"fmt"
	"log/slog"
	"provisioner/internal/cluster"
	"slices"
	"strings"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"
)

// Labels read from driver containers.
const (
	LabelApplicationName = "cluster.application.name"
	LabelApplicationType = "cluster.application.type"
)

// apiClient is the part of the Docker SDK used here.
type apiClient interface {
	ContainerList(ctx context.Context, options container.ListOptions) ([]container.Summary, error)
	ContainerKill(ctx context.Context, containerID, signal string) error
	Ping(ctx context.Context) (types.Ping, error)
	Close() error
}

// ResourceManager lists and kills labelled containers.
type ResourceManager struct {
	client apiClient
	cfg    Config
	logger *slog.Logger
}

// New connects to the Docker daemon configured in the environment.
func New(cfg Config) (*ResourceManager, error) {
	dockerClient, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	return newWithClient(dockerClient, cfg), nil
}

func newWithClient(c apiClient, cfg Config) *ResourceManager {
	cfg = cfg.withDefaults()
	return &ResourceManager{
		client: c,
		cfg:    cfg,
		logger: slog.With("component", "docker", "label", cfg.ManagedLabel),
	}
}

// NewProvider returns a provider creating one docker client per call.
// The Hadoop configuration is not used by this backend.
func NewProvider(cfg Config) cluster.Provider {
	return cluster.ProviderFunc(func(string, map[string]string) (cluster.ResourceManager, error) {
		return New(cfg)
	})
}

// Start is a no-op; the docker client connects lazily.
func (r *ResourceManager) Start(ctx context.Context) error {
	return nil
}

// Applications lists managed containers whose type and state match.
func (r *ResourceManager) Applications(ctx context.Context, appTypes, states []string) ([]cluster.Application, error) {
	containers, err := r.client.ContainerList(ctx, container.ListOptions{
		All: true,
		Filters: filters.NewArgs(
			filters.Arg("label", r.cfg.ManagedLabel),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list containers: %w", err)
	}

	var apps []cluster.Application
	for i := range containers {
		c := &containers[i]
		app := cluster.Application{
			ID:    c.ID,
			Name:  c.Labels[LabelApplicationName],
			Type:  c.Labels[LabelApplicationType],
			State: applicationState(string(c.State)),
		}
		if app.Name == "" && len(c.Names) > 0 {
			app.Name = strings.TrimPrefix(c.Names[0], "/")
		}
		if len(appTypes) > 0 && !slices.Contains(appTypes, app.Type) {
			continue
		}
		if len(states) > 0 && !slices.Contains(states, app.State) {
			continue
		}
		apps = append(apps, app)
	}
	return apps, nil
}

// Kill signals the container. It does not wait for it to stop.
func (r *ResourceManager) Kill(ctx context.Context, id string) error {
	if err := r.client.ContainerKill(ctx, id, r.cfg.KillSignal); err != nil {
		return fmt.Errorf("failed to kill container %s: %w", id, err)
	}
	r.logger.Info("Container killed", "containerId", id, "signal", r.cfg.KillSignal)
	return nil
}

// Ready pings the Docker daemon.
func (r *ResourceManager) Ready(ctx context.Context) error {
	_, err := r.client.Ping(ctx)
	return err
}

// Close releases the docker client.
func (r *ResourceManager) Close() error {
	return r.client.Close()
}

// applicationState maps docker container states onto YARN application states.
func applicationState(state string) string {
	switch state {
	case "running", "paused", "restarting":
		return cluster.StateRunning
	case "created":
		return "NEW"
	case "exited":
		return "FINISHED"
	case "dead", "removing":
		return "KILLED"
	default:
		return strings.ToUpper(state)
	}
}

var _ cluster.ResourceManager = (*ResourceManager)(nil)
