// Package cluster locates and terminates driver jobs on the cluster
// resource manager.
package cluster

import (
	"context"
	"io"
)

// Filters applied when listing jobs. The driver registers itself as a
// map-reduce application.
const (
	TypeMapReduce = "MAPREDUCE"
	StateRunning  = "RUNNING"
)

// Application is a snapshot of one job as reported by the resource manager.
type Application struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	State string `json:"state"`
	Type  string `json:"applicationType"`
}

// ResourceManager is the subset of a cluster resource manager the
// provisioner needs.
type ResourceManager interface {
	io.Closer

	// Start prepares the client for use.
	Start(ctx context.Context) error

	// Applications lists jobs matching any of the given types and states.
	Applications(ctx context.Context, types, states []string) ([]Application, error)

	// Kill requests termination of a job. It does not wait for the job to stop.
	Kill(ctx context.Context, id string) error

	// Ready verifies the resource manager is reachable.
	Ready(ctx context.Context) error
}

// Provider builds a resource manager client for one deprovisioning call.
// conf is the caller's Hadoop configuration, possibly extended with an
// authenticated session.
type Provider interface {
	Client(user string, conf map[string]string) (ResourceManager, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(user string, conf map[string]string) (ResourceManager, error)

// Client calls f.
func (f ProviderFunc) Client(user string, conf map[string]string) (ResourceManager, error) {
	return f(user, conf)
}
