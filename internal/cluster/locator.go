package cluster

import (
	"context"
	"log/slog"
	"provisioner/internal/apperrors"
)

// Locator finds running driver jobs by name.
type Locator struct {
	rm     ResourceManager
	logger *slog.Logger
}

// NewLocator creates a locator backed by rm.
func NewLocator(rm ResourceManager) *Locator {
	return &Locator{
		rm:     rm,
		logger: slog.With("component", "locator"),
	}
}

// FindByName returns the id of the single running map-reduce job named
// name. No match is NotFound; several matches are AmbiguousMatch and are
// never arbitrated.
func (l *Locator) FindByName(ctx context.Context, name string) (string, error) {
	apps, err := l.rm.Applications(ctx, []string{TypeMapReduce}, []string{StateRunning})
	if err != nil {
		return "", apperrors.QueryFailed("cluster.listApplications", err)
	}

	var matches []string
	for _, app := range apps {
		if app.Name == name {
			matches = append(matches, app.ID)
		}
	}
	l.logger.Debug("Jobs found", "name", name, "ids", matches, "listed", len(apps))

	switch len(matches) {
	case 0:
		return "", apperrors.NotFound("job", name)
	case 1:
		return matches[0], nil
	default:
		return "", apperrors.AmbiguousMatch("job", name, len(matches))
	}
}

// Terminate asks the resource manager to kill the job.
func (l *Locator) Terminate(ctx context.Context, id string) error {
	if err := l.rm.Kill(ctx, id); err != nil {
		return apperrors.TerminateFailed("cluster.kill", err)
	}
	l.logger.Info("Job kill requested", "applicationId", id)
	return nil
}
