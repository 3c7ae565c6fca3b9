// Package ports hands out locally bindable ports from a bounded range.
package ports

import (
	"log/slog"
	"provisioner/internal/apperrors"
	"sync"
)

const maxPort = 0xFFFF

// Checker reports whether a port can be bound right now.
type Checker interface {
	Available(port int) bool
}

// RangedPool rotates through every port of [lower, upper] and returns the
// first one the checker accepts. Each call starts where the previous one
// stopped, so consecutive calls spread over the whole range.
//
// Only the rotation itself is serialized; liveness checks run outside the
// lock so a slow check does not stall other callers.
type RangedPool struct {
	checker Checker
	logger  *slog.Logger

	mu    sync.Mutex
	ports []int
	head  int
}

// NewRangedPool builds a pool over [lower, upper]. Both bounds must lie in
// (0, 65535] and upper must be greater than lower.
func NewRangedPool(lower, upper int, checker Checker) (*RangedPool, error) {
	if lower <= 0 || upper <= 0 || lower > maxPort || upper > maxPort || upper <= lower {
		return nil, apperrors.InvalidRange(lower, upper)
	}

	ports := make([]int, 0, upper-lower+1)
	for p := lower; p <= upper; p++ {
		ports = append(ports, p)
	}

	return &RangedPool{
		checker: checker,
		logger:  slog.With("component", "ports"),
		ports:   ports,
	}, nil
}

// Size returns the number of ports in the range.
func (p *RangedPool) Size() int {
	return len(p.ports)
}

// Allocate returns an available port or a NoPortAvailable error once every
// port of the range has been checked once by this call.
//
// The call rotates the shared ring until it pops its starting port again,
// at most once around.
// Concurrent callers advance the same ring, so that walk can skip ports;
// those are then checked in range order without rotating further.
//
// The returned port is not reserved: another process may bind it before
// the caller does.
func (p *RangedPool) Allocate() (int, error) {
	first := p.next()
	if p.checker.Available(first) {
		return first, nil
	}

	seen := map[int]bool{first: true}
	for range len(p.ports) {
		port := p.next()
		if port == first || len(seen) == len(p.ports) {
			break
		}
		if seen[port] {
			continue
		}
		seen[port] = true

		if p.checker.Available(port) {
			return port, nil
		}
	}

	for _, port := range p.ports {
		if seen[port] {
			continue
		}
		seen[port] = true
		if p.checker.Available(port) {
			return port, nil
		}
	}

	p.logger.Warn("Port pool exhausted", "checked", len(seen), "size", len(p.ports))
	return 0, apperrors.NoPortAvailable()
}

// next pops the head of the ring and requeues it at the tail.
func (p *RangedPool) next() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	port := p.ports[p.head]
	p.head = (p.head + 1) % len(p.ports)
	return port
}
