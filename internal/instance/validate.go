package instance

import (
	"fmt"
	"provisioner/internal/apperrors"
	"regexp"
)

// Validation limits
const (
	maxInstanceIDLength = 128
	maxNodes            = 1000
)

var (
	// instanceIDPattern allows alphanumeric, hyphens, and underscores
	instanceIDPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]*$`)
	// memoryPattern matches -mapperXmx values such as 256m or 4g
	memoryPattern = regexp.MustCompile(`^[0-9]+[kKmMgG]?$`)
)

// ValidateID checks that an instance id is safe to embed in job names and paths.
func ValidateID(id string) error {
	if id == "" {
		return apperrors.Validation("instanceId", "instance ID is required")
	}
	if len(id) > maxInstanceIDLength {
		return apperrors.Validation("instanceId", fmt.Sprintf("instance ID exceeds maximum length of %d", maxInstanceIDLength))
	}
	if !instanceIDPattern.MatchString(id) {
		return apperrors.Validation("instanceId", "instance ID must be alphanumeric (hyphens and underscores allowed, cannot start with hyphen/underscore)")
	}
	return nil
}

// ValidateNodes checks the requested node count.
func ValidateNodes(nodes int) error {
	if nodes <= 0 {
		return apperrors.Validation("nodesCount", "nodesCount must be a positive integer")
	}
	if nodes > maxNodes {
		return apperrors.Validation("nodesCount", fmt.Sprintf("nodesCount exceeds maximum of %d", maxNodes))
	}
	return nil
}

// ValidateMemory checks a per-node memory size.
func ValidateMemory(memory string) error {
	if memory == "" {
		return apperrors.Validation("memory", "memory is required")
	}
	if !memoryPattern.MatchString(memory) {
		return apperrors.Validation("memory", "memory must be a number with an optional k, m or g suffix")
	}
	return nil
}
