// Package observability provides metrics for the provisioner service.
package observability

import (
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Attribute keys
const (
	attrMethod  = "method"
	attrPath    = "path"
	attrStatus  = "status"
	attrSecured = "secured"
	attrReason  = "reason"
)

func methodAttr(method string) attribute.KeyValue {
	return attribute.String(attrMethod, method)
}

func pathAttr(path string) attribute.KeyValue {
	return attribute.String(attrPath, normalizePath(path))
}

func statusAttr(code int) attribute.KeyValue {
	// 200-299 -> 2xx, 400-499 -> 4xx, 500-599 -> 5xx
	return attribute.String(attrStatus, fmt.Sprintf("%dxx", code/100))
}

func securedAttr(secured bool) attribute.KeyValue {
	return attribute.Bool(attrSecured, secured)
}

func reasonAttr(reason string) attribute.KeyValue {
	return attribute.String(attrReason, reason)
}

// normalizePath replaces the instance id segment with a placeholder.
// /rest/instances/abc/create -> /rest/instances/{instanceId}/create
func normalizePath(path string) string {
	const prefix = "/rest/instances/"
	rest, ok := strings.CutPrefix(path, prefix)
	if !ok || rest == "" {
		return path
	}
	if _, action, found := strings.Cut(rest, "/"); found {
		return prefix + "{instanceId}/" + action
	}
	return prefix + "{instanceId}"
}

// WithSecured returns a metric option with the secured attribute.
func WithSecured(secured bool) metric.MeasurementOption {
	return metric.WithAttributes(securedAttr(secured))
}

// WithReason returns a metric option with the failure reason attribute.
func WithReason(reason string) metric.MeasurementOption {
	return metric.WithAttributes(reasonAttr(reason))
}
