// Package cloudevent provides CloudEvents 1.0 envelopes for instance
// lifecycle notifications, plus signing and HTTP delivery.
package cloudevent

import "time"

// Lifecycle event types.
const (
	TypeProvisioned       = "h2o.instance.provisioned"
	TypeProvisionFailed   = "h2o.instance.provision_failed"
	TypeDeprovisioned     = "h2o.instance.deprovisioned"
	TypeDeprovisionFailed = "h2o.instance.deprovision_failed"
)

// DefaultSource identifies events emitted by the provisioner service.
const DefaultSource = "h2o-provisioner"

// CloudEvent represents a CloudEvents 1.0 specification event
type CloudEvent struct {
	SpecVersion     string         `json:"specversion"`
	Type            string         `json:"type"`
	Source          string         `json:"source"`
	Subject         string         `json:"subject"`
	ID              string         `json:"id"`
	Time            time.Time      `json:"time"`
	DataContentType string         `json:"datacontenttype"`
	Data            map[string]any `json:"data,omitempty"`
}

// New creates an event about subject (an instance id) with default values.
func New(eventType, source, subject, id string, data map[string]any) *CloudEvent {
	if source == "" {
		source = DefaultSource
	}
	return &CloudEvent{
		SpecVersion:     "1.0",
		Type:            eventType,
		Source:          source,
		Subject:         subject,
		ID:              id,
		Time:            time.Now().UTC(),
		DataContentType: "application/json",
		Data:            data,
	}
}

// Failed reports whether the event describes a failed lifecycle call.
func (e *CloudEvent) Failed() bool {
	return e.Type == TypeProvisionFailed || e.Type == TypeDeprovisionFailed
}
