// Package api provides the HTTP API handlers and routing for the provisioner.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"provisioner/internal/apperrors"
	"provisioner/internal/health"
	"provisioner/internal/instance"
	"strconv"
)

// maxRequestBodySize limits request body to 1MB to prevent memory exhaustion
const maxRequestBodySize = 1 << 20 // 1 MB

// InstanceService runs the lifecycle workflows.
type InstanceService interface {
	Provision(ctx context.Context, instanceID, memory string, nodes int, secured bool, conf map[string]string) (*instance.Credentials, error)
	Deprovision(ctx context.Context, instanceID string, conf map[string]string, secured bool) (string, error)
}

// CreateRequest is the body of a create call.
type CreateRequest struct {
	YarnConfig map[string]string `json:"yarnConfig"`
	UserToken  string            `json:"userToken,omitempty"`
}

// Handler contains HTTP handlers for the instances API
type Handler struct {
	svc    InstanceService
	health *health.Checker
}

// NewHandler creates a new API handler
func NewHandler(svc InstanceService, healthChecker *health.Checker) *Handler {
	return &Handler{
		svc:    svc,
		health: healthChecker,
	}
}

// CreateInstance handles POST /rest/instances/{instanceId}/create
func (h *Handler) CreateInstance(w http.ResponseWriter, r *http.Request) {
	instanceID := r.PathValue("instanceId")
	if err := instance.ValidateID(instanceID); err != nil {
		h.handleError(w, r, err)
		return
	}

	query := r.URL.Query()
	nodes, err := strconv.Atoi(query.Get("nodesCount"))
	if err != nil {
		h.handleError(w, r, apperrors.Validation("nodesCount", "nodesCount must be a positive integer"))
		return
	}
	memory := query.Get("memory")

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	var req CreateRequest
	if err := decodeOptional(r.Body, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.UserToken != "" {
		slog.Debug("User token passed", "instanceId", instanceID, "requestId", RequestID(r.Context()))
	}

	creds, err := h.svc.Provision(r.Context(), instanceID, memory, nodes, secured(r), req.YarnConfig)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, creds)
}

// DeleteInstance handles POST /rest/instances/{instanceId}/delete.
// The body is the flat Hadoop configuration of the target cluster.
func (h *Handler) DeleteInstance(w http.ResponseWriter, r *http.Request) {
	instanceID := r.PathValue("instanceId")
	if err := instance.ValidateID(instanceID); err != nil {
		h.handleError(w, r, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	var conf map[string]string
	if err := decodeOptional(r.Body, &conf); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	jobID, err := h.svc.Deprovision(r.Context(), instanceID, conf, secured(r))
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, jobID)
}

// Livez handles GET /livez - liveness probe.
// Returns 200 if the process is alive. Does not check dependencies.
func (h *Handler) Livez(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.health.Liveness(r.Context()))
}

// Readyz handles GET /readyz - readiness probe.
// Returns 503 if the driver jar is missing or the resource manager is unreachable.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	response := h.health.Readiness(r.Context())

	status := http.StatusOK
	if !response.IsHealthy() {
		status = http.StatusServiceUnavailable
	}

	h.writeJSON(w, status, response)
}

// secured reads the kerberos query parameter. Only "on" enables it and a
// missing parameter means on.
func secured(r *http.Request) bool {
	if !r.URL.Query().Has("kerberos") {
		return true
	}
	return r.URL.Query().Get("kerberos") == "on"
}

// decodeOptional decodes a JSON body, treating an empty body as zero value.
func decodeOptional(body io.Reader, v any) error {
	err := json.NewDecoder(body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// writeError writes an error response
func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

// handleError maps service errors to HTTP status codes.
func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatus(err)
	logger := slog.With("requestId", RequestID(r.Context()), "path", r.URL.Path, "kind", apperrors.Kind(err))
	if status >= 500 {
		logger.Error("Internal error", "error", err)
	} else {
		logger.Warn("Client error", "error", err, "status", status)
	}
	h.writeError(w, status, err.Error())
}
