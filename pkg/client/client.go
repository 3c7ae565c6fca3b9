// Package client is a Go client for the provisioner REST API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Instance is the connection info of a provisioned H2O cluster.
type Instance struct {
	Host     string `json:"hostname"`
	Port     string `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// CreateRequest is the body of a create call.
type CreateRequest struct {
	YarnConfig map[string]string `json:"yarnConfig"`
	UserToken  string            `json:"userToken,omitempty"`
}

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("provisioner returned %d: %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// Client calls the provisioner API.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithAPIKey sends key as a bearer token.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// New creates a client for the server at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		// Create blocks until the driver has started.
		http: &http.Client{Timeout: 10 * time.Minute},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// PrepareCreateURL builds the create call URL for an instance.
func PrepareCreateURL(base, instanceID string, nodes int, memory string, kerberos bool) string {
	return fmt.Sprintf("%s/rest/instances/%s/create?nodesCount=%s&memory=%s&kerberos=%s",
		strings.TrimRight(base, "/"), url.PathEscape(instanceID), strconv.Itoa(nodes), url.QueryEscape(memory), onOff(kerberos))
}

// PrepareDeleteURL builds the delete call URL for an instance.
func PrepareDeleteURL(base, instanceID string, kerberos bool) string {
	return fmt.Sprintf("%s/rest/instances/%s/delete?kerberos=%s",
		strings.TrimRight(base, "/"), url.PathEscape(instanceID), onOff(kerberos))
}

// CreateInstance provisions a cluster and returns its connection info.
func (c *Client) CreateInstance(ctx context.Context, instanceID string, nodes int, memory string, kerberos bool, req CreateRequest) (*Instance, error) {
	var inst Instance
	if err := c.post(ctx, PrepareCreateURL(c.baseURL, instanceID, nodes, memory, kerberos), req, &inst); err != nil {
		return nil, err
	}
	return &inst, nil
}

// DeleteInstance stops the cluster of instanceID and returns the killed job id.
func (c *Client) DeleteInstance(ctx context.Context, instanceID string, kerberos bool, conf map[string]string) (string, error) {
	if conf == nil {
		conf = map[string]string{}
	}
	var jobID string
	if err := c.post(ctx, PrepareDeleteURL(c.baseURL, instanceID, kerberos), conf, &jobID); err != nil {
		return "", err
	}
	return jobID, nil
}

func (c *Client) post(ctx context.Context, endpoint string, body, result any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Message: errorMessage(data)}
	}

	if err := json.Unmarshal(data, result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// errorMessage extracts {"error": "..."} or falls back to the raw body.
func errorMessage(data []byte) string {
	var body struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(data, &body) == nil && body.Error != "" {
		return body.Error
	}
	return strings.TrimSpace(string(data))
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
