// Package yarn implements cluster.ResourceManager against the YARN
// ResourceManager REST API.
package yarn

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"provisioner/internal/cluster"
	"strings"
	"time"

	krbclient "github.com/jcmturner/gokrb5/v8/client"
	krbconfig "github.com/jcmturner/gokrb5/v8/config"
	"github.com/jcmturner/gokrb5/v8/credentials"
	"github.com/jcmturner/gokrb5/v8/spnego"
)

// Config describes how to reach and authenticate to the ResourceManager.
type Config struct {
	Address     string // e.g. http://rm.example.com:8088
	User        string // sent as user.name when no ticket cache is set
	Timeout     time.Duration
	Krb5Conf    string // krb5.conf used with TicketCache
	TicketCache string // enables SPNEGO when set
}

type doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to the ResourceManager web services.
type Client struct {
	addr   string
	user   string
	http   doer
	krb    *krbclient.Client
	logger *slog.Logger
}

var errNotFound = errors.New("resource manager returned status 404")

// New creates a client. With a ticket cache configured, every request is
// authenticated with SPNEGO; otherwise simple authentication is used.
func New(cfg Config) (*Client, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("resource manager address is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	httpClient := &http.Client{Timeout: timeout}

	c := &Client{
		addr:   strings.TrimRight(cfg.Address, "/"),
		user:   cfg.User,
		http:   httpClient,
		logger: slog.With("component", "yarn", "address", cfg.Address),
	}

	if cfg.TicketCache != "" {
		krb, err := newKerberosClient(cfg.Krb5Conf, cfg.TicketCache)
		if err != nil {
			return nil, err
		}
		c.krb = krb
		c.http = spnego.NewClient(krb, httpClient, "")
		c.logger.Debug("Using SPNEGO authentication", "ticketCache", cfg.TicketCache)
	}

	return c, nil
}

func newKerberosClient(krb5Conf, ticketCache string) (*krbclient.Client, error) {
	kcfg, err := krbconfig.Load(krb5Conf)
	if err != nil {
		return nil, fmt.Errorf("error loading krb5 config %v: %w", krb5Conf, err)
	}
	ccache, err := credentials.LoadCCache(ticketCache)
	if err != nil {
		return nil, fmt.Errorf("error loading ticket cache %v: %w", ticketCache, err)
	}
	cl, err := krbclient.NewFromCCache(ccache, kcfg)
	if err != nil {
		return nil, fmt.Errorf("error creating kerberos client: %w", err)
	}
	return cl, nil
}

// Start is a no-op; the REST client holds no connection state.
func (c *Client) Start(ctx context.Context) error {
	return nil
}

// Ready checks that the ResourceManager answers cluster info requests.
func (c *Client) Ready(ctx context.Context) error {
	return c.request(ctx, http.MethodGet, "ws/v1/cluster/info", nil, nil, nil)
}

type appsResponse struct {
	Apps *struct {
		App []cluster.Application `json:"app"`
	} `json:"apps"`
}

// Applications lists applications filtered by type and state.
func (c *Client) Applications(ctx context.Context, types, states []string) ([]cluster.Application, error) {
	query := url.Values{}
	if len(states) > 0 {
		query.Set("states", strings.Join(states, ","))
	}
	if len(types) > 0 {
		query.Set("applicationTypes", strings.Join(types, ","))
	}

	var res appsResponse
	if err := c.request(ctx, http.MethodGet, "ws/v1/cluster/apps", query, nil, &res); err != nil {
		return nil, err
	}
	// YARN reports an empty result as "apps": null.
	if res.Apps == nil {
		return nil, nil
	}
	return res.Apps.App, nil
}

// Kill moves the application to the KILLED state.
func (c *Client) Kill(ctx context.Context, id string) error {
	body, err := json.Marshal(map[string]string{"state": "KILLED"})
	if err != nil {
		return err
	}
	endpoint, err := url.JoinPath("ws/v1/cluster/apps", id, "state")
	if err != nil {
		return fmt.Errorf("error formatting kill endpoint for %v: %w", id, err)
	}
	err = c.request(ctx, http.MethodPut, endpoint, nil, bytes.NewReader(body), nil)
	if errors.Is(err, errNotFound) {
		return fmt.Errorf("application %v does not exist: %w", id, err)
	}
	return err
}

// Close releases the Kerberos session, if any.
func (c *Client) Close() error {
	if c.krb != nil {
		c.krb.Destroy()
	}
	return nil
}

func (c *Client) request(ctx context.Context, method, endpoint string, query url.Values, body io.Reader, result any) error {
	fullEndpoint, err := url.JoinPath(c.addr, endpoint)
	if err != nil {
		return fmt.Errorf("error formatting url for resource manager endpoint %v: %w", endpoint, err)
	}
	if c.krb == nil && c.user != "" {
		if query == nil {
			query = url.Values{}
		}
		query.Set("user.name", c.user)
	}
	if len(query) > 0 {
		fullEndpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, fullEndpoint, body)
	if err != nil {
		return fmt.Errorf("error creating %v request for resource manager endpoint %v: %w", method, endpoint, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("error sending %v request to resource manager endpoint %v: %w", method, endpoint, err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return errNotFound
	}
	if res.StatusCode != http.StatusOK && res.StatusCode != http.StatusAccepted {
		data, err := io.ReadAll(io.LimitReader(res.Body, 4096))
		if err == nil {
			c.logger.Error("Resource manager returned error", "method", method, "endpoint", endpoint, "code", res.StatusCode, "response", string(data))
		}
		return fmt.Errorf("%v request to resource manager endpoint %v returned status %d", method, endpoint, res.StatusCode)
	}

	if result != nil {
		if err := json.NewDecoder(res.Body).Decode(result); err != nil {
			return fmt.Errorf("error parsing %v response from resource manager endpoint %v: %w", method, endpoint, err)
		}
	}
	return nil
}

var _ cluster.ResourceManager = (*Client)(nil)
