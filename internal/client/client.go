// Package client is a thin REST client for the controller's /api/v2/ API.
//
// Every non-2xx answer is returned as an *errors.APIError; a 404 is
// additionally an *errors.ResourceNotFoundError. The credentials in use can
// be swapped for the duration of a function with AsUser, and the target
// node with AsInstance.
package client

import (
	"bytes"
	"context"
	"crypto/tls"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/tower-qa/tower-qa/internal/models"
	srvErrors "github.com/tower-qa/tower-qa/pkg/errors"
)

const apiPrefix = "/api/v2"

//go:embed schemas/unified_job.json
var unifiedJobSchema []byte

type Client struct {
	httpClient *http.Client
	schema     *jsonschema.Schema

	mu      sync.RWMutex
	baseURL string
	user    models.User
}

type Option func(*Client) error

// WithInsecure skips TLS verification. Controllers under test usually run
// with self-signed certificates.
func WithInsecure(insecure bool) Option {
	return func(c *Client) error {
		t := http.DefaultTransport.(*http.Transport).Clone()
		t.TLSClientConfig = &tls.Config{InsecureSkipVerify: insecure} //nolint:gosec
		c.httpClient.Transport = t
		return nil
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) error {
		c.httpClient.Timeout = d
		return nil
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) error {
		c.httpClient = h
		return nil
	}
}

// WithSchemaValidation checks every unified job payload against the bundled JSON schema.
func WithSchemaValidation(enabled bool) Option {
	return func(c *Client) error {
		if !enabled {
			c.schema = nil
			return nil
		}
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("unified_job.json", bytes.NewReader(unifiedJobSchema)); err != nil {
			return fmt.Errorf("add schema resource: %w", err)
		}
		schema, err := compiler.Compile("unified_job.json")
		if err != nil {
			return fmt.Errorf("compile schema: %w", err)
		}
		c.schema = schema
		return nil
	}
}

// New returns a client for the controller at baseURL authenticating as user.
func New(baseURL string, user models.User, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid controller url %q", baseURL)
	}

	c := &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		user:       user,
	}
	for _, o := range opts {
		if err := o(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// User returns the credentials currently in use.
func (c *Client) User() models.User {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.user
}

func (c *Client) BaseURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.baseURL
}

// AsUser runs fn with user's credentials installed and restores the previous
// credentials afterwards, whatever fn returns or panics with. Scopes on the
// same client must not run concurrently.
func (c *Client) AsUser(user models.User, fn func() error) error {
	c.mu.Lock()
	previous := c.user
	c.user = user
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.user = previous
		c.mu.Unlock()
	}()

	return fn()
}

// AsInstance runs fn against another node of the cluster, then points the
// client back at the previous one.
func (c *Client) AsInstance(baseURL string, fn func() error) error {
	c.mu.Lock()
	previous := c.baseURL
	c.baseURL = strings.TrimSuffix(baseURL, "/")
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.baseURL = previous
		c.mu.Unlock()
	}()

	return fn()
}

// do sends a request to path (relative to /api/v2) and decodes a 2xx body into out.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	raw, err := c.doRaw(ctx, method, path, query, body)
	if err != nil {
		return err
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decoding response of %s %s: %w", method, path, err)
	}
	return nil
}

func (c *Client) doRaw(ctx context.Context, method, path string, query url.Values, body any) ([]byte, error) {
	c.mu.RLock()
	base, user := c.baseURL, c.user
	c.mu.RUnlock()

	if !strings.HasPrefix(path, apiPrefix) {
		path = apiPrefix + path
	}
	target := base + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	switch {
	case user.Token != "":
		(&oauth2.Token{AccessToken: user.Token, TokenType: "Bearer"}).SetAuthHeader(req)
	case user.Username != "":
		req.SetBasicAuth(user.Username, user.Password)
	}

	zap.S().Named("client").Debugw("request", "method", method, "url", target, "user", user.Username)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := srvErrors.NewAPIError(resp.StatusCode, method, path, string(raw))
		if resp.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %w", srvErrors.NewResourceNotFoundError(path, ""), apiErr)
		}
		return nil, apiErr
	}
	return raw, nil
}

// validate checks raw against the unified job schema when validation is enabled.
func (c *Client) validate(raw json.RawMessage) error {
	if c.schema == nil {
		return nil
	}
	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return err
	}
	if err := c.schema.Validate(payload); err != nil {
		return fmt.Errorf("unified job payload does not match schema: %w", err)
	}
	return nil
}
