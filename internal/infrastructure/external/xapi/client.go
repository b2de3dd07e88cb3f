package xapi

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/http2"

	"github.com/alem-hub/scorm-interceptor/internal/domain/statement"
	"github.com/alem-hub/scorm-interceptor/pkg/circuitbreaker"
	"github.com/alem-hub/scorm-interceptor/pkg/logger"
	"github.com/alem-hub/scorm-interceptor/pkg/timeutil"
)

// ErrNotConfigured is returned when statements are sent before ChangeConfig
// has supplied an endpoint.
var ErrNotConfigured = errors.New("lrs endpoint is not configured")

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// ClientConfig contains configuration for the LRS client.
type ClientConfig struct {
	// Timeout bounds a single request, including asynchronous sends.
	Timeout time.Duration

	// HTTPClient overrides the default HTTP/2-capable client.
	HTTPClient *http.Client

	// Breaker guards every request. If nil, requests are never rejected.
	Breaker *circuitbreaker.CircuitBreaker

	// Clock measures request latency.
	Clock timeutil.Clock

	// OnSent is called after every POST /statements with its latency and error.
	OnSent func(count int, latency time.Duration, err error)

	// Logger for structured logging.
	Logger *slog.Logger
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Timeout: 10 * time.Second,
		Clock:   timeutil.Real(),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Client is a Learning Record Store client. Transport settings are applied
// with ChangeConfig and may change while sends are in flight; each request
// uses the settings current when it starts.
type Client struct {
	config     ClientConfig
	httpClient *http.Client
	logger     *slog.Logger

	mu        sync.RWMutex
	transport statement.TransportConfig
}

// NewClient creates a new LRS client.
func NewClient(config ClientConfig) *Client {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Clock == nil {
		config.Clock = timeutil.Real()
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = newHTTPClient(config.Logger)
	}

	return &Client{
		config:     config,
		httpClient: httpClient,
		logger:     config.Logger,
	}
}

// newHTTPClient returns a client that negotiates HTTP/2 over TLS and falls
// back to HTTP/1.1 for plain-text endpoints.
func newHTTPClient(log *slog.Logger) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if err := http2.ConfigureTransport(transport); err != nil {
		log.Debug("http2 not configured for lrs transport", logger.Err(err))
	}
	return &http.Client{Transport: transport}
}

// ChangeConfig implements statement.Configurer.
func (c *Client) ChangeConfig(cfg statement.TransportConfig) {
	c.mu.Lock()
	c.transport = cfg
	c.mu.Unlock()

	c.logger.Debug("lrs transport configured",
		logger.Endpoint(cfg.Endpoint),
		"basic_credentials", cfg.User != "",
	)
}

// TransportConfig returns the settings currently applied.
func (c *Client) TransportConfig() statement.TransportConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.transport
}

// SendStatements implements statement.Sender. The POST runs on its own
// goroutine with the client timeout; done receives its error.
func (c *Client) SendStatements(statements []statement.Statement, done func(err error)) {
	batch := append([]statement.Statement(nil), statements...)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.config.Timeout)
		defer cancel()

		_, err := c.PostStatements(ctx, batch)
		if done != nil {
			done(err)
		}
	}()
}

// PostStatements stores statements in the LRS and returns the ids it reports.
// It does not retry.
func (c *Client) PostStatements(ctx context.Context, statements []statement.Statement) ([]string, error) {
	var ids []string
	start := c.config.Clock.Now()

	err := c.guard(ctx, func(ctx context.Context) error {
		return c.doRequest(ctx, http.MethodPost, "/statements", StatementsToDTO(statements), &ids)
	})

	if c.config.OnSent != nil {
		c.config.OnSent(len(statements), c.config.Clock.Now().Sub(start), err)
	}
	if err != nil {
		return nil, fmt.Errorf("post statements: %w", err)
	}
	return ids, nil
}

// About fetches GET /about. The interceptor's LRS health check calls it.
func (c *Client) About(ctx context.Context) (*AboutDTO, error) {
	var about AboutDTO
	if err := c.doRequest(ctx, http.MethodGet, "/about", nil, &about); err != nil {
		return nil, fmt.Errorf("about: %w", err)
	}
	return &about, nil
}

// BreakerState returns the circuit breaker state, closed when there is none.
func (c *Client) BreakerState() circuitbreaker.State {
	if c.config.Breaker == nil {
		return circuitbreaker.StateClosed
	}
	return c.config.Breaker.State()
}

func (c *Client) guard(ctx context.Context, fn func(context.Context) error) error {
	if c.config.Breaker == nil {
		return fn(ctx)
	}
	return c.config.Breaker.Execute(ctx, fn)
}

// doRequest performs a single HTTP request against the configured endpoint.
func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	transport := c.TransportConfig()
	if transport.Endpoint == "" {
		return ErrNotConfigured
	}

	fullURL := strings.TrimRight(transport.Endpoint, "/") + path

	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Experience-API-Version", Version)
	setAuthorization(req, transport)

	c.logger.Debug("lrs request", "method", method, "url", fullURL)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return &StatusError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	if result != nil && len(bytes.TrimSpace(respBody)) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}

	return nil
}

// setAuthorization prefers explicit credentials over a raw header value.
func setAuthorization(req *http.Request, transport statement.TransportConfig) {
	switch {
	case transport.User != "" && transport.Password != "":
		credentials := transport.User + ":" + transport.Password
		req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(credentials)))
	case transport.Auth != "":
		req.Header.Set("Authorization", transport.Auth)
	}
}

var (
	_ statement.Sender     = (*Client)(nil)
	_ statement.Configurer = (*Client)(nil)
)
