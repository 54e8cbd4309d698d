// Package httpclient provides the outbound HTTP client used for every
// upstream call (SPARQL endpoint, wikibase REST API, Commons file info).
// It layers a request timeout and a per-client circuit breaker over the
// standard http.Client.
package httpclient

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Config controls timeout and breaker behaviour for one upstream client.
type Config struct {
	Timeout          time.Duration
	BreakerEnabled   bool
	FailureThreshold int
	SuccessThreshold int
	Cooldown         time.Duration
}

// Client is an HTTP client with built-in circuit breaking. Server-side
// errors (status >= 500) count as failures for the breaker; 4xx responses
// do not, since they indicate a caller problem the upstream is healthy
// enough to report.
type Client struct {
	httpClient *http.Client
	breaker    *breaker
}

// New creates a Client from config. With the breaker disabled the client is
// a plain timeout-bounded http.Client.
func New(cfg Config) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
	if cfg.BreakerEnabled {
		c.breaker = newBreaker(cfg.FailureThreshold, cfg.SuccessThreshold, cfg.Cooldown)
	}
	return c
}

// Do executes the request under breaker protection.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if c.breaker == nil {
		return c.httpClient.Do(req)
	}

	if !c.breaker.allow() {
		return nil, ErrUpstreamUnavailable
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.breaker.record(true)
		return nil, err
	}

	c.breaker.record(resp.StatusCode >= http.StatusInternalServerError)
	return resp, nil
}

// DoJSON executes the request and decodes a 2xx response body into out.
// Non-2xx responses are returned as a StatusError so callers can map them
// onto their own error taxonomy.
func (c *Client) DoJSON(req *http.Request, out interface{}) error {
	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Status: resp.StatusCode, URL: req.URL.String()}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", req.URL.Host, err)
	}
	return nil
}

// StatusError reports a non-2xx upstream response.
type StatusError struct {
	Status int
	URL    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream returned status %d for %s", e.Status, e.URL)
}
