// Package apiclient is a thin JSON client for the downstream submission and
// overview APIs, authenticated with an API key header.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/errors/v5"
)

const defaultAPIKeyHeader = "x-api-key"

// Client calls one downstream API.
type Client struct {
	baseURL      string
	apiKey       string
	apiKeyHeader string
	httpClient   *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithAPIKeyHeader overrides the header carrying the API key.
// (default: x-api-key)
func WithAPIKeyHeader(header string) Option {
	return func(c *Client) {
		c.apiKeyHeader = header
	}
}

// WithHTTPClient overrides the HTTP client. (default: 10s timeout)
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// New creates a Client for the API at baseURL.
func New(baseURL, apiKey string, options ...Option) *Client {
	c := &Client{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		apiKey:       apiKey,
		apiKeyHeader: defaultAPIKeyHeader,
		httpClient:   &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range options {
		opt(c)
	}

	return c
}

// Get performs a GET request and decodes the JSON response into out. A nil
// out discards the body.
func (c *Client) Get(ctx context.Context, endpoint string, query url.Values, out any) error {
	u := c.baseURL + "/" + strings.TrimPrefix(endpoint, "/")
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return errors.Wrap(err, "http.NewRequestWithContext()")
	}

	return c.do(req, out)
}

// Post performs a POST request with a JSON body and decodes the JSON
// response into out. A nil out discards the body.
func (c *Client) Post(ctx context.Context, endpoint string, body, out any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return errors.Wrap(err, "json.Marshal()")
	}

	u := c.baseURL + "/" + strings.TrimPrefix(endpoint, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(b))
	if err != nil {
		return errors.Wrap(err, "http.NewRequestWithContext()")
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set(c.apiKeyHeader, c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "http.Client.Do()")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

		return errors.Newf("api call %s returned status %d: %s", req.URL.Path, resp.StatusCode, string(body))
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "json.Decoder.Decode()")
	}

	return nil
}
