package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/strangelove-ventures/solana-counter-api/types"
)

// Client talks to a running counter API
type Client struct {
	endpoint   *url.URL
	httpClient *http.Client
}

type Option func(*Client) error

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) error {
		if client == nil {
			return fmt.Errorf("http client cannot be nil")
		}
		c.httpClient = client
		return nil
	}
}

// New constructs an API client for endpoint, e.g. http://localhost:3000
func New(endpoint string, opts ...Option) (*Client, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("endpoint is required")
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parsing api endpoint: %w", err)
	}

	// chain calls wait for confirmation, so allow well past a blockhash lifetime
	c := &Client{
		endpoint:   u,
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	return c, nil
}

func (c *Client) Health(ctx context.Context) (*types.HealthCheckResponse, error) {
	var resp types.HealthCheckResponse
	if err := c.do(ctx, http.MethodGet, c.endpoint.JoinPath("health").String(), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// InitializeCounter creates a counter. An empty seed lets the server pick its default.
func (c *Client) InitializeCounter(ctx context.Context, seed string) (*types.InitializeCounterResponse, error) {
	req := map[string]string{}
	if seed != "" {
		req["seed"] = seed
	}

	var resp types.InitializeCounterResponse
	if err := c.do(ctx, http.MethodPost, c.endpoint.JoinPath("api", "counter", "initialize").String(), req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) IncrementCounter(ctx context.Context, counterAddress string) (*types.IncrementCounterResponse, error) {
	req := types.IncrementCounterRequest{CounterAddress: counterAddress}

	var resp types.IncrementCounterResponse
	if err := c.do(ctx, http.MethodPost, c.endpoint.JoinPath("api", "counter", "increment").String(), req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) GetCounter(ctx context.Context, counterAddress string) (*types.GetCounterResponse, error) {
	var resp types.GetCounterResponse
	if err := c.do(ctx, http.MethodGet, c.endpoint.JoinPath("api", "counter", counterAddress).String(), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) do(ctx context.Context, method, route string, params, target interface{}) error {
	var body io.Reader
	if params != nil {
		asBytes, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("encoding request parameters: %w", err)
		}
		body = bytes.NewReader(asBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, route, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < http.StatusOK || res.StatusCode >= http.StatusMultipleChoices {
		return errFromResponse(res)
	}
	if err := json.NewDecoder(res.Body).Decode(target); err != nil {
		return fmt.Errorf("decoding response JSON: %w", err)
	}
	return nil
}

// APIError is a non 2xx answer. Message and Details come from the error envelope when the body carries one.
type APIError struct {
	StatusCode int
	Message    string
	Details    []types.ErrorDetail
}

func errFromResponse(res *http.Response) *APIError {
	apiErr := &APIError{StatusCode: res.StatusCode}

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		apiErr.Message = err.Error()
		return apiErr
	}

	var envelope types.ErrorResponse
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Error.Message != "" {
		apiErr.Message = envelope.Error.Message
		apiErr.Details = envelope.Error.Details
		return apiErr
	}

	apiErr.Message = string(raw)
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(res.StatusCode)
	}
	return apiErr
}

func (e *APIError) Error() string {
	return e.Message
}
