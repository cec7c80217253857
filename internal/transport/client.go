package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sadewadee/mapminer/internal/domain"
)

const (
	defaultCommandTimeout  = 30 * time.Second
	defaultDownloadTimeout = 5 * time.Minute
)

// Client issues commands to the runner's REST API
type Client struct {
	baseURL         string
	apiToken        string
	httpClient      *http.Client
	commandTimeout  time.Duration
	downloadTimeout time.Duration
}

// ClientOption configures a Client
type ClientOption func(*Client)

// WithAPIToken sends a bearer token with every request
func WithAPIToken(token string) ClientOption {
	return func(c *Client) {
		c.apiToken = token
	}
}

// WithCommandTimeout bounds start, stop and status calls
func WithCommandTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.commandTimeout = d
		}
	}
}

// WithDownloadTimeout bounds an artifact download including the body
func WithDownloadTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.downloadTimeout = d
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// NewClient creates a command client for the runner at baseURL
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:         strings.TrimRight(baseURL, "/"),
		httpClient:      &http.Client{},
		commandTimeout:  defaultCommandTimeout,
		downloadTimeout: defaultDownloadTimeout,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// BaseURL returns the runner address
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Start submits a job configuration and starts a run
func (c *Client) Start(ctx context.Context, cfg domain.JobConfiguration) error {
	ctx, cancel := context.WithTimeout(ctx, c.commandTimeout)
	defer cancel()

	resp, err := c.do(ctx, http.MethodPost, "/api/start", cfg)
	if err != nil {
		return classify(err)
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		return parseError(resp)
	}

	return nil
}

// Stop asks the runner to stop the current run
func (c *Client) Stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.commandTimeout)
	defer cancel()

	resp, err := c.do(ctx, http.MethodPost, "/api/stop", nil)
	if err != nil {
		return classify(err)
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		return parseError(resp)
	}

	return nil
}

// Status fetches the runner's full status
func (c *Client) Status(ctx context.Context) (*domain.StatusPayload, error) {
	ctx, cancel := context.WithTimeout(ctx, c.commandTimeout)
	defer cancel()

	resp, err := c.do(ctx, http.MethodGet, "/api/status", nil)
	if err != nil {
		return nil, classify(err)
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		return nil, parseError(resp)
	}

	var status domain.StatusPayload
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &status, nil
}

// FetchArtifact streams the artifact at path. The caller must close the body.
func (c *Client) FetchArtifact(ctx context.Context, path string) (io.ReadCloser, error) {
	ctx, cancel := context.WithTimeout(ctx, c.downloadTimeout)

	resp, err := c.do(ctx, http.MethodGet, "/api/download?path="+url.QueryEscape(path), nil)
	if err != nil {
		cancel()
		return nil, classify(err)
	}

	if !isSuccess(resp.StatusCode) {
		defer cancel()
		defer resp.Body.Close()
		return nil, parseError(resp)
	}

	return &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}, nil
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}) (*http.Response, error) {
	var bodyReader io.Reader

	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiToken)
	}

	return c.httpClient.Do(req)
}

// parseError turns a non-success response into a rejected RunnerError.
// The runner answers {"error": "..."}; {"message": "..."} is accepted too.
func parseError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var apiErr struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}

	detail := strings.TrimSpace(string(body))
	if err := json.Unmarshal(body, &apiErr); err == nil {
		switch {
		case apiErr.Error != "":
			detail = apiErr.Error
		case apiErr.Message != "":
			detail = apiErr.Message
		}
	}

	if detail == "" {
		detail = http.StatusText(resp.StatusCode)
	}

	return domain.NewRejectedError(resp.StatusCode, detail)
}

// classify maps a transport failure to a RunnerError. A cancelled parent
// context is returned as is.
func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.NewTimeoutError(err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return domain.NewTimeoutError(err)
	}

	if errors.Is(err, context.Canceled) {
		return err
	}

	return domain.NewDisconnectedError(err)
}

func isSuccess(code int) bool {
	return code >= 200 && code < 300
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	defer c.cancel()
	return c.ReadCloser.Close()
}
