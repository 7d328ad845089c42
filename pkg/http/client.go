package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// DefaultUserAgent is sent with every request unless overridden.
	DefaultUserAgent = "baidu-restclient-go-1.0"

	formContentType = "application/x-www-form-urlencoded;charset=UTF-8"
)

// Client performs form-encoded and multipart HTTP calls against the OpenAPI
// service. It is safe for concurrent use.
type Client struct {
	logger         *zap.Logger
	userAgent      string
	maxAttempts    uint
	connectTimeout time.Duration
	readTimeout    time.Duration

	// custom, when set, is used for every request and per-call timeouts are ignored.
	custom *http.Client

	mu      sync.Mutex
	clients map[timeouts]*http.Client
}

type timeouts struct {
	connect time.Duration
	read    time.Duration
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithMaxAttempts sets how many times a request is attempted when it fails
// with a network error or a 5xx status. Values below 1 mean a single attempt.
func WithMaxAttempts(n uint) ClientOption {
	return func(c *Client) {
		c.maxAttempts = n
	}
}

// WithTimeouts sets the connect and read timeouts used by Get, and by Post and
// Upload when they are called with zero timeouts.
func WithTimeouts(connect, read time.Duration) ClientOption {
	return func(c *Client) {
		c.connectTimeout = connect
		c.readTimeout = read
	}
}

// WithHTTPClient makes the Client send every request through hc.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.custom = hc
	}
}

type RequestOptions struct {
	Method          string
	URL             string
	Headers         map[string]string
	Body            []byte
	Context         context.Context
	ConnectTimeout  time.Duration
	ReadTimeout     time.Duration
	MaxAttempts     uint
	MaxElapsed      time.Duration
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

func NewClient(opts ...ClientOption) *Client {
	logger, _ := zap.NewProduction()
	return NewClientWithLogger(logger, opts...)
}

// NewClientWithLogger creates a new HTTP client with a custom logger
func NewClientWithLogger(logger *zap.Logger, opts ...ClientOption) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		logger:      logger,
		userAgent:   DefaultUserAgent,
		maxAttempts: 1,
		clients:     make(map[timeouts]*http.Client),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.maxAttempts == 0 {
		c.maxAttempts = 1
	}
	return c
}

func (c *Client) Do(opts RequestOptions) (*Response, error) {
	if opts.MaxAttempts == 0 {
		opts.MaxAttempts = c.maxAttempts
	}
	if opts.MaxElapsed == 0 {
		opts.MaxElapsed = 5 * time.Minute
	}
	if opts.InitialInterval == 0 {
		opts.InitialInterval = 100 * time.Millisecond
	}
	if opts.MaxInterval == 0 {
		opts.MaxInterval = 30 * time.Second
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = opts.InitialInterval
	expBackoff.MaxInterval = opts.MaxInterval
	expBackoff.Reset()

	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}

	requestID := uuid.NewString()
	target := redactURL(opts.URL)
	httpClient := c.clientFor(opts.ConnectTimeout, opts.ReadTimeout)

	operation := func() (*Response, error) {
		req, err := c.buildRequest(ctx, opts, requestID)
		if err != nil {
			c.logger.Error("Failed to build request", zap.Error(err), zap.String("method", opts.Method), zap.String("url", target))
			return nil, backoff.Permanent(err)
		}

		c.logger.Debug("Making HTTP request",
			zap.String("request_id", requestID),
			zap.String("method", opts.Method),
			zap.String("url", target))

		httpResp, err := httpClient.Do(req)
		if err != nil {
			c.logger.Warn("HTTP request failed",
				zap.Error(err),
				zap.String("request_id", requestID),
				zap.String("method", opts.Method),
				zap.String("url", target))
			return nil, err
		}
		defer httpResp.Body.Close()

		raw, err := io.ReadAll(httpResp.Body)
		if err != nil {
			c.logger.Error("Failed to read response body", zap.Error(err), zap.String("request_id", requestID))
			return nil, backoff.Permanent(fmt.Errorf("failed to read response body: %w", err))
		}

		body, err := decodeBody(httpResp.Header.Get("Content-Type"), raw)
		if err != nil {
			c.logger.Warn("Failed to decode response charset, using raw bytes",
				zap.Error(err),
				zap.String("content_type", httpResp.Header.Get("Content-Type")))
			body = raw
		}

		if httpResp.StatusCode >= 500 {
			c.logger.Warn("Server error",
				zap.Int("status_code", httpResp.StatusCode),
				zap.String("request_id", requestID),
				zap.String("method", opts.Method),
				zap.String("url", target))
			return nil, &StatusError{StatusCode: httpResp.StatusCode, Body: string(body)}
		}

		if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
			c.logger.Error("Client error, not retryable",
				zap.Int("status_code", httpResp.StatusCode),
				zap.String("request_id", requestID),
				zap.String("method", opts.Method),
				zap.String("url", target),
				zap.String("response", string(body)))
			return nil, backoff.Permanent(&StatusError{StatusCode: httpResp.StatusCode, Body: string(body)})
		}

		return &Response{
			StatusCode: httpResp.StatusCode,
			Headers:    httpResp.Header,
			Body:       body,
		}, nil
	}

	retryOpts := []backoff.RetryOption{
		backoff.WithBackOff(expBackoff),
		backoff.WithMaxTries(opts.MaxAttempts),
		backoff.WithMaxElapsedTime(opts.MaxElapsed),
	}

	resp, err := backoff.Retry(ctx, operation, retryOpts...)
	if err != nil {
		var permanent *backoff.PermanentError
		if errors.As(err, &permanent) {
			err = permanent.Err
		}
		c.logger.Error("HTTP request failed",
			zap.Error(err),
			zap.String("request_id", requestID),
			zap.String("method", opts.Method),
			zap.String("url", target))
		return nil, err
	}

	c.logger.Debug("HTTP request completed",
		zap.Int("status_code", resp.StatusCode),
		zap.String("request_id", requestID),
		zap.String("method", opts.Method),
		zap.String("url", target))

	return resp, nil
}

func (c *Client) buildRequest(ctx context.Context, opts RequestOptions, requestID string) (*http.Request, error) {
	var bodyReader io.Reader
	if opts.Body != nil {
		bodyReader = bytes.NewReader(opts.Body)
	}

	req, err := http.NewRequestWithContext(ctx, opts.Method, opts.URL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Content-Type", formContentType)
	req.Header.Set("X-Request-Id", requestID)

	for key, value := range opts.Headers {
		req.Header.Set(key, value)
	}

	return req, nil
}

// clientFor returns the *http.Client honouring the given timeouts. Zero values
// fall back to the Client defaults.
func (c *Client) clientFor(connect, read time.Duration) *http.Client {
	if c.custom != nil {
		return c.custom
	}
	if connect == 0 {
		connect = c.connectTimeout
	}
	if read == 0 {
		read = c.readTimeout
	}
	key := timeouts{connect: connect, read: read}

	c.mu.Lock()
	defer c.mu.Unlock()
	if hc, ok := c.clients[key]; ok {
		return hc
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if connect > 0 {
		transport.DialContext = (&net.Dialer{
			Timeout:   connect,
			KeepAlive: 30 * time.Second,
		}).DialContext
		transport.TLSHandshakeTimeout = connect
	}
	if read > 0 {
		transport.ResponseHeaderTimeout = read
	}
	hc := &http.Client{
		Transport: transport,
		Timeout:   max(30*time.Second, connect+read),
	}
	c.clients[key] = hc
	return hc
}

// Get issues a GET with params encoded into the query string.
func (c *Client) Get(ctx context.Context, rawURL string, params map[string]string) (string, error) {
	fullURL, err := BuildURL(rawURL, params)
	if err != nil {
		return "", err
	}
	resp, err := c.Do(RequestOptions{
		Method:  http.MethodGet,
		URL:     fullURL,
		Context: ctx,
	})
	if err != nil {
		return "", err
	}
	return string(resp.Body), nil
}

// Post issues a form-encoded POST.
func (c *Client) Post(ctx context.Context, rawURL string, params map[string]string, connectTimeout, readTimeout time.Duration) (string, error) {
	resp, err := c.Do(RequestOptions{
		Method:         http.MethodPost,
		URL:            rawURL,
		Body:           []byte(EncodeForm(params)),
		Context:        ctx,
		ConnectTimeout: connectTimeout,
		ReadTimeout:    readTimeout,
	})
	if err != nil {
		return "", err
	}
	return string(resp.Body), nil
}

// Upload issues a multipart/form-data POST carrying params as text fields and
// files as file parts.
func (c *Client) Upload(ctx context.Context, rawURL string, params map[string]string, files map[string]FileItem, connectTimeout, readTimeout time.Duration) (string, error) {
	body, contentType, err := buildMultipart(params, files)
	if err != nil {
		c.logger.Error("Failed to build multipart body", zap.Error(err), zap.String("url", redactURL(rawURL)))
		return "", err
	}
	resp, err := c.Do(RequestOptions{
		Method:         http.MethodPost,
		URL:            rawURL,
		Headers:        map[string]string{"Content-Type": contentType},
		Body:           body,
		Context:        ctx,
		ConnectTimeout: connectTimeout,
		ReadTimeout:    readTimeout,
	})
	if err != nil {
		return "", err
	}
	return string(resp.Body), nil
}
