// Package openapi provides a client for the Baidu OpenAPI service.
//
// A Client is built in one of two credential modes that stay fixed for its
// lifetime:
//   - Session mode: session key and secret. Calls go over plain HTTP and carry
//     session_key, timestamp and an MD5 sign.
//   - Access-token mode: a bearer access token sent over HTTPS. Only this mode
//     can use the batch/run endpoint.
//
// APIs live under three namespaces (rest, file, public) selected per call with
// a Category. Responses are returned as the raw body text; bodies that signal
// an application error come back as *RemoteAPIError.
package openapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/natserract/baiduapi/pkg/config"
	httpclient "github.com/natserract/baiduapi/pkg/http"
	"github.com/natserract/baiduapi/pkg/metrics"
	"go.uber.org/zap"
)

const methodUpload = "UPLOAD"

// Client is the main client for interacting with the Baidu OpenAPI service.
// It holds immutable credentials and collaborators only and is safe for
// concurrent use when its Transport is.
type Client struct {
	config    config.Config
	mode      Mode
	builder   *requestBuilder
	transport Transport
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

// Option customises a Client.
type Option func(*Client)

// WithTransport replaces the default HTTP transport.
func WithTransport(t Transport) Option {
	return func(c *Client) {
		c.transport = t
	}
}

// WithMetrics records call and batch metrics into m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// NewClient creates a new Client with default production logger
func NewClient(cfg *config.Config, opts ...Option) (*Client, error) {
	logger, _ := zap.NewProduction()
	return NewClientWithLogger(cfg, logger, opts...)
}

// NewClientWithLogger creates a new Client with a custom logger
func NewClientWithLogger(cfg *config.Config, logger *zap.Logger, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	snapshot := *cfg
	snapshot.ApplyDefaults()
	if err := snapshot.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	mode := ModeSession
	if snapshot.UsesAccessToken() {
		mode = ModeAccessToken
	}

	c := &Client{
		config: snapshot,
		mode:   mode,
		builder: &requestBuilder{
			mode:          mode,
			host:          snapshot.Host,
			accessToken:   snapshot.AccessToken,
			sessionKey:    snapshot.SessionKey,
			sessionSecret: snapshot.SessionSecret,
			now:           time.Now,
		},
		logger: logger.With(zap.String("mode", mode.String())),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.transport == nil {
		c.transport = httpclient.NewClientWithLogger(logger,
			httpclient.WithTimeouts(snapshot.ConnectTimeout, snapshot.ReadTimeout),
			httpclient.WithMaxAttempts(snapshot.MaxAttempts),
			httpclient.WithUserAgent(snapshot.UserAgent),
		)
	}

	return c, nil
}

// Mode returns the credential mode of the client.
func (c *Client) Mode() Mode {
	return c.mode
}

// Call issues one API call. An empty or GET method (any case) is sent as a
// GET, everything else as a form POST.
func (c *Client) Call(ctx context.Context, apiPath string, category Category, params map[string]string, method string) (string, error) {
	start := time.Now()
	httpMethod := NormalizeMethod(method)
	log := c.logger.With(
		zap.String("api_path", apiPath),
		zap.String("category", string(category)),
		zap.String("method", httpMethod))

	url, finalParams, err := c.builder.build(apiPath, category, params)
	if err != nil {
		log.Error("Failed to build request", zap.Error(err))
		c.recordCall(category, httpMethod, err, start)
		return "", err
	}

	log.Debug("Calling OpenAPI")
	var body string
	if httpMethod == http.MethodGet {
		body, err = c.transport.Get(ctx, url, finalParams)
	} else {
		body, err = c.transport.Post(ctx, url, finalParams, c.config.ConnectTimeout, c.config.ReadTimeout)
	}
	if err != nil {
		err = &TransportError{Op: httpMethod, URL: url, Err: err}
		log.Error("OpenAPI request failed", zap.Error(err))
		c.recordCall(category, httpMethod, err, start)
		return "", err
	}

	if err := c.checkResponse(body); err != nil {
		log.Warn("OpenAPI returned an error", zap.Error(err))
		c.recordCall(category, httpMethod, err, start)
		return "", err
	}

	log.Debug("OpenAPI call succeeded", zap.Int("response_bytes", len(body)))
	c.recordCall(category, httpMethod, nil, start)
	return body, nil
}

// Upload posts params and files to apiPath as multipart/form-data, with the
// same credentials and error checks as Call.
func (c *Client) Upload(ctx context.Context, apiPath string, category Category, params map[string]string, files map[string]FileItem) (string, error) {
	start := time.Now()
	log := c.logger.With(
		zap.String("api_path", apiPath),
		zap.String("category", string(category)),
		zap.Int("files", len(files)))

	url, finalParams, err := c.builder.build(apiPath, category, params)
	if err != nil {
		log.Error("Failed to build upload request", zap.Error(err))
		c.recordCall(category, methodUpload, err, start)
		return "", err
	}

	log.Debug("Uploading to OpenAPI")
	body, err := c.transport.Upload(ctx, url, finalParams, files, c.config.ConnectTimeout, c.config.ReadTimeout)
	if err != nil {
		err = &TransportError{Op: http.MethodPost, URL: url, Err: err}
		log.Error("OpenAPI upload failed", zap.Error(err))
		c.recordCall(category, methodUpload, err, start)
		return "", err
	}

	if err := c.checkResponse(body); err != nil {
		log.Warn("OpenAPI returned an error", zap.Error(err))
		c.recordCall(category, methodUpload, err, start)
		return "", err
	}

	c.recordCall(category, methodUpload, nil, start)
	return body, nil
}

// checkResponse detects application errors in a response body. By default any
// body containing "error" is treated as an error, matching the service's
// historical clients. With StrictErrors only a top-level error_code/error_msg
// envelope counts.
func (c *Client) checkResponse(body string) error {
	if c.config.StrictErrors {
		var envelope ErrorResponse
		if err := json.Unmarshal([]byte(body), &envelope); err != nil {
			return nil
		}
		if envelope.IsError() {
			return newRemoteAPIError(body)
		}
		return nil
	}

	if strings.Contains(body, "error") {
		return newRemoteAPIError(body)
	}
	return nil
}

func (c *Client) recordCall(category Category, method string, err error, start time.Time) {
	c.metrics.RecordCall(string(category), method, outcomeOf(err), time.Since(start).Seconds())
}

func outcomeOf(err error) string {
	var (
		transportErr *TransportError
		remoteErr    *RemoteAPIError
		signErr      *SignatureError
	)
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.As(err, &transportErr):
		return metrics.OutcomeTransport
	case errors.As(err, &remoteErr):
		return metrics.OutcomeRemote
	case errors.As(err, &signErr):
		return metrics.OutcomeSignature
	default:
		return metrics.OutcomeInvalid
	}
}
