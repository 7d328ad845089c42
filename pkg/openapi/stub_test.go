package openapi

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/natserract/baiduapi/pkg/config"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubCall struct {
	op      string
	url     string
	params  map[string]string
	files   map[string]FileItem
	connect time.Duration
	read    time.Duration
}

// stubTransport records every call and answers with a canned body or error.
type stubTransport struct {
	mu    sync.Mutex
	calls []stubCall
	body  string
	err   error
}

func (s *stubTransport) record(c stubCall) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, c)
	return s.body, s.err
}

func (s *stubTransport) Get(_ context.Context, url string, params map[string]string) (string, error) {
	return s.record(stubCall{op: "GET", url: url, params: params})
}

func (s *stubTransport) Post(_ context.Context, url string, params map[string]string, connect, read time.Duration) (string, error) {
	return s.record(stubCall{op: "POST", url: url, params: params, connect: connect, read: read})
}

func (s *stubTransport) Upload(_ context.Context, url string, params map[string]string, files map[string]FileItem, connect, read time.Duration) (string, error) {
	return s.record(stubCall{op: "UPLOAD", url: url, params: params, files: files, connect: connect, read: read})
}

func (s *stubTransport) Calls() []stubCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]stubCall(nil), s.calls...)
}

func newTokenClient(t *testing.T, transport Transport, opts ...Option) *Client {
	t.Helper()
	cfg, err := config.NewAccessTokenConfig("3.token")
	require.NoError(t, err)
	c, err := NewClientWithLogger(cfg, zap.NewNop(), append([]Option{WithTransport(transport)}, opts...)...)
	require.NoError(t, err)
	return c
}

func newSessionClient(t *testing.T, transport Transport, now time.Time) *Client {
	t.Helper()
	cfg, err := config.NewSessionConfig("skey", "ssecret")
	require.NoError(t, err)
	c, err := NewClientWithLogger(cfg, zap.NewNop(), WithTransport(transport))
	require.NoError(t, err)
	c.builder.now = func() time.Time { return now }
	return c
}
