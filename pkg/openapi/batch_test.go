package openapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/natserract/baiduapi/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeItems(n int) []*BatchItem {
	items := make([]*BatchItem, n)
	for i := range items {
		items[i] = NewBatchItem(fmt.Sprintf("api/%d", i), CategoryRest, map[string]string{"i": fmt.Sprint(i)}, "")
	}
	return items
}

func sentEntries(t *testing.T, call stubCall) []batchEntry {
	t.Helper()
	var entries []batchEntry
	require.NoError(t, json.Unmarshal([]byte(call.params["method"]), &entries))
	return entries
}

func TestBatchCallFillsEverySlot(t *testing.T) {
	transport := &stubTransport{body: `[{"a":1},{"b":2},{"c":3}]`}
	c := newTokenClient(t, transport)
	items := makeItems(3)

	require.NoError(t, c.BatchCall(context.Background(), items, BatchModeServerParallel))

	want := []string{`{"a":1}`, `{"b":2}`, `{"c":3}`}
	for i, item := range items {
		got, ok := item.Response()
		assert.True(t, ok, "item %d", i)
		assert.Equal(t, want[i], got)
	}

	calls := transport.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "POST", calls[0].op)
	assert.Equal(t, "https://openapi.baidu.com/batch/run", calls[0].url)
	assert.Equal(t, "3.token", calls[0].params["access_token"])
	assert.Equal(t, "0", calls[0].params["serial_only"])
}

func TestBatchCallShortResponseLeavesTailUnset(t *testing.T) {
	transport := &stubTransport{body: `[{"a":1},{"b":2}]`}
	c := newTokenClient(t, transport)
	items := makeItems(3)

	require.NoError(t, c.BatchCall(context.Background(), items, BatchModeServerParallel))

	_, ok := items[0].Response()
	assert.True(t, ok)
	_, ok = items[1].Response()
	assert.True(t, ok)
	got, ok := items[2].Response()
	assert.False(t, ok)
	assert.Empty(t, got)
}

func TestBatchCallLongResponseDropsExtras(t *testing.T) {
	transport := &stubTransport{body: `[1,2,3]`}
	c := newTokenClient(t, transport)
	items := makeItems(2)

	require.NoError(t, c.BatchCall(context.Background(), items, BatchModeServerParallel))

	got, _ := items[1].Response()
	assert.Equal(t, "2", got)
}

func TestBatchCallOverLimitIsNoOp(t *testing.T) {
	transport := &stubTransport{body: `[]`}
	c := newTokenClient(t, transport)
	items := makeItems(MaxBatchItems + 1)

	require.NoError(t, c.BatchCall(context.Background(), items, BatchModeSerialOnly))
	assert.Empty(t, transport.Calls())
	for _, item := range items {
		_, ok := item.Response()
		assert.False(t, ok)
	}
}

func TestBatchCallAtLimitIsSent(t *testing.T) {
	transport := &stubTransport{body: `[]`}
	c := newTokenClient(t, transport)

	require.NoError(t, c.BatchCall(context.Background(), makeItems(MaxBatchItems), BatchModeServerParallel))
	require.Len(t, transport.Calls(), 1)
	assert.Len(t, sentEntries(t, transport.Calls()[0]), MaxBatchItems)
}

func TestBatchCallSerialOnlyNormalization(t *testing.T) {
	tests := []struct {
		in   int
		want string
	}{
		{BatchModeServerParallel, "0"},
		{BatchModeSerialOnly, "1"},
		{2, "0"},
		{-1, "0"},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.in), func(t *testing.T) {
			transport := &stubTransport{body: `[]`}
			c := newTokenClient(t, transport)

			require.NoError(t, c.BatchCall(context.Background(), makeItems(1), tt.in))
			assert.Equal(t, tt.want, transport.Calls()[0].params["serial_only"])
		})
	}
}

func TestBatchCallPayload(t *testing.T) {
	transport := &stubTransport{body: `[]`}
	c := newTokenClient(t, transport)
	items := []*BatchItem{
		NewBatchItem("user/info", CategoryRest, map[string]string{"uid": "1", "fields": "a b"}, "get"),
		NewBatchItem("/pcs/quota", CategoryFile, nil, "POST"),
	}

	require.NoError(t, c.BatchCall(context.Background(), items, BatchModeServerParallel))

	entries := sentEntries(t, transport.Calls()[0])
	require.Len(t, entries, 2)
	assert.Equal(t, batchEntry{
		Domain:      "https://openapi.baidu.com",
		HTTPMethod:  "GET",
		RelativeURL: "/rest/2.0/user/info",
		Params:      "fields=a+b&uid=1",
	}, entries[0])
	assert.Equal(t, batchEntry{
		Domain:      "https://openapi.baidu.com",
		HTTPMethod:  "POST",
		RelativeURL: "/file/2.0/pcs/quota",
		Params:      "",
	}, entries[1])
}

func TestBatchCallEmptyBatchIsSent(t *testing.T) {
	transport := &stubTransport{body: `[]`}
	c := newTokenClient(t, transport)

	require.NoError(t, c.BatchCall(context.Background(), nil, BatchModeServerParallel))
	require.Len(t, transport.Calls(), 1)
	assert.Equal(t, "[]", transport.Calls()[0].params["method"])
}

func TestBatchCallSessionModeRejected(t *testing.T) {
	transport := &stubTransport{body: `[]`}
	c := newSessionClient(t, transport, time.Now())

	err := c.BatchCall(context.Background(), makeItems(2), BatchModeServerParallel)
	assert.True(t, errors.Is(err, ErrBatchRequiresAccessToken))
	assert.Empty(t, transport.Calls())
}

func TestBatchCallRemoteError(t *testing.T) {
	transport := &stubTransport{body: `{"error_code":100,"error_msg":"Invalid parameter"}`}
	c := newTokenClient(t, transport)
	items := makeItems(2)

	err := c.BatchCall(context.Background(), items, BatchModeServerParallel)
	var remote *RemoteAPIError
	require.True(t, errors.As(err, &remote))
	assert.Equal(t, 100, remote.Code)
	_, ok := items[0].Response()
	assert.False(t, ok)
}

func TestBatchCallTransportError(t *testing.T) {
	transport := &stubTransport{err: errors.New("timeout")}
	c := newTokenClient(t, transport)

	err := c.BatchCall(context.Background(), makeItems(1), BatchModeServerParallel)
	var transportErr *TransportError
	assert.True(t, errors.As(err, &transportErr))
}

func TestBatchCallMalformedResponse(t *testing.T) {
	transport := &stubTransport{body: `{"not":"a list"}`}
	c := newTokenClient(t, transport)
	items := makeItems(1)

	err := c.BatchCall(context.Background(), items, BatchModeServerParallel)
	assert.ErrorContains(t, err, "failed to parse batch response")
	_, ok := items[0].Response()
	assert.False(t, ok)
}

func TestBatchCallInvalidItem(t *testing.T) {
	transport := &stubTransport{body: `[]`}
	c := newTokenClient(t, transport)

	err := c.BatchCall(context.Background(), []*BatchItem{NewBatchItem("x", "nope", nil, "")}, BatchModeServerParallel)
	assert.True(t, errors.Is(err, ErrUnknownCategory))

	err = c.BatchCall(context.Background(), []*BatchItem{nil}, BatchModeServerParallel)
	assert.Error(t, err)
	assert.Empty(t, transport.Calls())
}

func TestBatchCallRecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)

	transport := &stubTransport{body: `[1,2]`}
	c := newTokenClient(t, transport, WithMetrics(m))

	require.NoError(t, c.BatchCall(context.Background(), makeItems(3), BatchModeServerParallel))
	require.NoError(t, c.BatchCall(context.Background(), makeItems(11), BatchModeServerParallel))

	assert.Equal(t, 1.0, counterValue(t, reg, "baidu_openapi_batches_total", map[string]string{"outcome": metrics.OutcomeSuccess}))
	assert.Equal(t, 1.0, counterValue(t, reg, "baidu_openapi_batches_total", map[string]string{"outcome": metrics.OutcomeSkipped}))
	assert.Equal(t, 2.0, counterValue(t, reg, "baidu_openapi_batch_items_filled_total", nil))
	assert.Equal(t, 1.0, counterValue(t, reg, "baidu_openapi_batch_items_unfilled_total", nil))
}

func TestRawToString(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{`"plain"`, "plain"},
		{`"with \"quote\""`, `with "quote"`},
		{` {"a":1} `, `{"a":1}`},
		{`42`, "42"},
		{`null`, "null"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, rawToString(json.RawMessage(tt.raw)))
	}
}
