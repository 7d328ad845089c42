package openapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	httpclient "github.com/natserract/baiduapi/pkg/http"
	"github.com/natserract/baiduapi/pkg/metrics"
	"go.uber.org/zap"
)

// MaxBatchItems is the largest batch the service accepts.
const MaxBatchItems = 10

// serial_only values for BatchCall.
const (
	BatchModeServerParallel = 0
	BatchModeSerialOnly     = 1
)

// BatchItem is one call queued for BatchCall. The response slot starts unset
// and is written only by BatchCall.
type BatchItem struct {
	APIPath  string
	Category Category
	Method   string
	Params   map[string]string

	response string
	filled   bool
}

// NewBatchItem queues apiPath for a batch.
func NewBatchItem(apiPath string, category Category, params map[string]string, method string) *BatchItem {
	return &BatchItem{
		APIPath:  apiPath,
		Category: category,
		Method:   method,
		Params:   params,
	}
}

// Response returns the item's response and whether the slot was filled. A
// batch answered with fewer results than items leaves the tail unfilled.
func (b *BatchItem) Response() (string, bool) {
	return b.response, b.filled
}

func (b *BatchItem) setResponse(raw json.RawMessage) {
	b.response = rawToString(raw)
	b.filled = true
}

func (b *BatchItem) entry(host string) (batchEntry, error) {
	if err := validCategory(b.Category); err != nil {
		return batchEntry{}, err
	}
	return batchEntry{
		Domain:      "https://" + host,
		HTTPMethod:  NormalizeMethod(b.Method),
		RelativeURL: relativeURL(b.Category, b.APIPath),
		Params:      httpclient.EncodeForm(b.Params),
	}, nil
}

// BatchCall sends items as one batch/run request and writes the i-th result
// into the i-th item.
//
// More than MaxBatchItems items is a no-op: nothing is sent, no slot is
// touched and nil is returned. serialOnly other than BatchModeSerialOnly is
// sent as BatchModeServerParallel.
func (c *Client) BatchCall(ctx context.Context, items []*BatchItem, serialOnly int) error {
	start := time.Now()
	log := c.logger.With(zap.Int("items", len(items)))

	if len(items) > MaxBatchItems {
		log.Warn("Batch exceeds item limit, nothing sent", zap.Int("limit", MaxBatchItems))
		c.metrics.RecordBatch(metrics.OutcomeSkipped, 0, 0)
		return nil
	}
	if c.mode != ModeAccessToken {
		log.Error("Batch call on a session-mode client")
		c.metrics.RecordBatch(metrics.OutcomeInvalid, 0, len(items))
		return ErrBatchRequiresAccessToken
	}
	if serialOnly != BatchModeSerialOnly {
		serialOnly = BatchModeServerParallel
	}

	entries := make([]batchEntry, 0, len(items))
	for i, item := range items {
		if item == nil {
			c.metrics.RecordBatch(metrics.OutcomeInvalid, 0, len(items))
			return fmt.Errorf("batch item %d is nil", i)
		}
		e, err := item.entry(c.config.Host)
		if err != nil {
			log.Error("Invalid batch item", zap.Int("index", i), zap.Error(err))
			c.metrics.RecordBatch(metrics.OutcomeInvalid, 0, len(items))
			return fmt.Errorf("batch item %d: %w", i, err)
		}
		entries = append(entries, e)
	}

	payload, err := json.Marshal(entries)
	if err != nil {
		c.metrics.RecordBatch(metrics.OutcomeInvalid, 0, len(items))
		return fmt.Errorf("failed to encode batch payload: %w", err)
	}

	url := batchURL(c.config.Host)
	params := map[string]string{
		"method":       string(payload),
		"serial_only":  strconv.Itoa(serialOnly),
		"access_token": c.config.AccessToken,
	}

	log.Debug("Sending batch", zap.Int("serial_only", serialOnly))
	body, err := c.transport.Post(ctx, url, params, c.config.ConnectTimeout, c.config.ReadTimeout)
	if err != nil {
		err = &TransportError{Op: http.MethodPost, URL: url, Err: err}
		log.Error("Batch request failed", zap.Error(err))
		c.metrics.RecordBatch(metrics.OutcomeTransport, 0, len(items))
		return err
	}

	if err := c.checkResponse(body); err != nil {
		log.Warn("Batch returned an error", zap.Error(err))
		c.metrics.RecordBatch(metrics.OutcomeRemote, 0, len(items))
		return err
	}

	var results []json.RawMessage
	if err := json.Unmarshal([]byte(body), &results); err != nil {
		log.Error("Failed to parse batch response", zap.Error(err))
		c.metrics.RecordBatch(metrics.OutcomeBadResponse, 0, len(items))
		return fmt.Errorf("failed to parse batch response: %w", err)
	}

	filled := min(len(results), len(items))
	for i := 0; i < filled; i++ {
		items[i].setResponse(results[i])
	}

	switch {
	case len(results) < len(items):
		log.Warn("Batch response shorter than request, tail left unfilled",
			zap.Int("responses", len(results)))
	case len(results) > len(items):
		log.Warn("Batch response longer than request, extra results dropped",
			zap.Int("responses", len(results)))
	}

	log.Debug("Batch completed",
		zap.Int("filled", filled),
		zap.Duration("duration", time.Since(start)))
	c.metrics.RecordBatch(metrics.OutcomeSuccess, filled, len(items)-filled)
	return nil
}

// rawToString renders a batch result element: JSON strings are unquoted, any
// other value keeps its JSON text.
func rawToString(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			return s
		}
	}
	return string(trimmed)
}
